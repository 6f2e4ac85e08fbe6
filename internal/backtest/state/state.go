// Package state keeps backtest results in an in-memory DuckDB database and
// exports them as parquet files next to a YAML report.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

const (
	TradesFileName         = "trades.parquet"
	EquityFileName         = "equity.parquet"
	MonthlyReturnsFileName = "monthly_returns.parquet"
	ReportFileName         = "stats.yaml"
)

// ResultStore persists finished runs and serves them back by run id.
type ResultStore interface {
	Record(ctx context.Context, result types.BacktestResult, metrics types.PerformanceMetrics, monthly []types.MonthlyReturn) error
	Report(ctx context.Context, runID string) (types.BacktestReport, error)
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID        string  `json:"run_id"`
	StrategyID   string  `json:"strategy_id"`
	StrategyName string  `json:"strategy_name"`
	Symbol       string  `json:"stock_code"`
	TotalReturn  float64 `json:"total_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	WinRate      float64 `json:"win_rate"`
	TradeCount   int     `json:"trade_count"`
}

type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	// mu serializes writers; duckdb allows a single writer per connection pool
	mu      sync.Mutex
	reports map[string]types.BacktestReport
}

// NewStore opens an in-memory database and creates the result tables.
func NewStore(log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open database", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	store := &Store{
		db:      db,
		logger:  log,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		reports: make(map[string]types.BacktestReport),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			strategy_id TEXT,
			strategy_name TEXT,
			symbol TEXT,
			start_date TIMESTAMP,
			end_date TIMESTAMP,
			initial_capital DOUBLE,
			final_capital DOUBLE,
			total_return DOUBLE,
			trade_count INTEGER,
			max_drawdown DOUBLE,
			sharpe_ratio DOUBLE,
			win_rate DOUBLE,
			profit_factor DOUBLE,
			execution_time_ms BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT,
			seq INTEGER,
			trade_date TIMESTAMP,
			trade_type TEXT,
			price DOUBLE,
			quantity DOUBLE,
			commission DOUBLE,
			signal_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS equity (
			run_id TEXT,
			date TIMESTAMP,
			value DOUBLE,
			cash DOUBLE,
			position_value DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS monthly_returns (
			run_id TEXT,
			month TEXT,
			return_pct DOUBLE,
			start_value DOUBLE,
			end_value DOUBLE
		)`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to create result tables", err)
		}
	}

	return nil
}

// Record implements ResultStore. All rows of a run are written in one transaction.
func (s *Store) Record(ctx context.Context, result types.BacktestResult, metrics types.PerformanceMetrics, monthly []types.MonthlyReturn) error {
	if result.ID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "result has no run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to begin transaction", err)
	}

	if err := s.insertRun(ctx, tx, result, metrics, monthly); err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to record run %s", result.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to commit run", err)
	}

	s.reports[result.ID] = types.BacktestReport{
		EngineVersion:  version.GetVersion(),
		Timestamp:      time.Now(),
		Result:         result,
		Metrics:        metrics,
		MonthlyReturns: monthly,
	}

	s.logger.Debug("Recorded backtest run",
		zap.String("run_id", result.ID),
		zap.Int("trades", len(result.Trades)),
		zap.Int("equity_points", len(result.PortfolioValue)),
	)

	return nil
}

func (s *Store) insertRun(ctx context.Context, tx *sql.Tx, result types.BacktestResult, metrics types.PerformanceMetrics, monthly []types.MonthlyReturn) error {
	_, err := s.sq.Insert("runs").
		Columns(
			"run_id", "strategy_id", "strategy_name", "symbol", "start_date", "end_date",
			"initial_capital", "final_capital", "total_return", "trade_count", "max_drawdown",
			"sharpe_ratio", "win_rate", "profit_factor", "execution_time_ms",
		).
		Values(
			result.ID, result.StrategyID, result.StrategyName, result.Symbol, result.StartDate, result.EndDate,
			result.InitialCapital, result.FinalCapital, result.TotalReturn, result.TradeCount, result.MaxDrawdown,
			metrics.SharpeRatio, metrics.WinRate, metrics.ProfitFactor, result.ExecutionTimeMs,
		).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, trade := range result.Trades {
		_, err := s.sq.Insert("trades").
			Columns("run_id", "seq", "trade_date", "trade_type", "price", "quantity", "commission", "signal_reason").
			Values(result.ID, i, trade.Date, string(trade.Type), trade.Price, trade.Quantity, trade.Commission, trade.SignalReason).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	for _, snapshot := range result.PortfolioValue {
		_, err := s.sq.Insert("equity").
			Columns("run_id", "date", "value", "cash", "position_value").
			Values(result.ID, snapshot.Date, snapshot.Value, snapshot.Cash, snapshot.PositionValue).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert equity snapshot: %w", err)
		}
	}

	for _, month := range monthly {
		_, err := s.sq.Insert("monthly_returns").
			Columns("run_id", "month", "return_pct", "start_value", "end_value").
			Values(result.ID, month.Month, month.ReturnPct, month.StartValue, month.EndValue).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert monthly return: %w", err)
		}
	}

	return nil
}

// Report implements ResultStore. The returned report carries no file paths
// until the run has been written.
func (s *Store) Report(_ context.Context, runID string) (types.BacktestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[runID]
	if !ok {
		return types.BacktestReport{}, errors.Newf(errors.ErrCodeDataNotFound, "run %s has not been recorded", runID)
	}

	return report, nil
}

// Trades returns the trade log of a run in execution order.
func (s *Store) Trades(ctx context.Context, runID string) ([]types.Trade, error) {
	query, args, err := s.sq.Select("trade_date", "trade_type", "price", "quantity", "commission", "signal_reason").
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build trades query", err)
	}

	return s.queryTrades(ctx, query, args...)
}

// ReadTrades reads a trades parquet file produced by Write.
func (s *Store) ReadTrades(ctx context.Context, path string) ([]types.Trade, error) {
	source := fmt.Sprintf("read_parquet('%s')", escape(path))

	query, args, err := s.sq.Select("trade_date", "trade_type", "price", "quantity", "commission", "signal_reason").
		From(source).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build trades query", err)
	}

	return s.queryTrades(ctx, query, args...)
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...any) ([]types.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	trades := []types.Trade{}

	for rows.Next() {
		var (
			trade     types.Trade
			tradeType string
		)

		err := rows.Scan(&trade.Date, &tradeType, &trade.Price, &trade.Quantity, &trade.Commission, &trade.SignalReason)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade", err)
		}

		trade.Type = types.TradeType(tradeType)
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate trades", err)
	}

	return trades, nil
}

// EquityCurve returns the recorded equity snapshots of a run in date order.
func (s *Store) EquityCurve(ctx context.Context, runID string) ([]types.EquitySnapshot, error) {
	query, args, err := s.sq.Select("date", "value", "cash", "position_value").
		From("equity").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build equity query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query equity", err)
	}
	defer rows.Close()

	equity := []types.EquitySnapshot{}

	for rows.Next() {
		var snapshot types.EquitySnapshot
		if err := rows.Scan(&snapshot.Date, &snapshot.Value, &snapshot.Cash, &snapshot.PositionValue); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan equity snapshot", err)
		}

		equity = append(equity, snapshot)
	}

	return equity, rows.Err()
}

// Leaderboard returns recorded runs ordered by Sharpe ratio, then total return.
// A limit of zero returns every run.
func (s *Store) Leaderboard(ctx context.Context, limit uint64) ([]RunSummary, error) {
	builder := s.sq.Select(
		"run_id", "strategy_id", "strategy_name", "symbol", "total_return",
		"max_drawdown", "sharpe_ratio", "win_rate", "trade_count",
	).
		From("runs").
		OrderBy("sharpe_ratio DESC", "total_return DESC", "run_id ASC")

	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build leaderboard query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query runs", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}

	for rows.Next() {
		var summary RunSummary

		err := rows.Scan(
			&summary.RunID, &summary.StrategyID, &summary.StrategyName, &summary.Symbol, &summary.TotalReturn,
			&summary.MaxDrawdown, &summary.SharpeRatio, &summary.WinRate, &summary.TradeCount,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan run", err)
		}

		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// Write exports a recorded run to <root>/<strategy>/<symbol>/<run_id>/ and
// returns the report written to stats.yaml. dataPath is stored in the report as is.
func (s *Store) Write(ctx context.Context, root string, runID string, dataPath string) (types.BacktestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[runID]
	if !ok {
		return types.BacktestReport{}, errors.Newf(errors.ErrCodeDataNotFound, "run %s has not been recorded", runID)
	}

	dir := filepath.Join(root, report.Result.StrategyID, report.Result.Symbol, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.BacktestReport{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create result directory", err)
	}

	exports := []struct {
		table   string
		columns string
		order   string
		path    string
	}{
		{"trades", "seq, trade_date, trade_type, price, quantity, commission, signal_reason", "seq", filepath.Join(dir, TradesFileName)},
		{"equity", "date, value, cash, position_value", "date", filepath.Join(dir, EquityFileName)},
		{"monthly_returns", "month, return_pct, start_value, end_value", "month", filepath.Join(dir, MonthlyReturnsFileName)},
	}

	for _, export := range exports {
		// raw SQL as squirrel doesn't support COPY
		query := fmt.Sprintf(`COPY (SELECT %s FROM %s WHERE run_id = '%s' ORDER BY %s) TO '%s' (FORMAT PARQUET)`,
			export.columns, export.table, escape(runID), export.order, escape(export.path))

		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return types.BacktestReport{}, errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to export %s", export.table)
		}
	}

	report.TradesFilePath = exports[0].path
	report.EquityFilePath = exports[1].path
	report.MonthlyReturnsFilePath = exports[2].path
	report.DataPath = dataPath

	if err := types.WriteBacktestReport(filepath.Join(dir, ReportFileName), report); err != nil {
		return types.BacktestReport{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write report", err)
	}

	s.reports[runID] = report

	s.logger.Info("Backtest results written", zap.String("run_id", runID), zap.String("path", dir))

	return report, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func escape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
