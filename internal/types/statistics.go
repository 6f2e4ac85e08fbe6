package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BacktestResult is the immutable output of one simulation run.
type BacktestResult struct {
	// ID is the unique identifier for this backtest run.
	ID           string    `json:"id" yaml:"id"`
	StrategyID   string    `json:"strategy_id" yaml:"strategy_id"`
	StrategyName string    `json:"strategy_name" yaml:"strategy_name"`
	Symbol       string    `json:"stock_code" yaml:"stock_code"`
	StartDate    time.Time `json:"start_date" yaml:"start_date"`
	EndDate      time.Time `json:"end_date" yaml:"end_date"`

	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	FinalCapital   float64 `json:"final_capital" yaml:"final_capital"`
	// TotalReturn in percent.
	TotalReturn float64 `json:"total_return" yaml:"total_return"`
	TradeCount  int     `json:"trade_count" yaml:"trade_count"`
	// MaxDrawdown in percent.
	MaxDrawdown float64 `json:"max_drawdown" yaml:"max_drawdown"`
	// ExecutionTimeMs is the wall-clock duration of the run. It is the only
	// field that differs between two runs over identical inputs.
	ExecutionTimeMs int64 `json:"execution_time_ms" yaml:"execution_time_ms"`

	Trades         []Trade          `json:"trades" yaml:"-"`
	PortfolioValue []EquitySnapshot `json:"portfolio_value" yaml:"-"`
}

// PerformanceMetrics are the risk/return statistics derived from a BacktestResult.
type PerformanceMetrics struct {
	SharpeRatio float64 `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	// MaxDrawdown in percent, passed through from the simulation result.
	MaxDrawdown float64 `json:"max_drawdown" yaml:"max_drawdown"`
	WinRate     float64 `json:"win_rate" yaml:"win_rate"`
	// ProfitFactor is 0 when there are no losing trades.
	ProfitFactor         float64 `json:"profit_factor" yaml:"profit_factor"`
	AvgProfit            float64 `json:"avg_profit" yaml:"avg_profit"`
	AvgLoss              float64 `json:"avg_loss" yaml:"avg_loss"`
	TotalProfit          float64 `json:"total_profit" yaml:"total_profit"`
	TotalLoss            float64 `json:"total_loss" yaml:"total_loss"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins" yaml:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	CompletedTrades      int     `json:"completed_trades" yaml:"completed_trades"`
	WinningTrades        int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades         int     `json:"losing_trades" yaml:"losing_trades"`
}

// MonthlyReturn is the equity change within one calendar month.
type MonthlyReturn struct {
	// Month is formatted as YYYY-MM
	Month      string  `json:"month" yaml:"month" csv:"month"`
	ReturnPct  float64 `json:"return_pct" yaml:"return_pct" csv:"return_pct"`
	StartValue float64 `json:"start_value" yaml:"start_value" csv:"start_value"`
	EndValue   float64 `json:"end_value" yaml:"end_value" csv:"end_value"`
}

// BacktestReport is the summary persisted next to the parquet exports of a run.
type BacktestReport struct {
	EngineVersion  string             `yaml:"engine_version" json:"engine_version"`
	Timestamp      time.Time          `yaml:"timestamp" json:"timestamp"`
	Result         BacktestResult     `yaml:"result" json:"result"`
	Metrics        PerformanceMetrics `yaml:"metrics" json:"metrics"`
	MonthlyReturns []MonthlyReturn    `yaml:"monthly_returns" json:"monthly_returns"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
	// EquityFilePath is the path to the equity curve parquet file.
	EquityFilePath string `yaml:"equity_file_path" json:"equity_file_path"`
	// MonthlyReturnsFilePath is the path to the monthly returns parquet file.
	MonthlyReturnsFilePath string `yaml:"monthly_returns_file_path" json:"monthly_returns_file_path"`
	// DataPath is the path to the market data file used for this backtest.
	DataPath string `yaml:"data_path" json:"data_path"`
}

// WriteBacktestReport writes a backtest report to a YAML file.
func WriteBacktestReport(path string, report BacktestReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest report to file: %w", err)
	}

	return nil
}

// ReadBacktestReport reads a backtest report from a YAML file.
func ReadBacktestReport(path string) (BacktestReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BacktestReport{}, fmt.Errorf("failed to read backtest report file: %w", err)
	}

	var report BacktestReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return BacktestReport{}, fmt.Errorf("failed to unmarshal backtest report: %w", err)
	}

	return report, nil
}
