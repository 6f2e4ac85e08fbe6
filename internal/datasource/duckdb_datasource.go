package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

const priceView = "price_data"

var priceColumns = []string{
	"trading_date", "symbol", "open_price", "high_price", "low_price", "close_price", "adjusted_close", "volume",
}

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource opens an in-memory DuckDB database used to query price files.
func NewDataSource(log *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &DuckDBDataSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource. Files ending in .csv are read with read_csv_auto,
// everything else as parquet. Column types are normalized by the view.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	if _, err := d.db.Exec(fmt.Sprintf(`DROP VIEW IF EXISTS %s;`, priceView)); err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to drop existing view", err)
	}

	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader = "read_csv_auto"
	}

	// raw SQL as squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf(`
		CREATE VIEW %s AS
		SELECT
			CAST(trading_date AS TIMESTAMP) AS trading_date,
			CAST(symbol AS VARCHAR) AS symbol,
			CAST(open_price AS DOUBLE) AS open_price,
			CAST(high_price AS DOUBLE) AS high_price,
			CAST(low_price AS DOUBLE) AS low_price,
			CAST(close_price AS DOUBLE) AS close_price,
			CAST(COALESCE(adjusted_close, close_price) AS DOUBLE) AS adjusted_close,
			CAST(COALESCE(volume, 0) AS DOUBLE) AS volume
		FROM %s('%s');
	`, priceView, reader, strings.ReplaceAll(path, "'", "''"))

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to load price data from %s", path)
	}

	return nil
}

func (d *DuckDBDataSource) filter(builder squirrel.SelectBuilder, symbol string, start, end optional.Option[time.Time]) squirrel.SelectBuilder {
	if symbol != "" {
		builder = builder.Where(squirrel.Eq{"symbol": symbol})
	}

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"trading_date": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"trading_date": end.Unwrap()})
	}

	return builder
}

// ReadBars implements DataSource.
func (d *DuckDBDataSource) ReadBars(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error) {
	query, args, err := d.filter(d.sq.Select(priceColumns...).From(priceView), symbol, start, end).
		OrderBy("trading_date ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build price query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query price data", err)
	}
	defer rows.Close()

	bars := []types.PriceBar{}

	for rows.Next() {
		var bar types.PriceBar

		err := rows.Scan(&bar.Date, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan price row", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate price rows", err)
	}

	d.logger.Debug("Read price bars", zap.String("symbol", symbol), zap.Int("count", len(bars)))

	return bars, nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query, args, err := d.filter(d.sq.Select("COUNT(*)").From(priceView), symbol, start, end).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count price rows", err)
	}

	return count, nil
}

// Symbols implements DataSource.
func (d *DuckDBDataSource) Symbols(ctx context.Context) ([]string, error) {
	query, args, err := d.sq.Select("DISTINCT symbol").From(priceView).OrderBy("symbol").ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build symbol query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	symbols := []string{}

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}
