// Package datasource loads daily price bars from parquet or CSV files.
package datasource

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// DataSource reads price bars from a file-backed table.
type DataSource interface {
	// Initialize points the data source at a parquet or CSV file (globs allowed).
	Initialize(path string) error
	// ReadBars returns the bars of symbol in ascending date order. An empty symbol reads every symbol.
	ReadBars(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error)
	// Count returns the number of bars of symbol in the range.
	Count(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Symbols lists the distinct symbols in the file.
	Symbols(ctx context.Context) ([]string, error)
	// Close releases the underlying database.
	Close() error
}

// PriceLoader returns the stored bars for one symbol in date order, unfiltered.
type PriceLoader interface {
	Load(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error)
}
