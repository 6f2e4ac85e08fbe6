package datasource

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// Repository loads bars from a DataSource. Load returns the rows as stored;
// LoadValid also drops malformed rows before they reach the simulation.
type Repository struct {
	source DataSource
	log    *logger.Logger
}

func NewRepository(source DataSource, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Repository{source: source, log: log}
}

// Load implements PriceLoader. Bars come back unfiltered so callers can
// count what the source holds before cleaning.
func (r *Repository) Load(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error) {
	bars, err := r.source.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no price data found for %s", symbol)
	}

	return bars, nil
}

// LoadValid is Load followed by Clean.
func (r *Repository) LoadValid(ctx context.Context, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.PriceBar, error) {
	bars, err := r.Load(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	valid, filtered := Clean(bars)

	r.log.Info("Data validation",
		zap.String("symbol", symbol),
		zap.Int("total", len(bars)),
		zap.Int("valid", len(valid)),
		zap.Int("filtered", filtered),
	)

	return valid, nil
}

// Clean keeps the bars whose prices are positive and consistent, and drops
// repeated dates. It returns the kept bars and how many were dropped.
func Clean(bars []types.PriceBar) ([]types.PriceBar, int) {
	valid := make([]types.PriceBar, 0, len(bars))

	for _, bar := range bars {
		if bar.Validate() != nil {
			continue
		}

		if n := len(valid); n > 0 && !bar.Date.After(valid[n-1].Date) {
			continue
		}

		valid = append(valid, bar)
	}

	return valid, len(bars) - len(valid)
}
