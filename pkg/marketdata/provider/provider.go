package provider

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/rxtech-lab/argo-backtest/pkg/marketdata/writer"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderYahoo   ProviderType = "yahoo"
)

// OnDownloadProgress reports progress in calendar days covered out of the requested range.
type OnDownloadProgress = func(current float64, total float64, message string)

type Provider interface {
	// ConfigWriter configures the writer for the provider
	// Writer is used to write the market data to the database.
	ConfigWriter(writer writer.MarketDataWriter)
	// Download downloads daily bars for the given ticker and date range and returns the written path.
	// The context can be used to cancel the download operation.
	// example:
	// Download(ctx, "AAPL", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), onProgress)
	Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, onProgress OnDownloadProgress) (path string, err error)
	// Bars returns an iterator over the daily bars of ticker in the range.
	// Iteration stops after the first error.
	Bars(ctx context.Context, ticker string, startDate time.Time, endDate time.Time) iter.Seq2[types.PriceBar, error]
}

// NewMarketDataProvider creates a provider by type. apiKey is only used by Polygon.
func NewMarketDataProvider(providerType ProviderType, apiKey string) (Provider, error) {
	switch providerType {
	case ProviderPolygon:
		return NewPolygonClient(apiKey)
	case ProviderYahoo:
		return NewYahooClient(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}

// download drains bars into w, reporting progress per bar.
func download(ctx context.Context, w writer.MarketDataWriter, ticker string, startDate, endDate time.Time,
	bars iter.Seq2[types.PriceBar, error], onProgress OnDownloadProgress) (path string, err error) {
	if w == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "no writer configured. Call ConfigWriter first")
	}

	if err := w.Initialize(); err != nil {
		return "", err
	}

	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	total := float64(int(endDate.Sub(startDate).Hours()/24) + 1)
	message := fmt.Sprintf("Downloading %s", ticker)
	count := 0

	for bar, err := range bars {
		if err != nil {
			return "", err
		}

		if ctx.Err() != nil {
			return "", errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "download cancelled", ctx.Err())
		}

		if err := w.Write(bar); err != nil {
			return "", err
		}

		count++

		if onProgress != nil {
			onProgress(min(float64(int(bar.Date.Sub(startDate).Hours()/24)+1), total), total, message)
		}
	}

	if count == 0 {
		return "", errors.Newf(errors.ErrCodeNoDataFound, "provider returned no bars for %s", ticker)
	}

	if onProgress != nil {
		onProgress(total, total, message)
	}

	return w.Finalize()
}
