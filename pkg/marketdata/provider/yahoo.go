package provider

import (
	"context"
	"iter"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/rxtech-lab/argo-backtest/pkg/marketdata/writer"
)

// YahooChartIterator is the subset of the finance-go chart iterator we consume.
type YahooChartIterator interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// YahooChartFetcher opens a chart query.
type YahooChartFetcher func(params *chart.Params) YahooChartIterator

func fetchYahooChart(params *chart.Params) YahooChartIterator {
	return chart.Get(params)
}

type YahooClient struct {
	fetch  YahooChartFetcher
	writer writer.MarketDataWriter
}

// NewYahooClient creates a provider over the public Yahoo Finance chart API.
// Exchange suffixes such as ".T" are part of the ticker.
func NewYahooClient() Provider {
	return &YahooClient{fetch: fetchYahooChart}
}

// NewYahooClientWithFetcher creates a yahoo provider with a custom chart fetcher.
func NewYahooClientWithFetcher(fetch YahooChartFetcher) *YahooClient {
	return &YahooClient{fetch: fetch}
}

func (c *YahooClient) ConfigWriter(w writer.MarketDataWriter) {
	c.writer = w
}

func (c *YahooClient) Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, onProgress OnDownloadProgress) (string, error) {
	return download(ctx, c.writer, ticker, startDate, endDate, c.Bars(ctx, ticker, startDate, endDate), onProgress)
}

// Bars queries the daily chart. The chart end date is exclusive, so one day is added.
func (c *YahooClient) Bars(ctx context.Context, ticker string, startDate time.Time, endDate time.Time) iter.Seq2[types.PriceBar, error] {
	return func(yield func(types.PriceBar, error) bool) {
		end := endDate.AddDate(0, 0, 1)
		params := &chart.Params{
			Symbol:   ticker,
			Start:    datetime.New(&startDate),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		bars := c.fetch(params)

		for bars.Next() {
			if ctx.Err() != nil {
				yield(types.PriceBar{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "download cancelled", ctx.Err()))

				return
			}

			chartBar := bars.Bar()
			if chartBar == nil {
				continue
			}

			date := time.Unix(int64(chartBar.Timestamp), 0).UTC()
			bar := types.PriceBar{
				Symbol:   ticker,
				Date:     time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
				Open:     chartBar.Open.InexactFloat64(),
				High:     chartBar.High.InexactFloat64(),
				Low:      chartBar.Low.InexactFloat64(),
				Close:    chartBar.Close.InexactFloat64(),
				AdjClose: chartBar.AdjClose.InexactFloat64(),
				Volume:   float64(chartBar.Volume),
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := bars.Err(); err != nil {
			yield(types.PriceBar{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to get historical data for %s", ticker))
		}
	}
}
