package provider

import (
	"context"
	"iter"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/rxtech-lab/argo-backtest/pkg/marketdata/writer"
)

// PolygonAggsIterator is the subset of the polygon aggregates iterator we consume.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the polygon REST client we consume.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

func (p *polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return p.client.ListAggs(ctx, params, options...)
}

type PolygonClient struct {
	apiClient PolygonAPIClient
	writer    writer.MarketDataWriter
}

func NewPolygonClient(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "apiKey is required")
	}

	return &PolygonClient{
		apiClient: &polygonRESTClient{client: polygon.New(apiKey)},
	}, nil
}

// NewPolygonClientWithAPI creates a polygon provider over an existing API client.
func NewPolygonClientWithAPI(client PolygonAPIClient) *PolygonClient {
	return &PolygonClient{apiClient: client}
}

func (c *PolygonClient) ConfigWriter(w writer.MarketDataWriter) {
	c.writer = w
}

func (c *PolygonClient) Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, onProgress OnDownloadProgress) (string, error) {
	return download(ctx, c.writer, ticker, startDate, endDate, c.Bars(ctx, ticker, startDate, endDate), onProgress)
}

// Bars lists daily aggregates. Polygon does not publish an adjusted close
// separately, so the close is used for both.
func (c *PolygonClient) Bars(ctx context.Context, ticker string, startDate time.Time, endDate time.Time) iter.Seq2[types.PriceBar, error] {
	return func(yield func(types.PriceBar, error) bool) {
		//nolint:exhaustruct // third-party struct with many optional fields
		params := models.ListAggsParams{
			Ticker:     ticker,
			Multiplier: 1,
			Timespan:   models.Day,
			From:       models.Millis(startDate),
			To:         models.Millis(endDate),
		}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(50000)

		aggs := c.apiClient.ListAggs(ctx, params)

		for aggs.Next() {
			agg := aggs.Item()

			bar := types.PriceBar{
				Symbol:   ticker,
				Date:     time.Time(agg.Timestamp).UTC(),
				Open:     agg.Open,
				High:     agg.High,
				Low:      agg.Low,
				Close:    agg.Close,
				AdjClose: agg.Close,
				Volume:   agg.Volume,
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := aggs.Err(); err != nil {
			yield(types.PriceBar{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "error iterating polygon aggregates for %s", ticker))
		}
	}
}
