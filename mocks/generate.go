package mocks

//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/datasource DataSource
//go:generate mockgen -destination=./mock_price_loader.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/datasource PriceLoader
//go:generate mockgen -destination=./mock_result_store.go -package=mocks github.com/rxtech-lab/argo-backtest/internal/backtest/state ResultStore
//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-backtest/pkg/marketdata/provider Provider
