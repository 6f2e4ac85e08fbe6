// Package engine runs a single strategy over a single price series against a
// simulated cash ledger.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// Input is everything a run needs besides the engine config.
type Input struct {
	Symbol   string
	Strategy strategy.ID
	Params   strategy.Params
	Bars     []types.PriceBar
}

// Backtester drives indicators, signals and the ledger across a price series.
// A Backtester holds no per-run state and may run concurrently.
type Backtester struct {
	config    Config
	log       *logger.Logger
	callbacks LifecycleCallbacks
}

// NewBacktester creates a backtester. A nil log discards output.
func NewBacktester(config Config, log *logger.Logger) *Backtester {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Backtester{
		config: config,
		log:    log,
	}
}

// WithCallbacks returns a copy of the backtester that invokes callbacks during Run.
func (b *Backtester) WithCallbacks(callbacks LifecycleCallbacks) *Backtester {
	clone := *b
	clone.callbacks = callbacks

	return &clone
}

// Config returns the engine config.
func (b *Backtester) Config() Config {
	return b.config
}

// Run simulates input and returns the raw result. A run is all-or-nothing:
// on error the returned result is empty.
func (b *Backtester) Run(input Input) (types.BacktestResult, error) {
	startedAt := time.Now()

	if err := b.config.Validate(); err != nil {
		return types.BacktestResult{}, err
	}

	template, err := strategy.Lookup(input.Strategy)
	if err != nil {
		return types.BacktestResult{}, err
	}

	if err := input.Params.Validate(); err != nil {
		return types.BacktestResult{}, err
	}

	bars := FilterByPeriod(input.Bars, b.config)

	if err := ValidateBars(bars); err != nil {
		return types.BacktestResult{}, err
	}

	indicatorConfig := input.Params.IndicatorConfig()
	if required := indicatorConfig.WarmUp(); len(bars) < required {
		return types.BacktestResult{}, errors.NewInsufficientData(required, len(bars), input.Symbol)
	}

	runID := uuid.New().String()
	log := &logger.Logger{Logger: b.log.With(
		zap.String("run_id", runID),
		zap.String("symbol", input.Symbol),
		zap.String("strategy", string(template.ID)),
	)}

	if b.callbacks.OnRunStart != nil {
		if err := (*b.callbacks.OnRunStart)(runID, input.Symbol, template.Name, len(bars)); err != nil {
			return types.BacktestResult{}, err
		}
	}

	log.Info("Backtest started",
		zap.Int("bars", len(bars)),
		zap.Time("start_date", bars[0].Date),
		zap.Time("end_date", bars[len(bars)-1].Date),
	)

	set, err := indicator.Compute(bars, indicatorConfig)
	if err != nil {
		return types.BacktestResult{}, err
	}

	signals, err := strategy.GenerateAll(template.ID, set, input.Params, bars)
	if err != nil {
		return types.BacktestResult{}, err
	}

	ledger := NewLedger(b.config, input.Params.PositionSize)

	for _, signal := range signals {
		bar := bars[signal.Index]

		if trade := ledger.Apply(bar, signal); trade.IsSome() {
			b.onTrade(log, trade.Unwrap())
		}

		ledger.Mark(bar)

		if b.callbacks.OnProcessData != nil {
			if err := (*b.callbacks.OnProcessData)(signal.Index, len(bars)-1); err != nil {
				return types.BacktestResult{}, err
			}
		}
	}

	last := bars[len(bars)-1]
	if trade := ledger.Close(last, types.TradeReasonCloseAtEnd); trade.IsSome() {
		log.Info("Closed open position at end of series", zap.Float64("price", trade.Unwrap().Price))
		b.onTrade(log, trade.Unwrap())
	}

	finalCapital := ledger.Position().Cash
	trades := ledger.Trades()

	result := types.BacktestResult{
		ID:              runID,
		StrategyID:      string(template.ID),
		StrategyName:    template.Name,
		Symbol:          input.Symbol,
		StartDate:       bars[0].Date,
		EndDate:         last.Date,
		InitialCapital:  b.config.InitialCapital,
		FinalCapital:    finalCapital,
		TotalReturn:     (finalCapital - b.config.InitialCapital) / b.config.InitialCapital * 100,
		TradeCount:      len(trades),
		MaxDrawdown:     ledger.MaxDrawdown() * 100,
		ExecutionTimeMs: time.Since(startedAt).Milliseconds(),
		Trades:          trades,
		PortfolioValue:  ledger.EquityCurve(),
	}

	log.Info("Backtest completed",
		zap.Int("trades", result.TradeCount),
		zap.Float64("final_capital", result.FinalCapital),
		zap.Float64("total_return", result.TotalReturn),
		zap.Float64("max_drawdown", result.MaxDrawdown),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs),
	)

	if b.callbacks.OnRunEnd != nil {
		(*b.callbacks.OnRunEnd)(result)
	}

	return result, nil
}

func (b *Backtester) onTrade(log *logger.Logger, trade types.Trade) {
	log.Debug("Trade executed",
		zap.String("type", string(trade.Type)),
		zap.Time("date", trade.Date),
		zap.Float64("price", trade.Price),
		zap.Float64("quantity", trade.Quantity),
		zap.Float64("commission", trade.Commission),
		zap.String("reason", trade.SignalReason),
	)

	if b.callbacks.OnTrade != nil {
		(*b.callbacks.OnTrade)(trade)
	}
}

// ValidateBars rejects bars that break the price invariants or are not in
// strictly ascending date order.
func ValidateBars(bars []types.PriceBar) error {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return err
		}

		if i > 0 && !bar.Date.After(bars[i-1].Date) {
			return errors.Newf(errors.ErrCodeDataIntegrity, "bar %d dated %s is not after %s",
				i, bar.Date.Format(time.DateOnly), bars[i-1].Date.Format(time.DateOnly))
		}
	}

	return nil
}

// FilterByPeriod returns the bars inside the config's optional start/end dates, inclusive.
func FilterByPeriod(bars []types.PriceBar, config Config) []types.PriceBar {
	if config.StartTime.IsNone() && config.EndTime.IsNone() {
		return bars
	}

	out := make([]types.PriceBar, 0, len(bars))

	for _, bar := range bars {
		if config.StartTime.IsSome() && bar.Date.Before(config.StartTime.Unwrap()) {
			continue
		}

		if config.EndTime.IsSome() && bar.Date.After(config.EndTime.Unwrap()) {
			continue
		}

		out = append(out, bar)
	}

	return out
}
