package engine

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/commission_fee"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/utils"
)

// Ledger is the cash and position state of one simulation run.
// It is either flat or long; there is no short state.
type Ledger struct {
	initialCapital float64
	position       types.Position
	commissionFee  commission_fee.CommissionFee
	slippageRate   float64
	positionSize   float64

	trades      []types.Trade
	equity      []types.EquitySnapshot
	peak        float64
	maxDrawdown float64
}

// NewLedger creates a flat ledger holding config.InitialCapital in cash.
// positionSize is the fraction of cash invested on each buy.
func NewLedger(config Config, positionSize float64) *Ledger {
	return &Ledger{
		initialCapital: config.InitialCapital,
		position:       types.Position{Cash: config.InitialCapital},
		commissionFee:  config.CommissionFee(),
		slippageRate:   config.SlippageRate,
		positionSize:   positionSize,
		trades:         []types.Trade{},
		equity:         []types.EquitySnapshot{},
		peak:           config.InitialCapital,
	}
}

// Apply executes signal at bar's close. Signals that do not match the current
// state, and buys too small for a single share, return None.
func (l *Ledger) Apply(bar types.PriceBar, signal types.Signal) optional.Option[types.Trade] {
	switch {
	case signal.Type == types.SignalTypeBuy && l.position.IsFlat():
		return l.buy(bar, signal.Reason)
	case signal.Type == types.SignalTypeSell && !l.position.IsFlat():
		return l.sell(bar, signal.Reason)
	default:
		return optional.None[types.Trade]()
	}
}

// Close liquidates any open position at bar's close.
func (l *Ledger) Close(bar types.PriceBar, reason string) optional.Option[types.Trade] {
	if l.position.IsFlat() {
		return optional.None[types.Trade]()
	}

	return l.sell(bar, reason)
}

func (l *Ledger) buy(bar types.PriceBar, reason string) optional.Option[types.Trade] {
	price := bar.Close * (1 + l.slippageRate)

	quantity := utils.CalculateOrderQuantityByPercentage(l.position.Cash, price, l.commissionFee, l.positionSize)
	if quantity <= 0 {
		return optional.None[types.Trade]()
	}

	commission := l.commissionFee.Calculate(quantity, price)
	l.position.Cash -= quantity*price + commission
	l.position.Quantity = quantity
	l.position.EntryPrice = price

	return optional.Some(l.record(bar, types.TradeTypeBuy, price, quantity, commission, reason))
}

func (l *Ledger) sell(bar types.PriceBar, reason string) optional.Option[types.Trade] {
	price := bar.Close * (1 - l.slippageRate)
	quantity := l.position.Quantity

	commission := l.commissionFee.Calculate(quantity, price)
	l.position.Cash += quantity*price - commission
	l.position.Quantity = 0
	l.position.EntryPrice = 0

	return optional.Some(l.record(bar, types.TradeTypeSell, price, quantity, commission, reason))
}

func (l *Ledger) record(bar types.PriceBar, tradeType types.TradeType, price, quantity, commission float64, reason string) types.Trade {
	trade := types.Trade{
		Date:         bar.Date,
		Type:         tradeType,
		Price:        price,
		Quantity:     quantity,
		Commission:   commission,
		SignalReason: reason,
	}
	l.trades = append(l.trades, trade)

	return trade
}

// Mark values the portfolio at bar's close, appends the snapshot to the equity
// curve and updates the running peak and maximum drawdown.
func (l *Ledger) Mark(bar types.PriceBar) types.EquitySnapshot {
	positionValue := l.position.Quantity * bar.Close
	snapshot := types.EquitySnapshot{
		Date:          bar.Date,
		Value:         l.position.Cash + positionValue,
		Cash:          l.position.Cash,
		PositionValue: positionValue,
	}
	l.equity = append(l.equity, snapshot)

	if snapshot.Value > l.peak {
		l.peak = snapshot.Value
	}

	if l.peak > 0 {
		drawdown := (l.peak - snapshot.Value) / l.peak
		if drawdown > l.maxDrawdown {
			l.maxDrawdown = drawdown
		}
	}

	return snapshot
}

// Position returns the current cash and holdings.
func (l *Ledger) Position() types.Position {
	return l.position
}

// Trades returns a copy of the trade log.
func (l *Ledger) Trades() []types.Trade {
	return append([]types.Trade{}, l.trades...)
}

// EquityCurve returns a copy of the recorded snapshots.
func (l *Ledger) EquityCurve() []types.EquitySnapshot {
	return append([]types.EquitySnapshot{}, l.equity...)
}

// MaxDrawdown is the largest observed (peak - value) / peak, as a ratio.
func (l *Ledger) MaxDrawdown() float64 {
	return l.maxDrawdown
}

// InitialCapital returns the starting cash.
func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}
