package types

import (
	"time"
)

type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// TradeReasonCloseAtEnd is the reason recorded on the forced liquidation at the end of a run.
const TradeReasonCloseAtEnd = "Close position at end"

// Trade is an executed buy or sell. Trades are appended to the trade log and never mutated.
type Trade struct {
	Date time.Time `json:"trade_date" yaml:"trade_date" csv:"trade_date"`
	Type TradeType `json:"trade_type" yaml:"trade_type" csv:"trade_type"`
	// Price is the fill price after slippage
	Price    float64 `json:"price" yaml:"price" csv:"price"`
	Quantity float64 `json:"quantity" yaml:"quantity" csv:"quantity"`
	// Commission paid for this trade
	Commission   float64 `json:"commission" yaml:"commission" csv:"commission"`
	SignalReason string  `json:"signal_reason" yaml:"signal_reason" csv:"signal_reason"`
}

// Value is the gross value of the trade (price * quantity).
func (t Trade) Value() float64 {
	return t.Price * t.Quantity
}

// Position is the mutable cash/position state owned by a single simulation run.
type Position struct {
	Cash     float64 `json:"cash" yaml:"cash"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	// EntryPrice is the fill price of the open position. Zero when flat.
	EntryPrice float64 `json:"entry_price" yaml:"entry_price"`
}

// IsFlat reports whether no shares are held.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// CompletedTrade is a buy matched with its subsequent sell.
type CompletedTrade struct {
	EntryDate  time.Time `json:"buy_date" yaml:"buy_date" csv:"buy_date"`
	ExitDate   time.Time `json:"sell_date" yaml:"sell_date" csv:"sell_date"`
	EntryPrice float64   `json:"buy_price" yaml:"buy_price" csv:"buy_price"`
	ExitPrice  float64   `json:"sell_price" yaml:"sell_price" csv:"sell_price"`
	Quantity   float64   `json:"quantity" yaml:"quantity" csv:"quantity"`
	// Profit is the realized profit net of both commissions
	Profit float64 `json:"profit" yaml:"profit" csv:"profit"`
	// ReturnPct is Profit relative to the total entry cost, in percent
	ReturnPct float64 `json:"return_pct" yaml:"return_pct" csv:"return_pct"`
}

// HoldingPeriod is the time between entry and exit.
func (c CompletedTrade) HoldingPeriod() time.Duration {
	return c.ExitDate.Sub(c.EntryDate)
}
