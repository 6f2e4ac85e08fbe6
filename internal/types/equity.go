package types

import "time"

// EquitySnapshot is the portfolio valuation at one bar's close.
type EquitySnapshot struct {
	Date time.Time `json:"date" yaml:"date" csv:"date"`
	// Value is Cash + PositionValue
	Value         float64 `json:"value" yaml:"value" csv:"value"`
	Cash          float64 `json:"cash" yaml:"cash" csv:"cash"`
	PositionValue float64 `json:"position_value" yaml:"position_value" csv:"position_value"`
}
