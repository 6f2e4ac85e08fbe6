// Package strategy turns a computed indicator set into per-bar trading signals.
//
// The supported strategies form a closed set. Each one is a pure function of
// the indicator set, the run parameters and a bar index.
package strategy

import (
	"strings"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// ID identifies a built-in strategy.
type ID string

const (
	SMAGoldenCross        ID = "sma_golden_cross"
	RSIOversoldOverbought ID = "rsi_oversold_overbought"
	BollingerBreakout     ID = "bollinger_breakout"
	MACDSignalCross       ID = "macd_signal_cross"
	MultiIndicatorCombo   ID = "multi_indicator_combo"
)

// Template describes a strategy and the parameter overrides it applies on top of the defaults.
type Template struct {
	ID          ID                 `json:"id" yaml:"id"`
	Name        string             `json:"strategy_name" yaml:"strategy_name"`
	Description string             `json:"strategy_description" yaml:"strategy_description"`
	Defaults    map[string]float64 `json:"strategy_logic" yaml:"strategy_logic"`
}

var templates = []Template{
	{
		ID:          SMAGoldenCross,
		Name:        "SMA Golden Cross",
		Description: "Buy when the short SMA crosses above the long SMA, sell on the opposite cross.",
		Defaults: map[string]float64{
			KeySMAShortPeriod: 20,
			KeySMALongPeriod:  50,
		},
	},
	{
		ID:          RSIOversoldOverbought,
		Name:        "RSI Oversold/Overbought",
		Description: "Buy when RSI drops below the oversold threshold, sell above the overbought threshold.",
		Defaults: map[string]float64{
			KeyRSIPeriod:           14,
			KeyOversoldThreshold:   30,
			KeyOverboughtThreshold: 70,
		},
	},
	{
		ID:          BollingerBreakout,
		Name:        "Bollinger Bands Breakout",
		Description: "Buy when the close falls below the lower band, sell when it rises above the upper band.",
		Defaults: map[string]float64{
			KeyBBPeriod: 20,
			KeyBBStdDev: 2,
		},
	},
	{
		ID:          MACDSignalCross,
		Name:        "MACD Signal Cross",
		Description: "Buy when the MACD line crosses above its signal line, sell on the opposite cross.",
		Defaults: map[string]float64{
			KeyMACDFast:   12,
			KeyMACDSlow:   26,
			KeyMACDSignal: 9,
		},
	},
	{
		ID:          MultiIndicatorCombo,
		Name:        "Multi-Indicator Combo",
		Description: "Trade when at least two of trend, RSI momentum and MACD agree on a direction.",
		Defaults: map[string]float64{
			KeySMAShortPeriod: 20,
			KeySMALongPeriod:  50,
			KeyRSIPeriod:      14,
		},
	},
}

// Templates returns every built-in strategy in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		defaults := make(map[string]float64, len(t.Defaults))
		for k, v := range t.Defaults {
			defaults[k] = v
		}

		t.Defaults = defaults
		out[i] = t
	}

	return out
}

// Lookup returns the template for id.
func Lookup(id ID) (Template, error) {
	for _, t := range Templates() {
		if t.ID == id {
			return t, nil
		}
	}

	return Template{}, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy not found: %s", id)
}

// ParseStrategyID accepts either a strategy id or its display name, case-insensitively.
func ParseStrategyID(value string) (ID, error) {
	v := strings.TrimSpace(value)
	for _, t := range templates {
		if strings.EqualFold(v, string(t.ID)) || strings.EqualFold(v, t.Name) {
			return t.ID, nil
		}
	}

	return "", errors.Newf(errors.ErrCodeStrategyNotFound, "strategy not found: %s", value)
}

// Name returns the display name of the strategy, or the raw id when unknown.
func (id ID) Name() string {
	for _, t := range templates {
		if t.ID == id {
			return t.Name
		}
	}

	return string(id)
}
