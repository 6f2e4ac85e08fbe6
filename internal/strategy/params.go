package strategy

import (
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Parameter keys accepted in override maps.
const (
	KeySMAShortPeriod      = "sma_short_period"
	KeySMALongPeriod       = "sma_long_period"
	KeyRSIPeriod           = "rsi_period"
	KeyOversoldThreshold   = "oversold_threshold"
	KeyOverboughtThreshold = "overbought_threshold"
	KeyMACDFast            = "macd_fast"
	KeyMACDSlow            = "macd_slow"
	KeyMACDSignal          = "macd_signal"
	KeyBBPeriod            = "bb_period"
	KeyBBStdDev            = "bb_std_dev"
	KeyATRPeriod           = "atr_period"
	KeyPositionSize        = "position_size"
)

// Params are the numeric parameters of a simulation run.
type Params struct {
	SMAShortPeriod      int     `json:"sma_short_period" yaml:"sma_short_period" jsonschema:"title=Short SMA Period,default=20" validate:"gt=0"`
	SMALongPeriod       int     `json:"sma_long_period" yaml:"sma_long_period" jsonschema:"title=Long SMA Period,default=50" validate:"gt=0"`
	RSIPeriod           int     `json:"rsi_period" yaml:"rsi_period" jsonschema:"title=RSI Period,default=14" validate:"gt=0"`
	OversoldThreshold   float64 `json:"oversold_threshold" yaml:"oversold_threshold" jsonschema:"title=Oversold Threshold,default=30" validate:"gte=0,lte=100,ltfield=OverboughtThreshold"`
	OverboughtThreshold float64 `json:"overbought_threshold" yaml:"overbought_threshold" jsonschema:"title=Overbought Threshold,default=70" validate:"gte=0,lte=100"`
	MACDFast            int     `json:"macd_fast" yaml:"macd_fast" jsonschema:"title=MACD Fast Period,default=12" validate:"gt=0"`
	MACDSlow            int     `json:"macd_slow" yaml:"macd_slow" jsonschema:"title=MACD Slow Period,default=26" validate:"gt=0"`
	MACDSignal          int     `json:"macd_signal" yaml:"macd_signal" jsonschema:"title=MACD Signal Period,default=9" validate:"gt=0"`
	BBPeriod            int     `json:"bb_period" yaml:"bb_period" jsonschema:"title=Bollinger Period,default=20" validate:"gt=0"`
	BBStdDev            float64 `json:"bb_std_dev" yaml:"bb_std_dev" jsonschema:"title=Bollinger Std Dev Multiplier,default=2" validate:"gt=0"`
	ATRPeriod           int     `json:"atr_period" yaml:"atr_period" jsonschema:"title=ATR Period,default=14" validate:"gt=0"`
	// PositionSize is the fraction of cash invested on each buy
	PositionSize float64 `json:"position_size" yaml:"position_size" jsonschema:"title=Position Size,default=0.2" validate:"gt=0,lte=1"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		SMAShortPeriod:      20,
		SMALongPeriod:       50,
		RSIPeriod:           14,
		OversoldThreshold:   30,
		OverboughtThreshold: 70,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		BBPeriod:            20,
		BBStdDev:            2,
		ATRPeriod:           14,
		PositionSize:        0.2,
	}
}

var paramsValidator = validator.New()

// Validate checks every parameter is in range.
func (p Params) Validate() error {
	if err := paramsValidator.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy parameters", err)
	}

	return nil
}

// IndicatorConfig returns the indicator periods these parameters configure.
func (p Params) IndicatorConfig() indicator.Config {
	return indicator.Config{
		SMAShortPeriod: p.SMAShortPeriod,
		SMALongPeriod:  p.SMALongPeriod,
		RSIPeriod:      p.RSIPeriod,
		MACDFast:       p.MACDFast,
		MACDSlow:       p.MACDSlow,
		MACDSignal:     p.MACDSignal,
		BBPeriod:       p.BBPeriod,
		BBStdDev:       p.BBStdDev,
		ATRPeriod:      p.ATRPeriod,
	}
}

func (p *Params) fields() map[string]any {
	return map[string]any{
		KeySMAShortPeriod:      &p.SMAShortPeriod,
		KeySMALongPeriod:       &p.SMALongPeriod,
		KeyRSIPeriod:           &p.RSIPeriod,
		KeyOversoldThreshold:   &p.OversoldThreshold,
		KeyOverboughtThreshold: &p.OverboughtThreshold,
		KeyMACDFast:            &p.MACDFast,
		KeyMACDSlow:            &p.MACDSlow,
		KeyMACDSignal:          &p.MACDSignal,
		KeyBBPeriod:            &p.BBPeriod,
		KeyBBStdDev:            &p.BBStdDev,
		KeyATRPeriod:           &p.ATRPeriod,
		KeyPositionSize:        &p.PositionSize,
	}
}

// Apply sets the named overrides. Unknown keys and fractional periods are rejected.
func (p *Params) Apply(overrides map[string]float64) error {
	fields := p.fields()

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, key := range keys {
		value := overrides[key]

		switch field := fields[key].(type) {
		case *int:
			if value != math.Trunc(value) {
				return errors.Newf(errors.ErrCodeInvalidParameter, "parameter %s must be an integer, got %v", key, value)
			}

			*field = int(value)
		case *float64:
			*field = value
		default:
			return errors.Newf(errors.ErrCodeInvalidParameter, "unknown parameter: %s", key)
		}
	}

	return nil
}

// ToMap returns the parameters keyed by their override names.
func (p Params) ToMap() map[string]float64 {
	out := make(map[string]float64)
	for key, field := range p.fields() {
		switch v := field.(type) {
		case *int:
			out[key] = float64(*v)
		case *float64:
			out[key] = *v
		}
	}

	return out
}

// ResolveParams layers the defaults, the strategy template's defaults and the
// caller's overrides, then validates the result.
func ResolveParams(id ID, overrides map[string]float64) (Params, error) {
	template, err := Lookup(id)
	if err != nil {
		return Params{}, err
	}

	params := DefaultParams()

	if err := params.Apply(template.Defaults); err != nil {
		return Params{}, err
	}

	if err := params.Apply(overrides); err != nil {
		return Params{}, err
	}

	if err := params.Validate(); err != nil {
		return Params{}, err
	}

	return params, nil
}
