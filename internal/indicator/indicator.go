// Package indicator computes technical indicators over a daily price series.
//
// Every indicator is a pure function returning a Series aligned 1:1 with the
// input bars. Bars inside an indicator's warm-up period hold optional.None,
// which is never confused with a genuine zero reading.
package indicator

import (
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Series is an indicator output aligned with the price series.
type Series []optional.Option[float64]

// At returns the value at index i, or None when i is out of range or the value is undefined.
func (s Series) At(i int) optional.Option[float64] {
	if i < 0 || i >= len(s) {
		return optional.None[float64]()
	}

	return s[i]
}

// Defined reports whether every given index holds a value.
func (s Series) Defined(indices ...int) bool {
	for _, i := range indices {
		if s.At(i).IsNone() {
			return false
		}
	}

	return true
}

// FirstDefined returns the index of the first defined value, or -1.
func (s Series) FirstDefined() int {
	for i, v := range s {
		if v.IsSome() {
			return i
		}
	}

	return -1
}

func undefinedSeries(n int) Series {
	out := make(Series, n)
	for i := range out {
		out[i] = optional.None[float64]()
	}

	return out
}

func closes(bars []types.PriceBar) []float64 {
	values := make([]float64, len(bars))
	for i, bar := range bars {
		values[i] = bar.Close
	}

	return values
}

// Config holds the indicator periods used by a simulation run.
type Config struct {
	SMAShortPeriod int     `validate:"gt=0"`
	SMALongPeriod  int     `validate:"gt=0"`
	RSIPeriod      int     `validate:"gt=0"`
	MACDFast       int     `validate:"gt=0"`
	MACDSlow       int     `validate:"gt=0"`
	MACDSignal     int     `validate:"gt=0"`
	BBPeriod       int     `validate:"gt=0"`
	BBStdDev       float64 `validate:"gt=0"`
	ATRPeriod      int     `validate:"gt=0"`
}

// WarmUp returns the minimum number of bars needed before every configured
// indicator has produced at least one value.
func (c Config) WarmUp() int {
	warmUp := 0
	for _, indicatorType := range configured {
		warmUp = max(warmUp, c.WarmUpOf(indicatorType))
	}

	return warmUp
}

var configured = []types.IndicatorType{
	types.IndicatorTypeSMA,
	types.IndicatorTypeEMA,
	types.IndicatorTypeRSI,
	types.IndicatorTypeMACD,
	types.IndicatorTypeBollingerBands,
	types.IndicatorTypeATR,
}

// WarmUpOf returns the number of bars indicatorType needs before its first value.
// EMA is seeded with the running average and has a value from the first bar.
func (c Config) WarmUpOf(indicatorType types.IndicatorType) int {
	switch indicatorType {
	case types.IndicatorTypeSMA:
		return max(c.SMAShortPeriod, c.SMALongPeriod)
	case types.IndicatorTypeEMA:
		return 1
	case types.IndicatorTypeRSI:
		return c.RSIPeriod + 1
	case types.IndicatorTypeATR:
		return c.ATRPeriod + 1
	case types.IndicatorTypeMACD:
		return c.MACDSlow
	case types.IndicatorTypeBollingerBands:
		return c.BBPeriod
	default:
		return 0
	}
}

// Set is the full indicator set for one run. It is computed once and never mutated.
type Set struct {
	SMAShort  Series
	SMALong   Series
	RSI       Series
	MACD      MACDResult
	Bollinger BollingerBandsResult
	ATR       Series
}

var configValidator = validator.New()

// Compute calculates every indicator for the given bars.
func Compute(bars []types.PriceBar, config Config) (Set, error) {
	if err := configValidator.Struct(config); err != nil {
		return Set{}, errors.Wrap(errors.ErrCodeInvalidPeriod, "invalid indicator configuration", err)
	}

	return Set{
		SMAShort:  SMA(bars, config.SMAShortPeriod),
		SMALong:   SMA(bars, config.SMALongPeriod),
		RSI:       RSI(bars, config.RSIPeriod),
		MACD:      MACD(bars, config.MACDFast, config.MACDSlow, config.MACDSignal),
		Bollinger: BollingerBands(bars, config.BBPeriod, config.BBStdDev),
		ATR:       ATR(bars, config.ATRPeriod),
	}, nil
}
