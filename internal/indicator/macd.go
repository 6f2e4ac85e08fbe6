package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// MACDResult holds the three MACD lines.
type MACDResult struct {
	MACD      Series
	Signal    Series
	Histogram Series
}

// MACD computes fastEMA - slowEMA as the MACD line. The signal line is an EMA of
// the MACD line taken from index slow-1 onwards and left-padded with undefined
// values. The histogram is MACD - signal wherever both are defined.
func MACD(bars []types.PriceBar, fast, slow, signal int) MACDResult {
	n := len(bars)
	fastEMA := EMA(bars, fast)
	slowEMA := EMA(bars, slow)

	macdLine := undefinedSeries(n)
	macdValues := make([]float64, n)

	for i := 0; i < n; i++ {
		if fastEMA[i].IsNone() || slowEMA[i].IsNone() {
			continue
		}

		macdValues[i] = fastEMA[i].Unwrap() - slowEMA[i].Unwrap()
		macdLine[i] = optional.Some(macdValues[i])
	}

	signalLine := undefinedSeries(n)

	offset := slow - 1
	if slow > 0 && offset < n {
		tail := emaValues(macdValues[offset:], signal)
		copy(signalLine[offset:], tail)
	}

	histogram := undefinedSeries(n)

	for i := 0; i < n; i++ {
		if macdLine[i].IsNone() || signalLine[i].IsNone() {
			continue
		}

		histogram[i] = optional.Some(macdLine[i].Unwrap() - signalLine[i].Unwrap())
	}

	return MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: histogram,
	}
}
