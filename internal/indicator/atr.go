package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// ATR is the Wilder-smoothed average true range.
//
// The true range at index 0 is just high-low and produces no output. ATR at
// index period is the simple average of the true ranges at indices 1..period,
// so the first bar's range never enters the average.
func ATR(bars []types.PriceBar, period int) Series {
	out := undefinedSeries(len(bars))
	if period <= 0 || len(bars) <= period {
		return out
	}

	sum := 0.0
	prev := 0.0

	for i := 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1].Close)

		switch {
		case i < period:
			sum += tr

			continue
		case i == period:
			prev = (sum + tr) / float64(period)
		default:
			prev = (prev*float64(period-1) + tr) / float64(period)
		}

		out[i] = optional.Some(prev)
	}

	return out
}

func trueRange(bar types.PriceBar, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}
