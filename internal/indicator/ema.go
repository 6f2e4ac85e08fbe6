package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// EMA is the exponential moving average of closes with multiplier 2/(period+1).
//
// It is defined from index 0: the first period values are the cumulative simple
// average of the closes seen so far, after which the recursive formula takes
// over. MACD and every crossover built on it depend on this seeding.
func EMA(bars []types.PriceBar, period int) Series {
	return emaValues(closes(bars), period)
}

func emaValues(values []float64, period int) Series {
	out := undefinedSeries(len(values))
	if period <= 0 {
		return out
	}

	multiplier := 2.0 / float64(period+1)
	sum := 0.0
	prev := 0.0

	for i, v := range values {
		if i < period {
			sum += v
			prev = sum / float64(i+1)
		} else {
			prev = (v-prev)*multiplier + prev
		}

		out[i] = optional.Some(prev)
	}

	return out
}
