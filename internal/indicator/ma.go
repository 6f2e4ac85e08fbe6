package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// SMA is the arithmetic mean of the last period closes. Undefined for indices < period-1.
func SMA(bars []types.PriceBar, period int) Series {
	return smaValues(closes(bars), period)
}

func smaValues(values []float64, period int) Series {
	out := undefinedSeries(len(values))
	if period <= 0 {
		return out
	}

	sum := 0.0

	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}

		if i >= period-1 {
			out[i] = optional.Some(sum / float64(period))
		}
	}

	return out
}
