package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// BollingerBandsResult holds the three band series.
type BollingerBandsResult struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// BollingerBands computes middle = SMA(period) and bands at middle ± stdDev times the
// population standard deviation of the last period closes.
func BollingerBands(bars []types.PriceBar, period int, stdDev float64) BollingerBandsResult {
	values := closes(bars)
	middle := smaValues(values, period)
	upper := undefinedSeries(len(values))
	lower := undefinedSeries(len(values))

	for i := range values {
		if middle[i].IsNone() {
			continue
		}

		mean := middle[i].Unwrap()
		sumSquaredDiff := 0.0

		for j := 0; j < period; j++ {
			diff := values[i-j] - mean
			sumSquaredDiff += diff * diff
		}

		deviation := math.Sqrt(sumSquaredDiff / float64(period))
		upper[i] = optional.Some(mean + stdDev*deviation)
		lower[i] = optional.Some(mean - stdDev*deviation)
	}

	return BollingerBandsResult{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
	}
}
