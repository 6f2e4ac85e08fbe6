// Package performance derives risk and return statistics from a finished simulation.
package performance

import (
	"math"
	"sort"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// TradingDaysPerYear annualizes per-bar statistics.
	TradingDaysPerYear = 252
	// DefaultRiskFreeRate is the daily risk-free rate before annualization.
	DefaultRiskFreeRate = 0.001
)

// Analyze computes the performance metrics of result. When no trades were
// executed every ratio is 0 and only the max drawdown is carried over.
func Analyze(result types.BacktestResult) types.PerformanceMetrics {
	metrics := types.PerformanceMetrics{MaxDrawdown: result.MaxDrawdown}

	if len(result.Trades) == 0 {
		return metrics
	}

	completed := CompletedTrades(result.Trades)
	metrics.SharpeRatio = SharpeRatio(Returns(result.PortfolioValue), DefaultRiskFreeRate)
	metrics.CompletedTrades = len(completed)

	for _, trade := range completed {
		switch {
		case trade.Profit > 0:
			metrics.WinningTrades++
			metrics.TotalProfit += trade.Profit
		case trade.Profit < 0:
			metrics.LosingTrades++
			metrics.TotalLoss += trade.Profit
		}
	}

	metrics.TotalLoss = math.Abs(metrics.TotalLoss)

	if len(completed) > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(len(completed))
	}

	if metrics.TotalLoss > 0 {
		metrics.ProfitFactor = metrics.TotalProfit / metrics.TotalLoss
	}

	if metrics.WinningTrades > 0 {
		metrics.AvgProfit = metrics.TotalProfit / float64(metrics.WinningTrades)
	}

	if metrics.LosingTrades > 0 {
		metrics.AvgLoss = metrics.TotalLoss / float64(metrics.LosingTrades)
	}

	metrics.MaxConsecutiveWins, metrics.MaxConsecutiveLosses = Streaks(completed)

	return metrics
}

// CompletedTrades pairs every buy with the next sell. A trailing buy without a
// sell is dropped.
func CompletedTrades(trades []types.Trade) []types.CompletedTrade {
	completed := []types.CompletedTrade{}

	var open *types.Trade

	for i := range trades {
		trade := trades[i]

		switch trade.Type {
		case types.TradeTypeBuy:
			open = &trade
		case types.TradeTypeSell:
			if open == nil {
				continue
			}

			completed = append(completed, pair(*open, trade))
			open = nil
		}
	}

	return completed
}

func pair(buy, sell types.Trade) types.CompletedTrade {
	quantity := decimal.NewFromFloat(sell.Quantity)
	buyValue := decimal.NewFromFloat(buy.Quantity).
		Mul(decimal.NewFromFloat(buy.Price)).
		Add(decimal.NewFromFloat(buy.Commission))
	sellValue := quantity.
		Mul(decimal.NewFromFloat(sell.Price)).
		Sub(decimal.NewFromFloat(sell.Commission))
	profit := sellValue.Sub(buyValue)

	returnPct := decimal.Zero
	if !buyValue.IsZero() {
		returnPct = profit.Div(buyValue).Mul(decimal.NewFromInt(100))
	}

	return types.CompletedTrade{
		EntryDate:  buy.Date,
		ExitDate:   sell.Date,
		EntryPrice: buy.Price,
		ExitPrice:  sell.Price,
		Quantity:   sell.Quantity,
		Profit:     profit.InexactFloat64(),
		ReturnPct:  returnPct.InexactFloat64(),
	}
}

// Returns computes the simple return between consecutive snapshots.
func Returns(equity []types.EquitySnapshot) []float64 {
	if len(equity) < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(equity)-1)

	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}

		returns = append(returns, (equity[i].Value-prev)/prev)
	}

	return returns
}

// SharpeRatio annualizes the mean and population standard deviation of the
// per-bar returns over a 252 day year. It is 0 without samples or variance.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	n := float64(len(returns))
	mean := 0.0

	for _, r := range returns {
		mean += r
	}

	mean /= n

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	stdDev := math.Sqrt(variance / n)
	if stdDev == 0 {
		return 0
	}

	annualizedReturn := mean * TradingDaysPerYear
	annualizedStdDev := stdDev * math.Sqrt(TradingDaysPerYear)
	annualizedRiskFree := riskFreeRate * TradingDaysPerYear

	return (annualizedReturn - annualizedRiskFree) / annualizedStdDev
}

// Streaks returns the longest runs of winning and losing trades. A trade with
// zero profit counts as a loss.
func Streaks(completed []types.CompletedTrade) (maxWins int, maxLosses int) {
	wins, losses := 0, 0

	for _, trade := range completed {
		if trade.Profit > 0 {
			wins++
			losses = 0
			maxWins = max(maxWins, wins)
		} else {
			losses++
			wins = 0
			maxLosses = max(maxLosses, losses)
		}
	}

	return maxWins, maxLosses
}

// MonthlyReturns groups the equity curve by calendar month and reports the change
// from each month's first to last snapshot, sorted by month.
func MonthlyReturns(equity []types.EquitySnapshot) []types.MonthlyReturn {
	months := map[string]*types.MonthlyReturn{}

	for _, snapshot := range equity {
		key := snapshot.Date.Format("2006-01")

		month, ok := months[key]
		if !ok {
			months[key] = &types.MonthlyReturn{
				Month:      key,
				StartValue: snapshot.Value,
				EndValue:   snapshot.Value,
			}

			continue
		}

		month.EndValue = snapshot.Value
	}

	out := make([]types.MonthlyReturn, 0, len(months))

	for _, month := range months {
		if month.StartValue != 0 {
			month.ReturnPct = (month.EndValue - month.StartValue) / month.StartValue * 100
		}

		out = append(out, *month)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Month < out[j].Month
	})

	return out
}
