package performance

import (
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type PerformanceTestSuite struct {
	suite.Suite
	start time.Time
}

func TestPerformanceSuite(t *testing.T) {
	suite.Run(t, new(PerformanceTestSuite))
}

func (suite *PerformanceTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *PerformanceTestSuite) day(n int) time.Time {
	return suite.start.AddDate(0, 0, n)
}

func (suite *PerformanceTestSuite) roundTrip(day int, buyPrice, sellPrice, quantity float64) []types.Trade {
	return []types.Trade{
		{Date: suite.day(day), Type: types.TradeTypeBuy, Price: buyPrice, Quantity: quantity, Commission: buyPrice * quantity * 0.001},
		{Date: suite.day(day + 1), Type: types.TradeTypeSell, Price: sellPrice, Quantity: quantity, Commission: sellPrice * quantity * 0.001},
	}
}

func (suite *PerformanceTestSuite) TestCompletedTrades() {
	trades := suite.roundTrip(0, 100, 110, 10)

	completed := CompletedTrades(trades)
	suite.Require().Len(completed, 1)

	trade := completed[0]
	// buy value 1000 + 1, sell value 1100 - 1.1
	suite.InDelta(97.9, trade.Profit, 1e-9)
	suite.InDelta(97.9/1001*100, trade.ReturnPct, 1e-9)
	suite.Equal(suite.day(0), trade.EntryDate)
	suite.Equal(suite.day(1), trade.ExitDate)
	suite.Equal(100.0, trade.EntryPrice)
	suite.Equal(110.0, trade.ExitPrice)
	suite.Equal(10.0, trade.Quantity)
	suite.Equal(24*time.Hour, trade.HoldingPeriod())
}

func (suite *PerformanceTestSuite) TestCompletedTradesIgnoresUnmatched() {
	trades := []types.Trade{
		{Type: types.TradeTypeSell, Price: 10, Quantity: 1},
	}
	trades = append(trades, suite.roundTrip(1, 10, 12, 1)...)
	trades = append(trades, types.Trade{Type: types.TradeTypeBuy, Price: 10, Quantity: 1})

	suite.Len(CompletedTrades(trades), 1)
	suite.Empty(CompletedTrades(nil))
}

func (suite *PerformanceTestSuite) TestReturns() {
	equity := []types.EquitySnapshot{{Value: 100}, {Value: 110}, {Value: 99}}

	returns := Returns(equity)
	suite.Require().Len(returns, 2)
	suite.InDelta(0.1, returns[0], 1e-12)
	suite.InDelta(-0.1, returns[1], 1e-12)

	suite.Empty(Returns(equity[:1]))
}

func (suite *PerformanceTestSuite) TestSharpeRatio() {
	suite.Zero(SharpeRatio(nil, DefaultRiskFreeRate))
	suite.Zero(SharpeRatio([]float64{0.01, 0.01, 0.01}, DefaultRiskFreeRate), "zero deviation")

	// mean 0.01, population std 0.01
	returns := []float64{0.0, 0.02}
	expected := (0.01*252 - 0.001*252) / (0.01 * math.Sqrt(252))
	suite.InDelta(expected, SharpeRatio(returns, DefaultRiskFreeRate), 1e-9)
}

func (suite *PerformanceTestSuite) TestStreaks() {
	completed := []types.CompletedTrade{
		{Profit: 1}, {Profit: 2}, {Profit: 0}, {Profit: -1}, {Profit: -3}, {Profit: 5},
	}

	wins, losses := Streaks(completed)
	suite.Equal(2, wins)
	suite.Equal(3, losses, "zero profit extends a losing streak")

	wins, losses = Streaks(nil)
	suite.Zero(wins)
	suite.Zero(losses)
}

func (suite *PerformanceTestSuite) TestAnalyzeSingleWinningTrade() {
	result := types.BacktestResult{
		MaxDrawdown: 1.5,
		Trades:      suite.roundTrip(0, 100, 110, 10),
		PortfolioValue: []types.EquitySnapshot{
			{Date: suite.day(0), Value: 1000},
			{Date: suite.day(1), Value: 1097.9},
		},
	}

	metrics := Analyze(result)

	suite.Equal(1.0, metrics.WinRate)
	suite.Zero(metrics.ProfitFactor, "no losing trades")
	suite.Zero(metrics.AvgLoss)
	suite.Zero(metrics.TotalLoss)
	suite.InDelta(97.9, metrics.AvgProfit, 1e-9)
	suite.InDelta(97.9, metrics.TotalProfit, 1e-9)
	suite.Equal(1, metrics.MaxConsecutiveWins)
	suite.Equal(0, metrics.MaxConsecutiveLosses)
	suite.Equal(1, metrics.CompletedTrades)
	suite.Equal(1, metrics.WinningTrades)
	suite.Equal(1.5, metrics.MaxDrawdown)
	suite.Zero(metrics.SharpeRatio, "one return sample has no deviation")
}

func (suite *PerformanceTestSuite) TestAnalyzeMixedTrades() {
	var trades []types.Trade
	trades = append(trades, suite.roundTrip(0, 100, 120, 10)...)
	trades = append(trades, suite.roundTrip(2, 100, 90, 10)...)
	trades = append(trades, suite.roundTrip(4, 100, 100, 10)...)
	trades = append(trades, suite.roundTrip(6, 100, 130, 10)...)

	metrics := Analyze(types.BacktestResult{
		Trades: trades,
		PortfolioValue: []types.EquitySnapshot{
			{Value: 1000}, {Value: 1200}, {Value: 1100}, {Value: 1400},
		},
	})

	completed := CompletedTrades(trades)
	suite.Require().Len(completed, 4)

	suite.Equal(4, metrics.CompletedTrades)
	suite.Equal(2, metrics.WinningTrades)
	// the break-even trade loses its commissions
	suite.Equal(2, metrics.LosingTrades)
	suite.Equal(0.5, metrics.WinRate)

	totalProfit := completed[0].Profit + completed[3].Profit
	totalLoss := -(completed[1].Profit + completed[2].Profit)
	suite.InDelta(totalProfit, metrics.TotalProfit, 1e-9)
	suite.InDelta(totalLoss, metrics.TotalLoss, 1e-9)
	suite.InDelta(totalProfit/totalLoss, metrics.ProfitFactor, 1e-9)
	suite.InDelta(totalProfit/2, metrics.AvgProfit, 1e-9)
	suite.InDelta(totalLoss/2, metrics.AvgLoss, 1e-9)
	suite.Equal(1, metrics.MaxConsecutiveWins)
	suite.Equal(2, metrics.MaxConsecutiveLosses)
	suite.NotZero(metrics.SharpeRatio)
}

func (suite *PerformanceTestSuite) TestAnalyzeWithoutTrades() {
	metrics := Analyze(types.BacktestResult{
		MaxDrawdown:    3.2,
		PortfolioValue: []types.EquitySnapshot{{Value: 100}, {Value: 120}, {Value: 90}},
	})

	suite.Equal(types.PerformanceMetrics{MaxDrawdown: 3.2}, metrics)
}

func (suite *PerformanceTestSuite) TestMonthlyReturns() {
	equity := []types.EquitySnapshot{
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Value: 200},
		{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Value: 180},
		{Date: time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), Value: 100},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: 100},
		{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Value: 120},
		{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Value: 150},
	}

	monthly := MonthlyReturns(equity)
	suite.Require().Len(monthly, 3)

	suite.Equal("2023-12", monthly[0].Month)
	suite.Zero(monthly[0].ReturnPct)

	suite.Equal("2024-01", monthly[1].Month)
	suite.Equal(100.0, monthly[1].StartValue)
	suite.Equal(150.0, monthly[1].EndValue)
	suite.InDelta(50.0, monthly[1].ReturnPct, 1e-9)

	suite.Equal("2024-02", monthly[2].Month)
	suite.InDelta(-10.0, monthly[2].ReturnPct, 1e-9)

	suite.Empty(MonthlyReturns(nil))
}
