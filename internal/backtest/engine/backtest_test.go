package engine

import (
	stderrors "errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type BacktestTestSuite struct {
	suite.Suite
	start time.Time
}

func TestBacktestSuite(t *testing.T) {
	suite.Run(t, new(BacktestTestSuite))
}

func (suite *BacktestTestSuite) SetupTest() {
	suite.start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
}

func (suite *BacktestTestSuite) goldenCrossParams() strategy.Params {
	params, err := strategy.ResolveParams(strategy.SMAGoldenCross, map[string]float64{
		strategy.KeySMAShortPeriod: 5,
		strategy.KeySMALongPeriod:  20,
	})
	suite.Require().NoError(err)

	return params
}

// trendWithBase is a 20 bar flat base at 100 followed by the rise to 219 and the fall back to 100.
func (suite *BacktestTestSuite) trendWithBase() []types.PriceBar {
	closes := make([]float64, 0, 200)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100)
	}

	closes = append(closes, mocks.TrendScenario()...)

	return mocks.BarsFromCloses("TREND", suite.start, closes)
}

func (suite *BacktestTestSuite) generatedBars(seed int64, count int) []types.PriceBar {
	config := mocks.DefaultConfig()
	config.Count = count
	config.StartDate = suite.start

	return mocks.NewDataGenerator(seed).Generate(config)
}

func (suite *BacktestTestSuite) TestGoldenCrossCapturesUptrend() {
	bars := suite.trendWithBase()
	backtester := NewBacktester(DefaultConfig(), nil)

	result, err := backtester.Run(Input{
		Symbol:   "TREND",
		Strategy: strategy.SMAGoldenCross,
		Params:   suite.goldenCrossParams(),
		Bars:     bars,
	})
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 2)
	buy, sell := result.Trades[0], result.Trades[1]

	// both SMAs sit at 100 on the base; the first rising close crosses them
	suite.Equal(types.TradeTypeBuy, buy.Type)
	suite.Equal(bars[21].Date, buy.Date)
	suite.InDelta(101*1.001, buy.Price, 1e-9)
	suite.Equal("SMA5/20 cross", buy.SignalReason)

	peak := bars[139].Date
	suite.Equal(types.TradeTypeSell, sell.Type)
	suite.True(sell.Date.After(peak))
	suite.True(sell.Date.Before(bars[159].Date))
	suite.Equal("SMA5/20 cross", sell.SignalReason)
	suite.Greater(sell.Price, buy.Price)

	suite.Equal(2, result.TradeCount)
	suite.Greater(result.TotalReturn, 0.0)
	suite.Greater(result.FinalCapital, result.InitialCapital)
	suite.InDelta((result.FinalCapital-result.InitialCapital)/result.InitialCapital*100, result.TotalReturn, 1e-9)

	suite.Equal("sma_golden_cross", result.StrategyID)
	suite.Equal("SMA Golden Cross", result.StrategyName)
	suite.Equal("TREND", result.Symbol)
	suite.Equal(bars[0].Date, result.StartDate)
	suite.Equal(bars[len(bars)-1].Date, result.EndDate)
	suite.NotEmpty(result.ID)
	suite.Len(result.PortfolioValue, len(bars)-1)
}

func (suite *BacktestTestSuite) TestPureLinearRampHasNoCrossover() {
	// both SMAs become defined with the short one already above the long one
	bars := mocks.BarsFromCloses("RAMP", suite.start, mocks.TrendScenario())
	backtester := NewBacktester(DefaultConfig(), nil)

	result, err := backtester.Run(Input{
		Symbol:   "RAMP",
		Strategy: strategy.SMAGoldenCross,
		Params:   suite.goldenCrossParams(),
		Bars:     bars,
	})
	suite.Require().NoError(err)
	suite.Empty(result.Trades)
	suite.Equal(result.InitialCapital, result.FinalCapital)
	suite.Zero(result.TotalReturn)
	suite.Zero(result.MaxDrawdown)
}

func (suite *BacktestTestSuite) TestForcedCloseAtEnd() {
	// rise after the base and never come back down
	closes := make([]float64, 0, 60)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100)
	}

	for i := 0; i < 40; i++ {
		closes = append(closes, 101+float64(i))
	}

	bars := mocks.BarsFromCloses("UP", suite.start, closes)

	result, err := NewBacktester(DefaultConfig(), nil).Run(Input{
		Symbol:   "UP",
		Strategy: strategy.SMAGoldenCross,
		Params:   suite.goldenCrossParams(),
		Bars:     bars,
	})
	suite.Require().NoError(err)
	suite.Require().Len(result.Trades, 2)

	last := result.Trades[1]
	suite.Equal(types.TradeTypeSell, last.Type)
	suite.Equal(types.TradeReasonCloseAtEnd, last.SignalReason)
	suite.Equal(bars[len(bars)-1].Date, last.Date)
	suite.InDelta(bars[len(bars)-1].Close*0.999, last.Price, 1e-9)
}

func (suite *BacktestTestSuite) TestInvariantsAcrossStrategies() {
	bars := suite.generatedBars(11, 300)
	backtester := NewBacktester(DefaultConfig(), nil)

	for _, template := range strategy.Templates() {
		suite.Run(string(template.ID), func() {
			params, err := strategy.ResolveParams(template.ID, nil)
			suite.Require().NoError(err)

			result, err := backtester.Run(Input{Symbol: "GEN", Strategy: template.ID, Params: params, Bars: bars})
			suite.Require().NoError(err)

			// flat at end: trades alternate buy/sell and end with a sell
			suite.Equal(0, len(result.Trades)%2)
			for i, trade := range result.Trades {
				if i%2 == 0 {
					suite.Equal(types.TradeTypeBuy, trade.Type)
				} else {
					suite.Equal(types.TradeTypeSell, trade.Type)
					suite.Equal(result.Trades[i-1].Quantity, trade.Quantity)
				}
			}

			// ledger conservation and drawdown bound
			peak := result.InitialCapital
			maxDrawdown := 0.0

			for i, snapshot := range result.PortfolioValue {
				bar := bars[i+1]
				suite.Equal(bar.Date, snapshot.Date)
				suite.Equal(snapshot.Cash+snapshot.PositionValue, snapshot.Value)

				shares := snapshot.PositionValue / bar.Close
				suite.InDelta(math.Round(shares), shares, 1e-6)

				peak = math.Max(peak, snapshot.Value)
				maxDrawdown = math.Max(maxDrawdown, (peak-snapshot.Value)/peak)
			}

			suite.GreaterOrEqual(result.MaxDrawdown+1e-9, maxDrawdown*100)
			suite.GreaterOrEqual(result.FinalCapital, 0.0)
		})
	}
}

func (suite *BacktestTestSuite) TestDeterminism() {
	bars := suite.generatedBars(3, 250)
	backtester := NewBacktester(DefaultConfig(), nil)
	params, err := strategy.ResolveParams(strategy.MultiIndicatorCombo, nil)
	suite.Require().NoError(err)

	input := Input{Symbol: "GEN", Strategy: strategy.MultiIndicatorCombo, Params: params, Bars: bars}

	first, err := backtester.Run(input)
	suite.Require().NoError(err)
	second, err := backtester.Run(input)
	suite.Require().NoError(err)

	suite.Equal(first.Trades, second.Trades)
	suite.Equal(first.PortfolioValue, second.PortfolioValue)
	suite.Equal(first.FinalCapital, second.FinalCapital)
	suite.Equal(first.MaxDrawdown, second.MaxDrawdown)
	suite.NotEqual(first.ID, second.ID)
}

func (suite *BacktestTestSuite) TestInputIsNotMutated() {
	bars := suite.generatedBars(5, 120)
	snapshot := append([]types.PriceBar{}, bars...)

	_, err := NewBacktester(DefaultConfig(), nil).Run(Input{
		Symbol:   "GEN",
		Strategy: strategy.BollingerBreakout,
		Params:   strategy.DefaultParams(),
		Bars:     bars,
	})
	suite.Require().NoError(err)
	suite.Equal(snapshot, bars)
}

func (suite *BacktestTestSuite) TestErrors() {
	valid := suite.generatedBars(9, 80)

	highBelowLow := append([]types.PriceBar{}, valid...)
	highBelowLow[40].High = highBelowLow[40].Low - 1

	outOfOrder := append([]types.PriceBar{}, valid...)
	outOfOrder[10], outOfOrder[11] = outOfOrder[11], outOfOrder[10]

	badParams := strategy.DefaultParams()
	badParams.PositionSize = 0

	tests := []struct {
		name     string
		input    Input
		expected errors.ErrorCode
	}{
		{"unknown strategy", Input{Strategy: "turtle", Params: strategy.DefaultParams(), Bars: valid}, errors.ErrCodeStrategyNotFound},
		{"invalid params", Input{Strategy: strategy.RSIOversoldOverbought, Params: badParams, Bars: valid}, errors.ErrCodeStrategyConfigError},
		{"inconsistent bar", Input{Strategy: strategy.RSIOversoldOverbought, Params: strategy.DefaultParams(), Bars: highBelowLow}, errors.ErrCodeDataIntegrity},
		{"out of order bars", Input{Strategy: strategy.RSIOversoldOverbought, Params: strategy.DefaultParams(), Bars: outOfOrder}, errors.ErrCodeDataIntegrity},
		{"shorter than warm-up", Input{Strategy: strategy.RSIOversoldOverbought, Params: strategy.DefaultParams(), Bars: valid[:49]}, errors.ErrCodeInsufficientData},
		{"no bars", Input{Strategy: strategy.RSIOversoldOverbought, Params: strategy.DefaultParams()}, errors.ErrCodeInsufficientData},
	}

	backtester := NewBacktester(DefaultConfig(), nil)

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result, err := backtester.Run(tc.input)
			suite.Require().Error(err)
			suite.Equal(tc.expected, errors.GetCode(err))
			suite.Equal(types.BacktestResult{}, result)
		})
	}
}

func (suite *BacktestTestSuite) TestInsufficientDataDetails() {
	bars := suite.generatedBars(9, 30)

	_, err := NewBacktester(DefaultConfig(), nil).Run(Input{
		Symbol:   "SHORT",
		Strategy: strategy.SMAGoldenCross,
		Params:   strategy.DefaultParams(),
		Bars:     bars,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientData))

	var insufficient *errors.InsufficientDataError
	suite.Require().True(stderrors.As(err, &insufficient))
	suite.Equal(50, insufficient.Required)
	suite.Equal(30, insufficient.Actual)
	suite.Equal("SHORT", insufficient.Symbol)
}

func (suite *BacktestTestSuite) TestInvalidConfig() {
	config := DefaultConfig()
	config.InitialCapital = 0

	_, err := NewBacktester(config, nil).Run(Input{
		Strategy: strategy.SMAGoldenCross,
		Params:   strategy.DefaultParams(),
		Bars:     suite.generatedBars(1, 100),
	})
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeBacktestConfigError, errors.GetCode(err))
}

func (suite *BacktestTestSuite) TestPeriodFilter() {
	bars := suite.generatedBars(2, 200)
	config := TestConfig(bars[50].Date, bars[149].Date, DefaultConfig().Broker)

	filtered := FilterByPeriod(bars, config)
	suite.Len(filtered, 100)
	suite.Equal(bars[50].Date, filtered[0].Date)
	suite.Equal(bars[149].Date, filtered[99].Date)
	suite.Len(FilterByPeriod(bars, DefaultConfig()), 200)

	result, err := NewBacktester(config, nil).Run(Input{
		Strategy: strategy.MACDSignalCross,
		Params:   strategy.DefaultParams(),
		Bars:     bars,
	})
	suite.Require().NoError(err)
	suite.Equal(bars[50].Date, result.StartDate)
	suite.Equal(bars[149].Date, result.EndDate)
	suite.Len(result.PortfolioValue, 99)
}

func (suite *BacktestTestSuite) TestCallbacks() {
	bars := suite.trendWithBase()

	var (
		startedWith int
		processed   int
		trades      []types.Trade
		ended       types.BacktestResult
	)

	onStart := OnRunStartCallback(func(runID string, symbol string, strategyName string, totalBars int) error {
		suite.NotEmpty(runID)
		suite.Equal("TREND", symbol)
		suite.Equal("SMA Golden Cross", strategyName)
		startedWith = totalBars

		return nil
	})
	onProcess := OnProcessDataCallback(func(current int, total int) error {
		processed++
		suite.Equal(len(bars)-1, total)

		return nil
	})
	onTrade := OnTradeCallback(func(trade types.Trade) {
		trades = append(trades, trade)
	})
	onEnd := OnRunEndCallback(func(result types.BacktestResult) {
		ended = result
	})

	backtester := NewBacktester(DefaultConfig(), nil).WithCallbacks(LifecycleCallbacks{
		OnRunStart:    &onStart,
		OnProcessData: &onProcess,
		OnTrade:       &onTrade,
		OnRunEnd:      &onEnd,
	})

	result, err := backtester.Run(Input{Symbol: "TREND", Strategy: strategy.SMAGoldenCross, Params: suite.goldenCrossParams(), Bars: bars})
	suite.Require().NoError(err)

	suite.Equal(len(bars), startedWith)
	suite.Equal(len(bars)-1, processed)
	suite.Equal(result.Trades, trades)
	suite.Equal(result.ID, ended.ID)
}

func (suite *BacktestTestSuite) TestCallbackAbortsRun() {
	onProcess := OnProcessDataCallback(func(current int, total int) error {
		if current == 10 {
			return fmt.Errorf("cancelled")
		}

		return nil
	})

	backtester := NewBacktester(DefaultConfig(), nil).WithCallbacks(LifecycleCallbacks{OnProcessData: &onProcess})

	result, err := backtester.Run(Input{Strategy: strategy.SMAGoldenCross, Params: suite.goldenCrossParams(), Bars: suite.trendWithBase()})
	suite.Require().Error(err)
	suite.EqualError(err, "cancelled")
	suite.Equal(types.BacktestResult{}, result)
}

func (suite *BacktestTestSuite) TestLogsSummary() {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	_, err := NewBacktester(DefaultConfig(), log).Run(Input{
		Symbol:   "TREND",
		Strategy: strategy.SMAGoldenCross,
		Params:   suite.goldenCrossParams(),
		Bars:     suite.trendWithBase(),
	})
	suite.Require().NoError(err)

	suite.Equal(1, logs.FilterMessage("Backtest started").Len())
	suite.Equal(2, logs.FilterMessage("Trade executed").Len())

	completed := logs.FilterMessage("Backtest completed").All()
	suite.Require().Len(completed, 1)
	suite.Equal(int64(2), completed[0].ContextMap()["trades"])
	suite.Equal("TREND", completed[0].ContextMap()["symbol"])
}
