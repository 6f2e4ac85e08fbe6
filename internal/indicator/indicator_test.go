package indicator

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
	start time.Time
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *IndicatorTestSuite) bars(closes ...float64) []types.PriceBar {
	return mocks.BarsFromCloses("TEST", suite.start, closes)
}

// assertSeries compares a series against expected values where nil means undefined.
func (suite *IndicatorTestSuite) assertSeries(expected []any, actual Series) {
	suite.Require().Len(actual, len(expected))

	for i, e := range expected {
		if e == nil {
			suite.True(actual[i].IsNone(), "index %d should be undefined", i)
			continue
		}

		suite.Require().True(actual[i].IsSome(), "index %d should be defined", i)
		suite.InDelta(e.(float64), actual[i].Unwrap(), 1e-9, "index %d", i)
	}
}

func (suite *IndicatorTestSuite) TestSeriesAccessors() {
	s := Series{optional.None[float64](), optional.Some(0.0), optional.Some(2.0)}

	suite.True(s.At(-1).IsNone())
	suite.True(s.At(3).IsNone())
	suite.True(s.At(0).IsNone())
	suite.True(s.At(1).IsSome(), "zero is a real reading")
	suite.Equal(1, s.FirstDefined())
	suite.True(s.Defined(1, 2))
	suite.False(s.Defined(0, 1))
	suite.Equal(-1, undefinedSeries(3).FirstDefined())
}

func (suite *IndicatorTestSuite) TestSMA() {
	suite.assertSeries([]any{nil, nil, nil, nil, 30.0}, SMA(suite.bars(10, 20, 30, 40, 50), 5))
	suite.assertSeries([]any{nil, 15.0, 25.0, 35.0}, SMA(suite.bars(10, 20, 30, 40), 2))
	suite.assertSeries([]any{nil, nil}, SMA(suite.bars(10, 20), 3))
	suite.assertSeries([]any{nil, nil}, SMA(suite.bars(10, 20), 0))
	suite.Empty(SMA(nil, 5))
}

func (suite *IndicatorTestSuite) TestEMA() {
	// cumulative average seed for the first period bars, then 2/(p+1) smoothing
	suite.assertSeries([]any{2.0, 3.0, 4.0, 6.0}, EMA(suite.bars(2, 4, 6, 8), 3))
	suite.assertSeries([]any{10.0}, EMA(suite.bars(10), 5))
	suite.assertSeries([]any{nil, nil}, EMA(suite.bars(1, 2), -1))
}

func (suite *IndicatorTestSuite) TestRSI() {
	suite.Run("alternating series", func() {
		suite.assertSeries([]any{nil, nil, 50.0, 75.0, 37.5}, RSI(suite.bars(1, 2, 1, 2, 1), 2))
	})

	suite.Run("saturates at 100 on a rising series", func() {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = float64(i + 1)
		}

		rsi := RSI(suite.bars(closes...), 14)
		suite.Equal(14, rsi.FirstDefined())

		for i := 14; i < 20; i++ {
			suite.Equal(100.0, rsi[i].Unwrap())
		}
	})

	suite.Run("falling series goes to 0", func() {
		rsi := RSI(suite.bars(5, 4, 3, 2), 2)
		suite.InDelta(0.0, rsi[3].Unwrap(), 1e-9)
	})

	suite.Run("too short", func() {
		suite.assertSeries([]any{nil, nil}, RSI(suite.bars(1, 2), 2))
	})
}

func (suite *IndicatorTestSuite) TestMACD() {
	closes := []float64{10, 11, 12, 11, 13, 14, 13, 15, 16, 15}
	bars := suite.bars(closes...)
	result := MACD(bars, 2, 4, 3)

	fast := EMA(bars, 2)
	slow := EMA(bars, 4)

	for i := range closes {
		suite.InDelta(fast[i].Unwrap()-slow[i].Unwrap(), result.MACD[i].Unwrap(), 1e-9)
	}

	// signal is left padded up to slow-1
	suite.Equal(3, result.Signal.FirstDefined())
	suite.Equal(3, result.Histogram.FirstDefined())
	suite.InDelta(result.MACD[3].Unwrap(), result.Signal[3].Unwrap(), 1e-9)
	suite.InDelta(0.0, result.Histogram[3].Unwrap(), 1e-9)

	seed := (result.MACD[3].Unwrap() + result.MACD[4].Unwrap()) / 2
	suite.InDelta(seed, result.Signal[4].Unwrap(), 1e-9)

	for i := 3; i < len(closes); i++ {
		suite.InDelta(result.MACD[i].Unwrap()-result.Signal[i].Unwrap(), result.Histogram[i].Unwrap(), 1e-9)
	}
}

func (suite *IndicatorTestSuite) TestMACDShorterThanSlowPeriod() {
	result := MACD(suite.bars(1, 2, 3), 2, 5, 3)

	suite.Equal(0, result.MACD.FirstDefined())
	suite.Equal(-1, result.Signal.FirstDefined())
	suite.Equal(-1, result.Histogram.FirstDefined())
}

func (suite *IndicatorTestSuite) TestBollingerBands() {
	bands := BollingerBands(suite.bars(2, 4, 4, 4, 5, 5, 7, 9), 8, 2)

	// population standard deviation of the window is exactly 2
	suite.Equal(7, bands.Middle.FirstDefined())
	suite.InDelta(5.0, bands.Middle[7].Unwrap(), 1e-9)
	suite.InDelta(9.0, bands.Upper[7].Unwrap(), 1e-9)
	suite.InDelta(1.0, bands.Lower[7].Unwrap(), 1e-9)
	suite.True(bands.Upper[6].IsNone())
	suite.True(bands.Lower[6].IsNone())
}

func (suite *IndicatorTestSuite) TestBollingerBandsFlatSeries() {
	bands := BollingerBands(suite.bars(3, 3, 3), 3, 2)

	suite.InDelta(3.0, bands.Upper[2].Unwrap(), 1e-9)
	suite.InDelta(3.0, bands.Lower[2].Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestATR() {
	bars := []types.PriceBar{
		{Date: suite.start, Open: 9, High: 10, Low: 8, Close: 9},
		{Date: suite.start.AddDate(0, 0, 1), Open: 10, High: 11, Low: 9, Close: 10},
		{Date: suite.start.AddDate(0, 0, 2), Open: 12, High: 13, Low: 10, Close: 12},
		{Date: suite.start.AddDate(0, 0, 3), Open: 11, High: 12, Low: 11, Close: 11},
	}

	// true ranges at 1..3 are 2, 3, 1; the first bar's range is discarded
	suite.assertSeries([]any{nil, nil, 2.5, 1.75}, ATR(bars, 2))
	suite.assertSeries([]any{nil, nil, nil, nil}, ATR(bars, 4))
}

func (suite *IndicatorTestSuite) TestTrueRangeUsesPreviousClose() {
	bar := types.PriceBar{High: 12, Low: 11}

	suite.Equal(7.0, trueRange(bar, 5))
	suite.Equal(6.0, trueRange(bar, 17))
	suite.Equal(1.0, trueRange(bar, 11.5))
}

func (suite *IndicatorTestSuite) TestConfigWarmUp() {
	config := Config{
		SMAShortPeriod: 20, SMALongPeriod: 50, RSIPeriod: 14,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		BBPeriod: 20, BBStdDev: 2, ATRPeriod: 14,
	}
	suite.Equal(50, config.WarmUp())

	config.SMALongPeriod = 20
	suite.Equal(26, config.WarmUp())

	config.ATRPeriod = 30
	suite.Equal(31, config.WarmUp())
}

func (suite *IndicatorTestSuite) TestConfigWarmUpOf() {
	config := Config{
		SMAShortPeriod: 20, SMALongPeriod: 50, RSIPeriod: 14,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		BBPeriod: 20, BBStdDev: 2, ATRPeriod: 10,
	}

	suite.Equal(50, config.WarmUpOf(types.IndicatorTypeSMA))
	suite.Equal(15, config.WarmUpOf(types.IndicatorTypeRSI))
	suite.Equal(26, config.WarmUpOf(types.IndicatorTypeMACD))
	suite.Equal(20, config.WarmUpOf(types.IndicatorTypeBollingerBands))
	suite.Equal(11, config.WarmUpOf(types.IndicatorTypeATR))
	suite.Equal(1, config.WarmUpOf(types.IndicatorTypeEMA))
	suite.Equal(0, config.WarmUpOf(types.IndicatorType("vwap")))

	bars := mocks.BarsFromCloses("EMA", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []float64{100})
	suite.True(EMA(bars, config.MACDFast).At(config.WarmUpOf(types.IndicatorTypeEMA) - 1).IsSome())
}

func (suite *IndicatorTestSuite) TestCompute() {
	config := Config{
		SMAShortPeriod: 5, SMALongPeriod: 20, RSIPeriod: 14,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		BBPeriod: 20, BBStdDev: 2, ATRPeriod: 14,
	}

	gen := mocks.NewDataGenerator(1)
	genConfig := mocks.DefaultConfig()
	genConfig.Count = 60
	bars := gen.Generate(genConfig)

	set, err := Compute(bars, config)
	suite.Require().NoError(err)

	suite.Len(set.SMAShort, 60)
	suite.Equal(4, set.SMAShort.FirstDefined())
	suite.Equal(19, set.SMALong.FirstDefined())
	suite.Equal(14, set.RSI.FirstDefined())
	suite.Equal(25, set.MACD.Signal.FirstDefined())
	suite.Equal(19, set.Bollinger.Upper.FirstDefined())
	suite.Equal(14, set.ATR.FirstDefined())
}

func (suite *IndicatorTestSuite) TestComputeRejectsInvalidConfig() {
	_, err := Compute(suite.bars(1, 2, 3), Config{SMAShortPeriod: 5})

	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeInvalidPeriod, errors.GetCode(err))
}
