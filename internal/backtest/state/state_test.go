package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StateTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}

func (suite *StateTestSuite) SetupTest() {
	store, err := NewStore(nil)
	suite.Require().NoError(err)
	suite.store = store
	suite.ctx = context.Background()
}

func (suite *StateTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func sampleResult(id string, totalReturn float64) types.BacktestResult {
	return types.BacktestResult{
		ID:             id,
		StrategyID:     "sma_golden_cross",
		StrategyName:   "SMA Golden Cross",
		Symbol:         "AAPL",
		StartDate:      day(1),
		EndDate:        day(4),
		InitialCapital: 1_000_000,
		FinalCapital:   1_000_000 * (1 + totalReturn/100),
		TotalReturn:    totalReturn,
		TradeCount:     2,
		MaxDrawdown:    1.5,
		Trades: []types.Trade{
			{Date: day(2), Type: types.TradeTypeBuy, Price: 100.1, Quantity: 1998, Commission: 199.9998, SignalReason: "SMA5/20 cross"},
			{Date: day(4), Type: types.TradeTypeSell, Price: 109.89, Quantity: 1998, Commission: 219.5602, SignalReason: types.TradeReasonCloseAtEnd},
		},
		PortfolioValue: []types.EquitySnapshot{
			{Date: day(2), Value: 999800, Cash: 799800.2002, PositionValue: 199999.8},
			{Date: day(3), Value: 1_005_000, Cash: 799800.2002, PositionValue: 205199.8},
			{Date: day(4), Value: 1_019_140.86, Cash: 1_019_140.86, PositionValue: 0},
		},
	}
}

func (suite *StateTestSuite) TestRecordAndQuery() {
	result := sampleResult("run-1", 1.9)
	monthly := []types.MonthlyReturn{{Month: "2024-01", ReturnPct: 1.93, StartValue: 999800, EndValue: 1_019_140.86}}

	suite.Require().NoError(suite.store.Record(suite.ctx, result, types.PerformanceMetrics{SharpeRatio: 1.2}, monthly))

	trades, err := suite.store.Trades(suite.ctx, "run-1")
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)
	suite.Equal(types.TradeTypeBuy, trades[0].Type)
	suite.Equal(types.TradeTypeSell, trades[1].Type)
	suite.InDelta(100.1, trades[0].Price, 1e-9)
	suite.Equal(types.TradeReasonCloseAtEnd, trades[1].SignalReason)
	suite.True(day(2).Equal(trades[0].Date))

	equity, err := suite.store.EquityCurve(suite.ctx, "run-1")
	suite.Require().NoError(err)
	suite.Require().Len(equity, 3)
	suite.InDelta(1_005_000.0, equity[1].Value, 1e-9)

	empty, err := suite.store.Trades(suite.ctx, "unknown")
	suite.Require().NoError(err)
	suite.Empty(empty)
}

func (suite *StateTestSuite) TestRecordRequiresRunID() {
	err := suite.store.Record(suite.ctx, types.BacktestResult{}, types.PerformanceMetrics{}, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *StateTestSuite) TestRecordDuplicateRun() {
	result := sampleResult("run-1", 1.9)
	suite.Require().NoError(suite.store.Record(suite.ctx, result, types.PerformanceMetrics{}, nil))

	err := suite.store.Record(suite.ctx, result, types.PerformanceMetrics{}, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeResultWriteFailed))

	// the failed transaction must not leave duplicate trades behind
	trades, err := suite.store.Trades(suite.ctx, "run-1")
	suite.Require().NoError(err)
	suite.Len(trades, 2)
}

func (suite *StateTestSuite) TestLeaderboard() {
	suite.Require().NoError(suite.store.Record(suite.ctx, sampleResult("low", 1), types.PerformanceMetrics{SharpeRatio: 0.2}, nil))
	suite.Require().NoError(suite.store.Record(suite.ctx, sampleResult("high", 5), types.PerformanceMetrics{SharpeRatio: 1.5}, nil))
	suite.Require().NoError(suite.store.Record(suite.ctx, sampleResult("mid", 3), types.PerformanceMetrics{SharpeRatio: 0.9}, nil))

	all, err := suite.store.Leaderboard(suite.ctx, 0)
	suite.Require().NoError(err)
	suite.Require().Len(all, 3)
	suite.Equal("high", all[0].RunID)
	suite.Equal("mid", all[1].RunID)
	suite.Equal("low", all[2].RunID)
	suite.Equal(2, all[0].TradeCount)

	top, err := suite.store.Leaderboard(suite.ctx, 1)
	suite.Require().NoError(err)
	suite.Require().Len(top, 1)
	suite.InDelta(5.0, top[0].TotalReturn, 1e-9)
}

func (suite *StateTestSuite) TestWrite() {
	result := sampleResult("run-1", 1.9)
	monthly := []types.MonthlyReturn{{Month: "2024-01", ReturnPct: 1.93, StartValue: 999800, EndValue: 1_019_140.86}}
	metrics := types.PerformanceMetrics{SharpeRatio: 1.2, WinRate: 1, CompletedTrades: 1, WinningTrades: 1}

	suite.Require().NoError(suite.store.Record(suite.ctx, result, metrics, monthly))

	root := suite.T().TempDir()
	report, err := suite.store.Write(suite.ctx, root, "run-1", "data/aapl.parquet")
	suite.Require().NoError(err)

	dir := filepath.Join(root, "sma_golden_cross", "AAPL", "run-1")
	for _, name := range []string{TradesFileName, EquityFileName, MonthlyReturnsFileName, ReportFileName} {
		_, err := os.Stat(filepath.Join(dir, name))
		suite.NoError(err, name)
	}

	suite.Equal(version.GetVersion(), report.EngineVersion)
	suite.Equal(filepath.Join(dir, TradesFileName), report.TradesFilePath)
	suite.Equal("data/aapl.parquet", report.DataPath)

	loaded, err := types.ReadBacktestReport(filepath.Join(dir, ReportFileName))
	suite.Require().NoError(err)
	suite.Equal("run-1", loaded.Result.ID)
	suite.InDelta(1.2, loaded.Metrics.SharpeRatio, 1e-9)
	suite.Require().Len(loaded.MonthlyReturns, 1)
	suite.Equal("2024-01", loaded.MonthlyReturns[0].Month)

	trades, err := suite.store.ReadTrades(suite.ctx, report.TradesFilePath)
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)
	suite.InDelta(109.89, trades[1].Price, 1e-9)
	suite.InDelta(219.5602, trades[1].Commission, 1e-9)
}

func (suite *StateTestSuite) TestReport() {
	suite.Require().NoError(suite.store.Record(suite.ctx, sampleResult("run-1", 1.9), types.PerformanceMetrics{WinRate: 1}, nil))

	report, err := suite.store.Report(suite.ctx, "run-1")
	suite.Require().NoError(err)
	suite.Equal("run-1", report.Result.ID)
	suite.Len(report.Result.Trades, 2)
	suite.InDelta(1.0, report.Metrics.WinRate, 1e-9)
	suite.Equal(version.GetVersion(), report.EngineVersion)
	suite.Empty(report.TradesFilePath)

	_, err = suite.store.Report(suite.ctx, "missing")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *StateTestSuite) TestWriteUnknownRun() {
	_, err := suite.store.Write(suite.ctx, suite.T().TempDir(), "missing", "")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}
