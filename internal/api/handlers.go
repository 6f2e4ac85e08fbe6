package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/performance"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/rxtech-lab/argo-backtest/pkg/marketdata"
	"go.uber.org/zap"
)

// DefaultStartDate is used when a request has no start date.
const DefaultStartDate = "2019-01-01"

type ExecuteRequest struct {
	StockCode      string             `json:"stockCode" validate:"required"`
	StrategyID     string             `json:"strategyId" validate:"required"`
	StrategyParams map[string]float64 `json:"strategyParams"`
	StartDate      string             `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string             `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

// ExecuteResults is the simulation result with its analysis inlined.
type ExecuteResults struct {
	types.BacktestResult
	PerformanceMetrics types.PerformanceMetrics `json:"performance_metrics"`
	MonthlyReturns     []types.MonthlyReturn    `json:"monthly_returns"`
}

type ExecuteResponse struct {
	Success    bool           `json:"success"`
	BacktestID string         `json:"backtest_id,omitempty"`
	Results    ExecuteResults `json:"results"`
}

type StrategiesResponse struct {
	Success    bool                `json:"success"`
	Strategies []strategy.Template `json:"strategies"`
}

type ResultResponse struct {
	Success  bool                     `json:"success"`
	Backtest types.BacktestResult     `json:"backtest"`
	Trades   []types.Trade            `json:"trades"`
	Metrics  types.PerformanceMetrics `json:"metrics"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: version.GetVersion()})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StrategiesResponse{Success: true, Strategies: strategy.Templates()})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	providers := []marketdata.ProviderInfo{}

	for _, name := range marketdata.GetSupportedProviders() {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			s.writeError(w, "failed to list providers", err)

			return
		}

		providers = append(providers, info)
	}

	writeJSON(w, http.StatusOK, providers)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, "backtest result not found", errors.New(errors.ErrCodeDataNotFound, "results are not persisted"))

		return
	}

	report, err := s.store.Report(r.Context(), mux.Vars(r)["backtestId"])
	if err != nil {
		s.writeError(w, "backtest result not found", err)

		return
	}

	writeJSON(w, http.StatusOK, ResultResponse{
		Success:  true,
		Backtest: report.Result,
		Trades:   report.Result.Trades,
		Metrics:  report.Metrics,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var request ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, "invalid request body", errors.Wrap(errors.ErrCodeInvalidParameter, "failed to decode request", err))

		return
	}

	if err := s.validate.Struct(request); err != nil {
		s.writeError(w, "Missing required parameters", errors.Wrap(errors.ErrCodeMissingParameter, "invalid request", err))

		return
	}

	startDate, endDate := s.period(request)
	if endDate.Before(startDate) {
		s.writeError(w, "invalid date range", errors.New(errors.ErrCodeInvalidParameter, "endDate is before startDate"))

		return
	}

	strategyID, err := strategy.ParseStrategyID(request.StrategyID)
	if err != nil {
		s.writeError(w, "unknown strategy", err)

		return
	}

	params, err := strategy.ResolveParams(strategyID, request.StrategyParams)
	if err != nil {
		s.writeError(w, "invalid strategy parameters", err)

		return
	}

	s.log.Info("Starting backtest",
		zap.String("symbol", request.StockCode),
		zap.String("strategy", string(strategyID)),
		zap.Time("start", startDate),
		zap.Time("end", endDate),
	)

	bars, err := s.loader.Load(r.Context(), request.StockCode, optional.Some(startDate), optional.Some(endDate))
	if err != nil && !errors.HasCode(err, errors.ErrCodeNoDataFound) {
		s.writeError(w, "failed to load price data", err)

		return
	}

	if len(bars) < MinimumDataPoints {
		dataPoints := len(bars)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      "not enough price data for this symbol, try another one",
			Code:       int(errors.ErrCodeInsufficientData),
			DataPoints: &dataPoints,
		})

		return
	}

	bars, filtered := datasource.Clean(bars)
	if filtered > 0 {
		s.log.Warn("Dropped invalid price bars", zap.String("symbol", request.StockCode), zap.Int("filtered", filtered))
	}

	result, err := s.backtester.Run(engine.Input{
		Symbol:   request.StockCode,
		Strategy: strategyID,
		Params:   params,
		Bars:     bars,
	})
	if err != nil {
		s.writeError(w, "backtest execution failed", err)

		return
	}

	metrics := performance.Analyze(result)
	monthly := performance.MonthlyReturns(result.PortfolioValue)

	backtestID := ""

	if s.store != nil {
		// a failed save still returns the computed result
		if err := s.store.Record(r.Context(), result, metrics, monthly); err != nil {
			s.log.Error("Failed to save backtest result", zap.String("run_id", result.ID), zap.Error(err))
		} else {
			backtestID = result.ID
		}
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{
		Success:    true,
		BacktestID: backtestID,
		Results: ExecuteResults{
			BacktestResult:     result,
			PerformanceMetrics: metrics,
			MonthlyReturns:     monthly,
		},
	})
}

// period parses the request dates, defaulting to DefaultStartDate through today.
// Dates were validated by the request validator.
func (s *Server) period(request ExecuteRequest) (time.Time, time.Time) {
	start, _ := time.Parse(time.DateOnly, DefaultStartDate)
	if request.StartDate != "" {
		start, _ = time.Parse(time.DateOnly, request.StartDate)
	}

	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if request.EndDate != "" {
		end, _ = time.Parse(time.DateOnly, request.EndDate)
	}

	return start, end
}
