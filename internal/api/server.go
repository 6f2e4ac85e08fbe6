// Package api exposes backtests over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/state"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// MinimumDataPoints is the smallest price series the execute route accepts.
const MinimumDataPoints = 100

// Server serves backtest requests. Store may be nil, in which case runs are not persisted.
type Server struct {
	loader     datasource.PriceLoader
	store      state.ResultStore
	backtester *engine.Backtester
	log        *logger.Logger
	validate   *validator.Validate
	now        func() time.Time
}

func NewServer(loader datasource.PriceLoader, store state.ResultStore, config engine.Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Server{
		loader:     loader,
		store:      store,
		backtester: engine.NewBacktester(config, log),
		log:        log,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// NewRouter registers every route of server.
func NewRouter(server *Server) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", server.handleHealth).Methods(http.MethodGet)

	// Routes stay on the root router: a subrouter answers 404 on a method mismatch.
	router.HandleFunc("/backtest/execute", server.handleExecute).Methods(http.MethodPost)
	router.HandleFunc("/backtest/strategies", server.handleStrategies).Methods(http.MethodGet)
	router.HandleFunc("/backtest/result/{backtestId}", server.handleResult).Methods(http.MethodGet)

	router.HandleFunc("/marketdata/providers", server.handleProviders).Methods(http.MethodGet)

	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           NewRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("HTTP server listening", zap.String("address", address))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "http server failed", err)
		}

		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	// DataPoints is set when the price series was too short
	DataPoints *int `json:"dataPoints,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusForError maps error codes onto HTTP status codes.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidParameter,
		errors.ErrCodeMissingParameter,
		errors.ErrCodeInvalidPeriod,
		errors.ErrCodeStrategyNotFound,
		errors.ErrCodeStrategyConfigError,
		errors.ErrCodeInsufficientData,
		errors.ErrCodeDataIntegrity,
		errors.ErrCodeBacktestConfigError:
		return http.StatusBadRequest
	case errors.ErrCodeDataNotFound, errors.ErrCodeNoDataFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, err error) {
	status := statusForError(err)

	response := ErrorResponse{Error: message, Code: int(errors.GetCode(err))}
	if err != nil {
		response.Details = err.Error()
	}

	if status == http.StatusInternalServerError {
		s.log.Error(message, zap.String("category", errors.GetCode(err).Category()), zap.Error(err))
	}

	writeJSON(w, status, response)
}
