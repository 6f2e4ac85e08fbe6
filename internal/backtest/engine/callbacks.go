package engine

import "github.com/rxtech-lab/argo-backtest/internal/types"

// Lifecycle callback types for a simulation run.
// Callbacks returning an error abort the run.

// OnRunStartCallback is called once the input has been validated, before any bar is processed.
type OnRunStartCallback func(runID string, symbol string, strategyName string, totalBars int) error

// OnProcessDataCallback is called after each processed bar.
type OnProcessDataCallback func(current int, total int) error

// OnTradeCallback is called for every executed trade, including the forced close.
type OnTradeCallback func(trade types.Trade)

// OnRunEndCallback is called when the run finishes successfully.
type OnRunEndCallback func(result types.BacktestResult)

// LifecycleCallbacks holds all lifecycle callback functions for the backtester.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart    *OnRunStartCallback
	OnProcessData *OnProcessDataCallback
	OnTrade       *OnTradeCallback
	OnRunEnd      *OnRunEndCallback
}
