// Package batch runs independent backtests in parallel.
package batch

import (
	"context"
	"runtime"
	"slices"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/performance"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one named simulation.
type Job struct {
	Name  string
	Input engine.Input
}

// Outcome is the result of one job. Err is set when the run failed, in which
// case the other fields are zero.
type Outcome struct {
	Job            Job
	Result         types.BacktestResult
	Metrics        types.PerformanceMetrics
	MonthlyReturns []types.MonthlyReturn
	Err            error
}

// OnJobDone is invoked after each job finishes, from the job's goroutine.
type OnJobDone func(outcome Outcome)

type Runner struct {
	backtester  *engine.Backtester
	log         *logger.Logger
	concurrency int
	onJobDone   OnJobDone
}

// NewRunner creates a runner. concurrency <= 0 uses GOMAXPROCS.
func NewRunner(backtester *engine.Backtester, concurrency int, log *logger.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Runner{
		backtester:  backtester,
		log:         log,
		concurrency: concurrency,
	}
}

// WithOnJobDone returns a copy of the runner that reports each finished job.
func (r *Runner) WithOnJobDone(onJobDone OnJobDone) *Runner {
	clone := *r
	clone.onJobDone = onJobDone

	return &clone
}

// Run executes jobs with bounded parallelism and returns one outcome per job in
// job order. A failing job does not stop the others; only cancellation of ctx
// aborts the batch, returning ctx's error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for i, job := range jobs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			outcomes[i] = r.runJob(job)

			if r.onJobDone != nil {
				r.onJobDone(outcomes[i])
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (r *Runner) runJob(job Job) Outcome {
	input := job.Input
	// every run owns its bar slice
	input.Bars = slices.Clone(job.Input.Bars)

	result, err := r.backtester.Run(input)
	if err != nil {
		r.log.Warn("Backtest job failed", zap.String("job", job.Name), zap.Error(err))

		return Outcome{Job: job, Err: err}
	}

	return Outcome{
		Job:            job,
		Result:         result,
		Metrics:        performance.Analyze(result),
		MonthlyReturns: performance.MonthlyReturns(result.PortfolioValue),
	}
}

// Succeeded returns the outcomes without an error.
func Succeeded(outcomes []Outcome) []Outcome {
	succeeded := make([]Outcome, 0, len(outcomes))

	for _, outcome := range outcomes {
		if outcome.Err == nil {
			succeeded = append(succeeded, outcome)
		}
	}

	return succeeded
}
