package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/batch"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/state"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/performance"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// sourceFlags are shared by every command that simulates a symbol.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Path to a parquet or csv price file",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "symbol",
			Aliases:  []string{"s"},
			Usage:    "Symbol to backtest",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to an engine config YAML file",
		},
		&cli.TimestampFlag{
			Name:  "start",
			Usage: "First trading day in `YYYY-MM-DD` format",
			Config: cli.TimestampConfig{
				Layouts: []string{time.DateOnly},
			},
		},
		&cli.TimestampFlag{
			Name:  "end",
			Usage: "Last trading day in `YYYY-MM-DD` format",
			Config: cli.TimestampConfig{
				Layouts: []string{time.DateOnly},
			},
		},
		&cli.StringFlag{
			Name:    "results",
			Aliases: []string{"o"},
			Usage:   "Directory the run exports are written to",
			Value:   "results",
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one strategy over a symbol and export the results",
		Flags: append(sourceFlags(),
			&cli.StringFlag{
				Name:     "strategy",
				Usage:    "Strategy id, see the strategies command",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Strategy parameter override as `key=value`, may be repeated",
			},
		),
		Action: runAction,
	}
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Run several strategies over a symbol and rank them",
		Flags: append(sourceFlags(),
			&cli.StringSliceFlag{
				Name:  "strategy",
				Usage: "Strategy ids to compare. Defaults to every built-in strategy",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of strategies simulated in parallel",
				Value: 4,
			},
		),
		Action: compareAction,
	}
}

// loadConfig reads the engine config and applies the period flags on top of it.
func loadConfig(cmd *cli.Command) (engine.Config, error) {
	config := engine.DefaultConfig()

	if path := cmd.String("config"); path != "" {
		loaded, err := engine.LoadConfig(path)
		if err != nil {
			return engine.Config{}, err
		}

		config = loaded
	}

	if cmd.IsSet("start") {
		config.StartTime = optional.Some(cmd.Timestamp("start"))
	}

	if cmd.IsSet("end") {
		config.EndTime = optional.Some(cmd.Timestamp("end"))
	}

	if err := config.Validate(); err != nil {
		return engine.Config{}, err
	}

	return config, nil
}

// parseParams parses repeated key=value overrides.
func parseParams(values []string) (map[string]float64, error) {
	overrides := make(map[string]float64, len(values))

	for _, value := range values {
		key, raw, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)

		if !ok || key == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q is not in key=value form", value)
		}

		number, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "parameter %q is not a number", key)
		}

		overrides[key] = number
	}

	return overrides, nil
}

// loadBars reads the symbol's bars for the configured period from the data file.
func loadBars(ctx context.Context, log *logger.Logger, dataPath string, symbol string, config engine.Config) ([]types.PriceBar, error) {
	source, err := datasource.NewDataSource(log)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return nil, err
	}

	return datasource.NewRepository(source, log).LoadValid(ctx, symbol, config.StartTime, config.EndTime)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	strategyID, err := strategy.ParseStrategyID(cmd.String("strategy"))
	if err != nil {
		return err
	}

	overrides, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	params, err := strategy.ResolveParams(strategyID, overrides)
	if err != nil {
		return err
	}

	symbol := cmd.String("symbol")
	dataPath := cmd.String("data")

	bars, err := loadBars(ctx, log, dataPath, symbol, config)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onRunStart := engine.OnRunStartCallback(func(_ string, symbol string, strategyName string, totalBars int) error {
		bar = progressbar.Default(int64(totalBars), fmt.Sprintf("Processing %s with %s", symbol, strategyName))

		return nil
	})
	onProcessData := engine.OnProcessDataCallback(func(current int, _ int) error {
		return bar.Set(current + 1)
	})

	backtester := engine.NewBacktester(config, log).WithCallbacks(engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnProcessData: &onProcessData,
	})

	result, err := backtester.Run(engine.Input{
		Symbol:   symbol,
		Strategy: strategyID,
		Params:   params,
		Bars:     bars,
	})
	if err != nil {
		return err
	}

	store, err := state.NewStore(log)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := persist(ctx, store, cmd.String("results"), dataPath, batch.Outcome{
		Result:         result,
		Metrics:        performance.Analyze(result),
		MonthlyReturns: performance.MonthlyReturns(result.PortfolioValue),
	})
	if err != nil {
		return err
	}

	printReport(cmd.Root().Writer, report)

	return nil
}

// persist records an outcome and exports it under root.
func persist(ctx context.Context, store *state.Store, root string, dataPath string, outcome batch.Outcome) (types.BacktestReport, error) {
	if err := store.Record(ctx, outcome.Result, outcome.Metrics, outcome.MonthlyReturns); err != nil {
		return types.BacktestReport{}, err
	}

	return store.Write(ctx, root, outcome.Result.ID, dataPath)
}

func compareAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	strategyIDs, err := strategiesToCompare(cmd.StringSlice("strategy"))
	if err != nil {
		return err
	}

	symbol := cmd.String("symbol")
	dataPath := cmd.String("data")

	bars, err := loadBars(ctx, log, dataPath, symbol, config)
	if err != nil {
		return err
	}

	jobs := make([]batch.Job, 0, len(strategyIDs))

	for _, id := range strategyIDs {
		params, err := strategy.ResolveParams(id, nil)
		if err != nil {
			return err
		}

		jobs = append(jobs, batch.Job{
			Name: string(id),
			Input: engine.Input{
				Symbol:   symbol,
				Strategy: id,
				Params:   params,
				Bars:     bars,
			},
		})
	}

	bar := progressbar.Default(int64(len(jobs)), fmt.Sprintf("Comparing strategies on %s", symbol))
	runner := batch.NewRunner(engine.NewBacktester(config, log), int(cmd.Int("concurrency")), log).
		WithOnJobDone(func(batch.Outcome) {
			_ = bar.Add(1)
		})

	outcomes, err := runner.Run(ctx, jobs)
	if err != nil {
		return err
	}

	store, err := state.NewStore(log)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(cmd.Root().Writer, "%s failed: %v\n", outcome.Job.Name, outcome.Err)

			continue
		}

		if _, err := persist(ctx, store, cmd.String("results"), dataPath, outcome); err != nil {
			log.Error("Failed to persist backtest", zap.String("strategy", outcome.Job.Name), zap.Error(err))

			return err
		}
	}

	summaries, err := store.Leaderboard(ctx, uint64(len(jobs)))
	if err != nil {
		return err
	}

	printLeaderboard(cmd.Root().Writer, summaries)

	return nil
}

func strategiesToCompare(values []string) ([]strategy.ID, error) {
	if len(values) == 0 {
		templates := strategy.Templates()
		ids := make([]strategy.ID, 0, len(templates))

		for _, template := range templates {
			ids = append(ids, template.ID)
		}

		return ids, nil
	}

	ids := make([]strategy.ID, 0, len(values))

	for _, value := range values {
		id, err := strategy.ParseStrategyID(value)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}
