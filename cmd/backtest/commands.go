package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/api"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/state"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/marketdata"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	ConfigSchemaFileName         = "backtest-config.json"
	SampleConfigFileName         = "backtest-config.yaml"
	DownloadParamsSchemaFileName = "download-params.json"
)

func strategiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "strategies",
		Usage: "List the built-in strategies and their default parameters",
		Action: func(_ context.Context, cmd *cli.Command) error {
			printStrategies(cmd.Root().Writer, strategy.Templates())

			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a stats.yaml report written by run or compare",
		ArgsUsage: "<path to stats.yaml>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("missing report path")
			}

			report, err := types.ReadBacktestReport(path)
			if err != nil {
				return err
			}

			if err := version.CheckReportCompatibility(version.Version, report.EngineVersion); err != nil {
				return err
			}

			printReport(cmd.Root().Writer, report)

			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Generate JSON schemas and a sample engine config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory the schema files are written to",
				Value:   "config",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return generateSchemas(cmd.String("output"))
		},
	}
}

// generateSchemas writes the engine config schema, the download params schema
// and, unless one exists, a sample config referencing the schema.
func generateSchemas(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := engine.DefaultConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, ConfigSchemaFileName), []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write config schema: %w", err)
	}

	downloadSchema, err := marketdata.GetDownloadParamsSchema()
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, DownloadParamsSchemaFileName), []byte(downloadSchema), 0644); err != nil {
		return fmt.Errorf("failed to write download params schema: %w", err)
	}

	samplePath := filepath.Join(dir, SampleConfigFileName)
	if _, err := os.Stat(samplePath); err == nil {
		return nil
	}

	yamlBytes, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config: %w", err)
	}

	yamlBytes = append([]byte("# yaml-language-server: $schema="+ConfigSchemaFileName+"\n"), yamlBytes...)

	if err := os.WriteFile(samplePath, yamlBytes, 0644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}

	return nil
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download daily bars into a parquet file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Stock ticker symbol",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{time.DateOnly},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{time.DateOnly},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider to use (%s or %s)", marketdata.ProviderPolygon, marketdata.ProviderYahoo),
				Value:   string(marketdata.ProviderYahoo),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the data output directory",
				Value:   "data",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	ticker := cmd.String("ticker")

	var bar *progressbar.ProgressBar

	onProgress := func(current float64, total float64, _ string) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "Downloading "+ticker)
		}

		_ = bar.Set(int(current))
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:  marketdata.ProviderType(cmd.String("provider")),
		WriterType:    marketdata.WriterDuckDB,
		DataPath:      cmd.String("data"),
		PolygonApiKey: os.Getenv("POLYGON_API_KEY"),
	}, onProgress)
	if err != nil {
		return err
	}

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Ticker:    ticker,
		StartDate: cmd.Timestamp("start"),
		EndDate:   cmd.Timestamp("end"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "Downloaded %s to %s\n", ticker, path)

	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve backtests over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to a parquet or csv price file holding every served symbol",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an engine config YAML file",
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Address to listen on",
				Value:   ":8080",
				Sources: cli.EnvVars("BACKTEST_ADDR"),
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	source, err := datasource.NewDataSource(log)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.Initialize(cmd.String("data")); err != nil {
		return err
	}

	store, err := state.NewStore(log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(datasource.NewRepository(source, log), store, config, log)

	return server.ListenAndServe(ctx, cmd.String("addr"))
}
