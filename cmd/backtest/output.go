package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/state"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

func printStrategies(w io.Writer, templates []strategy.Template) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEFAULTS")

	for _, template := range templates {
		defaults := make([]string, 0, len(template.Defaults))
		for _, key := range slices.Sorted(maps.Keys(template.Defaults)) {
			defaults = append(defaults, fmt.Sprintf("%s=%g", key, template.Defaults[key]))
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", template.ID, template.Name, strings.Join(defaults, " "))
	}

	tw.Flush()
}

func printReport(w io.Writer, report types.BacktestReport) {
	result := report.Result
	metrics := report.Metrics

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", result.ID)
	fmt.Fprintf(tw, "Strategy\t%s\n", result.StrategyName)
	fmt.Fprintf(tw, "Symbol\t%s\n", result.Symbol)
	fmt.Fprintf(tw, "Period\t%s to %s\n", result.StartDate.Format(time.DateOnly), result.EndDate.Format(time.DateOnly))
	fmt.Fprintf(tw, "Initial capital\t%.2f\n", result.InitialCapital)
	fmt.Fprintf(tw, "Final capital\t%.2f\n", result.FinalCapital)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", result.TotalReturn)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", result.MaxDrawdown)
	fmt.Fprintf(tw, "Sharpe ratio\t%.2f\n", metrics.SharpeRatio)
	fmt.Fprintf(tw, "Trades\t%d (%d completed)\n", result.TradeCount, metrics.CompletedTrades)
	fmt.Fprintf(tw, "Win rate\t%.2f%%\n", metrics.WinRate*100)
	fmt.Fprintf(tw, "Profit factor\t%.2f\n", metrics.ProfitFactor)

	if report.TradesFilePath != "" {
		fmt.Fprintf(tw, "Trades file\t%s\n", report.TradesFilePath)
		fmt.Fprintf(tw, "Equity file\t%s\n", report.EquityFilePath)
	}

	tw.Flush()
}

func printLeaderboard(w io.Writer, summaries []state.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTRATEGY\tRETURN\tDRAWDOWN\tSHARPE\tWIN RATE\tTRADES")

	for i, summary := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\t%d\n",
			i+1,
			summary.StrategyName,
			summary.TotalReturn,
			summary.MaxDrawdown,
			summary.SharpeRatio,
			summary.WinRate*100,
			summary.TradeCount,
		)
	}

	tw.Flush()
}
