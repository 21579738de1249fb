package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var timingCmd = &cobra.Command{
	Use:   "timing",
	Short: "When teams deploy the power play, by end and by timing bucket",
	Args:  cobra.NoArgs,
	RunE:  runTiming,
}

func init() {
	addRunFlag(timingCmd)
}

func runTiming(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printTiming)
}

func printTiming(ctx context.Context, w io.Writer, a *analysis) error {
	pp := features.PowerPlayRecords(a.res.EndFeatures)

	report.PrintDistribution(w, "Power Play Deployment by End", "end",
		aggregator.Distribution(pp, a.dim(features.KeyEnd, pp)))
	report.PrintDistribution(w, "Power Play Deployment by Timing", "timing",
		aggregator.Distribution(pp, a.dim(features.KeyTiming, pp)))

	byTiming, err := a.table(ctx, "timing", pp, features.KeyTiming)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Power Play Points by Timing", byTiming, report.Points)

	byGroup, err := a.table(ctx, "timing_group", pp, features.KeyGroup, features.KeyTiming)
	if err != nil {
		return err
	}
	return report.PrintCrossTable(w, "Power Plays Called: Group x Timing", byGroup, report.CountCell)
}
