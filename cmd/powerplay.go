package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var powerPlayCmd = &cobra.Command{
	Use:   "powerplay",
	Short: "Power play efficiency by comparison group, timing and score context",
	Long: `Points scored by the team that called the power play, per comparison group
(target NOCs plus the field), with 2+/3+/4+ conversion and the steal rate
(ends where the opponent scored). Broken down by end timing and score context.`,
	Args: cobra.NoArgs,
	RunE: runPowerPlay,
}

func init() {
	addRunFlag(powerPlayCmd)
}

func runPowerPlay(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printPowerPlay)
}

func printPowerPlay(ctx context.Context, w io.Writer, a *analysis) error {
	pp := features.PowerPlayRecords(a.res.EndFeatures)

	byGroup, err := a.table(ctx, "powerplay", pp, features.KeyGroup)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Power Play Efficiency by Group", byGroup, report.Points)

	steals := features.Indicator(features.SignedPowerPlayRecords(a.res.EndFeatures), func(v float64) bool { return v < 0 })
	stealTable, err := a.table(ctx, "powerplay_steal", steals, features.KeyGroup)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Steal Rate Against the Caller", stealTable, report.Rate)

	byTiming, err := a.table(ctx, "powerplay_timing", pp, features.KeyGroup, features.KeyTiming)
	if err != nil {
		return err
	}
	if err := report.PrintCrossTable(w, "Avg Points: Group x Timing", byTiming, report.MeanCell); err != nil {
		return err
	}
	if err := report.PrintCrossTable(w, report.AtLeastLabel(byTiming, 0)+" Conversion: Group x Timing", byTiming, report.AtLeastCell(0)); err != nil {
		return err
	}

	if err := printNetByTiming(ctx, w, a); err != nil {
		return err
	}

	byContext, err := a.table(ctx, "powerplay_context", pp, features.KeyContext)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Power Play by Score Context", byContext, report.Points)
	return nil
}

// netThresholds are the net-score levels reported per timing bucket.
var netThresholds = []float64{1, 3}

// printNetByTiming prints the caller's net end score (own points minus
// stolen points) per timing bucket with the steal rate.
func printNetByTiming(ctx context.Context, w io.Writer, a *analysis) error {
	signed := features.SignedPowerPlayRecords(a.res.EndFeatures)
	timing := a.dim(features.KeyTiming, signed)

	netEngine := aggregator.NewEngine(config.Aggregation{
		AtLeast:   netThresholds,
		ShardSize: cfg.Aggregation.ShardSize,
	}, cfg.Workers)
	net, err := a.aggregateWith(ctx, netEngine, "powerplay_net", signed, timing)
	if err != nil {
		return err
	}
	steals := features.Indicator(signed, func(v float64) bool { return v < 0 })
	steal, err := a.aggregate(ctx, "powerplay_net_steal", steals, timing)
	if err != nil {
		return err
	}
	report.PrintNetTable(w, "Net Points by Timing", net, steal)
	return nil
}
