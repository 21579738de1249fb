package cmd

import (
	"context"
	"io"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var evEnds []int

var evCmd = &cobra.Command{
	Use:   "ev",
	Short: "Expected points with and without the power play",
	Long: `Compare the average points of ends where a team called its power play with
ends where it did not, for the selected ends, overall and per comparison group.`,
	Args: cobra.NoArgs,
	RunE: runEV,
}

func init() {
	addRunFlag(evCmd)
	evCmd.Flags().IntSliceVar(&evEnds, "ends", []int{1, 8}, "ends to compare")
}

func runEV(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printEV)
}

func printEV(ctx context.Context, w io.Writer, a *analysis) error {
	recs := features.EndRecords(a.res.EndFeatures)

	endLevels := make([]string, len(evEnds))
	for i, e := range evEnds {
		endLevels[i] = strconv.Itoa(e)
	}
	byEnd, err := a.aggregate(ctx, "ev_end",
		features.Where(recs, features.KeyEnd, endLevels...),
		aggregator.Dimension{Key: features.KeyEnd, Levels: endLevels},
		a.dim(features.KeyPowerPlay, recs))
	if err != nil {
		return err
	}
	all, err := a.table(ctx, "ev_all", recs, features.KeyPowerPlay)
	if err != nil {
		return err
	}

	var rows []report.Leverage
	for _, e := range endLevels {
		rows = append(rows, leverage("End "+e, byEnd, e))
	}
	rows = append(rows, leverage("All ends", all))
	report.PrintLeverage(w, "Power Play Leverage by End", rows)

	byGroup, err := a.table(ctx, "ev_group", recs, features.KeyGroup, features.KeyPowerPlay)
	if err != nil {
		return err
	}
	rows = rows[:0]
	for _, g := range byGroup.Levels[0] {
		rows = append(rows, leverage(g, byGroup, g))
	}
	report.PrintLeverage(w, "Power Play Leverage by Group", rows)
	return nil
}

// leverage pairs the power play and standard rows sharing the leading keys.
func leverage(label string, t *aggregator.Table, keys ...string) report.Leverage {
	l := report.Leverage{Label: label}
	l.PowerPlay, _ = t.Row(slices.Concat(keys, []string{features.LevelPowerPlay})...)
	l.Standard, _ = t.Row(slices.Concat(keys, []string{features.LevelStandard})...)
	return l
}
