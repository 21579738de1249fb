package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var firstStrikeCmd = &cobra.Command{
	Use:   "firststrike",
	Short: "Win probability by score margin after the first end",
	Args:  cobra.NoArgs,
	RunE:  runFirstStrike,
}

func init() {
	addRunFlag(firstStrikeCmd)
}

func runFirstStrike(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printFirstStrike)
}

func printFirstStrike(ctx context.Context, w io.Writer, a *analysis) error {
	recs := features.FirstStrikeRecords(a.res.EndFeatures)
	byLead, err := a.table(ctx, "firststrike", recs, features.KeyLead)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Win Rate by Margin After End 1", byLead, report.Rate)

	byGroup, err := a.table(ctx, "firststrike_group", recs, features.KeyGroup, features.KeyLead)
	if err != nil {
		return err
	}
	return report.PrintCrossTable(w, "Win Rate: Group x Margin After End 1", byGroup, report.MeanCell)
}
