package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var sideCmd = &cobra.Command{
	Use:   "side",
	Short: "Power play side and first-shot handle",
	Args:  cobra.NoArgs,
	RunE:  runSide,
}

func init() {
	addRunFlag(sideCmd)
}

func runSide(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printSide)
}

func printSide(ctx context.Context, w io.Writer, a *analysis) error {
	recs := features.SideRecords(a.res.PowerPlayStates)

	bySide, err := a.table(ctx, "side", recs, features.KeySide)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Power Play Points by Side", bySide, report.Points)

	grid, err := a.table(ctx, "side_handle", recs, features.KeySide, features.KeyHandle)
	if err != nil {
		return err
	}
	if err := report.PrintCrossTable(w, "Avg Points: Side x Handle", grid, report.MeanCell); err != nil {
		return err
	}

	byGroup, err := a.table(ctx, "side_group", recs, features.KeyGroup, features.KeySide)
	if err != nil {
		return err
	}
	return report.PrintCrossTable(w, "Power Plays Called: Group x Side", byGroup, report.CountCell)
}
