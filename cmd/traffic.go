package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var trafficCmd = &cobra.Command{
	Use:   "traffic",
	Short: "Traffic tax, corridor x house outcomes and CSI vs big ends",
	Long: `Power play points against the stone layout at the state shot: the points
lost per traffic level relative to the lightest level, a corridor x house
outcome calculator, points per corridor level and the task of the next shot,
and the big-end (2+) rate per CSI value.`,
	Args: cobra.NoArgs,
	RunE: runTraffic,
}

func init() {
	addRunFlag(trafficCmd)
}

func runTraffic(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printTraffic)
}

func printTraffic(ctx context.Context, w io.Writer, a *analysis) error {
	states := features.StateRecords(a.res.PowerPlayStates)

	byTraffic, err := a.table(ctx, "traffic", states, features.KeyTraffic)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Power Play Points by Traffic at the State Shot", byTraffic, report.Points)
	printTrafficTax(w, byTraffic)

	grid, err := a.table(ctx, "traffic_grid", states, features.KeyCorridor, features.KeyHouse)
	if err != nil {
		return err
	}
	if err := report.PrintCrossTable(w, "Outcome Calculator: Corridor x House (avg points)", grid, report.MeanCell); err != nil {
		return err
	}
	if err := report.PrintCrossTable(w, "Outcome Calculator: Corridor x House ("+report.AtLeastLabel(grid, 0)+")", grid, report.AtLeastCell(0)); err != nil {
		return err
	}

	byResponse, err := a.table(ctx, "traffic_response", states, features.KeyCorridor, features.KeyResponse)
	if err != nil {
		return err
	}
	if err := report.PrintCrossTable(w, "Points by Response: Corridor x Next Shot Task", byResponse, report.MeanCell); err != nil {
		return err
	}

	big := features.Indicator(states, func(v float64) bool { return v >= 2 })
	byCSI, err := a.table(ctx, "traffic_csi", big, features.KeyCSI)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Big End Rate by CSI", byCSI, report.Rate)

	shots := features.TrafficRecords(a.res.ShotFeatures, a.res.EndFeatures)
	perShot, err := a.table(ctx, "traffic_shot", shots, features.KeyTraffic)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Power Play Points by Traffic, All Shots", perShot, report.Points)
	return nil
}

// printTrafficTax prints each traffic level's average against the first.
func printTrafficTax(w io.Writer, t *aggregator.Table) {
	if len(t.Rows) < 2 {
		return
	}
	base := t.Rows[0]
	for _, r := range t.Rows[1:] {
		d := aggregator.Compare(r.Mean, base.Mean)
		if !d.OK {
			fmt.Fprintf(w, "  Traffic tax %s vs %s: %s\n", r.Keys[0], base.Keys[0], report.NoData)
			continue
		}
		fmt.Fprintf(w, "  Traffic tax %s vs %s: %+.2f points\n", r.Keys[0], base.Keys[0], d.Value)
	}
}
