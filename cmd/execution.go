package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/model"
	"github.com/pable/go-curling-metrics/internal/report"
)

var executionCmd = &cobra.Command{
	Use:   "execution",
	Short: "Shot execution by task and under heavy traffic",
	Long: `Execution scores (0-4) per shot task, a draw vs wick comparison, draw under
guard failure rates in power play ends, and the failure rate (score below 1)
of each task when the house is at its most congested traffic level.`,
	Args: cobra.NoArgs,
	RunE: runExecution,
}

func init() {
	addRunFlag(executionCmd)
}

func runExecution(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printExecution)
}

func printExecution(ctx context.Context, w io.Writer, a *analysis) error {
	shots := features.ExecutionRecords(a.res.ShotFeatures)

	draw, wick := model.TaskName(model.TaskDraw), model.TaskName(model.TaskWick)
	dw, err := a.aggregate(ctx, "execution_draw_wick",
		features.Where(shots, features.KeyTask, draw, wick),
		aggregator.Dimension{Key: features.KeyTask, Levels: []string{draw, wick}})
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Draw vs Wick Execution", dw, report.Points)

	byTask, err := a.table(ctx, "execution_task", shots, features.KeyTask)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Execution by Task", byTask.Top(len(byTask.Rows), 1), report.Points)

	if err := printDrawUnderGuard(ctx, w, a); err != nil {
		return err
	}

	levels := a.p.Builder().TrafficLevels()
	if len(levels) == 0 {
		return nil
	}
	high := levels[len(levels)-1]
	failed := features.Indicator(features.Where(shots, features.KeyTraffic, high), func(v float64) bool { return v < 1 })
	byFail, err := a.table(ctx, "execution_failure", failed, features.KeyTask)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Failure Rate Under "+high+" Traffic", byFail.Top(len(byFail.Rows), 1), report.Rate)
	return nil
}

// printDrawUnderGuard prints how often a draw thrown with a guard in play
// during a power play end is followed by a scoreless end for the caller, and
// how often the draw itself scores 0.
func printDrawUnderGuard(ctx context.Context, w io.Writer, a *analysis) error {
	draw := model.TaskName(model.TaskDraw)
	dim := aggregator.Dimension{Key: features.KeyTask, Levels: []string{draw}}
	zero := func(v float64) bool { return v == 0 }

	ends := features.TrafficRecords(a.res.ShotFeatures, a.res.EndFeatures)
	ends = features.Where(features.Where(ends, features.KeyTask, draw), features.KeyGuard, features.LevelGuard)
	endFail, err := a.aggregate(ctx, "execution_dug_end", features.Indicator(ends, zero), dim)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Draw Under Guard: Power Play End Scored 0", endFail, report.Rate)

	shots := features.Where(features.ExecutionRecords(a.res.ShotFeatures), features.KeyPowerPlay, features.LevelPowerPlay)
	shots = features.Where(features.Where(shots, features.KeyTask, draw), features.KeyGuard, features.LevelGuard)
	shotFail, err := a.aggregate(ctx, "execution_dug_shot", features.Indicator(shots, zero), dim)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Draw Under Guard: Shot Scored 0", shotFail, report.Rate)
	return nil
}
