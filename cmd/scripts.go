package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
)

var (
	scriptsTop int
	scriptsMin int
)

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Most used power play opening scripts and how they score",
	Long: fmt.Sprintf(`An opening script is the sequence of tasks of the first %d shots of a power
play end. Scripts are ranked by how often they were played.`, features.OpeningShots),
	Args: cobra.NoArgs,
	RunE: runScripts,
}

func init() {
	addRunFlag(scriptsCmd)
	scriptsCmd.Flags().IntVar(&scriptsTop, "top", 10, "number of scripts to show")
	scriptsCmd.Flags().IntVar(&scriptsMin, "min", 3, "minimum ends for a script to be shown")
}

func runScripts(cmd *cobra.Command, _ []string) error {
	return withAnalysis(cmd, printScripts)
}

func printScripts(ctx context.Context, w io.Writer, a *analysis) error {
	scripts, err := a.table(ctx, "scripts", features.ScriptRecords(a.res.PowerPlayStates), features.KeyScript)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, fmt.Sprintf("Top %d Opening Scripts", scriptsTop), scripts.Top(scriptsTop, scriptsMin), report.Points)

	failures, err := a.table(ctx, "scripts_failure", features.ScriptFailureRecords(a.res.PowerPlayStates), features.KeyScript)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Missed Opening Shots per Script", failures.Top(scriptsTop, scriptsMin),
		report.StatOptions{Spread: true})

	opening := features.PowerPlayShotRecords(a.res.ShotFeatures, a.res.EndFeatures, true)
	byGroup, err := a.table(ctx, "scripts_opening", opening, features.KeyGroup)
	if err != nil {
		return err
	}
	report.PrintStatTable(w, "Opening Shot Execution by Group", byGroup, report.Points)
	return nil
}
