package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

// summaryCmd is the cobra command for displaying a high-level database overview.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a high-level overview of the database",
	Long: `Display aggregate statistics about the stored runs: run count, build date
range, distinct data directories, the size of the latest run and its most
active NOCs with power play benchmarks for the configured target NOCs.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	ov, err := db.GetOverview()
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}
	if ov.Runs == 0 {
		fmt.Fprintln(os.Stdout, "No runs stored yet. Run 'curlmetrics build <data-dir>' to add one.")
		return nil
	}
	report.PrintOverview(os.Stdout, ov)

	latest, err := db.LatestRun()
	if err != nil {
		return fmt.Errorf("get latest run: %w", err)
	}
	if latest == nil {
		return nil
	}
	counts, err := db.NOCCounts(latest.ID, 10)
	if err != nil {
		return fmt.Errorf("get noc counts: %w", err)
	}
	report.PrintNOCCounts(os.Stdout, counts)

	bench, err := db.PowerPlayBenchmarks(latest.ID, targetNOCs(cfg.Groups.Targets))
	if err != nil {
		return fmt.Errorf("get benchmarks: %w", err)
	}
	report.PrintBenchmarks(os.Stdout, bench)
	return nil
}
