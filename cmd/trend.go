package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var trendCmd = &cobra.Command{
	Use:   "trend <noc>",
	Short: "One NOC's power play profile across every stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrend,
}

func runTrend(cmd *cobra.Command, args []string) error {
	noc := strings.ToUpper(args[0])
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	// Oldest first.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	bench := make([]*storage.PowerPlayBenchmark, len(runs))
	for i, r := range runs {
		rows, err := db.PowerPlayBenchmarks(r.ID, []string{noc})
		if err != nil {
			return fmt.Errorf("query benchmarks for run %s: %w", r.ShortID(), err)
		}
		if len(rows) > 0 && rows[0].Ends > 0 {
			bench[i] = &rows[0]
		}
	}

	report.PrintBenchmarkTrend(os.Stdout, noc, runs, bench)
	return nil
}
