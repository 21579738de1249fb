package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var showTop int

var showCmd = &cobra.Command{
	Use:   "show <run-prefix>",
	Short: "Show a stored run by id prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().IntVar(&showTop, "top", 10, "number of NOCs to list")
}

func runShow(cmd *cobra.Command, args []string) error {
	prefix := args[0]

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	run, err := db.GetRunByPrefix(prefix)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "No run found with id prefix %q\n", prefix)
		return nil
	}

	return showRun(os.Stdout, db, *run)
}

// showRun prints a run's header, its most active NOCs and excluded games.
func showRun(w io.Writer, db *storage.DB, run storage.Run) error {
	diags, err := db.GetDiagnostics(run.ID)
	if err != nil {
		return fmt.Errorf("get diagnostics: %w", err)
	}
	counts, err := db.NOCCounts(run.ID, showTop)
	if err != nil {
		return fmt.Errorf("get noc counts: %w", err)
	}

	report.PrintRunHeader(w, run)
	report.PrintNOCCounts(w, counts)
	report.PrintDiagnostics(w, diags)
	return nil
}
