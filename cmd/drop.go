package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/storage"
)

var (
	dropForce bool
	dropAll   bool
)

// dropCmd deletes one stored run, or the whole metrics database with --all.
var dropCmd = &cobra.Command{
	Use:   "drop [run-prefix]",
	Short: "Delete a stored run or the whole metrics database",
	Long: `Delete one stored run (and all of its feature rows) by id prefix. With --all
the SQLite metrics database is removed instead; rebuild it with 'build'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "skip confirmation prompt")
	dropCmd.Flags().BoolVar(&dropAll, "all", false, "delete the whole database file")
}

func runDrop(cmd *cobra.Command, args []string) error {
	if dropAll {
		return dropDatabase()
	}
	if len(args) == 0 {
		return fmt.Errorf("drop: a run id prefix or --all is required")
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	run, err := db.GetRunByPrefix(args[0])
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "No run found with id prefix %q\n", args[0])
		return nil
	}
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete run %s (%s, %d ends).\n", run.ShortID(), run.DataDir, run.Ends)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}
	if _, err := db.DeleteRun(run.ID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted run: %s\n", run.ShortID())
	return nil
}

func dropDatabase() error {
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}
	if err := os.Remove(dbPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stdout, "Database does not exist, nothing to drop.")
			return nil
		}
		return fmt.Errorf("remove database: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted: %s\n", dbPath)
	return nil
}
