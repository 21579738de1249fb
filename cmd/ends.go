package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/model"
	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var (
	endsTeam      string
	endsPowerPlay bool
	endsTiming    string
)

// endsCmd is the cobra command for the per-end drill-down of one game.
var endsCmd = &cobra.Command{
	Use:   "ends <game-key>",
	Short: "Per-end drill-down for one game of a stored run",
	Long: `Print the reconstructed score context of every end of one game, one row per
team. The game key has the form competition_session_game, as printed by
'show' for excluded games.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnds,
}

func init() {
	addRunFlag(endsCmd)
	endsCmd.Flags().StringVar(&endsTeam, "team", "", "only show rows for this NOC")
	endsCmd.Flags().BoolVar(&endsPowerPlay, "powerplay", false, "only show ends where the team called the power play")
	endsCmd.Flags().StringVar(&endsTiming, "timing", "", "only show ends in this timing bucket")
}

// filterEnds keeps one game's rows matching --team, --powerplay and --timing.
func filterEnds(rows []features.EndFeature, game model.GameKey, noc string, powerPlay bool, timing string) []features.EndFeature {
	var out []features.EndFeature
	for _, f := range rows {
		if f.GameKey != game {
			continue
		}
		if noc != "" && !strings.EqualFold(f.NOC, noc) {
			continue
		}
		if powerPlay && !f.PowerPlayCalled {
			continue
		}
		if timing != "" && !strings.EqualFold(f.Timing, timing) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func runEnds(cmd *cobra.Command, args []string) error {
	game, err := model.ParseGameKey(args[0])
	if err != nil {
		return err
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	run, err := db.GetRunByPrefix(runPrefix)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "No run found with id prefix %q\n", runPrefix)
		return nil
	}

	rows, err := db.GetEndFeatures(run.ID)
	if err != nil {
		return fmt.Errorf("get end features: %w", err)
	}
	rows = filterEnds(rows, game, endsTeam, endsPowerPlay, endsTiming)
	if len(rows) == 0 {
		fmt.Fprintf(os.Stderr, "No ends match game %s in run %s with the given filters.\n", game, run.ShortID())
		return nil
	}

	report.PrintEndDetailTable(os.Stdout, game.String(), rows)
	return nil
}
