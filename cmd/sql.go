package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/storage"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the metrics database",
	Long: `Run an arbitrary SQL query against the metrics database and print results as a table.

Schema overview:
  runs(id, created_at, data_dir, data_hash, timing_preset, csi_profile, state_shot,
    games, ends, shots, powerplays, malformed)
  end_features(run_id, competition_id, session_id, game_id, end_id, team_id,
    opp_team_id, noc, grp, my_score, opp_score, diff, timing, context_bucket,
    result, opp_result, signed, power_play, opp_power_play, won)
  shot_features(run_id, competition_id, session_id, game_id, end_id, shot_id,
    shot_rank, task, task_name, points, handle, house_count, corridor_count,
    guard_count, deep_guard_present, valid_stones, not_thrown, off_sheet, missing,
    traffic, corridor, house, csi, csi_profile, side, power_play_team)
  powerplay_states(run_id, competition_id, session_id, game_id, end_id, team_id,
    has_state, state_shot_id, <snapshot and index columns as in shot_features>,
    response, script, opening_failures, opening_points, opening_scored, side, handle)
  diagnostics(run_id, competition_id, session_id, game_id, end_id, reason)

Every feature table is keyed by run_id; filter on it to stay within one run:
  curlmetrics sql "SELECT noc, AVG(result) FROM end_features WHERE run_id LIKE 'ab12%' AND power_play > 0 GROUP BY noc"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	cols, rows, err := db.QueryRaw(query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignCenter},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
	}))

	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)

	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(os.Stdout, "\n(%d rows)\n", len(rows))
	return nil
}
