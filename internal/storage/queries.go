package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/gamestate"
	"github.com/pable/go-curling-metrics/internal/geometry"
	"github.com/pable/go-curling-metrics/internal/indices"
	"github.com/pable/go-curling-metrics/internal/model"
)

// Run describes one stored build.
type Run struct {
	ID           string
	CreatedAt    time.Time
	DataDir      string
	DataHash     string
	TimingPreset string
	CSIProfile   string
	StateShot    int
	Games        int
	Ends         int
	Shots        int
	PowerPlays   int
	Malformed    int
}

// ShortID is the first eight characters of the run id.
func (r Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// NewRun fills the counts of a run from a pipeline result and assigns a fresh id.
func NewRun(ds *model.Dataset, res *features.Result, timingPreset, csiProfile string, stateShot int) Run {
	return Run{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		DataDir:      ds.Dir,
		DataHash:     ds.Hash,
		TimingPreset: timingPreset,
		CSIProfile:   csiProfile,
		StateShot:    stateShot,
		Games:        res.Games,
		Ends:         len(res.EndFeatures),
		Shots:        len(res.ShotFeatures),
		PowerPlays:   len(res.PowerPlayStates),
		Malformed:    len(res.Diagnostics),
	}
}

// InsertRun stores a run and all of its feature rows in one transaction.
// Re-inserting the same run id replaces it.
func (db *DB) InsertRun(run Run, res *features.Result) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs(id, created_at, data_dir, data_hash, timing_preset, csi_profile,
			state_shot, games, ends, shots, powerplays, malformed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), run.DataDir, run.DataHash,
		run.TimingPreset, run.CSIProfile, run.StateShot,
		run.Games, run.Ends, run.Shots, run.PowerPlays, run.Malformed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertEndFeatures(tx, run.ID, res.EndFeatures); err != nil {
		return err
	}
	if err := insertShotFeatures(tx, run.ID, res.ShotFeatures); err != nil {
		return err
	}
	if err := insertPowerPlayStates(tx, run.ID, res.PowerPlayStates); err != nil {
		return err
	}
	if err := insertDiagnostics(tx, run.ID, res.Diagnostics); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEndFeatures(tx *sql.Tx, runID string, rows []features.EndFeature) error {
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO end_features(
			run_id, competition_id, session_id, game_id, end_id, team_id, opp_team_id,
			noc, grp, my_score, opp_score, diff, timing, context_bucket,
			result, opp_result, signed, power_play, opp_power_play, won
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range rows {
		_, err = stmt.Exec(
			runID, f.CompetitionID, f.SessionID, f.GameID, f.EndID, f.TeamID, f.OppTeamID,
			f.NOC, f.Group, f.MyScore, f.OppScore, f.Diff, f.Timing, f.ContextBucket,
			f.Result, f.OppResult, f.Signed, f.PowerPlay, f.OppPowerPlay, boolInt(f.Won),
		)
		if err != nil {
			return fmt.Errorf("insert end_features for %s team %d: %w", f.EndKey, f.TeamID, err)
		}
	}
	return nil
}

func insertShotFeatures(tx *sql.Tx, runID string, rows []features.ShotFeature) error {
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO shot_features(
			run_id, competition_id, session_id, game_id, end_id, shot_id, shot_rank,
			task, task_name, points, handle,
			house_count, corridor_count, guard_count, deep_guard_present,
			valid_stones, not_thrown, off_sheet, missing,
			traffic, corridor, house, csi, csi_profile, side, power_play_team
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rows {
		sn, ix := s.Snapshot, s.Indices
		_, err = stmt.Exec(
			runID, s.CompetitionID, s.SessionID, s.GameID, s.EndID, s.ShotID, s.ShotRank,
			s.Task, s.TaskName, s.Points, s.Handle,
			sn.HouseCount, sn.CorridorCount, sn.GuardCount, boolInt(sn.DeepGuardPresent),
			sn.Valid, sn.NotThrown, sn.OffSheet, sn.Missing,
			ix.Traffic, ix.Corridor, ix.House, ix.CSI, ix.Profile, s.Side, s.PowerPlayTeam,
		)
		if err != nil {
			return fmt.Errorf("insert shot_features for %s shot %d: %w", s.EndKey, s.ShotID, err)
		}
	}
	return nil
}

func insertPowerPlayStates(tx *sql.Tx, runID string, rows []features.PowerPlayState) error {
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO powerplay_states(
			run_id, competition_id, session_id, game_id, end_id, team_id,
			has_state, state_shot_id,
			house_count, corridor_count, guard_count, deep_guard_present,
			valid_stones, not_thrown, off_sheet, missing,
			traffic, corridor, house, csi, csi_profile,
			response, script, opening_failures, opening_points, opening_scored, side, handle
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rows {
		sn, ix := s.Snapshot, s.Indices
		_, err = stmt.Exec(
			runID, s.CompetitionID, s.SessionID, s.GameID, s.EndID, s.TeamID,
			boolInt(s.HasState), s.StateShotID,
			sn.HouseCount, sn.CorridorCount, sn.GuardCount, boolInt(sn.DeepGuardPresent),
			sn.Valid, sn.NotThrown, sn.OffSheet, sn.Missing,
			ix.Traffic, ix.Corridor, ix.House, ix.CSI, ix.Profile,
			s.Response, s.Script, s.OpeningFailures, s.OpeningPoints, s.OpeningScored, s.Side, s.Handle,
		)
		if err != nil {
			return fmt.Errorf("insert powerplay_states for %s: %w", s.EndKey, err)
		}
	}
	return nil
}

func insertDiagnostics(tx *sql.Tx, runID string, diags []gamestate.Diagnostic) error {
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO diagnostics(run_id, competition_id, session_id, game_id, end_id, reason)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range diags {
		endID := 0
		var mg *gamestate.MalformedGameError
		if errors.As(d.Err, &mg) {
			endID = mg.EndID
		}
		if _, err = stmt.Exec(runID, d.Game.CompetitionID, d.Game.SessionID, d.Game.GameID, endID, d.Reason()); err != nil {
			return fmt.Errorf("insert diagnostics for %s: %w", d.Game, err)
		}
	}
	return nil
}

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const runColumns = `id, created_at, data_dir, data_hash, timing_preset, csi_profile,
	state_shot, games, ends, shots, powerplays, malformed`

func scanRun(sc interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var created string
	err := sc.Scan(&r.ID, &created, &r.DataDir, &r.DataHash, &r.TimingPreset, &r.CSIProfile,
		&r.StateShot, &r.Games, &r.Ends, &r.Shots, &r.PowerPlays, &r.Malformed)
	if err != nil {
		return r, err
	}
	r.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return r, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return r, nil
}

// ListRuns returns all stored runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.conn.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRunByPrefix returns the newest run whose id starts with prefix, or nil
// when none matches.
func (db *DB) GetRunByPrefix(prefix string) (*Run, error) {
	row := db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ORDER BY created_at DESC LIMIT 1`, prefix+"%")
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recent run, or nil when the store is empty.
func (db *DB) LatestRun() (*Run, error) {
	return db.GetRunByPrefix("")
}

// DeleteRun removes a run and, through the foreign keys, all of its rows.
// It reports whether a run was deleted.
func (db *DB) DeleteRun(id string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetEndFeatures loads a run's end rows ordered by end then team.
func (db *DB) GetEndFeatures(runID string) ([]features.EndFeature, error) {
	rows, err := db.conn.Query(`
		SELECT competition_id, session_id, game_id, end_id, team_id, opp_team_id,
			noc, grp, my_score, opp_score, diff, timing, context_bucket,
			result, opp_result, signed, power_play, opp_power_play, won
		FROM end_features WHERE run_id = ?
		ORDER BY competition_id, session_id, game_id, end_id, team_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []features.EndFeature
	for rows.Next() {
		var f features.EndFeature
		var won int
		if err := rows.Scan(
			&f.CompetitionID, &f.SessionID, &f.GameID, &f.EndID, &f.TeamID, &f.OppTeamID,
			&f.NOC, &f.Group, &f.MyScore, &f.OppScore, &f.Diff, &f.Timing, &f.ContextBucket,
			&f.Result, &f.OppResult, &f.Signed, &f.PowerPlay, &f.OppPowerPlay, &won,
		); err != nil {
			return nil, err
		}
		f.Won = won != 0
		f.PowerPlayCalled = f.PowerPlay > 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetShotFeatures loads a run's shots ordered by end then shot id.
func (db *DB) GetShotFeatures(runID string) ([]features.ShotFeature, error) {
	rows, err := db.conn.Query(`
		SELECT competition_id, session_id, game_id, end_id, shot_id, shot_rank,
			task, task_name, points, handle,
			house_count, corridor_count, guard_count, deep_guard_present,
			valid_stones, not_thrown, off_sheet, missing,
			traffic, corridor, house, csi, csi_profile, side, power_play_team
		FROM shot_features WHERE run_id = ?
		ORDER BY competition_id, session_id, game_id, end_id, shot_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []features.ShotFeature
	for rows.Next() {
		var s features.ShotFeature
		var deep int
		if err := rows.Scan(
			&s.CompetitionID, &s.SessionID, &s.GameID, &s.EndID, &s.ShotID, &s.ShotRank,
			&s.Task, &s.TaskName, &s.Points, &s.Handle,
			&s.Snapshot.HouseCount, &s.Snapshot.CorridorCount, &s.Snapshot.GuardCount, &deep,
			&s.Snapshot.Valid, &s.Snapshot.NotThrown, &s.Snapshot.OffSheet, &s.Snapshot.Missing,
			&s.Indices.Traffic, &s.Indices.Corridor, &s.Indices.House, &s.Indices.CSI, &s.Indices.Profile,
			&s.Side, &s.PowerPlayTeam,
		); err != nil {
			return nil, err
		}
		fillSnapshot(&s.Snapshot, deep)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetPowerPlayStates loads a run's power play states joined with the
// caller's end row.
func (db *DB) GetPowerPlayStates(runID string) ([]features.PowerPlayState, error) {
	ends, err := db.GetEndFeatures(runID)
	if err != nil {
		return nil, err
	}
	type endTeam struct {
		model.EndKey
		team int
	}
	byKey := make(map[endTeam]features.EndFeature, len(ends))
	for _, f := range ends {
		byKey[endTeam{f.EndKey, f.TeamID}] = f
	}

	rows, err := db.conn.Query(`
		SELECT competition_id, session_id, game_id, end_id, team_id,
			has_state, state_shot_id,
			house_count, corridor_count, guard_count, deep_guard_present,
			valid_stones, not_thrown, off_sheet, missing,
			traffic, corridor, house, csi, csi_profile,
			response, script, opening_failures, opening_points, opening_scored, side, handle
		FROM powerplay_states WHERE run_id = ?
		ORDER BY competition_id, session_id, game_id, end_id, team_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []features.PowerPlayState
	for rows.Next() {
		var (
			k        model.EndKey
			team     int
			hasState int
			deep     int
			snap     geometry.Snapshot
			ix       indices.Indices
			s        features.PowerPlayState
		)
		if err := rows.Scan(
			&k.CompetitionID, &k.SessionID, &k.GameID, &k.EndID, &team,
			&hasState, &s.StateShotID,
			&snap.HouseCount, &snap.CorridorCount, &snap.GuardCount, &deep,
			&snap.Valid, &snap.NotThrown, &snap.OffSheet, &snap.Missing,
			&ix.Traffic, &ix.Corridor, &ix.House, &ix.CSI, &ix.Profile,
			&s.Response, &s.Script, &s.OpeningFailures, &s.OpeningPoints, &s.OpeningScored, &s.Side, &s.Handle,
		); err != nil {
			return nil, err
		}
		f, ok := byKey[endTeam{k, team}]
		if !ok {
			return nil, fmt.Errorf("power play state %s team %d has no end row", k, team)
		}
		fillSnapshot(&snap, deep)
		s.EndFeature = f
		s.HasState = hasState != 0
		s.Snapshot = snap
		s.Indices = ix
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetDiagnostics loads the games a run excluded.
func (db *DB) GetDiagnostics(runID string) ([]gamestate.Diagnostic, error) {
	rows, err := db.conn.Query(`
		SELECT competition_id, session_id, game_id, end_id, reason
		FROM diagnostics WHERE run_id = ?
		ORDER BY competition_id, session_id, game_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gamestate.Diagnostic
	for rows.Next() {
		var e gamestate.MalformedGameError
		if err := rows.Scan(&e.Game.CompetitionID, &e.Game.SessionID, &e.Game.GameID, &e.EndID, &e.Reason); err != nil {
			return nil, err
		}
		out = append(out, gamestate.Diagnostic{Game: e.Game, Err: &e})
	}
	return out, rows.Err()
}

// LoadResult rebuilds the full pipeline result of a stored run.
func (db *DB) LoadResult(run Run) (*features.Result, error) {
	ends, err := db.GetEndFeatures(run.ID)
	if err != nil {
		return nil, fmt.Errorf("load end features: %w", err)
	}
	shots, err := db.GetShotFeatures(run.ID)
	if err != nil {
		return nil, fmt.Errorf("load shot features: %w", err)
	}
	states, err := db.GetPowerPlayStates(run.ID)
	if err != nil {
		return nil, fmt.Errorf("load power play states: %w", err)
	}
	diags, err := db.GetDiagnostics(run.ID)
	if err != nil {
		return nil, fmt.Errorf("load diagnostics: %w", err)
	}
	return &features.Result{
		Games:           run.Games,
		EndFeatures:     ends,
		ShotFeatures:    shots,
		PowerPlayStates: states,
		Diagnostics:     diags,
	}, nil
}

func fillSnapshot(s *geometry.Snapshot, deep int) {
	s.HousePresent = s.HouseCount > 0
	s.GuardPresent = s.GuardCount > 0
	s.DeepGuardPresent = deep != 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
