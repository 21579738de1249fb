package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Overview summarises the whole store.
type Overview struct {
	Runs        int
	EarliestRun string
	LatestRun   string
	DataSets    int // distinct data hashes
	Ends        int // rows of the latest run
	Shots       int
	PowerPlays  int
	Malformed   int
}

// NOCCount is the number of end rows one NOC has in a run.
type NOCCount struct {
	NOC        string
	Ends       int
	PowerPlays int
}

// PowerPlayBenchmark is the scoring profile of one NOC's power play ends.
type PowerPlayBenchmark struct {
	NOC       string
	Ends      int
	AvgPoints float64
	P0        float64
	P1        float64
	P2Plus    float64
	P3Plus    float64
	Steals    float64

	// Average recorded points over the opening shots of those ends.
	OpeningExecution float64
	OpeningScored    int
}

// TaskCount is how often one NOC called a task in its power play ends.
type TaskCount struct {
	NOC   string
	Task  string
	Count int
}

// GetOverview returns store-wide counts plus the row counts of the latest run.
func (db *DB) GetOverview() (Overview, error) {
	var ov Overview
	var earliest, latest sql.NullString
	err := db.conn.QueryRow(`
		SELECT COUNT(1), MIN(created_at), MAX(created_at), COUNT(DISTINCT data_hash)
		FROM runs`).Scan(&ov.Runs, &earliest, &latest, &ov.DataSets)
	if err != nil {
		return ov, err
	}
	if ov.Runs == 0 {
		return ov, nil
	}
	ov.EarliestRun = displayTime(earliest.String)
	ov.LatestRun = displayTime(latest.String)

	err = db.conn.QueryRow(`
		SELECT ends, shots, powerplays, malformed
		FROM runs ORDER BY created_at DESC LIMIT 1`).Scan(&ov.Ends, &ov.Shots, &ov.PowerPlays, &ov.Malformed)
	return ov, err
}

// displayTime trims a stored timestamp down to the minute.
func displayTime(s string) string {
	if len(s) < 16 {
		return s
	}
	return strings.Replace(s[:16], "T", " ", 1)
}

// NOCCounts returns the NOCs of a run ordered by end rows, most first.
func (db *DB) NOCCounts(runID string, limit int) ([]NOCCount, error) {
	rows, err := db.conn.Query(`
		SELECT noc, COUNT(1), COALESCE(SUM(CASE WHEN power_play > 0 THEN 1 ELSE 0 END), 0)
		FROM end_features
		WHERE run_id = ?
		GROUP BY noc
		ORDER BY COUNT(1) DESC, noc ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NOCCount
	for rows.Next() {
		var c NOCCount
		if err := rows.Scan(&c.NOC, &c.Ends, &c.PowerPlays); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PowerPlayBenchmarks returns one scoring profile per NOC over the power play
// ends that NOC called. NOCs without any are left out.
func (db *DB) PowerPlayBenchmarks(runID string, nocs []string) ([]PowerPlayBenchmark, error) {
	if len(nocs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(nocs)+1)
	args = append(args, runID)
	for _, n := range nocs {
		args = append(args, n)
	}

	// Opening execution comes from the power play states; LEFT JOIN keeps
	// NOCs whose states recorded no opening points.
	query := fmt.Sprintf(`
		SELECT e.noc,
		  COUNT(1),
		  AVG(e.result),
		  AVG(CASE WHEN e.result = 0 THEN 1.0 ELSE 0 END),
		  AVG(CASE WHEN e.result = 1 THEN 1.0 ELSE 0 END),
		  AVG(CASE WHEN e.result >= 2 THEN 1.0 ELSE 0 END),
		  AVG(CASE WHEN e.result >= 3 THEN 1.0 ELSE 0 END),
		  AVG(CASE WHEN e.signed < 0 THEN 1.0 ELSE 0 END),
		  COALESCE(SUM(s.opening_points), 0),
		  COALESCE(SUM(s.opening_scored), 0)
		FROM end_features e
		LEFT JOIN powerplay_states s
		  ON s.run_id = e.run_id
		 AND s.competition_id = e.competition_id
		 AND s.session_id = e.session_id
		 AND s.game_id = e.game_id
		 AND s.end_id = e.end_id
		 AND s.team_id = e.team_id
		WHERE e.run_id = ?
		  AND e.noc IN (%s)
		  AND e.power_play > 0
		GROUP BY e.noc
		ORDER BY e.noc`,
		placeholders(len(nocs)))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PowerPlayBenchmark
	for rows.Next() {
		var b PowerPlayBenchmark
		var openingPoints int
		if err := rows.Scan(&b.NOC, &b.Ends, &b.AvgPoints, &b.P0, &b.P1, &b.P2Plus, &b.P3Plus, &b.Steals,
			&openingPoints, &b.OpeningScored); err != nil {
			return nil, err
		}
		if b.OpeningScored > 0 {
			b.OpeningExecution = float64(openingPoints) / float64(b.OpeningScored)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PowerPlayTaskMix counts the tasks thrown in power play ends, keyed by the
// caller's NOC.
func (db *DB) PowerPlayTaskMix(runID string, nocs []string) ([]TaskCount, error) {
	if len(nocs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(nocs)+1)
	args = append(args, runID)
	for _, n := range nocs {
		args = append(args, n)
	}

	query := fmt.Sprintf(`
		SELECT e.noc, s.task_name, COUNT(1)
		FROM shot_features s
		JOIN end_features e
		  ON e.run_id = s.run_id
		 AND e.competition_id = s.competition_id
		 AND e.session_id = s.session_id
		 AND e.game_id = s.game_id
		 AND e.end_id = s.end_id
		 AND e.team_id = s.power_play_team
		WHERE s.run_id = ?
		  AND e.noc IN (%s)
		GROUP BY e.noc, s.task_name
		ORDER BY e.noc, COUNT(1) DESC, s.task_name`,
		placeholders(len(nocs)))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskCount
	for rows.Next() {
		var t TaskCount
		if err := rows.Scan(&t.NOC, &t.Task, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// QueryRaw runs an arbitrary query and returns column names and rows as text.
// NULL values come back as "NULL".
func (db *DB) QueryRaw(query string) ([]string, [][]string, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch t := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(t)
			default:
				row[i] = fmt.Sprint(t)
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

// placeholders returns a comma-separated string of n "?" for SQL IN clauses,
// e.g. placeholders(3) → "?,?,?".
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
