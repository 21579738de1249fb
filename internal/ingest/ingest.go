// Package ingest loads the competition CSV exports into model records.
package ingest

import (
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pable/go-curling-metrics/internal/model"
)

// File names inside a data directory.
const (
	EndsFile   = "Ends.csv"
	StonesFile = "Stones.csv"
	TeamsFile  = "Teams.csv"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// NotRecorded is stored for Task and Points when the source cell is blank.
const NotRecorded = -1

var keyColumns = []string{"CompetitionID", "SessionID", "GameID", "EndID"}

// LoadDir reads Ends.csv, Stones.csv and the optional Teams.csv from dir.
func LoadDir(dir string) (*model.Dataset, error) {
	h := sha256.New()
	ds := &model.Dataset{Dir: dir}

	ends, err := readFile(filepath.Join(dir, EndsFile), h, parseEnds)
	if err != nil {
		return nil, err
	}
	ds.Ends = ends

	shots, err := readFile(filepath.Join(dir, StonesFile), h, parseShots)
	if err != nil {
		return nil, err
	}
	ds.Shots = shots

	teamsPath := filepath.Join(dir, TeamsFile)
	if _, err := os.Stat(teamsPath); err == nil {
		teams, err := readFile(teamsPath, h, parseTeams)
		if err != nil {
			return nil, err
		}
		ds.Teams = teams
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat teams: %w", err)
	}

	ds.Hash = fmt.Sprintf("%x", h.Sum(nil))
	return ds, nil
}

// readFile opens path, feeds its bytes into h as they are parsed, and hands
// the CSV reader to parse.
func readFile[T any](path string, h io.Writer, parse func(*table) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	t, err := newTable(io.TeeReader(f, h), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	out, err := parse(t)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadEnds parses an Ends CSV stream.
func ReadEnds(r io.Reader) ([]model.End, error) {
	t, err := newTable(r, EndsFile)
	if err != nil {
		return nil, err
	}
	return parseEnds(t)
}

// ReadShots parses a Stones CSV stream.
func ReadShots(r io.Reader) ([]model.Shot, error) {
	t, err := newTable(r, StonesFile)
	if err != nil {
		return nil, err
	}
	return parseShots(t)
}

// ReadTeams parses a Teams CSV stream.
func ReadTeams(r io.Reader) ([]model.Team, error) {
	t, err := newTable(r, TeamsFile)
	if err != nil {
		return nil, err
	}
	return parseTeams(t)
}

func parseEnds(t *table) ([]model.End, error) {
	if err := t.require(append(keyColumns, "TeamID", "Result")...); err != nil {
		return nil, err
	}
	var out []model.End
	for t.next() {
		key, err := t.endKey()
		if err != nil {
			return nil, err
		}
		team, err := t.integer("TeamID")
		if err != nil {
			return nil, err
		}
		result, err := t.integer("Result")
		if err != nil {
			return nil, err
		}
		pp, err := t.optionalInteger("PowerPlay", 0)
		if err != nil {
			return nil, err
		}
		out = append(out, model.End{EndKey: key, TeamID: team, Result: result, PowerPlay: pp})
	}
	return out, t.err
}

func parseShots(t *table) ([]model.Shot, error) {
	cols := append(keyColumns, "ShotID")
	for i := 1; i <= model.StoneSlots; i++ {
		cols = append(cols, stoneColumn(i, "x"), stoneColumn(i, "y"))
	}
	if err := t.require(cols...); err != nil {
		return nil, err
	}
	var out []model.Shot
	for t.next() {
		key, err := t.endKey()
		if err != nil {
			return nil, err
		}
		s := model.Shot{EndKey: key}
		if s.ShotID, err = t.integer("ShotID"); err != nil {
			return nil, err
		}
		if s.Task, err = t.optionalInteger("Task", NotRecorded); err != nil {
			return nil, err
		}
		if s.Points, err = t.optionalInteger("Points", NotRecorded); err != nil {
			return nil, err
		}
		s.Handle = t.str("Handle")
		for i := range s.Stones {
			x, err := t.coord(stoneColumn(i+1, "x"))
			if err != nil {
				return nil, err
			}
			y, err := t.coord(stoneColumn(i+1, "y"))
			if err != nil {
				return nil, err
			}
			s.Stones[i] = model.Position{X: x, Y: y}
		}
		out = append(out, s)
	}
	return out, t.err
}

func parseTeams(t *table) ([]model.Team, error) {
	if err := t.require("TeamID", "NOC"); err != nil {
		return nil, err
	}
	var out []model.Team
	for t.next() {
		id, err := t.integer("TeamID")
		if err != nil {
			return nil, err
		}
		out = append(out, model.Team{TeamID: id, NOC: strings.ToUpper(t.str("NOC"))})
	}
	return out, t.err
}

func stoneColumn(i int, axis string) string {
	return "stone_" + strconv.Itoa(i) + "_" + axis
}

// table is a header-indexed CSV cursor.
type table struct {
	name string
	r    *csv.Reader
	cols map[string]int
	row  []string
	line int
	err  error
}

func newTable(r io.Reader, name string) (*table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	t := &table{name: name, r: cr, cols: make(map[string]int, len(header)), line: 1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.cols[h] = i
	}
	return t, nil
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("%s: %w %q", t.name, ErrMissingColumn, c)
		}
	}
	return nil
}

func (t *table) next() bool {
	row, err := t.r.Read()
	if err == io.EOF {
		return false
	}
	t.line++
	if err != nil {
		t.err = fmt.Errorf("%s row %d: %w", t.name, t.line, err)
		return false
	}
	t.row = row
	return true
}

func (t *table) str(col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(t.row) {
		return ""
	}
	return strings.TrimSpace(t.row[i])
}

func (t *table) endKey() (model.EndKey, error) {
	var vals [4]int
	for i, c := range keyColumns {
		v, err := t.integer(c)
		if err != nil {
			return model.EndKey{}, err
		}
		vals[i] = v
	}
	return model.EndKey{
		GameKey: model.GameKey{CompetitionID: vals[0], SessionID: vals[1], GameID: vals[2]},
		EndID:   vals[3],
	}, nil
}

func (t *table) integer(col string) (int, error) {
	v, ok, err := parseInt(t.str(col))
	if err != nil || !ok {
		if err == nil {
			err = errors.New("empty value")
		}
		return 0, fmt.Errorf("%s row %d column %s: %w", t.name, t.line, col, err)
	}
	return v, nil
}

func (t *table) optionalInteger(col string, def int) (int, error) {
	v, ok, err := parseInt(t.str(col))
	if err != nil {
		return 0, fmt.Errorf("%s row %d column %s: %w", t.name, t.line, col, err)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// coord parses a coordinate; blank and NA cells become NaN.
func (t *table) coord(col string) (float64, error) {
	s := t.str(col)
	if isBlank(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d column %s: %w", t.name, t.line, col, err)
	}
	return v, nil
}

// parseInt accepts integers written as "3" or "3.0". ok is false for blank
// and NA cells.
func parseInt(s string) (int, bool, error) {
	if isBlank(s) {
		return 0, false, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), true, nil
}

func isBlank(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}
