package ingest

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-curling-metrics/internal/model"
)

const endsCSV = `CompetitionID,SessionID,GameID,EndID,TeamID,Result,PowerPlay
1,1,1,1,10,2,
1,1,1,1,20,0,NA
1,1,1,2,10,0,1.0
1,1,1,2,20,1,
`

func stonesHeader() string {
	cols := []string{"CompetitionID", "SessionID", "GameID", "EndID", "ShotID", "Task", "Points", "Handle"}
	for i := 1; i <= model.StoneSlots; i++ {
		cols = append(cols, fmt.Sprintf("stone_%d_x", i), fmt.Sprintf("stone_%d_y", i))
	}
	return strings.Join(cols, ",")
}

func stonesRow(shot, task int, points string, first model.Position) string {
	cells := []string{"1", "1", "1", "1", fmt.Sprint(shot), fmt.Sprint(task), points, "1"}
	cells = append(cells, fmt.Sprint(first.X), fmt.Sprint(first.Y))
	for i := 1; i < model.StoneSlots; i++ {
		cells = append(cells, "0", "0")
	}
	return strings.Join(cells, ",")
}

func TestReadEnds(t *testing.T) {
	ends, err := ReadEnds(strings.NewReader(endsCSV))
	require.NoError(t, err)
	require.Len(t, ends, 4)

	assert.Equal(t, model.End{
		EndKey:    model.EndKey{GameKey: model.GameKey{CompetitionID: 1, SessionID: 1, GameID: 1}, EndID: 2},
		TeamID:    10,
		Result:    0,
		PowerPlay: 1,
	}, ends[2])
	assert.Equal(t, 0, ends[0].PowerPlay, "blank power play means not invoked")
	assert.Equal(t, 0, ends[1].PowerPlay, "NA power play means not invoked")
}

func TestReadEndsRejectsBadKeys(t *testing.T) {
	_, err := ReadEnds(strings.NewReader("CompetitionID,SessionID,GameID,EndID,TeamID,Result\n1,1,x,1,10,0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "GameID")

	_, err = ReadEnds(strings.NewReader("CompetitionID,SessionID,GameID,EndID,TeamID,Result\n1,1,1,1.5,10,0\n"))
	assert.ErrorContains(t, err, "not an integer")
}

func TestReadEndsMissingColumn(t *testing.T) {
	_, err := ReadEnds(strings.NewReader("CompetitionID,SessionID,GameID,EndID,TeamID\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestReadShots(t *testing.T) {
	csv := strings.Join([]string{
		stonesHeader(),
		stonesRow(1, 2, "4", model.Position{X: 750, Y: 2000}),
		stonesRow(2, 0, "", model.Position{X: 4095, Y: 4095}),
	}, "\n")
	// Blank out one coordinate of shot 2's second stone.
	csv = strings.Replace(csv, "4095,4095,0,0", "4095,4095,,0", 1)

	shots, err := ReadShots(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, shots, 2)

	assert.Equal(t, 1, shots[0].ShotID)
	assert.Equal(t, 2, shots[0].Task)
	assert.Equal(t, 4, shots[0].Points)
	assert.Equal(t, "1", shots[0].Handle)
	assert.Equal(t, model.Position{X: 750, Y: 2000}, shots[0].Stones[0])

	assert.Equal(t, NotRecorded, shots[1].Points)
	assert.True(t, math.IsNaN(shots[1].Stones[1].X))
	assert.Equal(t, 0.0, shots[1].Stones[1].Y)
}

func TestReadTeams(t *testing.T) {
	teams, err := ReadTeams(strings.NewReader("\ufeffTeamID,NOC\n10,usa\n20,CAN\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.Team{{TeamID: 10, NOC: "USA"}, {TeamID: 20, NOC: "CAN"}}, teams)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	write(EndsFile, endsCSV)
	write(StonesFile, stonesHeader()+"\n"+stonesRow(1, 0, "3", model.Position{X: 750, Y: 800})+"\n")

	ds, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ds.Ends, 4)
	assert.Len(t, ds.Shots, 1)
	assert.Empty(t, ds.Teams, "Teams.csv is optional")
	assert.Len(t, ds.Hash, 64)
	firstHash := ds.Hash

	write(TeamsFile, "TeamID,NOC\n10,USA\n")
	ds, err = LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ds.Teams, 1)
	assert.NotEqual(t, firstHash, ds.Hash)
}

func TestLoadDirMissingEnds(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
		err  bool
	}{
		{"3", 3, true, false},
		{"3.0", 3, true, false},
		{"-1", -1, true, false},
		{"", 0, false, false},
		{"NaN", 0, false, false},
		{"2.5", 0, false, true},
		{"abc", 0, false, true},
	}
	for _, tc := range tests {
		v, ok, err := parseInt(tc.in)
		assert.Equal(t, tc.want, v, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.err, err != nil, tc.in)
	}
}
