package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/geometry"
	"github.com/pable/go-curling-metrics/internal/logger"
	"github.com/pable/go-curling-metrics/internal/metrics"
	"github.com/pable/go-curling-metrics/internal/model"
)

var (
	gameA = model.GameKey{CompetitionID: 1, SessionID: 1, GameID: 1}
	gameB = model.GameKey{CompetitionID: 1, SessionID: 1, GameID: 2}
)

func endRow(g model.GameKey, endID, team, result, pp int) model.End {
	return model.End{EndKey: model.EndKey{GameKey: g, EndID: endID}, TeamID: team, Result: result, PowerPlay: pp}
}

// shot builds a shot whose first stone sits at first and the rest are not thrown.
func shot(g model.GameKey, endID, shotID, task, points int, first model.Position) model.Shot {
	s := model.Shot{
		EndKey: model.EndKey{GameKey: g, EndID: endID},
		ShotID: shotID,
		Task:   task,
		Points: points,
		Handle: "0",
	}
	s.Stones[0] = first
	return s
}

func testDataset() *model.Dataset {
	return &model.Dataset{
		Teams: []model.Team{{TeamID: 10, NOC: "usa"}, {TeamID: 20, NOC: "SWE"}},
		Ends: []model.End{
			endRow(gameA, 1, 10, 2, 0), endRow(gameA, 1, 20, 0, 0),
			endRow(gameA, 2, 10, 0, 0), endRow(gameA, 2, 20, 1, 1),
			endRow(gameA, 3, 10, 0, 0), endRow(gameA, 3, 20, 0, 0),
			// malformed: both teams scored
			endRow(gameB, 1, 10, 1, 0), endRow(gameB, 1, 30, 1, 0),
		},
		Shots: []model.Shot{
			// out of order on purpose
			shot(gameA, 2, 14, model.TaskTakeOut, 3, model.Position{X: 750, Y: 800}),
			shot(gameA, 2, 11, model.TaskDraw, 0, model.Position{X: 600, Y: 2000}),
			shot(gameA, 2, 12, model.TaskGuard, 4, model.Position{X: 600, Y: 2000}),
			shot(gameA, 2, 13, model.TaskFreeze, 0, model.Position{X: 750, Y: 800}),
			shot(gameA, 1, 1, model.TaskDraw, 2, model.Position{X: 0, Y: 0}),
			shot(gameB, 1, 1, model.TaskWick, 1, model.Position{X: 760, Y: 2400}),
		},
	}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	cfg := config.New()
	cfg.Workers = 3
	p, err := NewPipeline(cfg, append([]Option{WithLogger(logger.Discard())}, opts...)...)
	require.NoError(t, err)
	return p
}

func TestPipelineRun(t *testing.T) {
	p := newTestPipeline(t, WithMetrics(metrics.NewManager()))
	res, err := p.Run(context.Background(), testDataset())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Games)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, gameB, res.Diagnostics[0].Game)

	// Three ends, two teams, malformed game left out.
	require.Len(t, res.EndFeatures, 6)
	usaEnd2 := res.EndFeatures[2]
	assert.Equal(t, 10, usaEnd2.TeamID)
	assert.Equal(t, 2, usaEnd2.EndID)
	assert.Equal(t, "USA", usaEnd2.NOC)
	assert.Equal(t, "USA", usaEnd2.Group)
	assert.Equal(t, "Leading", usaEnd2.ContextBucket)
	assert.True(t, usaEnd2.Won)

	sweEnd2 := res.EndFeatures[3]
	assert.Equal(t, "Field", sweEnd2.Group)
	assert.Equal(t, "Trailing Small", sweEnd2.ContextBucket)
	assert.True(t, sweEnd2.PowerPlayCalled)
	assert.False(t, sweEnd2.Won)

	// Shots of every game are classified, ordered by end then shot.
	require.Len(t, res.ShotFeatures, 6)
	assert.Equal(t, 1, res.ShotFeatures[0].EndID)
	ranks := []int{}
	for _, s := range res.ShotFeatures[1:5] {
		ranks = append(ranks, s.ShotRank)
		assert.Equal(t, 20, s.PowerPlayTeam)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ranks)
	assert.Equal(t, 1, res.ShotFeatures[5].ShotRank)
	assert.Equal(t, geometry.SideUnknown, res.ShotFeatures[0].Side)

	require.Len(t, res.PowerPlayStates, 1)
	st := res.PowerPlayStates[0]
	assert.Equal(t, 20, st.TeamID)
	assert.True(t, st.HasState)
	assert.Equal(t, 13, st.StateShotID)
	assert.Equal(t, 1, st.Snapshot.HouseCount)
	assert.Equal(t, "Take-out", st.Response)
	assert.Equal(t, "Draw -> Guard -> Freeze", st.Script)
	assert.Equal(t, 2, st.OpeningFailures)
	assert.Equal(t, 4, st.OpeningPoints)
	assert.Equal(t, 3, st.OpeningScored)
	assert.Equal(t, geometry.SideLeft, st.Side)
}

func TestPowerPlayStateWithoutResponse(t *testing.T) {
	p := newTestPipeline(t)
	ds := testDataset()
	ds.Shots = ds.Shots[1:] // drop the fourth shot of the power play end
	res, err := p.Run(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, res.PowerPlayStates, 1)
	assert.Equal(t, NoResponse, res.PowerPlayStates[0].Response)
	assert.True(t, res.PowerPlayStates[0].HasState)
}

func TestRunCancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, testDataset())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroupResolver(t *testing.T) {
	r := NewGroupResolver([]model.Team{{TeamID: 1, NOC: "can"}, {TeamID: 2, NOC: "NOR"}}, config.Groups{
		Targets:  []string{"USA", "can", "CAN"},
		Fallback: "Field",
	})
	assert.Equal(t, "CAN", r.NOC(1))
	assert.Equal(t, "CAN", r.Group(1))
	assert.Equal(t, "Field", r.Group(2))
	assert.Equal(t, aggregator.OtherLevel, r.NOC(99))
	assert.Equal(t, "Field", r.Group(99))
	assert.Equal(t, []string{"USA", "CAN", "Field"}, r.Levels())
	assert.Equal(t, []string{"USA", "CAN"}, r.Targets())
}

func TestRecordBuilders(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Run(context.Background(), testDataset())
	require.NoError(t, err)

	assert.Len(t, EndRecords(res.EndFeatures), 6)
	pp := PowerPlayRecords(res.EndFeatures)
	require.Len(t, pp, 1)
	assert.Equal(t, 1.0, pp[0].Outcome)
	assert.Equal(t, "Middle (3-6)", p.games.Timing(3))
	assert.Equal(t, "Early (1-2)", pp[0].Keys[KeyTiming])
	assert.Equal(t, "Field", pp[0].Keys[KeyGroup])

	signed := SignedPowerPlayRecords(res.EndFeatures)
	assert.Equal(t, 1.0, signed[0].Outcome)
	assert.Len(t, StandardEndRecords(res.EndFeatures), 5)

	fs := FirstStrikeRecords(res.EndFeatures)
	require.Len(t, fs, 2)
	assert.Equal(t, "2", fs[0].Keys[KeyLead])
	assert.Equal(t, 1.0, fs[0].Outcome)
	assert.Equal(t, "-2", fs[1].Keys[KeyLead])
	assert.Equal(t, 0.0, fs[1].Outcome)

	state := StateRecords(res.PowerPlayStates)
	require.Len(t, state, 1)
	assert.Equal(t, "Take-out", state[0].Keys[KeyResponse])
	assert.Equal(t, "Draw -> Guard -> Freeze", ScriptRecords(res.PowerPlayStates)[0].Keys[KeyScript])
	assert.Equal(t, 2.0, ScriptFailureRecords(res.PowerPlayStates)[0].Outcome)
	assert.Equal(t, geometry.SideLeft, SideRecords(res.PowerPlayStates)[0].Keys[KeySide])

	traffic := TrafficRecords(res.ShotFeatures, res.EndFeatures)
	assert.Len(t, traffic, 4)
	for _, r := range traffic {
		assert.Equal(t, 1.0, r.Outcome)
	}
	assert.Len(t, ExecutionRecords(res.ShotFeatures), 6)
	assert.Len(t, PowerPlayShotRecords(res.ShotFeatures, res.EndFeatures, true), 3)
	assert.Len(t, PowerPlayShotRecords(res.ShotFeatures, res.EndFeatures, false), 4)

	// Shot 11 is a draw thrown with a guard already in play.
	dugEnds := Where(Where(traffic, KeyTask, "Draw"), KeyGuard, LevelGuard)
	require.Len(t, dugEnds, 1)
	assert.Equal(t, 1.0, dugEnds[0].Outcome)
	dugShots := Where(Where(Where(ExecutionRecords(res.ShotFeatures), KeyPowerPlay, LevelPowerPlay), KeyTask, "Draw"), KeyGuard, LevelGuard)
	require.Len(t, dugShots, 1)
	assert.Equal(t, 0.0, dugShots[0].Outcome)
	assert.Len(t, Where(ExecutionRecords(res.ShotFeatures), KeyGuard, LevelNoGuard), 3)
}

func TestDimensionLevels(t *testing.T) {
	p := newTestPipeline(t)
	assert.Equal(t, []string{"USA", "GBR", "ITA", "CAN", "Field"}, p.Dimension(KeyGroup).Levels)
	assert.Equal(t, "Field", p.Dimension(KeyGroup).Fallback)
	assert.Equal(t, []string{"Clean", "Moderate", "Heavy"}, p.Dimension(KeyCorridor).Levels)
	assert.Equal(t, []string{LevelPowerPlay, LevelStandard}, p.Dimension(KeyPowerPlay).Levels)
	assert.Equal(t, []string{LevelGuard, LevelNoGuard}, p.Dimension(KeyGuard).Levels)
	assert.Empty(t, p.Dimension(KeyScript).Levels)
}

func TestIndicatorAndWhere(t *testing.T) {
	records := []aggregator.Record{
		{Outcome: -1, Keys: map[string]string{KeyTask: "Draw"}},
		{Outcome: 0, Keys: map[string]string{KeyTask: "Wick"}},
		{Outcome: 3, Keys: map[string]string{KeyTask: "Draw"}},
	}
	steals := Indicator(records, func(v float64) bool { return v < 0 })
	assert.Equal(t, []float64{1, 0, 0}, []float64{steals[0].Outcome, steals[1].Outcome, steals[2].Outcome})
	assert.Equal(t, -1.0, records[0].Outcome, "input must not be modified")

	draws := Where(records, KeyTask, "Draw")
	require.Len(t, draws, 2)
	assert.Equal(t, 3.0, draws[1].Outcome)
	assert.Empty(t, Where(records, KeyTask))
}
