package gamestate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/model"
)

var testGame = model.GameKey{CompetitionID: 1, SessionID: 2, GameID: 3}

func end(game model.GameKey, endID, team, result, pp int) model.End {
	return model.End{
		EndKey:    model.EndKey{GameKey: game, EndID: endID},
		TeamID:    team,
		Result:    result,
		PowerPlay: pp,
	}
}

func newTestReconstructor(t *testing.T) *Reconstructor {
	t.Helper()
	r, err := NewReconstructor(config.New())
	if err != nil {
		t.Fatalf("NewReconstructor: %v", err)
	}
	return r
}

func TestReconstruct_TwoEnds(t *testing.T) {
	r := newTestReconstructor(t)
	// Rows deliberately out of order.
	g, err := r.Reconstruct([]model.End{
		end(testGame, 2, 20, 1, 0),
		end(testGame, 1, 10, 2, 0),
		end(testGame, 2, 10, 0, 1),
		end(testGame, 1, 20, 0, 0),
	})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	a, ok := g.Context(10, 2)
	if !ok {
		t.Fatal("missing context for team 10 end 2")
	}
	if a.MyScore != 2 || a.OppScore != 0 || a.Diff != 2 {
		t.Errorf("context(A,2) = {%d,%d,%d}, want {2,0,2}", a.MyScore, a.OppScore, a.Diff)
	}
	if a.PowerPlay != 1 || a.Signed != -1 || a.OppTeamID != 20 {
		t.Errorf("context(A,2) = %+v", a)
	}

	b, _ := g.Context(20, 2)
	if b.MyScore != 0 || b.OppScore != 2 || b.Diff != -2 {
		t.Errorf("context(B,2) = {%d,%d,%d}, want {0,2,-2}", b.MyScore, b.OppScore, b.Diff)
	}

	if my, opp := g.Final(10); my != 2 || opp != 1 {
		t.Errorf("Final(A) = %d-%d, want 2-1", my, opp)
	}
	if !g.Won(10) || g.Won(20) {
		t.Errorf("Won = %v/%v, want true/false", g.Won(10), g.Won(20))
	}
}

func TestReconstruct_FirstEndAndSymmetry(t *testing.T) {
	r := newTestReconstructor(t)
	var rows []model.End
	results := [][2]int{{0, 2}, {1, 0}, {0, 0}, {3, 0}, {0, 1}, {0, 2}, {1, 0}, {0, 0}}
	for i, res := range results {
		rows = append(rows, end(testGame, i+1, 7, res[0], 0), end(testGame, i+1, 9, res[1], 0))
	}
	g, err := r.Reconstruct(rows)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	for _, team := range g.Teams {
		c, _ := g.Context(team, 1)
		if c.Diff != 0 || c.MyScore != 0 || c.OppScore != 0 {
			t.Errorf("first end context for %d = %+v, want zeros", team, c)
		}
	}
	for _, e := range g.Ends {
		a, _ := g.Context(7, e)
		b, _ := g.Context(9, e)
		if a.Diff != -b.Diff {
			t.Errorf("end %d: diff %d vs %d not symmetric", e, a.Diff, b.Diff)
		}
	}
	if len(g.States()) != 2*len(results) {
		t.Errorf("States() = %d, want %d", len(g.States()), 2*len(results))
	}
	// 5-5 final: a tie is not a win.
	if g.Won(7) || g.Won(9) {
		t.Error("tied game reported as a win")
	}
}

func TestReconstruct_Timing(t *testing.T) {
	r := newTestReconstructor(t)
	want := map[int]string{1: "Early (1-2)", 2: "Early (1-2)", 3: "Middle (3-6)", 6: "Middle (3-6)", 7: "Late (7+)", 10: "Late (7+)"}
	for e, label := range want {
		if got := r.Timing(e); got != label {
			t.Errorf("Timing(%d) = %q, want %q", e, got, label)
		}
	}

	cfg := config.New()
	cfg.Timing.Preset = config.TimingQuarters
	q, err := NewReconstructor(cfg)
	if err != nil {
		t.Fatalf("NewReconstructor: %v", err)
	}
	if got := q.Timing(8); got != "Final (7+)" {
		t.Errorf("quarters Timing(8) = %q", got)
	}
	if got := q.Timing(5); got != "Late (5-6)" {
		t.Errorf("quarters Timing(5) = %q", got)
	}
}

func TestReconstruct_Malformed(t *testing.T) {
	r := newTestReconstructor(t)
	other := model.GameKey{CompetitionID: 1, SessionID: 2, GameID: 4}
	tests := []struct {
		name  string
		rows  []model.End
		endID int
	}{
		{"single row end", []model.End{end(testGame, 1, 10, 1, 0), end(testGame, 1, 20, 0, 0), end(testGame, 2, 10, 1, 0)}, 2},
		{"three rows", []model.End{end(testGame, 1, 10, 1, 0), end(testGame, 1, 20, 0, 0), end(testGame, 1, 20, 0, 0)}, 1},
		{"both scored", []model.End{end(testGame, 1, 10, 1, 0), end(testGame, 1, 20, 2, 0)}, 1},
		{"duplicate team", []model.End{end(testGame, 1, 10, 1, 0), end(testGame, 1, 10, 0, 0), end(testGame, 2, 20, 0, 0), end(testGame, 2, 20, 0, 0)}, 1},
		{"three teams", []model.End{end(testGame, 1, 10, 1, 0), end(testGame, 1, 20, 0, 0), end(testGame, 2, 30, 1, 0), end(testGame, 2, 10, 0, 0)}, 0},
		{"negative result", []model.End{end(testGame, 1, 10, -1, 0), end(testGame, 1, 20, 0, 0)}, 1},
		{"mixed games", []model.End{end(testGame, 1, 10, 1, 0), end(other, 1, 20, 0, 0)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := r.Reconstruct(tc.rows)
			if g != nil {
				t.Fatal("malformed game returned a result")
			}
			if !errors.Is(err, ErrMalformedGame) {
				t.Fatalf("err = %v, want ErrMalformedGame", err)
			}
			var mg *MalformedGameError
			if !errors.As(err, &mg) {
				t.Fatalf("err = %T, want *MalformedGameError", err)
			}
			if mg.EndID != tc.endID {
				t.Errorf("EndID = %d, want %d (%s)", mg.EndID, tc.endID, mg.Reason)
			}
		})
	}
}

func TestReconstructAll(t *testing.T) {
	r := newTestReconstructor(t)
	g1 := model.GameKey{CompetitionID: 1, SessionID: 1, GameID: 2}
	g2 := model.GameKey{CompetitionID: 1, SessionID: 1, GameID: 1}
	bad := model.GameKey{CompetitionID: 1, SessionID: 1, GameID: 3}
	rows := []model.End{
		end(g1, 1, 1, 1, 0), end(g1, 1, 2, 0, 0),
		end(bad, 1, 1, 1, 0), end(bad, 1, 2, 1, 0),
		end(g2, 1, 3, 0, 0), end(g2, 1, 4, 2, 0),
	}

	games, diags, err := r.ReconstructAll(context.Background(), rows, 4)
	if err != nil {
		t.Fatalf("ReconstructAll: %v", err)
	}
	var keys []model.GameKey
	for _, g := range games {
		keys = append(keys, g.Key)
	}
	if diff := cmp.Diff([]model.GameKey{g2, g1}, keys); diff != "" {
		t.Errorf("game order mismatch (-want +got):\n%s", diff)
	}
	want := []Diagnostic{{Game: bad}}
	if diff := cmp.Diff(want, diags, cmpopts.IgnoreFields(Diagnostic{}, "Err")); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if diags[0].Reason() != "both teams scored (1 and 1)" {
		t.Errorf("Reason() = %q", diags[0].Reason())
	}
}

func TestReconstructAll_Cancelled(t *testing.T) {
	r := newTestReconstructor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := r.ReconstructAll(ctx, []model.End{end(testGame, 1, 1, 0, 0), end(testGame, 1, 2, 1, 0)}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
