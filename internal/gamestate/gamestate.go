// Package gamestate reconstructs the score situation at the start of every
// end of a game.
package gamestate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/indices"
	"github.com/pable/go-curling-metrics/internal/model"
)

// ErrMalformedGame marks a game whose end rows cannot be reconstructed.
var ErrMalformedGame = errors.New("malformed game")

// MalformedGameError describes why a game was rejected.
type MalformedGameError struct {
	Game   model.GameKey
	EndID  int // 0 when the problem is not tied to a single end
	Reason string
}

func (e *MalformedGameError) Error() string {
	if e.EndID > 0 {
		return fmt.Sprintf("malformed game %s end %d: %s", e.Game, e.EndID, e.Reason)
	}
	return fmt.Sprintf("malformed game %s: %s", e.Game, e.Reason)
}

func (e *MalformedGameError) Unwrap() error { return ErrMalformedGame }

// ContextState is one team's view of the game at the start of an end.
// Scores only include strictly earlier ends.
type ContextState struct {
	model.EndKey
	TeamID       int
	OppTeamID    int
	MyScore      int
	OppScore     int
	Diff         int
	Timing       string
	Result       int
	OppResult    int
	Signed       int
	PowerPlay    int
	OppPowerPlay int
}

// Game is a reconstructed game with a context per end and team.
type Game struct {
	Key   model.GameKey
	Teams [2]int
	Ends  []int // end numbers in increasing order

	contexts map[ctxKey]ContextState
	final    map[int]int
}

type ctxKey struct {
	team int
	end  int
}

// Context returns the state for teamID at the start of endID.
func (g *Game) Context(teamID, endID int) (ContextState, bool) {
	c, ok := g.contexts[ctxKey{teamID, endID}]
	return c, ok
}

// States returns every context in end order, the lower TeamID first.
func (g *Game) States() []ContextState {
	out := make([]ContextState, 0, len(g.contexts))
	for _, e := range g.Ends {
		for _, t := range g.Teams {
			out = append(out, g.contexts[ctxKey{t, e}])
		}
	}
	return out
}

// Final returns the final score from teamID's point of view.
func (g *Game) Final(teamID int) (my, opp int) {
	for t, score := range g.final {
		if t == teamID {
			my = score
		} else {
			opp = score
		}
	}
	return my, opp
}

// Won reports whether teamID finished with strictly more points.
func (g *Game) Won(teamID int) bool {
	my, opp := g.Final(teamID)
	return my > opp
}

// Opponent returns the other team of the game.
func (g *Game) Opponent(teamID int) int {
	if g.Teams[0] == teamID {
		return g.Teams[1]
	}
	return g.Teams[0]
}

// Reconstructor builds games from end rows.
type Reconstructor struct {
	timing *indices.Scale
}

// NewReconstructor builds a Reconstructor with the configured timing scheme.
func NewReconstructor(cfg *config.Config) (*Reconstructor, error) {
	buckets, err := cfg.TimingBuckets()
	if err != nil {
		return nil, err
	}
	timing, err := indices.NewScale(buckets)
	if err != nil {
		return nil, fmt.Errorf("timing scale: %w", err)
	}
	return &Reconstructor{timing: timing}, nil
}

// Timing returns the timing label for an end number.
func (r *Reconstructor) Timing(endID int) string { return r.timing.LabelInt(endID) }

// TimingLevels lists timing labels in order.
func (r *Reconstructor) TimingLevels() []string { return r.timing.Labels() }

// Reconstruct validates the rows of one game and computes every context in a
// single forward pass over the ends. Input order does not matter.
func (r *Reconstructor) Reconstruct(ends []model.End) (*Game, error) {
	if len(ends) == 0 {
		return nil, &MalformedGameError{Reason: "no end rows"}
	}
	key := ends[0].GameKey
	malformed := func(endID int, format string, args ...any) error {
		return &MalformedGameError{Game: key, EndID: endID, Reason: fmt.Sprintf(format, args...)}
	}

	byEnd := make(map[int][]model.End)
	teams := make(map[int]bool)
	for _, e := range ends {
		if e.GameKey != key {
			return nil, malformed(0, "rows from game %s mixed in", e.GameKey)
		}
		if e.Result < 0 {
			return nil, malformed(e.EndID, "team %d has negative result %d", e.TeamID, e.Result)
		}
		byEnd[e.EndID] = append(byEnd[e.EndID], e)
		teams[e.TeamID] = true
	}
	if len(teams) != 2 {
		return nil, malformed(0, "expected 2 teams, found %d", len(teams))
	}

	g := &Game{
		Key:      key,
		contexts: make(map[ctxKey]ContextState, len(ends)),
		final:    make(map[int]int, 2),
	}
	i := 0
	for t := range teams {
		g.Teams[i] = t
		g.final[t] = 0
		i++
	}
	sort.Ints(g.Teams[:])

	for endID := range byEnd {
		g.Ends = append(g.Ends, endID)
	}
	sort.Ints(g.Ends)

	for _, endID := range g.Ends {
		rows := byEnd[endID]
		if len(rows) != 2 {
			return nil, malformed(endID, "expected 2 rows, found %d", len(rows))
		}
		a, b := rows[0], rows[1]
		if a.TeamID == b.TeamID {
			return nil, malformed(endID, "team %d appears twice", a.TeamID)
		}
		if a.Result > 0 && b.Result > 0 {
			return nil, malformed(endID, "both teams scored (%d and %d)", a.Result, b.Result)
		}
		timing := r.Timing(endID)
		for _, pair := range [2][2]model.End{{a, b}, {b, a}} {
			me, opp := pair[0], pair[1]
			my, their := g.final[me.TeamID], g.final[opp.TeamID]
			g.contexts[ctxKey{me.TeamID, endID}] = ContextState{
				EndKey:       me.EndKey,
				TeamID:       me.TeamID,
				OppTeamID:    opp.TeamID,
				MyScore:      my,
				OppScore:     their,
				Diff:         my - their,
				Timing:       timing,
				Result:       me.Result,
				OppResult:    opp.Result,
				Signed:       me.Result - opp.Result,
				PowerPlay:    me.PowerPlay,
				OppPowerPlay: opp.PowerPlay,
			}
		}
		g.final[a.TeamID] += a.Result
		g.final[b.TeamID] += b.Result
	}
	return g, nil
}
