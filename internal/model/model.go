package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StoneSlots is the number of stone positions recorded with every shot.
const StoneSlots = 12

// GameKey identifies one game within a competition session.
type GameKey struct {
	CompetitionID int
	SessionID     int
	GameID        int
}

func (k GameKey) String() string {
	return fmt.Sprintf("%d_%d_%d", k.CompetitionID, k.SessionID, k.GameID)
}

// ParseGameKey parses the "competition_session_game" form produced by String.
func ParseGameKey(s string) (GameKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 3 {
		return GameKey{}, fmt.Errorf("game key %q: want competition_session_game", s)
	}
	var ids [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return GameKey{}, fmt.Errorf("game key %q: %w", s, err)
		}
		ids[i] = n
	}
	return GameKey{CompetitionID: ids[0], SessionID: ids[1], GameID: ids[2]}, nil
}

// Less orders game keys by competition, session, then game.
func (k GameKey) Less(o GameKey) bool {
	if k.CompetitionID != o.CompetitionID {
		return k.CompetitionID < o.CompetitionID
	}
	if k.SessionID != o.SessionID {
		return k.SessionID < o.SessionID
	}
	return k.GameID < o.GameID
}

// EndKey identifies one end of one game.
type EndKey struct {
	GameKey
	EndID int
}

func (k EndKey) String() string {
	return fmt.Sprintf("%s_%d", k.GameKey, k.EndID)
}

// Less orders end keys by game, then end number.
func (k EndKey) Less(o EndKey) bool {
	if k.GameKey != o.GameKey {
		return k.GameKey.Less(o.GameKey)
	}
	return k.EndID < o.EndID
}

// ---- Raw records produced by ingestion ----

// End is one team's outcome for one end. Result is the points scored by
// TeamID in that end; PowerPlay is 0 when the option was not invoked.
type End struct {
	EndKey
	TeamID    int
	Result    int
	PowerPlay int
}

// PowerPlayCalled reports whether the team invoked the power play this end.
func (e End) PowerPlayCalled() bool { return e.PowerPlay > 0 }

// Position is a stone location in sheet coordinates. A missing coordinate is NaN.
type Position struct{ X, Y float64 }

// Missing reports whether either coordinate was not recorded.
func (p Position) Missing() bool { return math.IsNaN(p.X) || math.IsNaN(p.Y) }

// Shot is a single thrown stone with the full sheet snapshot after it came to rest.
type Shot struct {
	EndKey
	ShotID int
	Task   int
	Points int // execution quality, 0-4
	Handle string
	Stones [StoneSlots]Position
}

// Team maps a TeamID to its national federation code.
type Team struct {
	TeamID int
	NOC    string
}

// Dataset is everything a build run consumes.
type Dataset struct {
	Dir   string
	Hash  string // sha256 over the source files, used to spot re-ingested data
	Ends  []End
	Shots []Shot
	Teams []Team
}

// ---- Shot task codes ----

const (
	TaskDraw             = 0
	TaskFront            = 1
	TaskGuard            = 2
	TaskRaise            = 3
	TaskWick             = 4
	TaskFreeze           = 5
	TaskTakeOut          = 6
	TaskHitAndRoll       = 7
	TaskClearing         = 8
	TaskDoubleTakeOut    = 9
	TaskPromotionTakeOut = 10
	TaskThrough          = 11
)

var taskNames = [...]string{
	TaskDraw:             "Draw",
	TaskFront:            "Front",
	TaskGuard:            "Guard",
	TaskRaise:            "Raise",
	TaskWick:             "Wick",
	TaskFreeze:           "Freeze",
	TaskTakeOut:          "Take-out",
	TaskHitAndRoll:       "Hit and Roll",
	TaskClearing:         "Clearing",
	TaskDoubleTakeOut:    "Double Take-out",
	TaskPromotionTakeOut: "Promotion Take-out",
	TaskThrough:          "Through",
}

// TaskName returns the display name for a task code, or "Other".
func TaskName(code int) string {
	if code < 0 || code >= len(taskNames) {
		return "Other"
	}
	return taskNames[code]
}

// TaskNames returns every known task name in code order.
func TaskNames() []string {
	out := make([]string, len(taskNames))
	copy(out, taskNames[:])
	return out
}
