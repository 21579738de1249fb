package features

import (
	"strconv"
	"strings"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/geometry"
	"github.com/pable/go-curling-metrics/internal/model"
)

// Record keys.
const (
	KeyGroup     = "group"
	KeyNOC       = "noc"
	KeyTiming    = "timing"
	KeyContext   = "context"
	KeyEnd       = "end"
	KeyPowerPlay = "powerplay"
	KeyTraffic   = "traffic"
	KeyCorridor  = "corridor"
	KeyHouse     = "house"
	KeyCSI       = "csi"
	KeyResponse  = "response"
	KeyTask      = "task"
	KeyScript    = "script"
	KeySide      = "side"
	KeyHandle    = "handle"
	KeyLead      = "lead"
	KeyGuard     = "guard"
)

// Power play levels.
const (
	LevelPowerPlay = "Power Play"
	LevelStandard  = "Standard"
)

// Guard levels, from the layout a shot was thrown into.
const (
	LevelGuard   = "Guard"
	LevelNoGuard = "No Guard"
)

func endKeys(f EndFeature) map[string]string {
	pp := LevelStandard
	if f.PowerPlayCalled {
		pp = LevelPowerPlay
	}
	return map[string]string{
		KeyGroup:     f.Group,
		KeyNOC:       f.NOC,
		KeyTiming:    f.Timing,
		KeyContext:   f.ContextBucket,
		KeyEnd:       strconv.Itoa(f.EndID),
		KeyPowerPlay: pp,
	}
}

// EndRecords has one record per end row; the outcome is points scored.
func EndRecords(ends []EndFeature) []aggregator.Record {
	out := make([]aggregator.Record, 0, len(ends))
	for _, f := range ends {
		out = append(out, aggregator.Record{Outcome: float64(f.Result), Keys: endKeys(f)})
	}
	return out
}

// PowerPlayRecords keeps the ends where the team called the power play.
func PowerPlayRecords(ends []EndFeature) []aggregator.Record {
	var out []aggregator.Record
	for _, f := range ends {
		if f.PowerPlayCalled {
			out = append(out, aggregator.Record{Outcome: float64(f.Result), Keys: endKeys(f)})
		}
	}
	return out
}

// SignedPowerPlayRecords is PowerPlayRecords with the net end score as outcome,
// so a steal against the caller counts negative.
func SignedPowerPlayRecords(ends []EndFeature) []aggregator.Record {
	var out []aggregator.Record
	for _, f := range ends {
		if f.PowerPlayCalled {
			out = append(out, aggregator.Record{Outcome: float64(f.Signed), Keys: endKeys(f)})
		}
	}
	return out
}

// StandardEndRecords keeps the ends where the team did not call the power play.
func StandardEndRecords(ends []EndFeature) []aggregator.Record {
	var out []aggregator.Record
	for _, f := range ends {
		if !f.PowerPlayCalled {
			out = append(out, aggregator.Record{Outcome: float64(f.Result), Keys: endKeys(f)})
		}
	}
	return out
}

// FirstStrikeRecords has one record per team per game keyed by the score
// margin after the first end; the outcome is 1 for a win.
func FirstStrikeRecords(ends []EndFeature) []aggregator.Record {
	first := make(map[model.GameKey]int)
	for _, f := range ends {
		if cur, ok := first[f.GameKey]; !ok || f.EndID < cur {
			first[f.GameKey] = f.EndID
		}
	}
	var out []aggregator.Record
	for _, f := range ends {
		if f.EndID != first[f.GameKey] {
			continue
		}
		won := 0.0
		if f.Won {
			won = 1
		}
		out = append(out, aggregator.Record{
			Outcome: won,
			Keys: map[string]string{
				KeyLead:  strconv.Itoa(f.Signed),
				KeyGroup: f.Group,
				KeyNOC:   f.NOC,
			},
		})
	}
	return out
}

func stateKeys(s PowerPlayState) map[string]string {
	keys := endKeys(s.EndFeature)
	keys[KeyTraffic] = s.Indices.Traffic
	keys[KeyCorridor] = s.Indices.Corridor
	keys[KeyHouse] = s.Indices.House
	keys[KeyCSI] = strconv.FormatFloat(s.Indices.CSI, 'g', -1, 64)
	keys[KeyResponse] = s.Response
	keys[KeyScript] = s.Script
	keys[KeySide] = s.Side
	keys[KeyHandle] = s.Handle
	return keys
}

// StateRecords has one record per power play end that reached the state
// shot; the outcome is the caller's points.
func StateRecords(states []PowerPlayState) []aggregator.Record {
	var out []aggregator.Record
	for _, s := range states {
		if s.HasState {
			out = append(out, aggregator.Record{Outcome: float64(s.Result), Keys: stateKeys(s)})
		}
	}
	return out
}

// ScriptRecords has one record per power play end keyed by its opening
// script; the outcome is the caller's points.
func ScriptRecords(states []PowerPlayState) []aggregator.Record {
	out := make([]aggregator.Record, 0, len(states))
	for _, s := range states {
		out = append(out, aggregator.Record{Outcome: float64(s.Result), Keys: stateKeys(s)})
	}
	return out
}

// ScriptFailureRecords is ScriptRecords with missed opening shots as outcome.
func ScriptFailureRecords(states []PowerPlayState) []aggregator.Record {
	out := make([]aggregator.Record, 0, len(states))
	for _, s := range states {
		out = append(out, aggregator.Record{Outcome: float64(s.OpeningFailures), Keys: stateKeys(s)})
	}
	return out
}

// SideRecords keys power play ends by the side of the pre-placed stones and
// the first shot's handle; the outcome is the caller's points.
func SideRecords(states []PowerPlayState) []aggregator.Record {
	out := make([]aggregator.Record, 0, len(states))
	for _, s := range states {
		keys := stateKeys(s)
		if keys[KeySide] == "" {
			keys[KeySide] = geometry.SideUnknown
		}
		out = append(out, aggregator.Record{Outcome: float64(s.Result), Keys: keys})
	}
	return out
}

func shotKeys(s ShotFeature) map[string]string {
	pp := LevelStandard
	if s.PowerPlayTeam != 0 {
		pp = LevelPowerPlay
	}
	guard := LevelNoGuard
	if s.Snapshot.GuardPresent {
		guard = LevelGuard
	}
	return map[string]string{
		KeyGuard:     guard,
		KeyTask:      s.TaskName,
		KeyTraffic:   s.Indices.Traffic,
		KeyCorridor:  s.Indices.Corridor,
		KeyHouse:     s.Indices.House,
		KeyCSI:       strconv.FormatFloat(s.Indices.CSI, 'g', -1, 64),
		KeySide:      s.Side,
		KeyHandle:    s.Handle,
		KeyPowerPlay: pp,
		KeyEnd:       strconv.Itoa(s.EndID),
	}
}

// ExecutionRecords has one record per shot with recorded points; the outcome
// is the execution score.
func ExecutionRecords(shots []ShotFeature) []aggregator.Record {
	var out []aggregator.Record
	for _, s := range shots {
		if s.Points < 0 {
			continue
		}
		out = append(out, aggregator.Record{Outcome: float64(s.Points), Keys: shotKeys(s)})
	}
	return out
}

// TrafficRecords has one record per shot of a power play end; the outcome
// is the points the caller scored in that end.
func TrafficRecords(shots []ShotFeature, ends []EndFeature) []aggregator.Record {
	result := callerEnds(ends)
	var out []aggregator.Record
	for _, s := range shots {
		f, ok := result[s.EndKey]
		if !ok {
			continue
		}
		keys := shotKeys(s)
		keys[KeyGroup] = f.Group
		keys[KeyNOC] = f.NOC
		out = append(out, aggregator.Record{Outcome: float64(f.Result), Keys: keys})
	}
	return out
}

// PowerPlayShotRecords has one record per shot thrown in a power play end,
// keyed by the caller's NOC and group; the outcome is the shot's points, or
// zero when none were recorded. With openingOnly only the opening shots are
// kept and shots without recorded points are skipped.
func PowerPlayShotRecords(shots []ShotFeature, ends []EndFeature, openingOnly bool) []aggregator.Record {
	callers := callerEnds(ends)
	var out []aggregator.Record
	for _, s := range shots {
		f, ok := callers[s.EndKey]
		if !ok {
			continue
		}
		if openingOnly && (s.ShotRank > OpeningShots || s.Points < 0) {
			continue
		}
		keys := shotKeys(s)
		keys[KeyGroup] = f.Group
		keys[KeyNOC] = f.NOC
		out = append(out, aggregator.Record{Outcome: float64(max(s.Points, 0)), Keys: keys})
	}
	return out
}

// callerEnds indexes the power play caller's row per end.
func callerEnds(ends []EndFeature) map[model.EndKey]EndFeature {
	out := make(map[model.EndKey]EndFeature)
	for _, f := range ends {
		if f.PowerPlayCalled {
			out[f.EndKey] = f
		}
	}
	return out
}

// Dimension returns the grouping dimension for a record key, with levels
// fixed where the configuration defines them so cross tables stay complete.
func (p *Pipeline) Dimension(key string) aggregator.Dimension {
	d := aggregator.Dimension{Key: key}
	switch key {
	case KeyTiming:
		d.Levels = p.TimingLevels()
	case KeyContext:
		d.Levels = p.ContextLevels()
	case KeyTraffic:
		d.Levels = p.builder.TrafficLevels()
	case KeyCorridor:
		d.Levels = p.builder.CorridorLevels()
	case KeyHouse:
		d.Levels = p.builder.HouseLevels()
	case KeyPowerPlay:
		d.Levels = []string{LevelPowerPlay, LevelStandard}
	case KeyGuard:
		d.Levels = []string{LevelGuard, LevelNoGuard}
	case KeySide:
		d.Levels = geometry.Sides()
	case KeyTask:
		d.Levels = append(model.TaskNames(), aggregator.OtherLevel)
	case KeyGroup:
		for _, t := range p.cfg.Groups.Targets {
			d.Levels = append(d.Levels, strings.ToUpper(t))
		}
		d.Levels = append(d.Levels, p.cfg.Groups.Fallback)
		d.Fallback = p.cfg.Groups.Fallback
	}
	return d
}

// Indicator replaces each outcome with 1 when hit reports true and 0 otherwise,
// turning a points table into a rate table.
func Indicator(records []aggregator.Record, hit func(float64) bool) []aggregator.Record {
	out := make([]aggregator.Record, len(records))
	for i, r := range records {
		out[i] = aggregator.Record{Keys: r.Keys}
		if hit(r.Outcome) {
			out[i].Outcome = 1
		}
	}
	return out
}

// Where keeps the records whose key equals one of values.
func Where(records []aggregator.Record, key string, values ...string) []aggregator.Record {
	keep := make(map[string]bool, len(values))
	for _, v := range values {
		keep[v] = true
	}
	var out []aggregator.Record
	for _, r := range records {
		if keep[r.Keys[key]] {
			out = append(out, r)
		}
	}
	return out
}
