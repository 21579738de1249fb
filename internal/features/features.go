// Package features joins geometry, indices and game context into the
// per-end, per-shot and per-power-play tables the analyses read from.
package features

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/gamestate"
	"github.com/pable/go-curling-metrics/internal/geometry"
	"github.com/pable/go-curling-metrics/internal/indices"
	"github.com/pable/go-curling-metrics/internal/logger"
	"github.com/pable/go-curling-metrics/internal/metrics"
	"github.com/pable/go-curling-metrics/internal/model"
)

// OpeningShots is how many shots make up an opening script.
const OpeningShots = 3

// NoResponse labels a power play end that has no shot after the state shot.
const NoResponse = "None"

// EndFeature is one team's row for one end of a well-formed game.
type EndFeature struct {
	gamestate.ContextState
	NOC             string
	Group           string
	ContextBucket   string
	Won             bool
	PowerPlayCalled bool
}

// ShotFeature is one classified shot.
type ShotFeature struct {
	model.EndKey
	ShotID   int
	ShotRank int // 1-based order by ShotID inside the end
	Task     int
	TaskName string
	Points   int
	Handle   string
	Snapshot geometry.Snapshot
	Indices  indices.Indices
	Side     string // side of the first stone slot

	// PowerPlayTeam is the team that called the power play this end, 0 if none.
	PowerPlayTeam int
}

// PowerPlayState describes one power play end from the caller's side.
type PowerPlayState struct {
	EndFeature

	HasState        bool // the end reached the state shot
	StateShotID     int
	Snapshot        geometry.Snapshot
	Indices         indices.Indices
	Response        string
	Script          string
	OpeningFailures int
	OpeningPoints   int // sum of recorded points over the opening shots
	OpeningScored   int // opening shots with recorded points
	Side            string
	Handle          string
}

// Result is the output of one pipeline run.
type Result struct {
	Games           int
	EndFeatures     []EndFeature
	ShotFeatures    []ShotFeature
	PowerPlayStates []PowerPlayState
	Diagnostics     []gamestate.Diagnostic
}

// Pipeline turns a dataset into feature tables.
type Pipeline struct {
	cfg         *config.Config
	classifier  *geometry.Classifier
	builder     *indices.Builder
	games       *gamestate.Reconstructor
	contextCuts *indices.Scale
	metrics     *metrics.Manager
	log         logger.Logger
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches a metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger replaces the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPipeline builds every stage from cfg.
func NewPipeline(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	builder, err := indices.NewBuilder(cfg.Indices)
	if err != nil {
		return nil, fmt.Errorf("index builder: %w", err)
	}
	games, err := gamestate.NewReconstructor(cfg)
	if err != nil {
		return nil, fmt.Errorf("reconstructor: %w", err)
	}
	contextCuts, err := indices.NewScale(cfg.Context.Buckets)
	if err != nil {
		return nil, fmt.Errorf("context scale: %w", err)
	}
	p := &Pipeline{
		cfg:         cfg,
		classifier:  geometry.NewClassifier(cfg.Geometry),
		builder:     builder,
		games:       games,
		contextCuts: contextCuts,
		log:         logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// TimingLevels lists timing labels in scale order.
func (p *Pipeline) TimingLevels() []string { return p.games.TimingLevels() }

// ContextLevels lists score context labels in scale order.
func (p *Pipeline) ContextLevels() []string { return p.contextCuts.Labels() }

// Builder exposes the index builder for level lookups.
func (p *Pipeline) Builder() *indices.Builder { return p.builder }

// Run computes every feature table for ds.
func (p *Pipeline) Run(ctx context.Context, ds *model.Dataset) (*Result, error) {
	p.metrics.RecordIngest("ends", len(ds.Ends))
	p.metrics.RecordIngest("shots", len(ds.Shots))
	p.metrics.RecordIngest("teams", len(ds.Teams))
	groups := NewGroupResolver(ds.Teams, p.cfg.Groups)

	// ---- Stage 1: game context. ----

	start := time.Now()
	games, diags, err := p.games.ReconstructAll(ctx, ds.Ends, p.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("reconstruct games: %w", err)
	}
	p.metrics.ObserveStage("reconstruct", start)
	p.metrics.RecordGames(len(games), len(diags))
	for _, d := range diags {
		p.log.Warn(ctx, "malformed game excluded", logger.String("game", d.Game.String()), logger.Error(d.Err))
	}

	res := &Result{Games: len(games), Diagnostics: diags}
	endIdx := make(map[model.EndKey][]int) // end -> indices into res.EndFeatures
	for _, g := range games {
		for _, cs := range g.States() {
			f := EndFeature{
				ContextState:    cs,
				NOC:             groups.NOC(cs.TeamID),
				Group:           groups.Group(cs.TeamID),
				ContextBucket:   p.contextCuts.LabelInt(cs.Diff),
				Won:             g.Won(cs.TeamID),
				PowerPlayCalled: cs.PowerPlay > 0,
			}
			endIdx[cs.EndKey] = append(endIdx[cs.EndKey], len(res.EndFeatures))
			res.EndFeatures = append(res.EndFeatures, f)
		}
	}

	// ---- Stage 2: shot geometry. ----

	start = time.Now()
	shots, err := p.classifyShots(ctx, ds)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage("classify", start)

	// Power play callers come from the raw rows so shots of malformed games
	// still carry the flag.
	caller := make(map[model.EndKey]int)
	for _, e := range ds.Ends {
		if e.PowerPlayCalled() {
			caller[e.EndKey] = e.TeamID
		}
	}
	for i := range shots {
		shots[i].PowerPlayTeam = caller[shots[i].EndKey]
	}
	res.ShotFeatures = shots

	// ---- Stage 3: power play states. ----

	byEnd := make(map[model.EndKey][]ShotFeature)
	for _, s := range shots {
		byEnd[s.EndKey] = append(byEnd[s.EndKey], s)
	}
	for _, f := range res.EndFeatures {
		if !f.PowerPlayCalled {
			continue
		}
		res.PowerPlayStates = append(res.PowerPlayStates, p.powerPlayState(f, byEnd[f.EndKey]))
	}

	p.metrics.RecordFeatureRows("end_features", len(res.EndFeatures))
	p.metrics.RecordFeatureRows("shot_features", len(res.ShotFeatures))
	p.metrics.RecordFeatureRows("powerplay_states", len(res.PowerPlayStates))
	p.metrics.MarkRun(time.Now())
	p.log.Info(ctx, "pipeline finished",
		logger.Int("games", res.Games),
		logger.Int("malformed", len(diags)),
		logger.Int("ends", len(res.EndFeatures)),
		logger.Int("shots", len(res.ShotFeatures)),
		logger.Int("powerplays", len(res.PowerPlayStates)))
	return res, nil
}

// classifyShots classifies every shot on a bounded worker pool and assigns
// shot ranks. The output is ordered by end key then ShotID.
func (p *Pipeline) classifyShots(ctx context.Context, ds *model.Dataset) ([]ShotFeature, error) {
	out := make([]ShotFeature, len(ds.Shots))
	workers := max(p.cfg.Workers, 1)
	chunk := (len(ds.Shots) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(ds.Shots); lo += chunk {
		hi := min(lo+chunk, len(ds.Shots))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				out[i] = p.classify(ds.Shots[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classify shots: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EndKey != out[j].EndKey {
			return out[i].EndKey.Less(out[j].EndKey)
		}
		return out[i].ShotID < out[j].ShotID
	})
	rank := 0
	for i := range out {
		if i == 0 || out[i].EndKey != out[i-1].EndKey {
			rank = 0
		}
		rank++
		out[i].ShotRank = rank
	}
	return out, nil
}

func (p *Pipeline) classify(s model.Shot) ShotFeature {
	snap := p.classifier.Classify(s.Stones)
	p.metrics.RecordSnapshot(snap.NotThrown, snap.OffSheet, snap.Missing)
	return ShotFeature{
		EndKey:   s.EndKey,
		ShotID:   s.ShotID,
		Task:     s.Task,
		TaskName: model.TaskName(s.Task),
		Points:   s.Points,
		Handle:   s.Handle,
		Snapshot: snap,
		Indices:  p.builder.Build(snap),
		Side:     p.classifier.Side(s.Stones[0].X),
	}
}

// powerPlayState summarises a power play end. shots must be in rank order.
func (p *Pipeline) powerPlayState(f EndFeature, shots []ShotFeature) PowerPlayState {
	st := PowerPlayState{EndFeature: f, Response: NoResponse, Side: geometry.SideUnknown}
	n := p.cfg.StateShot

	var script []string
	for _, s := range shots {
		if s.ShotRank <= OpeningShots {
			script = append(script, s.TaskName)
			if s.Points == 0 {
				st.OpeningFailures++
			}
			if s.Points >= 0 {
				st.OpeningPoints += s.Points
				st.OpeningScored++
			}
		}
		if s.ShotRank == 1 {
			st.Side = s.Side
			st.Handle = s.Handle
		}
		if s.ShotRank == n {
			st.HasState = true
			st.StateShotID = s.ShotID
			st.Snapshot = s.Snapshot
			st.Indices = s.Indices
		}
		if s.ShotRank == n+1 {
			st.Response = s.TaskName
		}
	}
	st.Script = strings.Join(script, " -> ")
	return st
}
