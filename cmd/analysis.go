package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/features"
	"github.com/pable/go-curling-metrics/internal/report"
	"github.com/pable/go-curling-metrics/internal/storage"
)

var runPrefix string

// analysisFunc prints one analysis of a loaded run.
type analysisFunc func(ctx context.Context, w io.Writer, a *analysis) error

// analysis is a stored run loaded back into memory with the pipeline that
// knows its level orderings.
type analysis struct {
	run    storage.Run
	res    *features.Result
	p      *features.Pipeline
	engine *aggregator.Engine
}

func addRunFlag(c *cobra.Command) {
	c.Flags().StringVar(&runPrefix, "run", "", "run id prefix (default: latest run)")
}

// withAnalysis opens the store, loads the selected run and prints fn's output.
func withAnalysis(cmd *cobra.Command, fn analysisFunc) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	a, err := loadAnalysis(db, runPrefix)
	if err != nil {
		return err
	}
	report.PrintRunHeader(os.Stdout, a.run)
	return fn(cmd.Context(), os.Stdout, a)
}

func loadAnalysis(db *storage.DB, prefix string) (*analysis, error) {
	run, err := db.GetRunByPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		if prefix == "" {
			return nil, fmt.Errorf("no runs stored yet: run 'curlmetrics build <data-dir>' first")
		}
		return nil, fmt.Errorf("no run found with id prefix %q", prefix)
	}
	res, err := db.LoadResult(*run)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", run.ShortID(), err)
	}

	// Levels must follow the settings the run was built with.
	runCfg := *cfg
	if run.TimingPreset != timingLabel() && run.TimingPreset != "custom" {
		runCfg.Timing = config.Timing{Preset: run.TimingPreset}
	}
	runCfg.Indices.CSIProfile = run.CSIProfile
	runCfg.StateShot = run.StateShot

	p, err := features.NewPipeline(&runCfg, features.WithMetrics(mgr))
	if err != nil {
		return nil, fmt.Errorf("build pipeline for run %s: %w", run.ShortID(), err)
	}
	return &analysis{
		run:    *run,
		res:    res,
		p:      p,
		engine: aggregator.NewEngine(cfg.Aggregation, cfg.Workers),
	}, nil
}

// dim returns the dimension for key. Numeric keys without configured levels
// get the values present in records, in numeric order.
func (a *analysis) dim(key string, records []aggregator.Record) aggregator.Dimension {
	d := a.p.Dimension(key)
	if len(d.Levels) > 0 {
		return d
	}
	switch key {
	case features.KeyEnd, features.KeyLead, features.KeyCSI:
		d.Levels = numericLevels(records, key)
	}
	return d
}

// table aggregates records over the given keys.
func (a *analysis) table(ctx context.Context, name string, records []aggregator.Record, keys ...string) (*aggregator.Table, error) {
	dims := make([]aggregator.Dimension, len(keys))
	for i, k := range keys {
		dims[i] = a.dim(k, records)
	}
	return a.aggregate(ctx, name, records, dims...)
}

func (a *analysis) aggregate(ctx context.Context, name string, records []aggregator.Record, dims ...aggregator.Dimension) (*aggregator.Table, error) {
	return a.aggregateWith(ctx, a.engine, name, records, dims...)
}

// aggregateWith is aggregate on an engine with its own thresholds.
func (a *analysis) aggregateWith(ctx context.Context, e *aggregator.Engine, name string, records []aggregator.Record, dims ...aggregator.Dimension) (*aggregator.Table, error) {
	t, err := e.Aggregate(ctx, records, dims...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", name, err)
	}
	mgr.RecordAggregation(name)
	return t, nil
}

func numericLevels(records []aggregator.Record, key string) []string {
	seen := make(map[string]float64)
	for _, r := range records {
		v, ok := r.Keys[key]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		seen[v] = f
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return seen[out[i]] < seen[out[j]] })
	return out
}
