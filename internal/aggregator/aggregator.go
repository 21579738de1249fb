// Package aggregator groups outcome records by categorical keys and computes
// per-group distribution statistics.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pable/go-curling-metrics/internal/config"
)

// OtherLevel is used for a missing key when the dimension has no fallback.
const OtherLevel = "Other"

// Record is one observation: an outcome and the categorical keys it falls under.
type Record struct {
	Outcome float64
	Keys    map[string]string
}

// Dimension is one grouping key. Levels, when set, fixes the rows that appear
// in the output even if no record carries them. Values outside Levels map to
// Fallback, or are appended as extra levels when Fallback is empty.
type Dimension struct {
	Key      string
	Levels   []string
	Fallback string
}

// Estimate is a statistic that may be undefined. OK is false when the group
// had too few records to compute it, which is distinct from a computed zero.
type Estimate struct {
	Value float64
	OK    bool
}

func known(v float64) Estimate { return Estimate{Value: v, OK: true} }

// Compare returns a - b, undefined unless both are defined.
func Compare(a, b Estimate) Estimate {
	if !a.OK || !b.OK {
		return Estimate{}
	}
	return known(a.Value - b.Value)
}

// Row is the statistics for one cell of the cross table.
type Row struct {
	Keys    []string
	Count   int
	Mean    Estimate
	StdDev  Estimate
	Median  Estimate
	AtLeast []Estimate // aligned with Table.AtLeast
	Exactly []Estimate // aligned with Table.Exactly
}

// Table is a complete cross table: one row per combination of levels, the
// first dimension varying slowest.
type Table struct {
	Dims    []string
	Levels  [][]string
	AtLeast []float64
	Exactly []float64
	Rows    []Row

	index map[string]int
}

// Row looks up the row for one combination of levels.
func (t *Table) Row(keys ...string) (Row, bool) {
	i, ok := t.index[strings.Join(keys, "\x1f")]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Total is the number of records aggregated.
func (t *Table) Total() int {
	n := 0
	for _, r := range t.Rows {
		n += r.Count
	}
	return n
}

// Top returns a copy of t holding the n most populated cells that have at
// least minCount records, most populated first. Ties keep table order and
// n <= 0 keeps every qualifying cell.
func (t *Table) Top(n, minCount int) *Table {
	rows := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if r.Count >= minCount {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	out := &Table{
		Dims:    t.Dims,
		Levels:  t.Levels,
		AtLeast: t.AtLeast,
		Exactly: t.Exactly,
		Rows:    rows,
		index:   make(map[string]int, len(rows)),
	}
	for i, r := range rows {
		out.index[strings.Join(r.Keys, "\x1f")] = i
	}
	return out
}

// Engine computes cross tables.
type Engine struct {
	atLeast   []float64
	exactly   []float64
	workers   int
	shardSize int
}

// NewEngine builds an Engine with the configured thresholds.
func NewEngine(cfg config.Aggregation, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	shard := cfg.ShardSize
	if shard < 1 {
		shard = 4096
	}
	return &Engine{
		atLeast:   append([]float64(nil), cfg.AtLeast...),
		exactly:   append([]float64(nil), cfg.Exactly...),
		workers:   workers,
		shardSize: shard,
	}
}

// Aggregate partitions records by the full tuple of dimension values and
// computes statistics for every cell. The result does not depend on record
// order or on how the work is sharded.
func (e *Engine) Aggregate(ctx context.Context, records []Record, dims ...Dimension) (*Table, error) {
	// ---- Pass 1: resolve each record's cell, growing levels in first-seen order. ----

	resolvers := make([]*levelSet, len(dims))
	for i, d := range dims {
		resolvers[i] = newLevelSet(d)
	}
	cells := make([][]int, len(records))
	for ri, r := range records {
		idx := make([]int, len(dims))
		for di := range dims {
			idx[di] = resolvers[di].resolve(r.Keys)
		}
		cells[ri] = idx
	}

	sizes := make([]int, len(dims))
	total := 1
	for i, rs := range resolvers {
		sizes[i] = len(rs.levels)
		total *= sizes[i]
	}
	flat := func(idx []int) int {
		n := 0
		for i, v := range idx {
			n = n*sizes[i] + v
		}
		return n
	}

	// ---- Pass 2: collect outcomes per cell, sharded. ----

	groups, err := e.collect(ctx, records, cells, flat, total)
	if err != nil {
		return nil, err
	}

	// ---- Pass 3: statistics per cell over the cartesian product. ----

	t := &Table{
		Dims:    make([]string, len(dims)),
		Levels:  make([][]string, len(dims)),
		AtLeast: e.atLeast,
		Exactly: e.exactly,
		Rows:    make([]Row, total),
		index:   make(map[string]int, total),
	}
	for i, d := range dims {
		t.Dims[i] = d.Key
		t.Levels[i] = resolvers[i].levels
	}
	for n := 0; n < total; n++ {
		keys := make([]string, len(dims))
		rem := n
		for i := len(dims) - 1; i >= 0; i-- {
			keys[i] = t.Levels[i][rem%sizes[i]]
			rem /= sizes[i]
		}
		t.Rows[n] = e.summarize(keys, groups[n])
		t.index[strings.Join(keys, "\x1f")] = n
	}
	return t, nil
}

func (e *Engine) collect(ctx context.Context, records []Record, cells [][]int, flat func([]int) int, total int) ([][]float64, error) {
	if e.workers == 1 || len(records) <= e.shardSize {
		out := make([][]float64, total)
		for i, r := range records {
			c := flat(cells[i])
			out[c] = append(out[c], r.Outcome)
		}
		return out, nil
	}

	nShards := (len(records) + e.shardSize - 1) / e.shardSize
	partials := make([][][]float64, nShards)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for s := 0; s < nShards; s++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo := s * e.shardSize
			hi := min(lo+e.shardSize, len(records))
			part := make([][]float64, total)
			for i := lo; i < hi; i++ {
				c := flat(cells[i])
				part[c] = append(part[c], records[i].Outcome)
			}
			partials[s] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate shards: %w", err)
	}

	out := make([][]float64, total)
	for _, part := range partials {
		for c, vals := range part {
			out[c] = append(out[c], vals...)
		}
	}
	return out, nil
}

func (e *Engine) summarize(keys []string, values []float64) Row {
	row := Row{
		Keys:    keys,
		Count:   len(values),
		AtLeast: make([]Estimate, len(e.atLeast)),
		Exactly: make([]Estimate, len(e.exactly)),
	}
	n := len(values)
	if n == 0 {
		return row
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	row.Mean = known(stat.Mean(sorted, nil))
	row.Median = known(median(sorted))
	if n >= 2 {
		row.StdDev = known(stat.StdDev(sorted, nil))
	}
	for i, k := range e.atLeast {
		// sorted ascending: everything from the first value >= k onwards
		first := sort.SearchFloat64s(sorted, k)
		row.AtLeast[i] = known(float64(n-first) / float64(n))
	}
	for i, k := range e.exactly {
		c := 0
		for _, v := range sorted {
			if v == k {
				c++
			}
		}
		row.Exactly[i] = known(float64(c) / float64(n))
	}
	return row
}

// Share is one level's portion of a distribution.
type Share struct {
	Level string
	Count int
	Share Estimate
}

// Distribution returns the share of records falling under each level of dim.
func Distribution(records []Record, dim Dimension) []Share {
	ls := newLevelSet(dim)
	counts := make(map[int]int)
	for _, r := range records {
		counts[ls.resolve(r.Keys)]++
	}
	out := make([]Share, len(ls.levels))
	for i, l := range ls.levels {
		out[i] = Share{Level: l, Count: counts[i]}
		if len(records) > 0 {
			out[i].Share = known(float64(counts[i]) / float64(len(records)))
		}
	}
	return out
}

// levelSet maps raw key values onto a dimension's levels.
type levelSet struct {
	dim      Dimension
	levels   []string
	pos      map[string]int
	declared bool
}

func newLevelSet(d Dimension) *levelSet {
	ls := &levelSet{dim: d, pos: make(map[string]int), declared: len(d.Levels) > 0}
	for _, l := range d.Levels {
		ls.add(l)
	}
	return ls
}

func (ls *levelSet) add(v string) int {
	if i, ok := ls.pos[v]; ok {
		return i
	}
	ls.levels = append(ls.levels, v)
	ls.pos[v] = len(ls.levels) - 1
	return ls.pos[v]
}

func (ls *levelSet) resolve(keys map[string]string) int {
	v, ok := keys[ls.dim.Key]
	if !ok || v == "" {
		if ls.dim.Fallback != "" {
			return ls.add(ls.dim.Fallback)
		}
		return ls.add(OtherLevel)
	}
	if i, ok := ls.pos[v]; ok {
		return i
	}
	if ls.declared && ls.dim.Fallback != "" {
		return ls.add(ls.dim.Fallback)
	}
	return ls.add(v)
}

// median returns the median of a pre-sorted (ascending) slice of float64.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
