package aggregator

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-curling-metrics/internal/config"
)

func newTestEngine(workers, shard int) *Engine {
	cfg := config.New().Aggregation
	cfg.ShardSize = shard
	return NewEngine(cfg, workers)
}

func rec(outcome float64, kv ...string) Record {
	keys := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		keys[kv[i]] = kv[i+1]
	}
	return Record{Outcome: outcome, Keys: keys}
}

func TestAggregate_SingleGroup(t *testing.T) {
	e := newTestEngine(1, 0)
	var records []Record
	for _, v := range []float64{0, 0, 1, 2, 3} {
		records = append(records, rec(v))
	}

	tbl, err := e.Aggregate(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)

	row := tbl.Rows[0]
	assert.Equal(t, 5, row.Count)
	assert.InDelta(t, 1.2, row.Mean.Value, 1e-12)
	assert.True(t, row.Mean.OK)
	assert.Equal(t, known(1), row.Median)
	// AtLeast defaults 2, 3, 4
	assert.InDelta(t, 0.4, row.AtLeast[0].Value, 1e-12)
	assert.InDelta(t, 0.2, row.AtLeast[1].Value, 1e-12)
	assert.Equal(t, known(0), row.AtLeast[2])
	// Exactly defaults 0, 1, 2
	assert.InDelta(t, 0.4, row.Exactly[0].Value, 1e-12)
	assert.InDelta(t, 0.2, row.Exactly[1].Value, 1e-12)
	assert.True(t, row.StdDev.OK)
	assert.InDelta(t, 1.3038404810405297, row.StdDev.Value, 1e-9)
}

func TestAggregate_CrossTableIsComplete(t *testing.T) {
	e := newTestEngine(1, 0)
	timing := Dimension{Key: "timing", Levels: []string{"Early", "Middle", "Late"}}
	ctxDim := Dimension{Key: "context", Levels: []string{"Trailing", "Tied", "Leading"}}
	records := []Record{
		rec(2, "timing", "Early", "context", "Tied"),
		rec(0, "timing", "Late", "context", "Trailing"),
	}

	tbl, err := e.Aggregate(context.Background(), records, timing, ctxDim)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 9)

	// first dimension varies slowest
	assert.Equal(t, []string{"Early", "Trailing"}, tbl.Rows[0].Keys)
	assert.Equal(t, []string{"Early", "Tied"}, tbl.Rows[1].Keys)
	assert.Equal(t, []string{"Late", "Leading"}, tbl.Rows[8].Keys)

	empty, ok := tbl.Row("Middle", "Leading")
	require.True(t, ok)
	assert.Equal(t, 0, empty.Count)
	assert.False(t, empty.Mean.OK, "empty cell must report no data, not zero")
	assert.False(t, empty.AtLeast[0].OK)

	late, _ := tbl.Row("Late", "Trailing")
	assert.Equal(t, known(0), late.Mean, "computed zero must be distinguishable from no data")
	assert.False(t, late.StdDev.OK, "stddev needs two records")
	assert.Equal(t, 2, tbl.Total())
}

func TestAggregate_UnknownKeysNeverDropped(t *testing.T) {
	e := newTestEngine(1, 0)
	group := Dimension{Key: "group", Levels: []string{"USA", "CAN"}, Fallback: "Field"}
	records := []Record{
		rec(1, "group", "USA"),
		rec(2, "group", "SWE"),
		rec(3),
	}

	tbl, err := e.Aggregate(context.Background(), records, group)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"USA", "CAN", "Field"}}, tbl.Levels)
	field, _ := tbl.Row("Field")
	assert.Equal(t, 2, field.Count)
	assert.Equal(t, 3, tbl.Total())

	// Without a fallback, missing keys land in Other and new values become levels.
	open := Dimension{Key: "task"}
	tbl, err = e.Aggregate(context.Background(), []Record{rec(1, "task", "Draw"), rec(0), rec(4, "task", "Wick")}, open)
	require.NoError(t, err)
	assert.Equal(t, []string{"Draw", OtherLevel, "Wick"}, tbl.Levels[0])
}

func TestAggregate_DeclaredLevelsWithoutFallbackGrow(t *testing.T) {
	e := newTestEngine(1, 0)
	dim := Dimension{Key: "side", Levels: []string{"Left", "Right"}}
	tbl, err := e.Aggregate(context.Background(), []Record{rec(1, "side", "Center")}, dim)
	require.NoError(t, err)
	assert.Equal(t, []string{"Left", "Right", "Center"}, tbl.Levels[0])
}

func TestAggregate_ShardingAndOrderDoNotChangeResults(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var records []Record
	for i := 0; i < 5000; i++ {
		records = append(records, rec(float64(rng.Intn(5)),
			"a", fmt.Sprintf("a%d", rng.Intn(3)),
			"b", fmt.Sprintf("b%d", rng.Intn(4))))
	}
	dims := []Dimension{
		{Key: "a", Levels: []string{"a0", "a1", "a2"}},
		{Key: "b", Levels: []string{"b0", "b1", "b2", "b3"}},
	}

	serial, err := newTestEngine(1, 0).Aggregate(context.Background(), records, dims...)
	require.NoError(t, err)
	again, err := newTestEngine(1, 0).Aggregate(context.Background(), records, dims...)
	require.NoError(t, err)

	shuffled := append([]Record(nil), records...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	parallel, err := newTestEngine(4, 128).Aggregate(context.Background(), shuffled, dims...)
	require.NoError(t, err)

	opts := cmpopts.IgnoreUnexported(Table{})
	if diff := cmp.Diff(serial, again, opts); diff != "" {
		t.Errorf("not idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(serial, parallel, opts); diff != "" {
		t.Errorf("sharded result differs (-serial +parallel):\n%s", diff)
	}
	assert.Len(t, serial.Rows, 12)
}

func TestAggregate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records := make([]Record, 10)
	_, err := newTestEngine(2, 2).Aggregate(ctx, records)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDistribution(t *testing.T) {
	dim := Dimension{Key: "end", Levels: []string{"1", "2", "3"}}
	shares := Distribution([]Record{rec(0, "end", "1"), rec(0, "end", "1"), rec(0, "end", "3"), rec(0, "end", "3")}, dim)
	require.Len(t, shares, 3)
	assert.Equal(t, Share{Level: "1", Count: 2, Share: known(0.5)}, shares[0])
	assert.Equal(t, Share{Level: "2", Count: 0, Share: known(0)}, shares[1])

	none := Distribution(nil, dim)
	assert.False(t, none[0].Share.OK)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, known(0.5), Compare(known(1.5), known(1)))
	assert.False(t, Compare(known(1), Estimate{}).OK)
	assert.False(t, Compare(Estimate{}, known(1)).OK)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
}

func TestTableTop(t *testing.T) {
	var records []Record
	for i, script := range []string{"A", "B", "B", "C", "C", "C", "D"} {
		records = append(records, Record{Outcome: float64(i), Keys: map[string]string{"script": script}})
	}
	tbl, err := newTestEngine(1, 4096).Aggregate(context.Background(), records, Dimension{Key: "script"})
	require.NoError(t, err)

	top := tbl.Top(2, 2)
	require.Len(t, top.Rows, 2)
	assert.Equal(t, []string{"C"}, top.Rows[0].Keys)
	assert.Equal(t, []string{"B"}, top.Rows[1].Keys)

	row, ok := top.Row("B")
	require.True(t, ok)
	assert.Equal(t, 2, row.Count)
	_, ok = top.Row("A")
	assert.False(t, ok)

	assert.Len(t, tbl.Top(0, 1).Rows, 4, "n <= 0 keeps every qualifying cell")
	assert.Len(t, tbl.Rows, 4, "source table is untouched")
}
