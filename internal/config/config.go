// Package config defines the analysis configuration and how it is loaded.
//
// Every geometric threshold, bucket breakpoint and index weight used by the
// feature layers lives here; components receive the relevant section at
// construction time.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DataDir is the default directory holding Ends.csv, Stones.csv and Teams.csv.
	DataDir string `koanf:"data_dir"`

	// DBPath is the SQLite database used by the CLI when --db is not given.
	DBPath string `koanf:"db_path"`

	// Workers bounds the per-game and per-shard worker pools.
	Workers int `koanf:"workers"`

	// StateShot is the shot rank whose snapshot describes the power play
	// set-up ("state after N shots"). The following shot is the response.
	StateShot int `koanf:"state_shot"`

	Geometry    Geometry    `koanf:"geometry"`
	Timing      Timing      `koanf:"timing"`
	Context     Context     `koanf:"context"`
	Indices     Indices     `koanf:"indices"`
	Aggregation Aggregation `koanf:"aggregation"`
	Groups      Groups      `koanf:"groups"`
}

// Geometry holds sheet layout constants in sheet coordinate units.
type Geometry struct {
	ButtonX           float64 `koanf:"button_x"`
	ButtonY           float64 `koanf:"button_y"`
	HouseRadius       float64 `koanf:"house_radius"`
	CorridorHalfWidth float64 `koanf:"corridor_half_width"`
	GuardHalfWidth    float64 `koanf:"guard_half_width"`
	GuardNearY        float64 `koanf:"guard_near_y"`
	GuardFarY         float64 `koanf:"guard_far_y"`
	DeepGuardY        float64 `koanf:"deep_guard_y"`
	NotThrown         float64 `koanf:"not_thrown"`
	OffSheet          float64 `koanf:"off_sheet"`
	SideMargin        float64 `koanf:"side_margin"`
}

// Bucket is one named range of a scale; it starts at Min (inclusive) and
// runs up to the next bucket's Min.
type Bucket struct {
	Label string  `koanf:"label"`
	Min   float64 `koanf:"min"`
}

// Timing selects the EndID -> timing label scheme. When Buckets is empty the
// named Preset is used.
type Timing struct {
	Preset  string   `koanf:"preset"`
	Buckets []Bucket `koanf:"buckets"`
}

// Context buckets the score differential at the start of an end.
type Context struct {
	Buckets []Bucket `koanf:"buckets"`
}

// Weights is one composite congestion index formula.
type Weights struct {
	Corridor  float64 `koanf:"corridor"`
	Guard     float64 `koanf:"guard"`
	House     float64 `koanf:"house"`
	DeepGuard float64 `koanf:"deep_guard"`
}

// Indices configures the composite index builder.
type Indices struct {
	Traffic     []Bucket           `koanf:"traffic"`
	Corridor    []Bucket           `koanf:"corridor"`
	House       []Bucket           `koanf:"house"`
	CSIProfile  string             `koanf:"csi_profile"`
	CSIProfiles map[string]Weights `koanf:"csi_profiles"`
}

// Aggregation configures the statistics computed per group.
type Aggregation struct {
	AtLeast   []float64 `koanf:"at_least"`
	Exactly   []float64 `koanf:"exactly"`
	ShardSize int       `koanf:"shard_size"`
}

// Groups resolves teams into comparison groups by NOC.
type Groups struct {
	Targets  []string `koanf:"targets"`
	Fallback string   `koanf:"fallback"`
}

// Timing presets.
const (
	TimingThirds   = "thirds"
	TimingQuarters = "quarters"
)

var timingPresets = map[string][]Bucket{
	TimingThirds: {
		{Label: "Early (1-2)", Min: math.Inf(-1)},
		{Label: "Middle (3-6)", Min: 3},
		{Label: "Late (7+)", Min: 7},
	},
	TimingQuarters: {
		{Label: "Early (1-2)", Min: math.Inf(-1)},
		{Label: "Mid (3-4)", Min: 3},
		{Label: "Late (5-6)", Min: 5},
		{Label: "Final (7+)", Min: 7},
	},
}

// CSI profile names shipped by default.
const (
	CSIFull          = "full"
	CSICorridorGuard = "corridor_guard"
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		DataDir:   ".",
		DBPath:    defaultDBPath(),
		Workers:   runtime.NumCPU(),
		StateShot: 3,
		Geometry: Geometry{
			ButtonX:           750,
			ButtonY:           800,
			HouseRadius:       600,
			CorridorHalfWidth: 200,
			GuardHalfWidth:    150,
			GuardNearY:        1500,
			GuardFarY:         2800,
			DeepGuardY:        2200,
			NotThrown:         0,
			OffSheet:          4095,
			SideMargin:        50,
		},
		Timing: Timing{Preset: TimingThirds},
		Context: Context{Buckets: []Bucket{
			{Label: "Trailing Big", Min: math.Inf(-1)},
			{Label: "Trailing Small", Min: -2},
			{Label: "Tied", Min: 0},
			{Label: "Leading", Min: 1},
		}},
		Indices: Indices{
			Traffic: []Bucket{
				{Label: "Low (0-2)", Min: 0},
				{Label: "Medium (3-4)", Min: 3},
				{Label: "High (5+)", Min: 5},
			},
			Corridor: []Bucket{
				{Label: "Clean", Min: 0},
				{Label: "Moderate", Min: 2},
				{Label: "Heavy", Min: 4},
			},
			House: []Bucket{
				{Label: "Empty/1", Min: 0},
				{Label: "Occupied", Min: 2},
			},
			CSIProfile: CSIFull,
			CSIProfiles: map[string]Weights{
				CSIFull:          {Corridor: 1, Guard: 1, House: 1, DeepGuard: 1},
				CSICorridorGuard: {Corridor: 1, Guard: 1},
			},
		},
		Aggregation: Aggregation{
			AtLeast:   []float64{2, 3, 4},
			Exactly:   []float64{0, 1, 2},
			ShardSize: 4096,
		},
		Groups: Groups{
			Targets:  []string{"USA", "GBR", "ITA", "CAN"},
			Fallback: "Field",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".curlmetrics", "metrics.db")
}

// TimingBuckets resolves the configured timing scheme.
func (c *Config) TimingBuckets() ([]Bucket, error) {
	if len(c.Timing.Buckets) > 0 {
		return c.Timing.Buckets, nil
	}
	b, ok := timingPresets[c.Timing.Preset]
	if !ok {
		return nil, fmt.Errorf("%w: unknown timing preset %q", ErrInvalidConfig, c.Timing.Preset)
	}
	return b, nil
}

// CSIWeights resolves the selected composite index profile.
func (c *Config) CSIWeights() (Weights, error) {
	w, ok := c.Indices.CSIProfiles[c.Indices.CSIProfile]
	if !ok {
		return Weights{}, fmt.Errorf("%w: unknown csi profile %q", ErrInvalidConfig, c.Indices.CSIProfile)
	}
	return w, nil
}

// TimingPresets lists the names of the built-in timing schemes.
func TimingPresets() []string {
	out := make([]string, 0, len(timingPresets))
	for name := range timingPresets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks the configuration for values the analysis cannot run with.
func (c *Config) Validate() error {
	g := c.Geometry
	switch {
	case g.HouseRadius <= 0:
		return fmt.Errorf("%w: house_radius must be positive", ErrInvalidConfig)
	case g.CorridorHalfWidth <= 0 || g.GuardHalfWidth <= 0:
		return fmt.Errorf("%w: corridor and guard half widths must be positive", ErrInvalidConfig)
	case !(g.GuardNearY < g.DeepGuardY && g.DeepGuardY < g.GuardFarY):
		return fmt.Errorf("%w: guard band requires guard_near_y < deep_guard_y < guard_far_y", ErrInvalidConfig)
	case g.NotThrown == g.OffSheet:
		return fmt.Errorf("%w: not_thrown and off_sheet sentinels must differ", ErrInvalidConfig)
	}
	if c.StateShot < 1 {
		return fmt.Errorf("%w: state_shot must be at least 1", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.TimingBuckets(); err != nil {
		return err
	}
	if _, err := c.CSIWeights(); err != nil {
		return err
	}
	for name, b := range map[string][]Bucket{
		"context":          c.Context.Buckets,
		"indices.traffic":  c.Indices.Traffic,
		"indices.corridor": c.Indices.Corridor,
		"indices.house":    c.Indices.House,
	} {
		if len(b) == 0 {
			return fmt.Errorf("%w: %s needs at least one bucket", ErrInvalidConfig, name)
		}
	}
	if c.Groups.Fallback == "" {
		return fmt.Errorf("%w: groups.fallback must not be empty", ErrInvalidConfig)
	}
	return nil
}
