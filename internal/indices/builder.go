package indices

import (
	"fmt"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/geometry"
)

// Indices are the composite values derived from one snapshot.
type Indices struct {
	Traffic  string
	Corridor string
	House    string
	CSI      float64
	Profile  string
}

// Builder derives Indices from geometry snapshots.
type Builder struct {
	traffic  *Scale
	corridor *Scale
	house    *Scale
	weights  config.Weights
	profile  string
}

// NewBuilder builds the traffic, corridor and house scales and resolves the
// selected CSI weight profile.
func NewBuilder(cfg config.Indices) (*Builder, error) {
	traffic, err := NewScale(cfg.Traffic)
	if err != nil {
		return nil, fmt.Errorf("traffic scale: %w", err)
	}
	corridor, err := NewScale(cfg.Corridor)
	if err != nil {
		return nil, fmt.Errorf("corridor scale: %w", err)
	}
	house, err := NewScale(cfg.House)
	if err != nil {
		return nil, fmt.Errorf("house scale: %w", err)
	}
	w, ok := cfg.CSIProfiles[cfg.CSIProfile]
	if !ok {
		return nil, fmt.Errorf("%w: unknown csi profile %q", config.ErrInvalidConfig, cfg.CSIProfile)
	}
	return &Builder{
		traffic:  traffic,
		corridor: corridor,
		house:    house,
		weights:  w,
		profile:  cfg.CSIProfile,
	}, nil
}

// Build computes the indices for one snapshot.
func (b *Builder) Build(s geometry.Snapshot) Indices {
	return Indices{
		Traffic:  b.traffic.LabelInt(s.HouseCount),
		Corridor: b.corridor.LabelInt(s.CorridorCount),
		House:    b.house.LabelInt(s.HouseCount),
		CSI:      b.CSI(s),
		Profile:  b.profile,
	}
}

// CSI is the weighted congestion score of the active profile.
func (b *Builder) CSI(s geometry.Snapshot) float64 {
	w := b.weights
	return w.Corridor*float64(s.CorridorCount) +
		w.Guard*flag(s.GuardPresent) +
		w.House*flag(s.HousePresent) +
		w.DeepGuard*flag(s.DeepGuardPresent)
}

// TrafficLevels, CorridorLevels and HouseLevels expose scale labels for
// building complete cross tables.
func (b *Builder) TrafficLevels() []string  { return b.traffic.Labels() }
func (b *Builder) CorridorLevels() []string { return b.corridor.Labels() }
func (b *Builder) HouseLevels() []string    { return b.house.Labels() }

// Profile names the active CSI weight profile.
func (b *Builder) Profile() string { return b.profile }

func flag(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
