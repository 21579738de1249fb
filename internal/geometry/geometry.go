// Package geometry classifies stone positions on the sheet into zones.
package geometry

import (
	"math"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/model"
)

// Side labels.
const (
	SideLeft    = "Left"
	SideCenter  = "Center"
	SideRight   = "Right"
	SideUnknown = "Unknown"
)

// Snapshot is the zone occupancy of the stones in play after one shot.
type Snapshot struct {
	HouseCount       int
	HousePresent     bool
	CorridorCount    int
	GuardCount       int
	GuardPresent     bool
	DeepGuardPresent bool

	// Diagnostics. Valid + NotThrown + OffSheet + Missing == model.StoneSlots.
	Valid     int
	NotThrown int
	OffSheet  int
	Missing   int
}

// Classifier applies the configured sheet layout to stone positions.
type Classifier struct {
	g config.Geometry
}

// NewClassifier returns a Classifier for the given layout.
func NewClassifier(g config.Geometry) *Classifier {
	return &Classifier{g: g}
}

// Classify counts the valid stones in each zone. Stones that were not
// thrown, were removed from play, or have a missing coordinate are excluded
// from every zone count.
func (c *Classifier) Classify(stones [model.StoneSlots]model.Position) Snapshot {
	var s Snapshot
	for _, p := range stones {
		switch c.status(p) {
		case statusMissing:
			s.Missing++
			continue
		case statusNotThrown:
			s.NotThrown++
			continue
		case statusOffSheet:
			s.OffSheet++
			continue
		}
		s.Valid++
		if c.InHouse(p) {
			s.HouseCount++
		}
		if c.InCorridor(p) {
			s.CorridorCount++
		}
		if c.IsGuard(p) {
			s.GuardCount++
			if p.Y > c.g.DeepGuardY {
				s.DeepGuardPresent = true
			}
		}
	}
	s.HousePresent = s.HouseCount > 0
	s.GuardPresent = s.GuardCount > 0
	return s
}

type status int

const (
	statusValid status = iota
	statusMissing
	statusNotThrown
	statusOffSheet
)

// status treats a position as invalid when either coordinate is missing or
// equals a sentinel.
func (c *Classifier) status(p model.Position) status {
	switch {
	case p.Missing():
		return statusMissing
	case p.X == c.g.NotThrown || p.Y == c.g.NotThrown:
		return statusNotThrown
	case p.X == c.g.OffSheet || p.Y == c.g.OffSheet:
		return statusOffSheet
	}
	return statusValid
}

// Valid reports whether p is a stone in play.
func (c *Classifier) Valid(p model.Position) bool {
	return c.status(p) == statusValid
}

// DistanceToButton is the Euclidean distance from p to the button.
func (c *Classifier) DistanceToButton(p model.Position) float64 {
	return math.Hypot(p.X-c.g.ButtonX, p.Y-c.g.ButtonY)
}

// InHouse reports whether p lies within the house radius, edge included.
func (c *Classifier) InHouse(p model.Position) bool {
	return c.DistanceToButton(p) <= c.g.HouseRadius
}

// InCorridor reports whether p lies strictly inside the center corridor.
func (c *Classifier) InCorridor(p model.Position) bool {
	return math.Abs(p.X-c.g.ButtonX) < c.g.CorridorHalfWidth
}

// IsGuard reports whether p sits in the guard band in front of the house.
func (c *Classifier) IsGuard(p model.Position) bool {
	return math.Abs(p.X-c.g.ButtonX) <= c.g.GuardHalfWidth &&
		p.Y >= c.g.GuardNearY && p.Y <= c.g.GuardFarY
}

// Side places a lateral coordinate left, right or center of the button line.
func (c *Classifier) Side(x float64) string {
	switch {
	case math.IsNaN(x) || x == c.g.NotThrown || x == c.g.OffSheet:
		return SideUnknown
	case x < c.g.ButtonX-c.g.SideMargin:
		return SideLeft
	case x > c.g.ButtonX+c.g.SideMargin:
		return SideRight
	}
	return SideCenter
}

// Sides lists side labels in display order.
func Sides() []string {
	return []string{SideLeft, SideCenter, SideRight, SideUnknown}
}
