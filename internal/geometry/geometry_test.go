package geometry

import (
	"math"
	"testing"

	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/model"
)

func newTestClassifier() *Classifier {
	return NewClassifier(config.New().Geometry)
}

// emptySheet returns twelve not-thrown slots.
func emptySheet() [model.StoneSlots]model.Position {
	var stones [model.StoneSlots]model.Position
	for i := range stones {
		stones[i] = model.Position{X: 0, Y: 0}
	}
	return stones
}

func TestClassify_ButtonStoneOnly(t *testing.T) {
	c := newTestClassifier()
	stones := emptySheet()
	stones[0] = model.Position{X: 750, Y: 800}

	s := c.Classify(stones)
	if s.HouseCount != 1 || !s.HousePresent {
		t.Errorf("house = %d/%v, want 1/true", s.HouseCount, s.HousePresent)
	}
	if s.CorridorCount != 1 {
		t.Errorf("CorridorCount = %d, want 1", s.CorridorCount)
	}
	if s.GuardPresent || s.DeepGuardPresent {
		t.Errorf("guard flags = %v/%v, want false/false", s.GuardPresent, s.DeepGuardPresent)
	}
	if s.Valid != 1 || s.NotThrown != 11 {
		t.Errorf("Valid/NotThrown = %d/%d, want 1/11", s.Valid, s.NotThrown)
	}
}

func TestClassify_SentinelsNeverCounted(t *testing.T) {
	c := newTestClassifier()
	var stones [model.StoneSlots]model.Position
	for i := range stones {
		switch i % 4 {
		case 0:
			stones[i] = model.Position{X: 0, Y: 0}
		case 1:
			stones[i] = model.Position{X: 4095, Y: 4095}
		case 2:
			stones[i] = model.Position{X: math.NaN(), Y: 800}
		case 3:
			// one sentinel coordinate is enough to invalidate the stone
			stones[i] = model.Position{X: 750, Y: 4095}
		}
	}

	s := c.Classify(stones)
	if s.Valid != 0 || s.HouseCount != 0 || s.CorridorCount != 0 || s.GuardCount != 0 {
		t.Errorf("snapshot = %+v, want no valid stones", s)
	}
	if got := s.NotThrown + s.OffSheet + s.Missing; got != model.StoneSlots {
		t.Errorf("excluded = %d, want %d", got, model.StoneSlots)
	}
}

func TestClassify_Boundaries(t *testing.T) {
	c := newTestClassifier()
	tests := []struct {
		name     string
		p        model.Position
		house    bool
		corridor bool
		guard    bool
		deep     bool
	}{
		{"house edge inclusive", model.Position{X: 750, Y: 1400}, true, true, false, false},
		{"just outside house", model.Position{X: 750, Y: 1400.5}, false, true, false, false},
		{"corridor edge exclusive", model.Position{X: 950, Y: 800}, true, false, false, false},
		{"inside corridor", model.Position{X: 949, Y: 800}, true, true, false, false},
		{"short guard", model.Position{X: 800, Y: 1800}, false, true, true, false},
		{"guard band near edge", model.Position{X: 750, Y: 1500}, false, true, true, false},
		{"deep guard", model.Position{X: 700, Y: 2500}, false, true, true, true},
		{"deep threshold exclusive", model.Position{X: 750, Y: 2200}, false, true, true, false},
		{"past the band", model.Position{X: 750, Y: 2801}, false, true, false, false},
		{"guard lateral edge", model.Position{X: 900, Y: 2000}, false, true, true, false},
		{"wide of guard lane", model.Position{X: 901, Y: 2000}, false, true, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stones := emptySheet()
			stones[5] = tc.p
			s := c.Classify(stones)
			if s.HousePresent != tc.house {
				t.Errorf("house = %v, want %v", s.HousePresent, tc.house)
			}
			if (s.CorridorCount == 1) != tc.corridor {
				t.Errorf("corridor = %d, want %v", s.CorridorCount, tc.corridor)
			}
			if s.GuardPresent != tc.guard {
				t.Errorf("guard = %v, want %v", s.GuardPresent, tc.guard)
			}
			if s.DeepGuardPresent != tc.deep {
				t.Errorf("deep guard = %v, want %v", s.DeepGuardPresent, tc.deep)
			}
		})
	}
}

func TestClassify_HouseCountBounded(t *testing.T) {
	c := newTestClassifier()
	var stones [model.StoneSlots]model.Position
	for i := range stones {
		stones[i] = model.Position{X: 700 + float64(i)*10, Y: 800}
	}
	s := c.Classify(stones)
	if s.HouseCount != model.StoneSlots || s.Valid != model.StoneSlots {
		t.Errorf("HouseCount/Valid = %d/%d, want %d", s.HouseCount, s.Valid, model.StoneSlots)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier()
	stones := emptySheet()
	stones[0] = model.Position{X: 760, Y: 900}
	stones[1] = model.Position{X: 720, Y: 2300}
	if a, b := c.Classify(stones), c.Classify(stones); a != b {
		t.Errorf("Classify not deterministic: %+v vs %+v", a, b)
	}
}

func TestSide(t *testing.T) {
	c := newTestClassifier()
	tests := []struct {
		x    float64
		want string
	}{
		{600, SideLeft},
		{699.9, SideLeft},
		{700, SideCenter},
		{750, SideCenter},
		{800, SideCenter},
		{800.1, SideRight},
		{0, SideUnknown},
		{4095, SideUnknown},
		{math.NaN(), SideUnknown},
	}
	for _, tc := range tests {
		if got := c.Side(tc.x); got != tc.want {
			t.Errorf("Side(%v) = %q, want %q", tc.x, got, tc.want)
		}
	}
}

func TestDistanceToButton(t *testing.T) {
	c := newTestClassifier()
	if d := c.DistanceToButton(model.Position{X: 1050, Y: 1200}); d != 500 {
		t.Errorf("DistanceToButton = %v, want 500", d)
	}
}
