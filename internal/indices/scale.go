// Package indices turns geometry snapshots into named buckets and composite
// congestion scores.
package indices

import (
	"errors"
	"fmt"
	"math"

	"github.com/pable/go-curling-metrics/internal/config"
)

// ErrInvalidScale is returned when bucket breakpoints cannot form a scale.
var ErrInvalidScale = errors.New("invalid scale")

// Scale maps a number onto one of an ordered set of named buckets.
//
// Bucket i covers [Min_i, Min_i+1); the last bucket is open ended. Values
// below the first breakpoint, and NaN, clamp to the first bucket so every
// input has exactly one label.
type Scale struct {
	labels []string
	mins   []float64
}

// NewScale validates buckets and builds a Scale. Mins must be strictly
// ascending and labels non-empty and unique.
func NewScale(buckets []config.Bucket) (*Scale, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: no buckets", ErrInvalidScale)
	}
	s := &Scale{
		labels: make([]string, len(buckets)),
		mins:   make([]float64, len(buckets)),
	}
	seen := make(map[string]bool, len(buckets))
	for i, b := range buckets {
		if b.Label == "" {
			return nil, fmt.Errorf("%w: bucket %d has no label", ErrInvalidScale, i)
		}
		if seen[b.Label] {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidScale, b.Label)
		}
		if math.IsNaN(b.Min) {
			return nil, fmt.Errorf("%w: bucket %q has NaN lower bound", ErrInvalidScale, b.Label)
		}
		if i > 0 && b.Min <= s.mins[i-1] {
			return nil, fmt.Errorf("%w: bucket %q does not start above %q", ErrInvalidScale, b.Label, s.labels[i-1])
		}
		seen[b.Label] = true
		s.labels[i] = b.Label
		s.mins[i] = b.Min
	}
	return s, nil
}

// MustScale is NewScale for fixed bucket tables known to be valid.
func MustScale(buckets []config.Bucket) *Scale {
	s, err := NewScale(buckets)
	if err != nil {
		panic(err)
	}
	return s
}

// Label returns the bucket label for v.
func (s *Scale) Label(v float64) string {
	idx := 0
	for i := len(s.mins) - 1; i > 0; i-- {
		if v >= s.mins[i] {
			idx = i
			break
		}
	}
	return s.labels[idx]
}

// LabelInt is Label for integer counts and end numbers.
func (s *Scale) LabelInt(v int) string { return s.Label(float64(v)) }

// Labels returns all labels in scale order.
func (s *Scale) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}
