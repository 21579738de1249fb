package features

import (
	"strings"

	"github.com/pable/go-curling-metrics/internal/aggregator"
	"github.com/pable/go-curling-metrics/internal/config"
	"github.com/pable/go-curling-metrics/internal/model"
)

// GroupResolver maps teams to their NOC and comparison group.
type GroupResolver struct {
	noc      map[int]string
	targets  []string
	isTarget map[string]bool
	fallback string
}

// NewGroupResolver indexes teams and the configured target NOCs.
func NewGroupResolver(teams []model.Team, cfg config.Groups) *GroupResolver {
	r := &GroupResolver{
		noc:      make(map[int]string, len(teams)),
		isTarget: make(map[string]bool, len(cfg.Targets)),
		fallback: cfg.Fallback,
	}
	for _, t := range teams {
		if t.NOC != "" {
			r.noc[t.TeamID] = strings.ToUpper(t.NOC)
		}
	}
	for _, n := range cfg.Targets {
		n = strings.ToUpper(n)
		if !r.isTarget[n] {
			r.isTarget[n] = true
			r.targets = append(r.targets, n)
		}
	}
	return r
}

// NOC returns the team's nation code, or "Other" when the team is unknown.
func (r *GroupResolver) NOC(teamID int) string {
	if n, ok := r.noc[teamID]; ok {
		return n
	}
	return aggregator.OtherLevel
}

// Group returns the team's NOC when it is a target, otherwise the fallback group.
func (r *GroupResolver) Group(teamID int) string {
	n := r.NOC(teamID)
	if r.isTarget[n] {
		return n
	}
	return r.fallback
}

// Levels lists target groups followed by the fallback.
func (r *GroupResolver) Levels() []string {
	out := make([]string, 0, len(r.targets)+1)
	out = append(out, r.targets...)
	return append(out, r.fallback)
}

// Targets lists the configured target NOCs.
func (r *GroupResolver) Targets() []string {
	return append([]string(nil), r.targets...)
}
