package gamestate

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pable/go-curling-metrics/internal/model"
)

// Diagnostic reports a game excluded from the run.
type Diagnostic struct {
	Game model.GameKey
	Err  error
}

// Reason returns the human readable cause.
func (d Diagnostic) Reason() string {
	var mg *MalformedGameError
	if errors.As(d.Err, &mg) {
		return mg.Reason
	}
	return d.Err.Error()
}

// ReconstructAll groups end rows by game and reconstructs each game on a
// bounded pool of workers. Games are returned ordered by key. Malformed games
// are reported as diagnostics and left out of the result; the returned error
// is only set when ctx is cancelled.
func (r *Reconstructor) ReconstructAll(ctx context.Context, ends []model.End, workers int) ([]*Game, []Diagnostic, error) {
	byGame := make(map[model.GameKey][]model.End)
	for _, e := range ends {
		byGame[e.GameKey] = append(byGame[e.GameKey], e)
	}
	keys := make([]model.GameKey, 0, len(byGame))
	for k := range byGame {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	if workers < 1 {
		workers = 1
	}
	games := make([]*Game, len(keys))
	errs := make([]error, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, k := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			games[i], errs[i] = r.Reconstruct(byGame[k])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]*Game, 0, len(keys))
	var diags []Diagnostic
	for i, k := range keys {
		if errs[i] != nil {
			diags = append(diags, Diagnostic{Game: k, Err: errs[i]})
			continue
		}
		out = append(out, games[i])
	}
	return out, diags, nil
}
