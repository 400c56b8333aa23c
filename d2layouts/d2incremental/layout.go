// Package d2incremental is an incremental, constrained force directed layout.
// Nodes are pulled together by edge springs and pushed apart by pairwise
// repulsion, while projection solvers keep them out of each other, inside
// their clusters and in line with user and edge direction constraints.
//
// A Session advances the layout a burst of iterations at a time, so an
// interactive caller can move locks between bursts. Layout runs a session
// to completion.
package d2incremental

import (
	"context"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/log"
)

func DefaultLayout(ctx context.Context, g *geograph.Graph) (err error) {
	return Layout(ctx, g, nil)
}

// Layout lays out g in place. Starting at the minimum constraint level, it
// runs bursts until the session is done, then moves to the next level, until
// the maximum level is done. Edges without a length get one from the size of
// their ends.
func Layout(ctx context.Context, g *geograph.Graph, opts *ConfigurableOpts) (err error) {
	defer xdefer.Errorf(&err, "failed to incremental layout")

	settings, err := NewSettings(opts)
	if err != nil {
		return err
	}
	return LayoutWithSettings(ctx, g, settings)
}

// LayoutWithSettings is Layout with locks, structural constraints and per
// cluster settings.
func LayoutWithSettings(ctx context.Context, g *geograph.Graph, settings *Settings) error {
	if g == nil || len(g.Nodes) == 0 {
		return nil
	}
	for _, e := range g.Edges {
		if e.Length <= 0 {
			g.ComputeDesiredEdgeLengths()
			break
		}
	}

	s, err := NewSession(ctx, g, settings, settings.MinConstraintLevel)
	if err != nil {
		return err
	}
	for level := settings.MinConstraintLevel; level <= settings.MaxConstraintLevel; level++ {
		if level != s.ConstraintLevel() {
			if err := s.SetConstraintLevel(ctx, level); err != nil {
				return err
			}
		}
		for !s.IsDone() {
			if err := s.Run(ctx); err != nil {
				return err
			}
		}
		log.Debug(ctx, "finished constraint level",
			slog.F("level", level),
			slog.F("iterations", s.Iterations()),
			slog.F("converged", s.Converged()),
		)
	}
	s.finalizeClusterBoundaries()
	return nil
}
