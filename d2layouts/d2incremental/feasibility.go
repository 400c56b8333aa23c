package d2incremental

import (
	"context"

	"cdr.dev/slog"

	"oss.terrastruct.com/d2incremental/lib/log"
)

// enforceFeasibility projects the locks and then, level by level up to the
// current one, solves each axis from the current positions so that the
// layout starts out satisfying every separation constraint of its level.
func (s *Session) enforceFeasibility(ctx context.Context) {
	for _, l := range s.settings.locks {
		l.Project(s.particles)
	}
	s.resetPositions()

	sep, margin := s.settings.NodeSeparation, s.settings.ClusterMargin
	for level := s.settings.MinConstraintLevel; level <= s.level; level++ {
		avoidOverlaps := level >= 2 && s.settings.AvoidOverlaps

		h := newAxisSolver(true, s.particles, s.graph.Root(), avoidOverlaps, level, s.settings)
		h.structural = s.hSolver.structural
		h.params.AllowDeferToVertical = true
		h.params.ConsiderProportionalOverlap = s.settings.EdgeConstraints.Direction != DirectionNone
		h.initialize(sep, sep+SEPARATION_PAD, margin, margin+SEPARATION_PAD, particleCenter)
		h.setDesiredPositions()
		h.solve(ctx)
		s.resetPositions()

		v := newAxisSolver(false, s.particles, s.graph.Root(), avoidOverlaps, level, s.settings)
		v.structural = s.vSolver.structural
		v.initialize(sep+SEPARATION_PAD, sep, margin+SEPARATION_PAD, margin, particleCenter)
		v.setDesiredPositions()
		v.solve(ctx)
		s.resetPositions()

		log.Debug(ctx, "enforced feasibility", slog.F("level", level), slog.F("avoidOverlaps", avoidOverlaps))
	}
}

// resetPositions makes the current centers the previous and desired ones,
// dropping any velocity.
func (s *Session) resetPositions() {
	for _, p := range s.particles {
		p.PreviousCenter = p.Center
		p.DesiredPosition = p.Center
	}
}
