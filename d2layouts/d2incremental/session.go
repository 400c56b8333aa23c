package d2incremental

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/go2"
	"oss.terrastruct.com/d2incremental/lib/log"
)

// Session is one incremental layout of a graph. Each Run advances the layout
// by a burst of MinorIterations iterations, so callers can redraw or move
// locks between bursts.
//
// A Session is not safe for concurrent use, except that Energy may be read
// while Run is in progress.
type Session struct {
	graph    *geograph.Graph
	settings *Settings

	// Progress is notified during Run. Nil means no notifications.
	Progress Progress

	particles    particleSet
	edges        []particleEdge
	clusterEdges []*geograph.Edge
	components   [][]*Particle

	edgeConstraints *EdgeConstraintGenerator
	constraints     ledger
	hSolver         *axisSolver
	vSolver         *axisSolver

	level      int
	iterations int
	converged  bool
	stepSize   float64
	// progress counts consecutive bursts of decreasing energy.
	progress int
	energy   float32
	// energyBits mirrors energy for concurrent readers.
	energyBits atomic.Uint32
}

// NewSession prepares a layout of g. The nodes start from their current
// centers and are made feasible at initialLevel right away.
func NewSession(ctx context.Context, g *geograph.Graph, settings *Settings, initialLevel int) (_ *Session, err error) {
	defer xdefer.Errorf(&err, "failed to start incremental layout")

	if g == nil {
		return nil, fmt.Errorf("%w: graph", ErrMissingArgument)
	}
	if settings == nil {
		return nil, fmt.Errorf("%w: settings", ErrMissingArgument)
	}
	if initialLevel < settings.MinConstraintLevel || initialLevel > settings.MaxConstraintLevel {
		return nil, fmt.Errorf("%w: constraint level %d not in [%d, %d]", ErrInvalidArgument,
			initialLevel, settings.MinConstraintLevel, settings.MaxConstraintLevel)
	}

	s := &Session{
		graph:    g,
		settings: settings,
		stepSize: settings.initialStepSize,
		energy:   math.MaxFloat32,
	}
	s.storeEnergy()

	s.particles = make(particleSet, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.Index != i {
			return nil, fmt.Errorf("%w: node %q has index %d at position %d", ErrInvalidArgument, n.ID, n.Index, i)
		}
		s.particles[i] = newParticle(n)
	}
	for _, e := range g.Edges {
		if e.IsClusterEdge() {
			s.clusterEdges = append(s.clusterEdges, e)
			continue
		}
		if e.Source == e.Target {
			continue
		}
		s.edges = append(s.edges, particleEdge{
			source: s.particles[e.Source.Index],
			target: s.particles[e.Target.Index],
			edge:   e,
		})
	}
	s.applyLocks()

	if settings.InterComponentForces {
		s.components = [][]*Particle{s.particles}
	} else {
		for _, cc := range g.ConnectedComponents() {
			component := make([]*Particle, len(cc))
			for i, n := range cc {
				component[i] = s.particles[n.Index]
			}
			s.components = append(s.components, component)
		}
	}

	s.hSolver = newAxisSolver(true, s.particles, g.Root(), settings.AvoidOverlaps, settings.MinConstraintLevel, settings)
	s.hSolver.params.AllowDeferToVertical = true
	s.hSolver.params.ConsiderProportionalOverlap = settings.ApplyForces
	s.vSolver = newAxisSolver(false, s.particles, g.Root(), settings.AvoidOverlaps, settings.MinConstraintLevel, settings)
	s.setupConstraints()

	log.Debug(ctx, "starting incremental layout",
		slog.F("nodes", len(s.particles)),
		slog.F("edges", len(s.edges)),
		slog.F("clusterEdges", len(s.clusterEdges)),
		slog.F("components", len(s.components)),
		slog.F("level", initialLevel),
	)
	s.setConstraintLevel(ctx, initialLevel)
	return s, nil
}

func (s *Session) applyLocks() {
	for _, l := range s.settings.locks {
		l.apply(s.particles)
	}
}

// setupConstraints routes separation constraints to the axis solvers and
// everything else to the ledger projected between iterations.
func (s *Session) setupConstraints() {
	s.constraints = ledger{}
	s.constraints.addLevel(0)
	if s.settings.AvoidOverlaps {
		s.constraints.addLevel(2)
	}
	for _, c := range s.settings.structuralConstraints {
		s.constraints.addLevel(c.Level())
		if !s.routeToSolver(c) {
			s.constraints.add(c)
		}
	}

	s.edgeConstraints = NewEdgeConstraintGenerator(s.graph.Edges, s.settings.EdgeConstraints)
	for _, c := range s.edgeConstraints.Constraints() {
		s.routeToSolver(c)
	}
}

func (s *Session) routeToSolver(c Constraint) bool {
	switch c.(type) {
	case *HorizontalSeparationConstraint:
		s.hSolver.addStructuralConstraint(c)
	case *VerticalSeparationConstraint:
		s.vSolver.addStructuralConstraint(c)
	default:
		return false
	}
	return true
}

func (s *Session) Settings() *Settings {
	return s.settings
}

func (s *Session) Graph() *geograph.Graph {
	return s.graph
}

// Particles lists the simulation state of every node, indexed by node index.
func (s *Session) Particles() []*Particle {
	return s.particles
}

// CyclicComponents are the strongly connected components left without edge
// direction constraints.
func (s *Session) CyclicComponents() [][]*geograph.Node {
	return s.edgeConstraints.CyclicComponents()
}

func (s *Session) ConstraintLevel() int {
	return s.level
}

// SetConstraintLevel switches to level, makes the layout feasible for it and
// restarts convergence.
func (s *Session) SetConstraintLevel(ctx context.Context, level int) error {
	if level < s.settings.MinConstraintLevel || level > s.settings.MaxConstraintLevel {
		return fmt.Errorf("%w: constraint level %d not in [%d, %d]", ErrInvalidArgument,
			level, s.settings.MinConstraintLevel, s.settings.MaxConstraintLevel)
	}
	s.setConstraintLevel(ctx, level)
	return nil
}

func (s *Session) setConstraintLevel(ctx context.Context, level int) {
	s.level = level
	s.hSolver.constraintLevel = level
	s.vSolver.constraintLevel = level
	s.enforceFeasibility(ctx)
	s.Unconverge()
}

// Unconverge restarts the iteration count so the next Run resets the step
// size.
func (s *Session) Unconverge() {
	s.iterations = 0
	s.converged = false
}

// ResetLayout restarts from the node positions in the graph, forgetting
// velocities, and reapplies the locks.
func (s *Session) ResetLayout() {
	s.Unconverge()
	for _, p := range s.particles {
		p.ResetBounds()
		p.StayWeight = 1
	}
	s.applyLocks()
}

// RemoveLock drops l from the settings and restores the weights of its nodes.
func (s *Session) RemoveLock(l *Lock) error {
	if l == nil {
		return fmt.Errorf("%w: lock", ErrMissingArgument)
	}
	l.restore(s.particles)
	if err := s.settings.RemoveLock(l); err != nil {
		return err
	}
	// a removed node lock may have covered nodes another lock still holds
	s.applyLocks()
	return nil
}

func (s *Session) Converged() bool {
	return s.converged
}

func (s *Session) Iterations() int {
	return s.iterations
}

// IsDone reports whether further bursts would do nothing useful.
func (s *Session) IsDone() bool {
	return s.converged || s.iterations >= s.settings.MaxIterations
}

func (s *Session) PercentDone() int {
	if s.converged || s.settings.MaxIterations <= 0 {
		return 100
	}
	return go2.Clamp(int(100*float64(s.iterations)/float64(s.settings.MaxIterations)), 0, 100)
}

// Energy is the sum of squared force magnitudes of the last iteration.
func (s *Session) Energy() float32 {
	return math.Float32frombits(s.energyBits.Load())
}

func (s *Session) storeEnergy() {
	s.energyBits.Store(math.Float32bits(s.energy))
}

func (s *Session) StepSize() float64 {
	return s.stepSize
}

// Run advances the layout by one burst and publishes the result to the
// graph.
func (s *Session) Run(ctx context.Context) (err error) {
	defer xdefer.Errorf(&err, "failed to run incremental layout")

	if err := ctx.Err(); err != nil {
		return err
	}
	progress := s.Progress
	if progress == nil {
		progress = noProgress{}
	}

	s.converged = false
	if s.iterations == 0 {
		s.stepSize = s.settings.initialStepSize
		s.energy = math.MaxFloat32
		s.storeEnergy()
		s.progress = 0
	}
	s.iterations++

	var d2 float64
	for i := 0; i < s.settings.MinorIterations; i++ {
		if err := ctx.Err(); err != nil {
			s.Publish()
			return err
		}
		if s.settings.RungeKuttaIntegration {
			d2 = s.rungeKutta(ctx)
		} else {
			d2 = s.verlet(ctx)
		}
		if d2 < s.settings.DisplacementThreshold || s.iterations > s.settings.MaxIterations {
			s.converged = true
			progress.Complete()
			break
		}
		progress.Step()
	}
	s.finalizeClusterBoundaries()

	log.Debug(ctx, "incremental layout burst",
		slog.F("iteration", s.iterations),
		slog.F("displacement", d2),
		slog.F("energy", s.energy),
		slog.F("stepSize", s.stepSize),
		slog.F("converged", s.converged),
	)
	return nil
}

// Publish copies particle centers to the graph nodes.
func (s *Session) Publish() {
	for _, p := range s.particles {
		p.Node.Center = p.Center
	}
}
