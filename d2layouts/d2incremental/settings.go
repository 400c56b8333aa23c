package d2incremental

import (
	"errors"
	"fmt"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/go2"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMissingArgument = errors.New("missing argument")
)

// EdgeConstraints asks for every edge outside a cycle to point in Direction,
// with at least Separation between the facing sides of its ends.
type EdgeConstraints struct {
	Direction  Direction
	Separation float64
}

// Settings configures a Session. Locks and structural constraints persist
// across sessions created from the same Settings.
type Settings struct {
	MaxIterations        int
	MinorIterations      int
	ProjectionIterations int

	ApproximateRepulsion  bool
	RungeKuttaIntegration bool

	initialStepSize float64
	decay           float64
	friction        float64

	RepulsiveForceConstant              float64
	AttractiveForceConstant             float64
	GravityConstant                     float64
	ClusterGravity                      float64
	AttractiveInterClusterForceConstant float64

	InterComponentForces bool
	ApplyForces          bool
	AvoidOverlaps        bool
	NodeSeparation       float64
	ClusterMargin        float64
	LogScaleEdgeForces   bool
	RespectEdgePorts     bool

	DisplacementThreshold float64
	MinConstraintLevel    int
	MaxConstraintLevel    int

	UpdateClusterBoundariesFromChildren bool

	EdgeConstraints EdgeConstraints

	// ClusterSettings supplies NodeSeparation and ClusterMargin per cluster.
	// A nil func, or a nil result, means these settings.
	ClusterSettings func(*geograph.Cluster) *Settings

	locks                 []*Lock
	structuralConstraints []Constraint
}

func NewSettings(opts *ConfigurableOpts) (*Settings, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	dir, err := ParseDirection(opts.EdgeDirection)
	if err != nil {
		return nil, err
	}
	s := &Settings{
		MaxIterations:                       opts.MaxIterations,
		MinorIterations:                     opts.MinorIterations,
		ProjectionIterations:                opts.ProjectionIterations,
		ApproximateRepulsion:                opts.ApproximateRepulsion,
		RungeKuttaIntegration:               opts.RungeKuttaIntegration,
		RepulsiveForceConstant:              opts.RepulsiveForceConstant,
		AttractiveForceConstant:             opts.AttractiveForceConstant,
		GravityConstant:                     opts.GravityConstant,
		ClusterGravity:                      opts.ClusterGravity,
		AttractiveInterClusterForceConstant: opts.AttractiveInterClusterForceConstant,
		InterComponentForces:                opts.InterComponentForces,
		ApplyForces:                         opts.ApplyForces,
		AvoidOverlaps:                       opts.AvoidOverlaps,
		NodeSeparation:                      opts.NodeSeparation,
		ClusterMargin:                       opts.ClusterMargin,
		LogScaleEdgeForces:                  opts.LogScaleEdgeForces,
		RespectEdgePorts:                    opts.RespectEdgePorts,
		DisplacementThreshold:               opts.DisplacementThreshold,
		MinConstraintLevel:                  opts.MinConstraintLevel,
		MaxConstraintLevel:                  opts.MaxConstraintLevel,
		UpdateClusterBoundariesFromChildren: opts.UpdateClusterBoundariesFromChildren,
		EdgeConstraints: EdgeConstraints{
			Direction:  dir,
			Separation: opts.EdgeSeparation,
		},
	}
	if err := s.SetInitialStepSize(opts.InitialStepSize); err != nil {
		return nil, err
	}
	if err := s.SetDecay(opts.Decay); err != nil {
		return nil, err
	}
	if err := s.SetFriction(opts.Friction); err != nil {
		return nil, err
	}
	if s.MinConstraintLevel > s.MaxConstraintLevel {
		return nil, fmt.Errorf("%w: min constraint level %d above max %d", ErrInvalidArgument, s.MinConstraintLevel, s.MaxConstraintLevel)
	}
	return s, nil
}

// Clone copies the configuration. Locks and structural constraints are not
// copied.
func (s *Settings) Clone() *Settings {
	c := *s
	c.locks = nil
	c.structuralConstraints = nil
	return &c
}

func (s *Settings) InitialStepSize() float64 {
	return s.initialStepSize
}

func (s *Settings) SetInitialStepSize(v float64) error {
	if !(v > 0 && v <= 2) {
		return fmt.Errorf("%w: initial step size %v not in (0, 2]", ErrInvalidArgument, v)
	}
	s.initialStepSize = v
	return nil
}

func (s *Settings) Decay() float64 {
	return s.decay
}

func (s *Settings) SetDecay(v float64) error {
	if !(v >= 0.1 && v <= 1) {
		return fmt.Errorf("%w: decay %v not in [0.1, 1]", ErrInvalidArgument, v)
	}
	s.decay = v
	return nil
}

func (s *Settings) Friction() float64 {
	return s.friction
}

func (s *Settings) SetFriction(v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: friction %v not in [0, 1]", ErrInvalidArgument, v)
	}
	s.friction = v
	return nil
}

func (s *Settings) settingsFor(c *geograph.Cluster) *Settings {
	if s.ClusterSettings == nil {
		return s
	}
	if cs := s.ClusterSettings(c); cs != nil {
		return cs
	}
	return s
}

func (s *Settings) AddStructuralConstraint(c Constraint) error {
	if c == nil {
		return fmt.Errorf("%w: constraint", ErrMissingArgument)
	}
	s.structuralConstraints = append(s.structuralConstraints, c)
	return nil
}

func (s *Settings) StructuralConstraints() []Constraint {
	return s.structuralConstraints
}

func (s *Settings) ClearStructuralConstraints() {
	s.structuralConstraints = nil
}

// ClearConstraints drops every lock and structural constraint.
func (s *Settings) ClearConstraints() {
	s.ClearLocks()
	s.ClearStructuralConstraints()
}

func (s *Settings) Locks() []*Lock {
	return s.locks
}

// CreateLock keeps n at bounds with the default lock weight.
func (s *Settings) CreateLock(n *geograph.Node, bounds geo.Box) (*Lock, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: lock node", ErrMissingArgument)
	}
	l := newLock(n, nil, bounds)
	s.locks = append(s.locks, l)
	return l, nil
}

func (s *Settings) CreateLockWithWeight(n *geograph.Node, bounds geo.Box, weight float64) (*Lock, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: lock node", ErrMissingArgument)
	}
	l := newLock(n, nil, bounds)
	if err := l.SetWeight(weight); err != nil {
		return nil, err
	}
	s.locks = append(s.locks, l)
	return l, nil
}

// CreateClusterLock keeps c, and everything inside it, at bounds.
func (s *Settings) CreateClusterLock(c *geograph.Cluster, bounds geo.Box) (*Lock, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: lock cluster", ErrMissingArgument)
	}
	if c.IsRoot() {
		return nil, fmt.Errorf("%w: cannot lock the root cluster", ErrInvalidArgument)
	}
	l := newLock(nil, c, bounds)
	s.locks = append(s.locks, l)
	return l, nil
}

// RemoveLock drops l and restores the boundary flags it changed. Weights of
// nodes in a running session are restored by Session.RemoveLock.
func (s *Settings) RemoveLock(l *Lock) error {
	if l == nil {
		return fmt.Errorf("%w: lock", ErrMissingArgument)
	}
	if !go2.Contains(s.locks, l) {
		return nil
	}
	l.restore(nil)
	s.locks = go2.Filter(s.locks, func(o *Lock) bool {
		return o != l
	})
	return nil
}

func (s *Settings) ClearLocks() {
	s.locks = nil
}
