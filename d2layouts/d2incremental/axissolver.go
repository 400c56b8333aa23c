package d2incremental

import (
	"context"
	"errors"
	"fmt"

	"cdr.dev/slog"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/env"
	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/log"
	"oss.terrastruct.com/d2incremental/lib/overlap"
	"oss.terrastruct.com/d2incremental/lib/projection"
)

// SEPARATION_PAD widens the padding of one axis so that rectangles left
// exactly touching by the first axis solve are not seen as overlapping by the
// second.
const SEPARATION_PAD = 1e-4

// axisSolver removes overlaps and enforces separation constraints along one
// axis with one projection solve over the whole cluster hierarchy.
type axisSolver struct {
	horizontal      bool
	particles       particleSet
	root            *geograph.Cluster
	avoidOverlaps   bool
	constraintLevel int
	settings        *Settings
	params          *overlap.Parameters

	structural []Constraint

	gen    *overlap.Generator
	solver *projection.Solver
	// clusters maps geograph.Cluster.Index to its generator cluster for the
	// duration of one initialize/solve pair.
	clusters map[int]*overlap.Cluster
}

func newAxisSolver(horizontal bool, particles particleSet, root *geograph.Cluster, avoidOverlaps bool, level int, settings *Settings) *axisSolver {
	return &axisSolver{
		horizontal:      horizontal,
		particles:       particles,
		root:            root,
		avoidOverlaps:   avoidOverlaps,
		constraintLevel: level,
		settings:        settings,
		params:          overlap.DefaultParameters(),
	}
}

func (s *axisSolver) axisName() string {
	if s.horizontal {
		return "horizontal"
	}
	return "vertical"
}

// needSolve reports whether a solve could move anything at the current level.
func (s *axisSolver) needSolve() bool {
	return s.avoidOverlaps && s.constraintLevel >= 2 ||
		len(s.structural) > 0 && s.constraintLevel >= 1
}

func (s *axisSolver) addStructuralConstraint(c Constraint) {
	s.structural = append(s.structural, c)
}

// initialize builds a fresh generator and solver. pad and padP are the node
// paddings along and across the axis, clusterPad and clusterPadP the cluster
// margins. center picks the starting position of each particle.
func (s *axisSolver) initialize(pad, padP, clusterPad, clusterPadP float64, center func(*Particle) geo.Point) {
	s.gen = overlap.NewGenerator(s.horizontal, pad, padP, clusterPad, clusterPadP)
	s.solver = projection.New()
	s.clusters = make(map[int]*overlap.Cluster)

	for _, p := range s.particles {
		p.setOlapNode(s.horizontal, nil)
	}
	if s.avoidOverlaps && s.root != nil {
		s.addClusters(nil, s.root, center)
	}
	for _, p := range s.particles {
		if p.olapNode(s.horizontal) == nil {
			s.addNode(s.gen.DefaultClusterHierarchy(), p, center)
		}
	}
	if s.avoidOverlaps && s.constraintLevel >= 2 {
		s.gen.Generate(s.solver, s.params)
	} else {
		s.gen.CreateVariables(s.solver)
	}
	s.addStructuralConstraints()
}

func (s *axisSolver) addStructuralConstraints() {
	for _, c := range s.structural {
		if c.Level() > s.constraintLevel {
			continue
		}
		switch c := c.(type) {
		case *HorizontalSeparationConstraint:
			if s.horizontal {
				s.solver.AddConstraint(s.variable(c.Left), s.variable(c.Right), c.Separation, c.IsEquality)
			}
		case *VerticalSeparationConstraint:
			if !s.horizontal {
				s.solver.AddConstraint(s.variable(c.Top), s.variable(c.Bottom), c.Separation, c.IsEquality)
			}
		}
	}
}

func (s *axisSolver) variable(n *geograph.Node) *projection.Variable {
	return s.particles[n.Index].olapNode(s.horizontal).Variable
}

func (s *axisSolver) addClusters(parent *overlap.Cluster, c *geograph.Cluster, center func(*Particle) geo.Point) {
	cs := s.settings.settingsFor(c)
	sepH := cs.NodeSeparation
	sepV := sepH + SEPARATION_PAD
	marginH := cs.ClusterMargin
	marginV := marginH + SEPARATION_PAD

	b := c.Boundary
	var oc *overlap.Cluster
	switch {
	case c.IsRoot():
		oc = s.gen.DefaultClusterHierarchy()
	case s.horizontal:
		oc = s.gen.AddCluster(parent, b.MinWidth, b.MinHeight, b.LeftBorder, b.RightBorder, b.TopBorder, b.BottomBorder)
	default:
		// the horizontal solve already placed the cluster's sides
		left := overlap.NewFixedBorderInfo(b.LeftBorder.InnerMargin, b.Rect.Left(), b.LeftBorder.Weight)
		right := overlap.NewFixedBorderInfo(b.RightBorder.InnerMargin, b.Rect.Right(), b.RightBorder.Weight)
		oc = s.gen.AddCluster(parent, b.MinHeight, b.MinWidth, b.TopBorder, b.BottomBorder, left, right)
	}
	if s.horizontal {
		oc.NodePadding, oc.NodePaddingP = sepH, sepV
		oc.ClusterPadding, oc.ClusterPaddingP = marginH, marginV
	} else {
		oc.NodePadding, oc.NodePaddingP = sepV, sepH
		oc.ClusterPadding, oc.ClusterPaddingP = marginV, marginH
	}
	oc.TranslateChildren = b.GenerateFixedConstraints
	s.clusters[c.Index] = oc

	for _, n := range c.Nodes {
		s.addNode(oc, s.particles[n.Index], center)
	}
	for _, child := range c.Clusters {
		s.addClusters(oc, child, center)
	}
}

func (s *axisSolver) addNode(parent *overlap.Cluster, p *Particle, center func(*Particle) geo.Point) {
	if p.olapNode(s.horizontal) != nil {
		return
	}
	c := center(p)
	var n *overlap.Node
	if s.horizontal {
		n = s.gen.AddNode(parent, c.X, c.Y, p.Width, p.Height, p.StayWeight)
	} else {
		n = s.gen.AddNode(parent, c.Y, c.X, p.Height, p.Width, p.StayWeight)
	}
	p.setOlapNode(s.horizontal, n)
}

// setDesiredPositions makes the solve minimize displacement from each
// particle's DesiredPosition.
func (s *axisSolver) setDesiredPositions() {
	for _, p := range s.particles {
		n := p.olapNode(s.horizontal)
		if n == nil || n.Variable == nil {
			continue
		}
		n.Variable.DesiredPos = p.DesiredPosition.Coord(s.horizontal)
	}
}

// solve runs the projection, writes cluster sides and particle coordinates of
// this axis back, and drops the generator handles.
func (s *axisSolver) solve(ctx context.Context) *projection.Solution {
	sol := s.solver.Solve(s.params.Solver)
	s.gen.UpdateFromVariables()

	if s.avoidOverlaps && s.root != nil {
		s.updateClusters()
	}
	s.clusters = nil
	for _, p := range s.particles {
		p.UpdatePos(s.horizontal)
	}

	if sol.NumberOfUnsatisfiableConstraints > 0 {
		log.Warn(ctx, "unsatisfiable separation constraints",
			slog.F("axis", s.axisName()),
			slog.F("count", sol.NumberOfUnsatisfiableConstraints),
			slog.F("level", s.constraintLevel),
		)
	} else if env.Verify() && s.avoidOverlaps && s.constraintLevel >= 2 && s.root != nil {
		if err := s.verify(); err != nil {
			log.Error(ctx, "separation solve left overlaps", slog.F("axis", s.axisName()), slog.Error(err))
			panic(err)
		}
	}
	return sol
}

func (s *axisSolver) updateClusters() {
	for _, c := range s.root.AllClustersDepthFirst() {
		if c.IsRoot() {
			continue
		}
		oc := s.clusters[c.Index]
		if oc == nil || !oc.InSolver() {
			continue
		}
		b := c.Boundary
		lo, hi := oc.Position-oc.Size/2, oc.Position+oc.Size/2
		// heavy nodes can push fixed borders, so fixed positions follow the solve
		if s.horizontal {
			b.Rect = b.Rect.WithHorizontal(lo, hi)
			if b.LeftBorder.IsFixedPosition() {
				b.LeftBorder.FixedPosition = lo
			}
			if b.RightBorder.IsFixedPosition() {
				b.RightBorder.FixedPosition = hi
			}
		} else {
			b.Rect = b.Rect.WithVertical(lo, hi)
			if b.TopBorder.IsFixedPosition() {
				b.TopBorder.FixedPosition = lo
			}
			if b.BottomBorder.IsFixedPosition() {
				b.BottomBorder.FixedPosition = hi
			}
		}
	}
}

const verifyEpsilon = 1e-4

// verify checks containment along the solved axis only, since the other
// axis comes from a solve that may have been unsatisfiable. The vertical
// solve also checks that siblings are separated.
func (s *axisSolver) verify() error {
	pad, padP := s.gen.Padding, s.gen.PaddingP
	padX, padY := pad, padP
	check := verifyHorizontal
	if !s.horizontal {
		padX, padY = padP, pad
		check = verifyVertical
	}
	box := func(n *geograph.Node) geo.Box {
		return s.particles[n.Index].BoundingBox()
	}
	return verifyHierarchy(s.root, box, padX, padY, verifyEpsilon, check)
}

// VerifyLayout checks a finished layout: every node and non-empty cluster is
// inside its parent cluster with margin to spare, and siblings are at least
// nodeSeparation apart along some axis.
func VerifyLayout(g *geograph.Graph, nodeSeparation, clusterMargin float64) error {
	box := func(n *geograph.Node) geo.Box {
		return n.BoundingBox()
	}
	var errs []error
	for _, c := range g.Clusters {
		for _, n := range c.Nodes {
			if !c.IsRoot() && !c.Bounds.IsEmpty() && !c.Bounds.Contains(box(n).Pad(clusterMargin-1e-3)) {
				errs = append(errs, fmt.Errorf("node %q escapes the margin of cluster %q", n.ID, c.ID))
			}
		}
	}
	if err := verifyHierarchy(g.Root(), box, nodeSeparation, nodeSeparation, 1e-3, verifyAll); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type verifyCheck int

const (
	// x containment
	verifyHorizontal verifyCheck = iota
	// y containment and sibling separation
	verifyVertical
	verifyAll
)

func (v verifyCheck) inside(outer, r geo.Box) bool {
	insideX := r.Left() >= outer.Left() && r.Right() <= outer.Right()
	insideY := r.Top() >= outer.Top() && r.Bottom() <= outer.Bottom()
	switch v {
	case verifyHorizontal:
		return insideX
	case verifyVertical:
		return insideY
	}
	return insideX && insideY
}

func verifyHierarchy(root *geograph.Cluster, box func(*geograph.Node) geo.Box, padX, padY, eps float64, check verifyCheck) error {
	grow := func(b geo.Box) geo.Box {
		dx, dy := padX/2-eps, padY/2-eps
		return geo.NewBoxFromSides(b.Left()-dx, b.Top()-dy, b.Right()+dx, b.Bottom()+dy)
	}
	var errs []error
	for _, c := range root.AllClustersDepthFirst() {
		var rects []geo.Box
		var names []string
		for _, n := range c.Nodes {
			rects = append(rects, box(n))
			names = append(names, n.ID)
		}
		for _, child := range c.Clusters {
			if child.Boundary.Rect.IsEmpty() {
				continue
			}
			rects = append(rects, child.Boundary.Rect)
			names = append(names, child.ID)
		}
		outer := c.Boundary.Rect.Pad(eps)
		for i, r := range rects {
			if !c.IsRoot() && !c.Boundary.Rect.IsEmpty() && !check.inside(outer, r) {
				errs = append(errs, fmt.Errorf("%q is not inside cluster %q", names[i], c.ID))
			}
			if check == verifyHorizontal {
				continue
			}
			for j := i + 1; j < len(rects); j++ {
				if grow(r).Intersects(grow(rects[j])) {
					errs = append(errs, fmt.Errorf("%q overlaps %q", names[i], names[j]))
				}
			}
		}
	}
	return errors.Join(errs...)
}
