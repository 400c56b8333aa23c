package d2incremental

import (
	"context"
	"fmt"
	"math"

	"cdr.dev/slog"

	"oss.terrastruct.com/d2incremental/d2layouts/d2incremental/multipole"
	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/env"
	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/go2"
	"oss.terrastruct.com/d2incremental/lib/log"
)

const (
	// components larger than this use the KD-tree when ApproximateRepulsion is set
	exactRepulsionLimit = 16
	kdTreeBucketSize    = 8
	multipolePrecision  = 5

	maxComponentForce = 100.
	rungeKuttaAlpha   = 3.
)

// verlet takes one damped Verlet step followed by the separation solve and
// returns the total squared displacement.
func (s *Session) verlet(ctx context.Context) float64 {
	energy0 := s.energy
	s.setEnergy(float32(s.descend(ctx, 1)))
	s.updateStepSize(energy0)
	s.solveSeparation(ctx)
	return s.displacementSquared()
}

// rungeKutta takes one fourth order Runge-Kutta step.
func (s *Session) rungeKutta(ctx context.Context) float64 {
	n := len(s.particles)
	y0 := make([]geo.Point, n)
	k1 := make([]geo.Point, n)
	k2 := make([]geo.Point, n)
	k3 := make([]geo.Point, n)
	k4 := make([]geo.Point, n)

	energy0 := s.energy
	s.satisfyConstraints()
	for i, p := range s.particles {
		p.PreviousCenter = p.Center
		y0[i] = p.Center
	}

	s.descend(ctx, rungeKuttaAlpha)
	for i, p := range s.particles {
		k1[i] = p.Center.Sub(p.PreviousCenter)
		p.Center = y0[i].Add(k1[i].Scale(0.5))
	}
	s.descend(ctx, rungeKuttaAlpha)
	for i, p := range s.particles {
		k2[i] = p.Center.Sub(p.PreviousCenter)
		p.PreviousCenter = y0[i]
		p.Center = y0[i].Add(k2[i].Scale(0.5))
	}
	s.descend(ctx, rungeKuttaAlpha)
	for i, p := range s.particles {
		k3[i] = p.Center.Sub(p.PreviousCenter)
		p.PreviousCenter = y0[i]
		p.Center = y0[i].Add(k3[i])
	}
	s.setEnergy(float32(s.descend(ctx, rungeKuttaAlpha)))
	for i, p := range s.particles {
		k4[i] = p.Center.Sub(p.PreviousCenter)
		p.PreviousCenter = y0[i]
		dx := k1[i].Add(k2[i].Scale(2)).Add(k3[i].Scale(2)).Add(k4[i]).Scale(1. / 6)
		p.Center = y0[i].Add(dx)
	}
	s.updateStepSize(energy0)
	s.solveSeparation(ctx)
	return s.displacementSquared()
}

func (s *Session) setEnergy(e float32) {
	s.energy = e
	s.storeEnergy()
}

func (s *Session) displacementSquared() float64 {
	return go2.Sum(s.particles, func(p *Particle) float64 {
		return p.Center.Sub(p.PreviousCenter).LengthSquared()
	})
}

// descend moves every particle along its damped velocity plus the descent
// direction scaled by the step size, then projects the ledger constraints.
// It returns the energy, the sum of squared force magnitudes.
func (s *Session) descend(ctx context.Context, alpha float64) float64 {
	for _, p := range s.particles {
		p.Force = geo.Point{}
	}
	if s.settings.ApplyForces {
		s.computeForces()
	}
	energy := 0.
	for _, p := range s.particles {
		energy += p.Force.LengthSquared()
		dx := p.Center.Sub(p.PreviousCenter).Scale(s.settings.friction)
		p.PreviousCenter = p.Center
		a := p.Force.Scale(-s.stepSize * alpha)
		if env.Verify() && !a.IsFinite() {
			err := fmt.Errorf("non-finite acceleration %v of node %q", a, p.Node.ID)
			log.Error(ctx, "diverged", slog.Error(err))
			panic(err)
		}
		dx = dx.Add(a).Scale(1 / p.StayWeight)
		p.Center = p.Center.Add(dx)
	}
	s.satisfyConstraints()
	return energy
}

// updateStepSize grows the step after three consecutive decreases in energy
// and shrinks it on any increase.
func (s *Session) updateStepSize(energy0 float32) {
	if s.energy < energy0 {
		s.progress++
		if s.progress >= 3 {
			s.progress = 0
			s.stepSize /= s.settings.decay
		}
		return
	}
	s.progress = 0
	s.stepSize *= s.settings.decay
}

// satisfyConstraints projects the ledger constraints up to the current level
// and then the locks, ProjectionIterations times.
func (s *Session) satisfyConstraints() {
	levels := s.constraints.levels()
	for i := 0; i < s.settings.ProjectionIterations; i++ {
		for _, level := range levels {
			if level > s.level {
				break
			}
			for _, c := range s.constraints[level] {
				c.Project(s.particles)
			}
		}
		for _, l := range s.settings.locks {
			l.Project(s.particles)
			// locked nodes carry no inertia
			for _, n := range l.Nodes() {
				p := s.particles[n.Index]
				p.PreviousCenter = p.Center
			}
		}
	}
}

func (s *Session) needSolve() bool {
	return s.hSolver.needSolve() || s.vSolver.needSolve()
}

// solveSeparation finds the feasible configuration closest to the current
// centers. Horizontal constraints come from the previous, feasible
// configuration and vertical ones from the horizontally solved positions.
func (s *Session) solveSeparation(ctx context.Context) {
	if !s.needSolve() {
		return
	}
	vPad := s.settings.NodeSeparation
	hPad := vPad + SEPARATION_PAD
	cvPad := s.settings.ClusterMargin
	chPad := cvPad + SEPARATION_PAD

	for _, p := range s.particles {
		p.DesiredPosition = p.Center
	}
	s.hSolver.initialize(hPad, vPad, chPad, cvPad, particlePreviousCenter)
	s.hSolver.setDesiredPositions()
	s.hSolver.solve(ctx)

	s.vSolver.initialize(vPad, hPad, cvPad, chPad, particleCenter)
	s.vSolver.setDesiredPositions()
	s.vSolver.solve(ctx)

	// heavy locked nodes can still be nudged by each other
	for _, l := range s.settings.locks {
		if !l.Sticky && l.node != nil {
			l.Bounds = s.particles[l.node.Index].BoundingBox()
		}
	}
}

func (s *Session) computeForces() {
	for _, c := range s.components {
		s.computeRepulsion(c)
	}
	for _, e := range s.edges {
		s.addSpringForce(e)
	}
	for _, c := range s.components {
		if len(c) == 0 {
			continue
		}
		var origin geo.Point
		for _, p := range c {
			origin = origin.Add(p.Center)
		}
		origin = origin.Scale(1 / float64(len(c)))
		maxForce := math.Inf(-1)
		for _, p := range c {
			addGravity(origin, s.settings.GravityConstant, p)
			maxForce = go2.Max(maxForce, p.Force.Length())
		}
		if maxForce > maxComponentForce {
			for _, p := range c {
				p.Force = p.Force.Scale(maxComponentForce / maxForce)
			}
		}
	}
	s.addClusterForces()
}

func addGravity(origin geo.Point, gravity float64, p *Particle) {
	p.Force = p.Force.Sub(origin.Sub(p.Center).Scale(0.0001 * gravity))
}

// computeRepulsion replaces the force of every particle in the component
// with its repulsion from the others.
func (s *Session) computeRepulsion(c []*Particle) {
	k := 10 * s.settings.RepulsiveForceConstant
	n := len(c)
	if n > exactRepulsionLimit && s.settings.ApproximateRepulsion {
		ps := make([]*multipole.Particle, n)
		// distinct tiny offsets let the tree split coincident nodes
		delta := 2 * math.Pi / float64(n)
		for i, p := range c {
			angle := float64(i) * delta
			offset := geo.NewPoint(math.Cos(angle), math.Sin(angle)).Scale(1e-5)
			ps[i] = multipole.NewParticle(p.Center.Add(offset))
		}
		multipole.NewKDTree(ps, kdTreeBucketSize).ComputeForces(multipolePrecision)
		for i, p := range c {
			p.Force = ps[i].Force.Scale(k)
		}
		return
	}
	for _, u := range c {
		var f geo.Point
		for _, v := range c {
			if u != v {
				f = f.Add(multipole.Force(u.Center, v.Center))
			}
		}
		u.Force = f.Scale(k)
	}
}

func (s *Session) addSpringForce(e particleEdge) {
	src, tgt := e.source.Center, e.target.Center
	if s.settings.RespectEdgePorts {
		if e.edge.SourcePort != nil {
			src = *e.edge.SourcePort
		}
		if e.edge.TargetPort != nil {
			tgt = *e.edge.TargetPort
		}
	}
	duv := src.Sub(tgt)
	l, ideal := duv.Length(), e.edge.Length
	var f float64
	if s.settings.LogScaleEdgeForces {
		f = 0.0007 * s.settings.AttractiveForceConstant * l * math.Log((l+0.1)/(ideal+0.1))
	} else {
		f = s.settings.AttractiveForceConstant * (l - ideal) / (ideal*ideal + 0.1)
	}
	e.source.Force = e.source.Force.Add(duv.Scale(f))
	e.target.Force = e.target.Force.Sub(duv.Scale(f))
}

// barycenters maps cluster indices to the mean center of their descendant
// nodes. Empty clusters are left out.
func (s *Session) barycenters() map[int]geo.Point {
	type acc struct {
		sum geo.Point
		n   int
	}
	accs := make(map[int]acc)
	for _, c := range s.graph.Root().AllClustersDepthFirst() {
		a := accs[c.Index]
		for _, n := range c.Nodes {
			a.sum = a.sum.Add(s.particles[n.Index].Center)
			a.n++
		}
		for _, child := range c.Clusters {
			ca := accs[child.Index]
			a.sum = a.sum.Add(ca.sum)
			a.n += ca.n
		}
		accs[c.Index] = a
	}
	out := make(map[int]geo.Point, len(accs))
	for i, a := range accs {
		if a.n > 0 {
			out[i] = a.sum.Scale(1 / float64(a.n))
		}
	}
	return out
}

// addClusterForces pulls the ends of cluster edges together and every node
// toward the barycenter of each cluster containing it.
func (s *Session) addClusterForces() {
	root := s.graph.Root()
	if root == nil {
		return
	}
	bary := s.barycenters()
	end := func(c *geograph.Cluster, n *geograph.Node) geo.Point {
		if c != nil {
			return bary[c.Index]
		}
		return s.particles[n.Index].Center
	}
	push := func(c *geograph.Cluster, n *geograph.Node, f geo.Point) {
		if c == nil {
			p := s.particles[n.Index]
			p.Force = p.Force.Add(f)
			return
		}
		c.ForEachNode(func(n *geograph.Node) {
			p := s.particles[n.Index]
			p.Force = p.Force.Add(f)
		})
	}
	for _, e := range s.clusterEdges {
		duv := end(e.SourceCluster, e.Source).Sub(end(e.TargetCluster, e.Target))
		l := duv.Length()
		f := 1e-8 * s.settings.AttractiveInterClusterForceConstant * l * math.Log(l+0.1)
		push(e.SourceCluster, e.Source, duv.Scale(f))
		push(e.TargetCluster, e.Target, duv.Scale(-f))
	}

	for _, c := range root.AllClustersDepthFirst() {
		if c.IsRoot() {
			continue
		}
		b, ok := bary[c.Index]
		if !ok {
			continue
		}
		c.ForEachNode(func(n *geograph.Node) {
			addGravity(b, s.settings.ClusterGravity, s.particles[n.Index])
		})
	}
}

// finalizeClusterBoundaries publishes the particles and settles every
// cluster's bounds, either fitted to its children or taken from the solved
// boundary.
func (s *Session) finalizeClusterBoundaries() {
	s.Publish()
	fit := !s.needSolve() && s.settings.UpdateClusterBoundariesFromChildren
	for _, c := range s.graph.Root().AllClustersDepthFirst() {
		if c.IsRoot() {
			continue
		}
		if fit {
			c.CalculateBoundsFromChildren(s.settings.settingsFor(c).ClusterMargin)
		} else {
			c.Bounds = c.Boundary.Rect
		}
		c.RaiseLayoutDone()
	}
}
