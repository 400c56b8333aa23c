package d2incremental_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	tassert "github.com/stretchr/testify/assert"

	"oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/d2incremental/d2layouts/d2incremental"
	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/log"
)

func ctxTB(t *testing.T) context.Context {
	return log.WithTB(context.Background(), t, nil)
}

func mustSettings(t *testing.T, mutate func(*d2incremental.ConfigurableOpts)) *d2incremental.Settings {
	t.Helper()
	opts := d2incremental.DefaultOpts
	if mutate != nil {
		mutate(&opts)
	}
	s, err := d2incremental.NewSettings(&opts)
	assert.Success(t, err)
	return s
}

// pile puts n nodes almost on top of each other, chained by edges.
func pile(n int) *geograph.Graph {
	g := geograph.NewGraph()
	var prev *geograph.Node
	for i := 0; i < n; i++ {
		angle := float64(i) * 2.4
		c := geo.NewPoint(math.Cos(angle), math.Sin(angle)).Scale(float64(i))
		node := g.AddNode(fmt.Sprintf("n%d", i), c, 30, 20, nil)
		if prev != nil {
			g.AddEdge(prev, node)
		}
		prev = node
	}
	return g
}

func centers(g *geograph.Graph) []geo.Point {
	var out []geo.Point
	for _, n := range g.Nodes {
		out = append(out, n.Center)
	}
	return out
}

func TestNewSessionErrors(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	s := mustSettings(t, nil)

	_, err := d2incremental.NewSession(ctx, nil, s, 0)
	tassert.ErrorContains(t, err, "missing argument")
	_, err = d2incremental.NewSession(ctx, pile(2), nil, 0)
	tassert.ErrorContains(t, err, "missing argument")
	_, err = d2incremental.NewSession(ctx, pile(2), s, 3)
	tassert.ErrorContains(t, err, "invalid argument")

	session, err := d2incremental.NewSession(ctx, pile(2), s, 0)
	assert.Success(t, err)
	tassert.ErrorIs(t, session.SetConstraintLevel(ctx, -1), d2incremental.ErrInvalidArgument)
	assert.Equal(t, 0, session.ConstraintLevel())
}

func TestConvergesWithoutForces(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := geograph.NewGraph()
	a := g.AddNode("a", geo.NewPoint(0, 0), 10, 10, nil)
	b := g.AddNode("b", geo.NewPoint(100, 0), 10, 10, nil)
	g.AddEdge(a, b)

	s := mustSettings(t, func(o *d2incremental.ConfigurableOpts) {
		o.ApplyForces = false
	})
	session, err := d2incremental.NewSession(ctx, g, s, 2)
	assert.Success(t, err)
	tassert.False(t, session.IsDone())
	assert.Equal(t, 0, session.PercentDone())

	steps, completed := 0, 0
	session.Progress = d2incremental.ProgressFunc(func(done bool) {
		if done {
			completed++
		} else {
			steps++
		}
	})
	assert.Success(t, session.Run(ctx))
	tassert.True(t, session.Converged())
	tassert.True(t, session.IsDone())
	assert.Equal(t, 1, session.Iterations())
	assert.Equal(t, 100, session.PercentDone())
	assert.Equal(t, 0, steps)
	assert.Equal(t, 1, completed)
	assert.Equal(t, float32(0), session.Energy())
	tassert.Equal(t, geo.NewPoint(0, 0), a.Center)
	tassert.Equal(t, geo.NewPoint(100, 0), b.Center)

	session.Unconverge()
	tassert.False(t, session.Converged())
	assert.Equal(t, 0, session.Iterations())
}

func TestLayoutRemovesOverlaps(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		n      int
		mutate func(*d2incremental.ConfigurableOpts)
	}{
		{
			name: "verlet",
			n:    8,
		},
		{
			name: "runge kutta",
			n:    8,
			mutate: func(o *d2incremental.ConfigurableOpts) {
				o.RungeKuttaIntegration = true
			},
		},
		{
			name: "approximate repulsion",
			n:    24,
		},
		{
			name: "squared springs without inter component forces",
			n:    12,
			mutate: func(o *d2incremental.ConfigurableOpts) {
				o.LogScaleEdgeForces = false
				o.InterComponentForces = false
			},
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := pile(tc.n)
			opts := d2incremental.DefaultOpts
			if tc.mutate != nil {
				tc.mutate(&opts)
			}
			assert.Success(t, d2incremental.Layout(ctxTB(t), g, &opts))
			for _, p := range centers(g) {
				tassert.True(t, p.IsFinite(), "%v", p)
			}
			assert.Success(t, d2incremental.VerifyLayout(g, opts.NodeSeparation, opts.ClusterMargin))
		})
	}
}

func TestLayoutClusters(t *testing.T) {
	t.Parallel()

	g := geograph.NewGraph()
	left := g.AddCluster("left", nil)
	right := g.AddCluster("right", nil)
	nested := g.AddCluster("nested", right)
	var nodes []*geograph.Node
	for i, parent := range []*geograph.Cluster{left, left, right, nested, nested, nil} {
		c := geo.NewPoint(float64(i%3)*4, float64(i/3)*4)
		nodes = append(nodes, g.AddNode(fmt.Sprintf("n%d", i), c, 20, 20, parent))
	}
	g.AddEdge(nodes[0], nodes[2])
	g.AddEdge(nodes[3], nodes[5])
	_, err := g.AddClusterEdge(left, nested)
	assert.Success(t, err)

	done := 0
	right.OnLayoutDone(func(*geograph.Cluster) { done++ })

	opts := d2incremental.DefaultOpts
	assert.Success(t, d2incremental.Layout(ctxTB(t), g, &opts))
	assert.Success(t, d2incremental.VerifyLayout(g, opts.NodeSeparation, opts.ClusterMargin))
	tassert.Greater(t, done, 0)
	for _, c := range []*geograph.Cluster{left, right, nested} {
		tassert.False(t, c.Bounds.IsEmpty(), c.ID)
	}
	tassert.True(t, right.Bounds.Contains(nested.Bounds))
	tassert.False(t, left.Bounds.Intersects(right.Bounds))
}

func TestFeasibilityIsAFixedPoint(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := pile(6)
	s := mustSettings(t, nil)
	session, err := d2incremental.NewSession(ctx, g, s, 2)
	assert.Success(t, err)
	session.Publish()
	assert.Success(t, d2incremental.VerifyLayout(g, s.NodeSeparation, s.ClusterMargin))

	before := centers(g)
	assert.Success(t, session.SetConstraintLevel(ctx, 2))
	session.Publish()
	for i, p := range centers(g) {
		tassert.InDelta(t, before[i].X, p.X, 1e-3)
		tassert.InDelta(t, before[i].Y, p.Y, 1e-3)
	}
}

func TestFeasibilitySatisfiesStructuralConstraints(t *testing.T) {
	t.Parallel()

	for _, level := range []int{1, 2} {
		level := level
		t.Run(fmt.Sprintf("level %d", level), func(t *testing.T) {
			t.Parallel()

			ctx := ctxTB(t)
			g := pile(6)
			n := g.Nodes
			s := mustSettings(t, nil)
			constraints := []d2incremental.Constraint{
				d2incremental.NewHorizontalSeparationConstraint(n[0], n[1], 200, true),
				d2incremental.NewHorizontalSeparationConstraint(n[4], n[1], 30, false),
				d2incremental.NewVerticalSeparationConstraint(n[2], n[3], 40, false),
				d2incremental.NewVerticalSeparationConstraint(n[0], n[5], 120, true),
			}
			for _, c := range constraints {
				assert.Success(t, s.AddStructuralConstraint(c))
			}

			session, err := d2incremental.NewSession(ctx, g, s, level)
			assert.Success(t, err)
			session.Publish()

			moved := 0.
			for _, c := range constraints {
				moved += c.Project(d2incremental.GraphPositions{})
			}
			tassert.InDelta(t, 0, moved, 1e-6)
		})
	}
}

func TestProjectionConvergesMonotonically(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := geograph.NewGraph()
	a := g.AddNode("a", geo.NewPoint(0, 0), 10, 10, nil)
	b := g.AddNode("b", geo.NewPoint(10, 0), 10, 10, nil)
	s := mustSettings(t, func(o *d2incremental.ConfigurableOpts) {
		o.ApplyForces = false
		o.MinorIterations = 1
	})
	assert.Success(t, s.AddStructuralConstraint(d2incremental.NewMinSeparationConstraint(a, b, 50)))
	session, err := d2incremental.NewSession(ctx, g, s, 0)
	assert.Success(t, err)

	var displacements []float64
	for !session.Converged() {
		if !tassert.Less(t, session.Iterations(), s.MaxIterations) {
			return
		}
		before := make([]geo.Point, len(session.Particles()))
		for i, p := range session.Particles() {
			before[i] = p.Center
		}
		assert.Success(t, session.Run(ctx))
		d2 := 0.
		for i, p := range session.Particles() {
			d2 += p.Center.Sub(before[i]).LengthSquared()
		}
		displacements = append(displacements, d2)
	}

	// the first projection moves each node by 20, then friction damps
	tassert.InDelta(t, 800, displacements[0], 1e-9)
	for i := 1; i < len(displacements); i++ {
		tassert.Less(t, displacements[i], displacements[i-1], "iteration %d", i+1)
	}
	tassert.Less(t, displacements[len(displacements)-1], s.DisplacementThreshold)
	tassert.GreaterOrEqual(t, b.Center.X-a.Center.X, 50-1e-9)
}

func TestConstraintLevels(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := geograph.NewGraph()
	a := g.AddNode("a", geo.NewPoint(0, 0), 10, 10, nil)
	b := g.AddNode("b", geo.NewPoint(10, 0), 10, 10, nil)
	s := mustSettings(t, func(o *d2incremental.ConfigurableOpts) {
		o.ApplyForces = false
		o.AvoidOverlaps = false
	})
	apart := d2incremental.NewMinSeparationConstraint(a, b, 50)
	apart.ConstraintLevel = 1
	below := d2incremental.NewVerticalSeparationConstraint(a, b, 60, false)
	below.ConstraintLevel = 2
	assert.Success(t, s.AddStructuralConstraint(apart))
	assert.Success(t, s.AddStructuralConstraint(below))
	assert.Equal(t, 1, d2incremental.NewProcrustesCircleConstraint(g.Nodes).Level())

	session, err := d2incremental.NewSession(ctx, g, s, 0)
	assert.Success(t, err)
	runLevel := func(level int) {
		t.Helper()
		if level != session.ConstraintLevel() {
			assert.Success(t, session.SetConstraintLevel(ctx, level))
		}
		for !session.IsDone() {
			assert.Success(t, session.Run(ctx))
		}
		session.Publish()
	}

	runLevel(0)
	tassert.Equal(t, geo.NewPoint(0, 0), a.Center)
	tassert.Equal(t, geo.NewPoint(10, 0), b.Center)

	runLevel(1)
	tassert.GreaterOrEqual(t, a.Center.DistanceTo(b.Center), 50-1e-9)
	tassert.Equal(t, a.Center.Y, b.Center.Y)

	runLevel(2)
	tassert.GreaterOrEqual(t, b.Center.Y-a.Center.Y, 60-1e-6)
}

func TestEdgeDirection(t *testing.T) {
	t.Parallel()

	// gap is how far the target lies past the source in the edge direction,
	// with y growing downward.
	testCases := []struct {
		dir    string
		gap    func(e *geograph.Edge) float64
		extent func(n *geograph.Node) float64
	}{
		{
			dir:    "down",
			gap:    func(e *geograph.Edge) float64 { return e.Target.Center.Y - e.Source.Center.Y },
			extent: func(n *geograph.Node) float64 { return n.Height },
		},
		{
			dir:    "up",
			gap:    func(e *geograph.Edge) float64 { return e.Source.Center.Y - e.Target.Center.Y },
			extent: func(n *geograph.Node) float64 { return n.Height },
		},
		{
			dir:    "right",
			gap:    func(e *geograph.Edge) float64 { return e.Target.Center.X - e.Source.Center.X },
			extent: func(n *geograph.Node) float64 { return n.Width },
		},
		{
			dir:    "left",
			gap:    func(e *geograph.Edge) float64 { return e.Source.Center.X - e.Target.Center.X },
			extent: func(n *geograph.Node) float64 { return n.Width },
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.dir, func(t *testing.T) {
			t.Parallel()

			g := pile(5)
			opts := d2incremental.DefaultOpts
			opts.EdgeDirection = tc.dir
			opts.EdgeSeparation = 15
			assert.Success(t, d2incremental.Layout(ctxTB(t), g, &opts))

			for _, e := range g.Edges {
				exp := (tc.extent(e.Source)+tc.extent(e.Target))/2 + 15
				tassert.GreaterOrEqual(t, tc.gap(e), exp-1e-3, "%s -> %s", e.Source.ID, e.Target.ID)
			}
			assert.Success(t, d2incremental.VerifyLayout(g, opts.NodeSeparation, opts.ClusterMargin))
		})
	}
}

func TestCyclicComponents(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := pile(4)
	g.AddEdge(g.Nodes[2], g.Nodes[1])
	s := mustSettings(t, func(o *d2incremental.ConfigurableOpts) {
		o.EdgeDirection = "right"
	})
	session, err := d2incremental.NewSession(ctx, g, s, 0)
	assert.Success(t, err)
	tassert.Equal(t, [][]*geograph.Node{{g.Nodes[1], g.Nodes[2]}}, session.CyclicComponents())
}

func TestLocks(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := pile(6)
	s := mustSettings(t, nil)
	pinned := g.Nodes[3]
	target := geo.NewPoint(200, -50)
	l, err := s.CreateLock(pinned, geo.NewBoxFromCenter(target, pinned.Width, pinned.Height))
	assert.Success(t, err)
	l.Sticky = true

	session, err := d2incremental.NewSession(ctx, g, s, s.MinConstraintLevel)
	assert.Success(t, err)
	p := session.Particles()[pinned.Index]
	assert.Equal(t, d2incremental.DEFAULT_LOCK_WEIGHT, p.StayWeight)

	for level := s.MinConstraintLevel; level <= s.MaxConstraintLevel; level++ {
		assert.Success(t, session.SetConstraintLevel(ctx, level))
		for !session.IsDone() {
			assert.Success(t, session.Run(ctx))
		}
	}
	tassert.InDelta(t, target.X, pinned.Center.X, 0.5)
	tassert.InDelta(t, target.Y, pinned.Center.Y, 0.5)
	assert.Success(t, d2incremental.VerifyLayout(g, s.NodeSeparation, s.ClusterMargin))

	assert.Success(t, session.RemoveLock(l))
	assert.Equal(t, 1., p.StayWeight)
	assert.Equal(t, 0, len(s.Locks()))

	session.ResetLayout()
	assert.Equal(t, 0, session.Iterations())
	tassert.Equal(t, pinned.Center, p.Center)
	tassert.Equal(t, p.Center, p.PreviousCenter)
}

func TestStructuralConstraints(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := pile(4)
	s := mustSettings(t, nil)
	a, b, c := g.Nodes[0], g.Nodes[1], g.Nodes[2]
	assert.Success(t, s.AddStructuralConstraint(d2incremental.NewHorizontalSeparationConstraint(a, b, 80, true)))
	assert.Success(t, s.AddStructuralConstraint(d2incremental.NewMaxSeparationConstraint(b, c, 60)))
	tassert.Len(t, s.StructuralConstraints(), 2)

	assert.Success(t, d2incremental.LayoutWithSettings(ctx, g, s))
	tassert.InDelta(t, 80, b.Center.X-a.Center.X, 1e-3)
	// projected before the separation solve, so only close to satisfied
	tassert.Less(t, b.Center.DistanceTo(c.Center), 60+s.NodeSeparation+30.)

	s.ClearStructuralConstraints()
	tassert.Empty(t, s.StructuralConstraints())
}

type lockState struct {
	weights []float64
	fixed   []bool
	locked  []bool
}

func snapshotLocks(session *d2incremental.Session) lockState {
	var st lockState
	for _, p := range session.Particles() {
		st.weights = append(st.weights, p.StayWeight)
	}
	for _, c := range session.Graph().Clusters {
		st.fixed = append(st.fixed, c.Boundary.GenerateFixedConstraints)
		st.locked = append(st.locked, c.Boundary.IsLocked())
	}
	return st
}

func TestLockRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := ctxTB(t)
	g := geograph.NewGraph()
	outer := g.AddCluster("outer", nil)
	outer.Boundary.GenerateFixedConstraintsDefault = true
	outer.Boundary.RestoreDefaultConstraints()
	inner := g.AddCluster("inner", outer)
	g.AddNode("a", geo.NewPoint(0, 0), 20, 20, inner)
	g.AddNode("b", geo.NewPoint(40, 0), 20, 20, inner)
	g.AddNode("c", geo.NewPoint(100, 100), 20, 20, outer)
	bounds := geo.NewBoxFromSides(-20, -20, 60, 20)

	s := mustSettings(t, nil)
	l, err := s.CreateClusterLock(inner, bounds)
	assert.Success(t, err)
	session, err := d2incremental.NewSession(ctx, g, s, 0)
	assert.Success(t, err)

	locked := snapshotLocks(session)
	tassert.Equal(t, lockState{
		weights: []float64{d2incremental.DEFAULT_LOCK_WEIGHT, d2incremental.DEFAULT_LOCK_WEIGHT, 1},
		fixed:   []bool{false, false, true},
		locked:  []bool{false, false, true},
	}, locked)

	assert.Success(t, session.RemoveLock(l))
	tassert.Equal(t, lockState{
		weights: []float64{1, 1, 1},
		fixed:   []bool{false, true, false},
		locked:  []bool{false, false, false},
	}, snapshotLocks(session))

	_, err = s.CreateClusterLock(inner, bounds)
	assert.Success(t, err)
	session.ResetLayout()
	tassert.Equal(t, locked, snapshotLocks(session))
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(ctxTB(t))
	session, err := d2incremental.NewSession(ctx, pile(3), mustSettings(t, nil), 0)
	assert.Success(t, err)
	cancel()
	tassert.ErrorContains(t, session.Run(ctx), context.Canceled.Error())
	assert.Equal(t, 0, session.Iterations())
}

func TestVerifyLayoutReportsOverlaps(t *testing.T) {
	t.Parallel()

	g := geograph.NewGraph()
	g.AddNode("a", geo.NewPoint(0, 0), 10, 10, nil)
	g.AddNode("b", geo.NewPoint(12, 0), 10, 10, nil)
	tassert.ErrorContains(t, d2incremental.VerifyLayout(g, 10, 10), `"a" overlaps "b"`)
	assert.Success(t, d2incremental.VerifyLayout(g, 2, 10))
}
