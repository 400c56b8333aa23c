package geograph_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
)

func TestClusterTraversal(t *testing.T) {
	t.Parallel()

	g := geograph.NewGraph()
	outer := g.AddCluster("outer", nil)
	inner := g.AddCluster("inner", outer)
	a := g.AddNode("a", geo.NewPoint(0, 0), 10, 10, outer)
	b := g.AddNode("b", geo.NewPoint(20, 0), 10, 10, inner)
	g.AddNode("c", geo.NewPoint(40, 0), 10, 10, nil)

	var visited []string
	outer.ForEachNode(func(n *geograph.Node) {
		visited = append(visited, n.ID)
	})
	assert.Equal(t, []string{"a", "b"}, visited)
	assert.Equal(t, 3, g.Root().NodeCount())

	var order []string
	for _, c := range g.Root().AllClustersDepthFirst() {
		order = append(order, c.ID)
	}
	assert.Equal(t, []string{"inner", "outer", ""}, order)

	assert.Equal(t, []*geograph.Cluster{inner, outer, g.Root()}, b.Ancestors())
	assert.Equal(t, []*geograph.Cluster{outer, g.Root()}, a.Ancestors())
	assert.Equal(t, 2, inner.Index)
}

func TestCalculateBoundsFromChildren(t *testing.T) {
	t.Parallel()

	g := geograph.NewGraph()
	outer := g.AddCluster("outer", nil)
	inner := g.AddCluster("inner", outer)
	g.AddNode("a", geo.NewPoint(0, 0), 10, 10, outer)
	g.AddNode("b", geo.NewPoint(20, 0), 10, 10, inner)

	done := 0
	outer.OnLayoutDone(func(*geograph.Cluster) { done++ })

	for _, c := range g.Root().AllClustersDepthFirst() {
		if !c.IsRoot() {
			c.CalculateBoundsFromChildren(2)
			c.RaiseLayoutDone()
		}
	}
	assert.Equal(t, geo.NewBoxFromSides(13, -7, 27, 7), inner.Bounds)
	assert.Equal(t, geo.NewBoxFromSides(-7, -9, 29, 9), outer.Bounds)
	assert.Equal(t, outer.Bounds, outer.Boundary.Rect)
	assert.Equal(t, 1, done)

	inner.Boundary.MinWidth = 40
	inner.CalculateBoundsFromChildren(2)
	assert.Equal(t, 40.0, inner.Bounds.Width)
	assert.Equal(t, geo.NewPoint(20, 0), inner.Bounds.Center())
}

func TestBoundaryLock(t *testing.T) {
	b := geograph.NewClusterBoundary()
	assert.False(t, b.IsLocked())
	b.Lock(0, 10, 0, 20)
	assert.True(t, b.IsLocked())
	assert.Equal(t, 10.0, b.RightBorder.FixedPosition)
	assert.Equal(t, geograph.LOCK_BORDER_WEIGHT, b.BottomBorder.Weight)
	b.Unlock()
	assert.False(t, b.IsLocked())
	assert.True(t, math.IsNaN(b.LeftBorder.FixedPosition))
}

func TestClusterEdges(t *testing.T) {
	g := geograph.NewGraph()
	c := g.AddCluster("c", nil)
	a := g.AddNode("a", geo.NewPoint(0, 0), 10, 10, nil)
	b := g.AddNode("b", geo.NewPoint(0, 0), 2, 8, nil)
	e, err := g.AddClusterEdge(a, c)
	require.NoError(t, err)
	assert.True(t, e.IsClusterEdge())
	assert.Equal(t, c, e.TargetCluster)

	g.AddEdge(a, b)
	assert.Len(t, g.NodeEdges(), 1)

	g.ComputeDesiredEdgeLengths()
	assert.Equal(t, 0.0, e.Length, "empty cluster has no area")
	assert.Equal(t, math.Sqrt(32), g.NodeEdges()[0].Length)
}

func TestConnectedComponents(t *testing.T) {
	t.Parallel()

	g := geograph.NewGraph()
	var ns []*geograph.Node
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		ns = append(ns, g.AddNode(id, geo.Point{}, 1, 1, nil))
	}
	g.AddEdge(ns[0], ns[3])
	g.AddEdge(ns[3], ns[1])
	g.AddEdge(ns[2], ns[2])

	ccs := g.ConnectedComponents()
	require.Len(t, ccs, 3)
	assert.Equal(t, []*geograph.Node{ns[0], ns[1], ns[3]}, ccs[0])
	assert.Equal(t, []*geograph.Node{ns[2]}, ccs[1])
	assert.Equal(t, []*geograph.Node{ns[4]}, ccs[2])
}
