package d2incremental_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oss.terrastruct.com/d2incremental/d2layouts/d2incremental"
	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
)

func chain(ids ...string) (*geograph.Graph, []*geograph.Node) {
	g := geograph.NewGraph()
	var nodes []*geograph.Node
	for i, id := range ids {
		nodes = append(nodes, g.AddNode(id, geo.NewPoint(float64(i)*50, 0), 20, 10, nil))
	}
	for i := 1; i < len(nodes); i++ {
		g.AddEdge(nodes[i-1], nodes[i])
	}
	return g, nodes
}

func TestEdgeConstraintsAcyclic(t *testing.T) {
	t.Parallel()

	g, n := chain("a", "b", "c")

	testCases := []struct {
		name string
		dir  d2incremental.Direction
		exp  []d2incremental.Constraint
	}{
		{
			name: "south",
			dir:  d2incremental.DirectionSouth,
			exp: []d2incremental.Constraint{
				d2incremental.NewVerticalSeparationConstraint(n[0], n[1], 15, false),
				d2incremental.NewVerticalSeparationConstraint(n[1], n[2], 15, false),
			},
		},
		{
			name: "north",
			dir:  d2incremental.DirectionNorth,
			exp: []d2incremental.Constraint{
				d2incremental.NewVerticalSeparationConstraint(n[1], n[0], 15, false),
				d2incremental.NewVerticalSeparationConstraint(n[2], n[1], 15, false),
			},
		},
		{
			name: "east",
			dir:  d2incremental.DirectionEast,
			exp: []d2incremental.Constraint{
				d2incremental.NewHorizontalSeparationConstraint(n[0], n[1], 25, false),
				d2incremental.NewHorizontalSeparationConstraint(n[1], n[2], 25, false),
			},
		},
		{
			name: "west",
			dir:  d2incremental.DirectionWest,
			exp: []d2incremental.Constraint{
				d2incremental.NewHorizontalSeparationConstraint(n[1], n[0], 25, false),
				d2incremental.NewHorizontalSeparationConstraint(n[2], n[1], 25, false),
			},
		},
		{
			name: "none",
			dir:  d2incremental.DirectionNone,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen := d2incremental.NewEdgeConstraintGenerator(g.Edges, d2incremental.EdgeConstraints{
				Direction:  tc.dir,
				Separation: 5,
			})
			assert.Empty(t, gen.CyclicComponents())
			assert.Equal(t, tc.exp, gen.Constraints())
		})
	}
}

func TestEdgeConstraintsSkipCycles(t *testing.T) {
	t.Parallel()

	g, n := chain("a", "b", "c", "d")
	// a -> b -> c -> a is a cycle, c -> d leaves it
	g.AddEdge(n[2], n[0])
	g.AddEdge(n[3], n[3])
	e := g.AddNode("e", geo.NewPoint(0, 100), 20, 10, nil)
	_, err := g.AddClusterEdge(e, g.AddCluster("cluster", nil))
	require.NoError(t, err)

	gen := d2incremental.NewEdgeConstraintGenerator(g.Edges, d2incremental.EdgeConstraints{
		Direction:  d2incremental.DirectionSouth,
		Separation: 5,
	})
	assert.Equal(t, [][]*geograph.Node{{n[0], n[1], n[2]}}, gen.CyclicComponents())
	assert.Equal(t, []d2incremental.Constraint{
		d2incremental.NewVerticalSeparationConstraint(n[2], n[3], 15, false),
	}, gen.Constraints())

	// generating twice gives the same constraints
	assert.Equal(t, gen.Constraints(), gen.Constraints())
}

func TestEdgeConstraintsTwoCycles(t *testing.T) {
	t.Parallel()

	g, n := chain("a", "b", "c", "d")
	g.AddEdge(n[1], n[0])
	g.AddEdge(n[3], n[2])

	gen := d2incremental.NewEdgeConstraintGenerator(g.Edges, d2incremental.EdgeConstraints{
		Direction: d2incremental.DirectionEast,
	})
	cycles := gen.CyclicComponents()
	assert.ElementsMatch(t, [][]*geograph.Node{{n[0], n[1]}, {n[2], n[3]}}, cycles)
	assert.Equal(t, []d2incremental.Constraint{
		d2incremental.NewHorizontalSeparationConstraint(n[1], n[2], 20, false),
	}, gen.Constraints())
}
