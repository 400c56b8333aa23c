package geograph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ConnectedComponents groups nodes connected through node-to-node edges.
// Nodes within a component are ordered by Index and components by their
// first node, so the result is stable across runs.
func (g *Graph) ConnectedComponents() [][]*Node {
	ug := simple.NewUndirectedGraph()
	for _, n := range g.Nodes {
		ug.AddNode(simple.Node(n.Index))
	}
	for _, e := range g.NodeEdges() {
		if e.Source == e.Target {
			continue
		}
		ug.SetEdge(ug.NewEdge(simple.Node(e.Source.Index), simple.Node(e.Target.Index)))
	}

	var out [][]*Node
	for _, cc := range topo.ConnectedComponents(ug) {
		component := make([]*Node, 0, len(cc))
		for _, gn := range cc {
			component = append(component, g.Nodes[gn.ID()])
		}
		sort.Slice(component, func(i, j int) bool {
			return component[i].Index < component[j].Index
		})
		out = append(out, component)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i][0].Index < out[j][0].Index
	})
	return out
}
