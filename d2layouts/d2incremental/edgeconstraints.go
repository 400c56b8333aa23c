package d2incremental

import (
	"sort"

	"oss.terrastruct.com/d2incremental/geograph"
)

type tnode struct {
	n       *geograph.Node
	out     []*tnode
	in      []*tnode
	visited bool
	onStack bool
	cycleID int
}

// EdgeConstraintGenerator orients edges with separation constraints, leaving
// out edges inside a strongly connected component since those constraints
// could never be satisfied together.
type EdgeConstraintGenerator struct {
	settings EdgeConstraints
	edges    []*geograph.Edge
	tnodes   map[*geograph.Node]*tnode
	cyclic   [][]*geograph.Node
}

// NewEdgeConstraintGenerator finds the cycles among the node-to-node edges.
// Self loops and cluster edges are ignored.
func NewEdgeConstraintGenerator(edges []*geograph.Edge, settings EdgeConstraints) *EdgeConstraintGenerator {
	g := &EdgeConstraintGenerator{
		settings: settings,
		tnodes:   make(map[*geograph.Node]*tnode),
	}
	var order []*tnode
	get := func(n *geograph.Node) *tnode {
		tn, ok := g.tnodes[n]
		if !ok {
			tn = &tnode{n: n, cycleID: -1}
			g.tnodes[n] = tn
			order = append(order, tn)
		}
		return tn
	}
	for _, e := range edges {
		if e.IsClusterEdge() || e.Source == e.Target {
			continue
		}
		g.edges = append(g.edges, e)
		u, v := get(e.Source), get(e.Target)
		u.out = append(u.out, v)
		v.in = append(v.in, u)
	}

	finished := finishOrder(order)
	for i := len(finished) - 1; i >= 0; i-- {
		root := finished[i]
		if !root.onStack {
			continue
		}
		var component []*tnode
		root.onStack = false
		stack := []*tnode{root}
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, u)
			for _, v := range u.in {
				if v.onStack {
					v.onStack = false
					stack = append(stack, v)
				}
			}
		}
		if len(component) < 2 {
			continue
		}
		id := len(g.cyclic)
		nodes := make([]*geograph.Node, 0, len(component))
		for _, tn := range component {
			tn.cycleID = id
			nodes = append(nodes, tn.n)
		}
		sort.Slice(nodes, func(i, j int) bool {
			return nodes[i].Index < nodes[j].Index
		})
		g.cyclic = append(g.cyclic, nodes)
	}
	return g
}

// finishOrder runs a depth first search from every unvisited node and lists
// nodes as they finish.
func finishOrder(order []*tnode) []*tnode {
	type frame struct {
		n    *tnode
		next int
	}
	var finished []*tnode
	for _, root := range order {
		if root.visited {
			continue
		}
		root.visited = true
		stack := []frame{{n: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.n.out) {
				v := top.n.out[top.next]
				top.next++
				if !v.visited {
					v.visited = true
					stack = append(stack, frame{n: v})
				}
				continue
			}
			top.n.onStack = true
			finished = append(finished, top.n)
			stack = stack[:len(stack)-1]
		}
	}
	return finished
}

// CyclicComponents lists the strongly connected components with more than
// one node, each sorted by node index.
func (g *EdgeConstraintGenerator) CyclicComponents() [][]*geograph.Node {
	out := make([][]*geograph.Node, len(g.cyclic))
	for i, c := range g.cyclic {
		out[i] = append([]*geograph.Node(nil), c...)
	}
	return out
}

func (g *EdgeConstraintGenerator) inCycle(e *geograph.Edge) bool {
	u, v := g.tnodes[e.Source], g.tnodes[e.Target]
	return u.cycleID >= 0 && u.cycleID == v.cycleID
}

// Constraints returns one separation constraint per edge outside a cycle.
// Vertical directions produce VerticalSeparationConstraints and horizontal
// ones HorizontalSeparationConstraints.
func (g *EdgeConstraintGenerator) Constraints() []Constraint {
	if g.settings.Direction == DirectionNone {
		return nil
	}
	var out []Constraint
	sep := g.settings.Separation
	for _, e := range g.edges {
		if g.inCycle(e) {
			continue
		}
		u, v := e.Source, e.Target
		switch g.settings.Direction {
		case DirectionSouth:
			out = append(out, NewVerticalSeparationConstraint(u, v, (u.Height+v.Height)/2+sep, false))
		case DirectionNorth:
			out = append(out, NewVerticalSeparationConstraint(v, u, (u.Height+v.Height)/2+sep, false))
		case DirectionEast:
			out = append(out, NewHorizontalSeparationConstraint(u, v, (u.Width+v.Width)/2+sep, false))
		case DirectionWest:
			out = append(out, NewHorizontalSeparationConstraint(v, u, (u.Width+v.Width)/2+sep, false))
		}
	}
	return out
}
