// Package geograph is the geometry graph laid out by the incremental layout:
// rectangular nodes, edges between nodes or clusters, and a tree of clusters.
//
// Clusters live in an arena (Graph.Clusters, index 0 is the root) so layout
// code can keep per-cluster state in slices keyed by Cluster.Index.
package geograph

import (
	"fmt"
	"math"

	"oss.terrastruct.com/d2incremental/lib/geo"
)

// Element is either a *Node or a *Cluster.
type Element interface {
	BoundingBox() geo.Box
	element()
}

type Node struct {
	ID     string    `json:"id"`
	Index  int       `json:"index"`
	Center geo.Point `json:"center"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`

	Parent *Cluster `json:"-"`
}

func (n *Node) element() {}

func (n *Node) BoundingBox() geo.Box {
	return geo.NewBoxFromCenter(n.Center, n.Width, n.Height)
}

func (n *Node) SetBoundingBox(b geo.Box) {
	n.Center = b.Center()
	n.Width = b.Width
	n.Height = b.Height
}

func (n *Node) String() string {
	return n.ID
}

// Ancestors lists the clusters containing n, innermost first, root last.
func (n *Node) Ancestors() []*Cluster {
	var out []*Cluster
	for c := n.Parent; c != nil; c = c.Parent {
		out = append(out, c)
	}
	return out
}

type Edge struct {
	Source *Node `json:"-"`
	Target *Node `json:"-"`
	// SourceCluster and TargetCluster replace Source and Target when an end
	// of the edge is a cluster.
	SourceCluster *Cluster `json:"-"`
	TargetCluster *Cluster `json:"-"`

	// Length is the ideal length of the edge.
	Length float64 `json:"length"`
	// SourcePort and TargetPort are floating port locations. Nil means the
	// node center.
	SourcePort *geo.Point `json:"sourcePort,omitempty"`
	TargetPort *geo.Point `json:"targetPort,omitempty"`
}

func (e *Edge) IsClusterEdge() bool {
	return e.SourceCluster != nil || e.TargetCluster != nil
}

func (e *Edge) SourceElement() Element {
	if e.SourceCluster != nil {
		return e.SourceCluster
	}
	return e.Source
}

func (e *Edge) TargetElement() Element {
	if e.TargetCluster != nil {
		return e.TargetCluster
	}
	return e.Target
}

type Graph struct {
	Nodes    []*Node
	Clusters []*Cluster
	Edges    []*Edge
}

func NewGraph() *Graph {
	g := &Graph{}
	root := &Cluster{
		ID:       "",
		Index:    0,
		Boundary: NewClusterBoundary(),
	}
	g.Clusters = append(g.Clusters, root)
	return g
}

func (g *Graph) Root() *Cluster {
	return g.Clusters[0]
}

// AddNode adds a node under parent, the root when nil.
func (g *Graph) AddNode(id string, center geo.Point, width, height float64, parent *Cluster) *Node {
	if parent == nil {
		parent = g.Root()
	}
	n := &Node{
		ID:     id,
		Index:  len(g.Nodes),
		Center: center,
		Width:  width,
		Height: height,
		Parent: parent,
	}
	g.Nodes = append(g.Nodes, n)
	parent.Nodes = append(parent.Nodes, n)
	return n
}

// AddCluster adds an empty cluster under parent, the root when nil.
func (g *Graph) AddCluster(id string, parent *Cluster) *Cluster {
	if parent == nil {
		parent = g.Root()
	}
	c := &Cluster{
		ID:       id,
		Index:    len(g.Clusters),
		Parent:   parent,
		Boundary: NewClusterBoundary(),
	}
	g.Clusters = append(g.Clusters, c)
	parent.Clusters = append(parent.Clusters, c)
	return c
}

func (g *Graph) AddEdge(src, dst *Node) *Edge {
	e := &Edge{Source: src, Target: dst}
	g.Edges = append(g.Edges, e)
	return e
}

// AddClusterEdge adds an edge whose ends may be nodes or clusters.
func (g *Graph) AddClusterEdge(src, dst Element) (*Edge, error) {
	e := &Edge{}
	switch v := src.(type) {
	case *Node:
		e.Source = v
	case *Cluster:
		e.SourceCluster = v
	default:
		return nil, fmt.Errorf("unsupported edge source %T", src)
	}
	switch v := dst.(type) {
	case *Node:
		e.Target = v
	case *Cluster:
		e.TargetCluster = v
	default:
		return nil, fmt.Errorf("unsupported edge target %T", dst)
	}
	g.Edges = append(g.Edges, e)
	return e, nil
}

// NodeEdges are the edges between two nodes.
func (g *Graph) NodeEdges() []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if !e.IsClusterEdge() {
			out = append(out, e)
		}
	}
	return out
}

// ComputeDesiredEdgeLengths sets every edge length to the diagonal of a square
// with the area of the smaller end, and clears ports.
func (g *Graph) ComputeDesiredEdgeLengths() {
	for _, e := range g.Edges {
		e.SourcePort = nil
		e.TargetPort = nil
		s := e.SourceElement().BoundingBox()
		t := e.TargetElement().BoundingBox()
		area := s.Width * s.Height
		if a := t.Width * t.Height; a < area {
			area = a
		}
		e.Length = math.Sqrt(2 * area)
	}
}

// BoundingBox covers every node and non-root cluster.
func (g *Graph) BoundingBox() geo.Box {
	var b geo.Box
	first := true
	for _, n := range g.Nodes {
		if first {
			b = n.BoundingBox()
			first = false
			continue
		}
		b = b.Union(n.BoundingBox())
	}
	for _, c := range g.Clusters[1:] {
		if c.Bounds.IsEmpty() {
			continue
		}
		if first {
			b = c.Bounds
			first = false
			continue
		}
		b = b.Union(c.Bounds)
	}
	return b
}
