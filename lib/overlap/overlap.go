// Package overlap generates separation constraints that keep rectangles from
// overlapping along one axis.
//
// Rectangles are Nodes grouped into a tree of Clusters. Constraints are only
// generated between siblings. A non-root cluster is represented by two border
// nodes (its open and close sides) that contain its children, so a solved
// cluster can be read back as a rectangle.
//
// The generator works one axis at a time. "P" fields describe the
// perpendicular axis, which is only read to decide whether two rectangles
// overlap there and thus need a constraint in the primary axis.
package overlap

import (
	"math"

	"oss.terrastruct.com/d2incremental/lib/projection"
)

type Node struct {
	ID        int
	Position  float64
	PositionP float64
	Size      float64
	SizeP     float64
	Weight    float64
	Variable  *projection.Variable

	// cluster is set when this node is the outline of a cluster.
	cluster *Cluster
}

func (n *Node) Open() float64   { return n.Position - n.Size/2 }
func (n *Node) Close() float64  { return n.Position + n.Size/2 }
func (n *Node) OpenP() float64  { return n.PositionP - n.SizeP/2 }
func (n *Node) CloseP() float64 { return n.PositionP + n.SizeP/2 }

// Cluster returns the cluster this node outlines, if any.
func (n *Node) Cluster() *Cluster {
	return n.cluster
}

func (n *Node) createVariable(s *projection.Solver) {
	n.Variable = s.AddVariable(n.Position, n.Weight)
}

// overlap is how far a and b intrude into each other's padded extent in the
// primary axis. Positive values overlap.
func overlap(a, b *Node, pad float64) float64 {
	return (a.Size+b.Size)/2 + pad - math.Abs(a.Position-b.Position)
}

func overlapP(a, b *Node, pad float64) float64 {
	return (a.SizeP+b.SizeP)/2 + pad - math.Abs(a.PositionP-b.PositionP)
}

type Cluster struct {
	Node

	MinSize  float64
	MinSizeP float64

	NodePadding     float64
	NodePaddingP    float64
	ClusterPadding  float64
	ClusterPaddingP float64
	// TranslateChildren keeps children at their current relative offsets or
	// farther apart, so the cluster moves as a rigid unit.
	TranslateChildren bool

	OpenBorder   BorderInfo
	CloseBorder  BorderInfo
	OpenBorderP  BorderInfo
	CloseBorderP BorderInfo

	parent   *Cluster
	children []*Node
	clusters []*Cluster
	root     bool

	left     *Node
	right    *Node
	inSolver bool
}

func (c *Cluster) IsRoot() bool {
	return c.root
}

func (c *Cluster) IsEmpty() bool {
	return len(c.children) == 0
}

// InSolver reports whether the last Generate placed this cluster's borders in the solver.
func (c *Cluster) InSolver() bool {
	return c.inSolver
}

func (c *Cluster) Clusters() []*Cluster {
	return c.clusters
}

func (c *Cluster) Parent() *Cluster {
	return c.parent
}

// LeftBorder and RightBorder are the open and close border nodes. They are nil
// for the root and for clusters that were not generated.
func (c *Cluster) LeftBorder() *Node {
	return c.left
}

func (c *Cluster) RightBorder() *Node {
	return c.right
}

// closeNode is what a sibling to the right of n separates from.
func closeNode(n *Node) *Node {
	if n.cluster != nil {
		return n.cluster.right
	}
	return n
}

func openNode(n *Node) *Node {
	if n.cluster != nil {
		return n.cluster.left
	}
	return n
}
