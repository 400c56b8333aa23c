package geograph

import (
	"math"

	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/go2"
	"oss.terrastruct.com/d2incremental/lib/overlap"
)

// LOCK_BORDER_WEIGHT is the border weight of a locked cluster boundary.
const LOCK_BORDER_WEIGHT = 1e4

type Cluster struct {
	ID    string `json:"id"`
	Index int    `json:"index"`

	Parent   *Cluster   `json:"-"`
	Nodes    []*Node    `json:"-"`
	Clusters []*Cluster `json:"-"`

	Bounds   geo.Box          `json:"bounds"`
	Boundary *ClusterBoundary `json:"boundary"`

	layoutDone []func(*Cluster)
}

func (c *Cluster) element() {}

func (c *Cluster) BoundingBox() geo.Box {
	return c.Bounds
}

func (c *Cluster) String() string {
	return c.ID
}

func (c *Cluster) IsRoot() bool {
	return c.Parent == nil
}

func (c *Cluster) IsEmpty() bool {
	return len(c.Nodes) == 0 && len(c.Clusters) == 0
}

// ForEachNode visits every node under c, descending into child clusters.
func (c *Cluster) ForEachNode(fn func(*Node)) {
	stack := []*Cluster{c}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range top.Nodes {
			fn(n)
		}
		for i := len(top.Clusters) - 1; i >= 0; i-- {
			stack = append(stack, top.Clusters[i])
		}
	}
}

// NodeCount is the number of nodes under c.
func (c *Cluster) NodeCount() int {
	n := 0
	c.ForEachNode(func(*Node) { n++ })
	return n
}

// AllClustersDepthFirst lists c and its descendants, children before parents.
func (c *Cluster) AllClustersDepthFirst() []*Cluster {
	var out []*Cluster
	type frame struct {
		c    *Cluster
		next int
	}
	stack := []frame{{c: c}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.c.Clusters) {
			child := top.c.Clusters[top.next]
			top.next++
			stack = append(stack, frame{c: child})
			continue
		}
		out = append(out, top.c)
		stack = stack[:len(stack)-1]
	}
	return out
}

// Ancestors lists the clusters containing c, innermost first.
func (c *Cluster) Ancestors() []*Cluster {
	var out []*Cluster
	for p := c.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// CalculateBoundsFromChildren fits the cluster around its nodes and child
// clusters plus margin, honoring the boundary's minimum size.
func (c *Cluster) CalculateBoundsFromChildren(margin float64) {
	l, t := math.Inf(1), math.Inf(1)
	r, b := math.Inf(-1), math.Inf(-1)
	grow := func(box geo.Box) {
		l = go2.Min(l, box.Left())
		t = go2.Min(t, box.Top())
		r = go2.Max(r, box.Right())
		b = go2.Max(b, box.Bottom())
	}
	for _, n := range c.Nodes {
		grow(n.BoundingBox())
	}
	for _, child := range c.Clusters {
		if !child.IsEmpty() {
			grow(child.Bounds)
		}
	}
	if math.IsInf(l, 1) {
		return
	}
	box := geo.NewBoxFromSides(l, t, r, b).Pad(margin)
	if c.Boundary != nil {
		center := box.Center()
		if box.Width < c.Boundary.MinWidth {
			box = geo.NewBoxFromCenter(center, c.Boundary.MinWidth, box.Height)
		}
		if box.Height < c.Boundary.MinHeight {
			box = geo.NewBoxFromCenter(center, box.Width, c.Boundary.MinHeight)
		}
		c.Boundary.Rect = box
	}
	c.Bounds = box
}

// OnLayoutDone registers fn to run when a layout finalizes c's bounds.
func (c *Cluster) OnLayoutDone(fn func(*Cluster)) {
	c.layoutDone = append(c.layoutDone, fn)
}

func (c *Cluster) RaiseLayoutDone() {
	for _, fn := range c.layoutDone {
		fn(c)
	}
}

// ClusterBoundary is the rectangle a cluster occupies during layout together
// with the border descriptors the overlap generator reads.
type ClusterBoundary struct {
	Rect geo.Box `json:"rect"`

	LeftBorder   overlap.BorderInfo `json:"leftBorder"`
	RightBorder  overlap.BorderInfo `json:"rightBorder"`
	TopBorder    overlap.BorderInfo `json:"topBorder"`
	BottomBorder overlap.BorderInfo `json:"bottomBorder"`

	// GenerateFixedConstraints makes the children translate rigidly.
	GenerateFixedConstraints        bool `json:"generateFixedConstraints"`
	GenerateFixedConstraintsDefault bool `json:"generateFixedConstraintsDefault"`

	MinWidth  float64 `json:"minWidth"`
	MinHeight float64 `json:"minHeight"`
}

func NewClusterBoundary() *ClusterBoundary {
	return &ClusterBoundary{
		LeftBorder:   overlap.NewBorderInfo(0),
		RightBorder:  overlap.NewBorderInfo(0),
		TopBorder:    overlap.NewBorderInfo(0),
		BottomBorder: overlap.NewBorderInfo(0),
	}
}

// SetMargins sets the inner margin of every side.
func (b *ClusterBoundary) SetMargins(m float64) {
	b.LeftBorder.InnerMargin = m
	b.RightBorder.InnerMargin = m
	b.TopBorder.InnerMargin = m
	b.BottomBorder.InnerMargin = m
}

// Lock pins every side at the given outer coordinates.
func (b *ClusterBoundary) Lock(left, right, top, bottom float64) {
	if left < right {
		b.LeftBorder = overlap.NewFixedBorderInfo(b.LeftBorder.InnerMargin, left, LOCK_BORDER_WEIGHT)
		b.RightBorder = overlap.NewFixedBorderInfo(b.RightBorder.InnerMargin, right, LOCK_BORDER_WEIGHT)
	}
	if top < bottom {
		b.TopBorder = overlap.NewFixedBorderInfo(b.TopBorder.InnerMargin, top, LOCK_BORDER_WEIGHT)
		b.BottomBorder = overlap.NewFixedBorderInfo(b.BottomBorder.InnerMargin, bottom, LOCK_BORDER_WEIGHT)
	}
}

func (b *ClusterBoundary) Unlock() {
	b.LeftBorder.Free()
	b.RightBorder.Free()
	b.TopBorder.Free()
	b.BottomBorder.Free()
}

func (b *ClusterBoundary) IsLocked() bool {
	return b.LeftBorder.IsFixedPosition() || b.RightBorder.IsFixedPosition() ||
		b.TopBorder.IsFixedPosition() || b.BottomBorder.IsFixedPosition()
}

func (b *ClusterBoundary) RestoreDefaultConstraints() {
	b.GenerateFixedConstraints = b.GenerateFixedConstraintsDefault
}
