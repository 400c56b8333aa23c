package overlap

import (
	"math"
	"sort"

	"oss.terrastruct.com/d2incremental/lib/go2"
	"oss.terrastruct.com/d2incremental/lib/projection"
)

type Parameters struct {
	// AllowDeferToVertical skips a horizontal constraint between two
	// rectangles that overlap less vertically than horizontally, leaving the
	// vertical pass to separate them.
	AllowDeferToVertical bool
	// ConsiderProportionalOverlap compares overlaps relative to the rectangle
	// sizes when deciding whether to defer.
	ConsiderProportionalOverlap bool
	Solver                      *projection.Parameters
}

func DefaultParameters() *Parameters {
	return &Parameters{Solver: projection.DefaultParameters()}
}

func (p *Parameters) gapTolerance() float64 {
	if p == nil || p.Solver == nil {
		return projection.DEFAULT_GAP_TOLERANCE
	}
	return p.Solver.GapTolerance
}

type Generator struct {
	IsHorizontal    bool
	Padding         float64
	PaddingP        float64
	ClusterPadding  float64
	ClusterPaddingP float64

	root   *Cluster
	nextID int
}

func NewGenerator(isHorizontal bool, padding, paddingP, clusterPadding, clusterPaddingP float64) *Generator {
	g := &Generator{
		IsHorizontal:    isHorizontal,
		Padding:         padding,
		PaddingP:        paddingP,
		ClusterPadding:  clusterPadding,
		ClusterPaddingP: clusterPaddingP,
	}
	g.root = g.newCluster(nil, 0, 0, NewBorderInfo(0), NewBorderInfo(0), NewBorderInfo(0), NewBorderInfo(0))
	g.root.root = true
	return g
}

// DefaultClusterHierarchy is the root cluster. It has no borders.
func (g *Generator) DefaultClusterHierarchy() *Cluster {
	return g.root
}

func (g *Generator) id() int {
	g.nextID++
	return g.nextID - 1
}

func (g *Generator) newCluster(parent *Cluster, minSize, minSizeP float64, open, close, openP, closeP BorderInfo) *Cluster {
	c := &Cluster{
		MinSize:         minSize,
		MinSizeP:        minSizeP,
		NodePadding:     g.Padding,
		NodePaddingP:    g.PaddingP,
		ClusterPadding:  g.ClusterPadding,
		ClusterPaddingP: g.ClusterPaddingP,
		OpenBorder:      open,
		CloseBorder:     close,
		OpenBorderP:     openP,
		CloseBorderP:    closeP,
		parent:          parent,
	}
	c.Node.ID = g.id()
	c.Node.Weight = DEFAULT_FREE_WEIGHT
	c.Node.cluster = c
	return c
}

// AddCluster creates a cluster under parent (the root when nil).
func (g *Generator) AddCluster(parent *Cluster, minSize, minSizeP float64, open, close, openP, closeP BorderInfo) *Cluster {
	if parent == nil {
		parent = g.root
	}
	c := g.newCluster(parent, minSize, minSizeP, open, close, openP, closeP)
	parent.children = append(parent.children, &c.Node)
	parent.clusters = append(parent.clusters, c)
	return c
}

// AddNode creates a rectangle under parent (the root when nil).
func (g *Generator) AddNode(parent *Cluster, position, positionP, size, sizeP, weight float64) *Node {
	if parent == nil {
		parent = g.root
	}
	n := &Node{
		ID:        g.id(),
		Position:  position,
		PositionP: positionP,
		Size:      size,
		SizeP:     sizeP,
		Weight:    weight,
	}
	parent.children = append(parent.children, n)
	return n
}

// clustersBottomUp lists every cluster with children before their parents.
func (g *Generator) clustersBottomUp() []*Cluster {
	var out []*Cluster
	type frame struct {
		c    *Cluster
		next int
	}
	stack := []frame{{c: g.root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.c.clusters) {
			child := top.c.clusters[top.next]
			top.next++
			stack = append(stack, frame{c: child})
			continue
		}
		out = append(out, top.c)
		stack = stack[:len(stack)-1]
	}
	return out
}

// CreateVariables adds a solver variable for every node without generating
// any non-overlap constraint.
func (g *Generator) CreateVariables(s *projection.Solver) {
	for _, c := range g.clustersBottomUp() {
		c.inSolver = false
		c.left, c.right = nil, nil
		for _, n := range c.children {
			if n.cluster == nil {
				n.createVariable(s)
			}
		}
	}
}

// Generate creates variables and the non-overlap constraints for every cluster.
func (g *Generator) Generate(s *projection.Solver, p *Parameters) {
	if p == nil {
		p = DefaultParameters()
	}
	clusters := g.clustersBottomUp()
	for _, c := range clusters {
		g.generateCluster(s, p, c)
	}
	for _, c := range clusters {
		if c.inSolver && !c.root {
			c.squeezeNonFixedBorders()
		}
	}
}

func (g *Generator) generateCluster(s *projection.Solver, p *Parameters, c *Cluster) {
	c.inSolver = false
	c.left, c.right = nil, nil

	var items []*Node
	open, close := math.Inf(1), math.Inf(-1)
	openP, closeP := math.Inf(1), math.Inf(-1)
	for _, n := range c.children {
		if n.cluster != nil && !n.cluster.inSolver {
			continue
		}
		if n.cluster == nil {
			n.createVariable(s)
		}
		items = append(items, n)
		open = go2.Min(open, n.Open()-c.ClusterPadding)
		close = go2.Max(close, n.Close()+c.ClusterPadding)
		openP = go2.Min(openP, n.OpenP()-c.ClusterPaddingP)
		closeP = go2.Max(closeP, n.CloseP()+c.ClusterPaddingP)
	}
	if len(items) == 0 {
		return
	}
	if !c.root {
		c.createBorders(s, open, close, openP, closeP)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
	tol := p.gapTolerance()
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			olapP := overlapP(a, b, c.NodePaddingP)
			if g.IsHorizontal {
				if olapP <= 0 {
					continue
				}
				if p.AllowDeferToVertical && g.deferToVertical(p, c, a, b, olapP) {
					continue
				}
			} else if olapP <= tol {
				continue
			}
			g.addConstraint(s, c, closeNode(a), openNode(b), c.NodePadding)
		}
	}

	if !c.root {
		for _, n := range items {
			g.addConstraint(s, c, c.left, openNode(n), c.ClusterPadding)
			g.addConstraint(s, c, closeNode(n), c.right, c.ClusterPadding)
		}
		if c.MinSize > 0 {
			gap := c.MinSize - (c.left.Size+c.right.Size)/2
			s.AddConstraint(c.left.Variable, c.right.Variable, gap, false)
		}
	}
	c.inSolver = true
}

func (g *Generator) deferToVertical(p *Parameters, c *Cluster, a, b *Node, olapP float64) bool {
	olap := overlap(a, b, c.NodePadding)
	if olap <= 0 {
		return false
	}
	if p.ConsiderProportionalOverlap {
		return olap/(a.Size+b.Size) > olapP/(a.SizeP+b.SizeP)
	}
	return olap > olapP
}

func (g *Generator) addConstraint(s *projection.Solver, c *Cluster, left, right *Node, pad float64) {
	sep := (left.Size+right.Size)/2 + pad
	if c.TranslateChildren {
		sep = go2.Max(sep, right.Position-left.Position)
	}
	s.AddConstraint(left.Variable, right.Variable, sep, false)
}

// createBorders sizes the cluster around its padded children and creates its
// two border nodes.
func (c *Cluster) createBorders(s *projection.Solver, open, close, openP, closeP float64) {
	lw, rw := c.OpenBorder.Width(), c.CloseBorder.Width()
	open -= lw
	close += rw
	openP -= c.OpenBorderP.Width()
	closeP += c.CloseBorderP.Width()
	if d := c.MinSize - (close - open); d > 0 {
		open -= d / 2
		close += d / 2
	}
	if d := c.MinSizeP - (closeP - openP); d > 0 {
		openP -= d / 2
		closeP += d / 2
	}
	if c.OpenBorderP.IsFixedPosition() && c.CloseBorderP.IsFixedPosition() {
		openP, closeP = c.OpenBorderP.FixedPosition, c.CloseBorderP.FixedPosition
	}
	c.Position = (open + close) / 2
	c.Size = close - open
	c.PositionP = (openP + closeP) / 2
	c.SizeP = closeP - openP

	c.left = &Node{
		ID:        c.ID,
		Position:  open + lw/2,
		PositionP: c.PositionP,
		Size:      lw,
		SizeP:     c.SizeP,
		Weight:    c.OpenBorder.Weight,
	}
	c.right = &Node{
		ID:        c.ID,
		Position:  close - rw/2,
		PositionP: c.PositionP,
		Size:      rw,
		SizeP:     c.SizeP,
		Weight:    c.CloseBorder.Weight,
	}
	c.left.createVariable(s)
	c.right.createVariable(s)
	if c.OpenBorder.IsFixedPosition() {
		c.left.Variable.DesiredPos = c.OpenBorder.FixedPosition + lw/2
	}
	if c.CloseBorder.IsFixedPosition() {
		c.right.Variable.DesiredPos = c.CloseBorder.FixedPosition - rw/2
	}
}

// squeezeNonFixedBorders pulls each free border toward the opposite one so
// the cluster stays as tight as its children allow.
func (c *Cluster) squeezeNonFixedBorders() {
	if !c.OpenBorder.IsFixedPosition() {
		c.left.Variable.DesiredPos = c.right.Position
	}
	if !c.CloseBorder.IsFixedPosition() {
		c.right.Variable.DesiredPos = c.left.Position
	}
}

// UpdateFromVariables copies solved positions back into nodes and cluster
// extents and drops the variable handles.
func (g *Generator) UpdateFromVariables() {
	for _, c := range g.clustersBottomUp() {
		for _, n := range c.children {
			if n.cluster == nil && n.Variable != nil {
				n.Position = n.Variable.Position
				n.Variable = nil
			}
		}
		if c.root || !c.inSolver {
			continue
		}
		c.left.Position = c.left.Variable.Position
		c.right.Position = c.right.Variable.Position
		open := c.left.Position - c.left.Size/2
		close := c.right.Position + c.right.Size/2
		c.Position = (open + close) / 2
		c.Size = close - open
	}
}
