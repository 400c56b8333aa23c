package d2incremental

import (
	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
	"oss.terrastruct.com/d2incremental/lib/overlap"
)

// Particle is the simulation state of one graph node. During a session the
// particle owns the position; Session.Publish copies it back to the node.
type Particle struct {
	Index int
	Node  *geograph.Node

	Center          geo.Point
	PreviousCenter  geo.Point
	DesiredPosition geo.Point
	Force           geo.Point

	Width  float64
	Height float64

	// StayWeight resists displacement. Locked nodes weigh far more than 1.
	StayWeight float64

	// olap holds the overlap generator node of the horizontal (0) and
	// vertical (1) axis solve in progress.
	olap [2]*overlap.Node
}

func newParticle(n *geograph.Node) *Particle {
	p := &Particle{
		Index:      n.Index,
		Node:       n,
		StayWeight: 1,
	}
	p.ResetBounds()
	return p
}

// ResetBounds resyncs the particle from its node and forgets its velocity.
func (p *Particle) ResetBounds() {
	p.Center = p.Node.Center
	p.PreviousCenter = p.Center
	p.Width = p.Node.Width
	p.Height = p.Node.Height
}

func (p *Particle) BoundingBox() geo.Box {
	return geo.NewBoxFromCenter(p.Center, p.Width, p.Height)
}

func axisIndex(horizontal bool) int {
	if horizontal {
		return 0
	}
	return 1
}

func (p *Particle) olapNode(horizontal bool) *overlap.Node {
	return p.olap[axisIndex(horizontal)]
}

func (p *Particle) setOlapNode(horizontal bool, n *overlap.Node) {
	p.olap[axisIndex(horizontal)] = n
}

// UpdatePos copies the solved coordinate of one axis into Center. The
// horizontal solve runs first and takes Y from PreviousCenter, which is the
// configuration its constraints were generated from.
func (p *Particle) UpdatePos(horizontal bool) {
	n := p.olapNode(horizontal)
	if n == nil {
		return
	}
	if horizontal {
		p.Center = geo.NewPoint(n.Position, p.PreviousCenter.Y)
	} else {
		p.Center = geo.NewPoint(p.Center.X, n.Position)
	}
}

type particleEdge struct {
	source *Particle
	target *Particle
	edge   *geograph.Edge
}

// particleSet is indexed by geograph.Node.Index and serves as the Positions of
// a session.
type particleSet []*Particle

func (ps particleSet) Center(n *geograph.Node) geo.Point {
	return ps[n.Index].Center
}

func (ps particleSet) SetCenter(n *geograph.Node, c geo.Point) {
	ps[n.Index].Center = c
}

func (ps particleSet) Weight(n *geograph.Node) float64 {
	return ps[n.Index].StayWeight
}

func (ps particleSet) SetWeight(n *geograph.Node, w float64) {
	ps[n.Index].StayWeight = w
}

func particleCenter(p *Particle) geo.Point {
	return p.Center
}

func particlePreviousCenter(p *Particle) geo.Point {
	return p.PreviousCenter
}
