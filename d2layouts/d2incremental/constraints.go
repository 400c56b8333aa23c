package d2incremental

import (
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
)

// Positions is where constraints read and write node centers. A Session
// projects onto its particles; GraphPositions projects onto the graph itself.
type Positions interface {
	Center(*geograph.Node) geo.Point
	SetCenter(*geograph.Node, geo.Point)
	// Weight is the node's resistance to being moved.
	Weight(*geograph.Node) float64
}

// GraphPositions reads and writes geograph.Node.Center directly. Nodes
// missing from Weights weigh 1.
type GraphPositions struct {
	Weights map[*geograph.Node]float64
}

func (GraphPositions) Center(n *geograph.Node) geo.Point {
	return n.Center
}

func (GraphPositions) SetCenter(n *geograph.Node, p geo.Point) {
	n.Center = p
}

func (gp GraphPositions) Weight(n *geograph.Node) float64 {
	if w, ok := gp.Weights[n]; ok {
		return w
	}
	return 1
}

// Constraint is a structural requirement on node positions.
type Constraint interface {
	// Level is the constraint level from which the constraint is enforced.
	// Constraints built here default to level 0 and take their level from
	// their ConstraintLevel field.
	Level() int
	Nodes() []*geograph.Node
	// Project moves the nodes toward satisfying the constraint and returns
	// the total distance moved.
	Project(Positions) float64
}

// shares splits a displacement between u and v inversely to their weights.
func shares(ps Positions, u, v *geograph.Node) (float64, float64) {
	wu, wv := ps.Weight(u), ps.Weight(v)
	if !(wu > 0) || !(wv > 0) {
		return 0.5, 0.5
	}
	return wv / (wu + wv), wu / (wu + wv)
}

// stretch moves u and v along the line joining them so their distance grows
// by delta, or shrinks when delta is negative.
func stretch(ps Positions, u, v *geograph.Node, delta float64) float64 {
	cu, cv := ps.Center(u), ps.Center(v)
	dir := cv.Sub(cu).Unit()
	if dir == (geo.Point{}) || delta == 0 {
		return 0
	}
	su, sv := shares(ps, u, v)
	ps.SetCenter(u, cu.Sub(dir.Scale(delta*su)))
	ps.SetCenter(v, cv.Add(dir.Scale(delta*sv)))
	return math.Abs(delta)
}

// StickConstraint keeps two nodes exactly Separation apart.
type StickConstraint struct {
	U, V       *geograph.Node
	Separation float64
	// ConstraintLevel is the first level projecting the constraint.
	ConstraintLevel int
}

func NewStickConstraint(u, v *geograph.Node, separation float64) *StickConstraint {
	return &StickConstraint{U: u, V: v, Separation: separation}
}

func (c *StickConstraint) Level() int { return c.ConstraintLevel }

func (c *StickConstraint) Nodes() []*geograph.Node {
	return []*geograph.Node{c.U, c.V}
}

func (c *StickConstraint) Project(ps Positions) float64 {
	d := ps.Center(c.U).DistanceTo(ps.Center(c.V))
	return stretch(ps, c.U, c.V, c.Separation-d)
}

// MinSeparationConstraint keeps two node centers at least Separation apart.
type MinSeparationConstraint struct {
	U, V            *geograph.Node
	Separation      float64
	ConstraintLevel int
}

func NewMinSeparationConstraint(u, v *geograph.Node, separation float64) *MinSeparationConstraint {
	return &MinSeparationConstraint{U: u, V: v, Separation: separation}
}

func (c *MinSeparationConstraint) Level() int { return c.ConstraintLevel }

func (c *MinSeparationConstraint) Nodes() []*geograph.Node {
	return []*geograph.Node{c.U, c.V}
}

func (c *MinSeparationConstraint) Project(ps Positions) float64 {
	d := ps.Center(c.U).DistanceTo(ps.Center(c.V))
	if d >= c.Separation {
		return 0
	}
	return stretch(ps, c.U, c.V, c.Separation-d)
}

// MaxSeparationConstraint keeps two node centers at most Separation apart.
type MaxSeparationConstraint struct {
	U, V            *geograph.Node
	Separation      float64
	ConstraintLevel int
}

func NewMaxSeparationConstraint(u, v *geograph.Node, separation float64) *MaxSeparationConstraint {
	return &MaxSeparationConstraint{U: u, V: v, Separation: separation}
}

func (c *MaxSeparationConstraint) Level() int { return c.ConstraintLevel }

func (c *MaxSeparationConstraint) Nodes() []*geograph.Node {
	return []*geograph.Node{c.U, c.V}
}

func (c *MaxSeparationConstraint) Project(ps Positions) float64 {
	d := ps.Center(c.U).DistanceTo(ps.Center(c.V))
	if d <= c.Separation {
		return 0
	}
	return stretch(ps, c.U, c.V, c.Separation-d)
}

// axisSeparate moves lo and hi along one axis so hi - lo reaches sep.
func axisSeparate(ps Positions, lo, hi *geograph.Node, sep float64, equality, horizontal bool) float64 {
	cl, ch := ps.Center(lo), ps.Center(hi)
	gap := ch.Coord(horizontal) - cl.Coord(horizontal)
	if gap >= sep && !(equality && gap != sep) {
		return 0
	}
	delta := sep - gap
	sl, sh := shares(ps, lo, hi)
	if horizontal {
		cl.X -= delta * sl
		ch.X += delta * sh
	} else {
		cl.Y -= delta * sl
		ch.Y += delta * sh
	}
	ps.SetCenter(lo, cl)
	ps.SetCenter(hi, ch)
	return math.Abs(delta)
}

// VerticalSeparationConstraint keeps Bottom at least Separation below Top,
// or exactly Separation below with IsEquality.
type VerticalSeparationConstraint struct {
	Top, Bottom     *geograph.Node
	Separation      float64
	IsEquality      bool
	ConstraintLevel int
}

func NewVerticalSeparationConstraint(top, bottom *geograph.Node, separation float64, isEquality bool) *VerticalSeparationConstraint {
	return &VerticalSeparationConstraint{Top: top, Bottom: bottom, Separation: separation, IsEquality: isEquality}
}

func (c *VerticalSeparationConstraint) Level() int { return c.ConstraintLevel }

func (c *VerticalSeparationConstraint) Nodes() []*geograph.Node {
	return []*geograph.Node{c.Top, c.Bottom}
}

func (c *VerticalSeparationConstraint) Project(ps Positions) float64 {
	return axisSeparate(ps, c.Top, c.Bottom, c.Separation, c.IsEquality, false)
}

// HorizontalSeparationConstraint keeps Right at least Separation right of
// Left, or exactly Separation with IsEquality.
type HorizontalSeparationConstraint struct {
	Left, Right     *geograph.Node
	Separation      float64
	IsEquality      bool
	ConstraintLevel int
}

func NewHorizontalSeparationConstraint(left, right *geograph.Node, separation float64, isEquality bool) *HorizontalSeparationConstraint {
	return &HorizontalSeparationConstraint{Left: left, Right: right, Separation: separation, IsEquality: isEquality}
}

func (c *HorizontalSeparationConstraint) Level() int { return c.ConstraintLevel }

func (c *HorizontalSeparationConstraint) Nodes() []*geograph.Node {
	return []*geograph.Node{c.Left, c.Right}
}

func (c *HorizontalSeparationConstraint) Project(ps Positions) float64 {
	return axisSeparate(ps, c.Left, c.Right, c.Separation, c.IsEquality, true)
}

// ledger groups the constraints projected by the engine by level.
type ledger map[int][]Constraint

func (l ledger) addLevel(level int) {
	if _, ok := l[level]; !ok {
		l[level] = nil
	}
}

func (l ledger) add(c Constraint) {
	l[c.Level()] = append(l[c.Level()], c)
}

// levels lists the known levels in ascending order.
func (l ledger) levels() []int {
	levels := maps.Keys(l)
	slices.Sort(levels)
	return levels
}
