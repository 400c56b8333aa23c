package d2incremental

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
)

// ProcrustesCircleConstraint holds a set of nodes in the shape of a target
// configuration, a regular polygon by default. Each projection moves the nodes
// onto the rotated, scaled and translated target that best fits them.
type ProcrustesCircleConstraint struct {
	nodes  []*geograph.Node
	target []geo.Point

	// ConstraintLevel defaults to 1.
	ConstraintLevel int
}

// NewProcrustesCircleConstraint arranges nodes on a circle in the given order.
func NewProcrustesCircleConstraint(nodes []*geograph.Node) *ProcrustesCircleConstraint {
	n := len(nodes)
	target := make([]geo.Point, n)
	// a circle of a size comparable to the layout keeps the fit well conditioned
	r := 10 * float64(n)
	for i := range target {
		theta := 2 * math.Pi * float64(i) / float64(n)
		target[i] = geo.NewPoint(r*math.Cos(theta), r*math.Sin(theta))
	}
	return &ProcrustesCircleConstraint{
		nodes:           append([]*geograph.Node(nil), nodes...),
		target:          target,
		ConstraintLevel: 1,
	}
}

// NewProcrustesConstraint holds nodes in the shape of target. target[i] is
// the shape position of nodes[i].
func NewProcrustesConstraint(nodes []*geograph.Node, target []geo.Point) (*ProcrustesCircleConstraint, error) {
	if len(nodes) != len(target) {
		return nil, fmt.Errorf("%w: %d nodes for %d target points", ErrInvalidArgument, len(nodes), len(target))
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrMissingArgument)
	}
	c := geo.Points(target).Centroid()
	centered := make([]geo.Point, len(target))
	for i, p := range target {
		centered[i] = p.Sub(c)
	}
	return &ProcrustesCircleConstraint{
		nodes:           append([]*geograph.Node(nil), nodes...),
		target:          centered,
		ConstraintLevel: 1,
	}, nil
}

func (c *ProcrustesCircleConstraint) Level() int { return c.ConstraintLevel }

func (c *ProcrustesCircleConstraint) Nodes() []*geograph.Node {
	return c.nodes
}

func (c *ProcrustesCircleConstraint) Project(ps Positions) float64 {
	if len(c.nodes) == 0 {
		return 0
	}
	x := make([]geo.Point, len(c.nodes))
	for i, n := range c.nodes {
		x[i] = ps.Center(n)
	}
	r, s, t := fitTransform(x, c.target)
	displacement := 0.0
	for i, n := range c.nodes {
		var p geo.Point
		if math.IsNaN(s) {
			p = c.target[i]
		} else {
			p = mulVec(r, c.target[i]).Scale(s).Add(t)
		}
		ps.SetCenter(n, p)
		displacement += p.DistanceTo(x[i])
	}
	return displacement
}

// fitTransform finds the rotation r, scale s and translation t minimizing
// sum |x_i - (s*r*y_i + t)|^2 for centered y. s is NaN when y has no extent
// or the decomposition fails.
func fitTransform(x, y []geo.Point) (*mat.Dense, float64, geo.Point) {
	var c [4]float64
	yy := 0.0
	for i := range x {
		c[0] += x[i].X * y[i].X
		c[1] += x[i].X * y[i].Y
		c[2] += x[i].Y * y[i].X
		c[3] += x[i].Y * y[i].Y
		yy += y[i].LengthSquared()
	}
	r := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	mean := geo.Points(x).Centroid()
	if yy == 0 {
		return r, math.NaN(), mean
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(2, 2, c[:]), mat.SVDFull); !ok {
		return r, math.NaN(), mean
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())

	values := svd.Values(nil)
	s := (values[0] + values[1]) / yy
	t := mean.Sub(mulVec(r, geo.Points(y).Centroid()).Scale(s))
	return r, s, t
}

func mulVec(m mat.Matrix, p geo.Point) geo.Point {
	return geo.NewPoint(
		m.At(0, 0)*p.X+m.At(0, 1)*p.Y,
		m.At(1, 0)*p.X+m.At(1, 1)*p.Y,
	)
}
