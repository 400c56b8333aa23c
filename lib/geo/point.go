package geo

import (
	"fmt"
	"math"
	"strings"
)

// Point is a position or a displacement in layout space. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

func (p Point) Neg() Point {
	return Point{X: -p.X, Y: -p.Y}
}

func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

func (p Point) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

func (p Point) LengthSquared() float64 {
	return p.X*p.X + p.Y*p.Y
}

func (p Point) DistanceTo(q Point) float64 {
	return EuclideanDistance(p.X, p.Y, q.X, q.Y)
}

// Unit returns p scaled to length 1, or the zero point if p has no length.
func (p Point) Unit() Point {
	l := p.Length()
	if l == 0 {
		return Point{}
	}
	return p.Scale(1 / l)
}

// Coord returns X for the horizontal axis and Y otherwise.
func (p Point) Coord(horizontal bool) float64 {
	if horizontal {
		return p.X
	}
	return p.Y
}

func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func (p Point) Equals(q Point) bool {
	return p.X == q.X && p.Y == q.Y
}

// ApproxEquals compares with PrecisionCompare on both coordinates.
func (p Point) ApproxEquals(q Point, e float64) bool {
	return PrecisionCompare(p.X, q.X, e) == 0 && PrecisionCompare(p.Y, q.Y, e) == 0
}

func (p Point) Compare(q Point) int {
	xCompare := Sign(p.X - q.X)
	if xCompare == 0 {
		return Sign(p.Y - q.Y)
	}
	return xCompare
}

func (p Point) ToString() string {
	return fmt.Sprintf("(%v, %v)", p.X, p.Y)
}

type Points []Point

// Centroid is the mean of the points. Empty input yields the origin.
func (ps Points) Centroid() Point {
	var c Point
	if len(ps) == 0 {
		return c
	}
	for _, p := range ps {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(ps)))
}

func (ps Points) ToString() string {
	strs := make([]string, 0, len(ps))
	for _, p := range ps {
		strs = append(strs, p.ToString())
	}
	return strings.Join(strs, ", ")
}
