package geo

import (
	"fmt"
	"math"
)

type Box struct {
	TopLeft Point   `json:"topLeft"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func NewBox(tl Point, width, height float64) Box {
	return Box{
		TopLeft: tl,
		Width:   width,
		Height:  height,
	}
}

// NewBoxFromCenter builds a width x height box centered on c.
func NewBoxFromCenter(c Point, width, height float64) Box {
	return NewBox(NewPoint(c.X-width/2, c.Y-height/2), width, height)
}

func NewBoxFromSides(left, top, right, bottom float64) Box {
	return NewBox(NewPoint(left, top), right-left, bottom-top)
}

func (b Box) Left() float64   { return b.TopLeft.X }
func (b Box) Top() float64    { return b.TopLeft.Y }
func (b Box) Right() float64  { return b.TopLeft.X + b.Width }
func (b Box) Bottom() float64 { return b.TopLeft.Y + b.Height }

func (b Box) Center() Point {
	return NewPoint(b.TopLeft.X+b.Width/2, b.TopLeft.Y+b.Height/2)
}

func (b Box) IsEmpty() bool {
	return b.Width <= 0 && b.Height <= 0
}

// WithHorizontal returns b with its left and right sides replaced.
func (b Box) WithHorizontal(left, right float64) Box {
	return NewBoxFromSides(left, b.Top(), right, b.Bottom())
}

// WithVertical returns b with its top and bottom sides replaced.
func (b Box) WithVertical(top, bottom float64) Box {
	return NewBoxFromSides(b.Left(), top, b.Right(), bottom)
}

func (b Box) Translate(d Point) Box {
	return NewBox(b.TopLeft.Add(d), b.Width, b.Height)
}

// Pad grows the box by p on every side. Negative p shrinks it.
func (b Box) Pad(p float64) Box {
	return NewBoxFromSides(b.Left()-p, b.Top()-p, b.Right()+p, b.Bottom()+p)
}

func (b Box) Union(o Box) Box {
	return NewBoxFromSides(
		math.Min(b.Left(), o.Left()),
		math.Min(b.Top(), o.Top()),
		math.Max(b.Right(), o.Right()),
		math.Max(b.Bottom(), o.Bottom()),
	)
}

// Intersects reports whether the interiors of b and o overlap.
func (b Box) Intersects(o Box) bool {
	return b.Left() < o.Right() && o.Left() < b.Right() &&
		b.Top() < o.Bottom() && o.Top() < b.Bottom()
}

func (b Box) Contains(o Box) bool {
	return o.Left() >= b.Left() && o.Right() <= b.Right() &&
		o.Top() >= b.Top() && o.Bottom() <= b.Bottom()
}

func (b Box) ContainsPoint(p Point) bool {
	return p.X >= b.Left() && p.X <= b.Right() && p.Y >= b.Top() && p.Y <= b.Bottom()
}

func (b Box) ToString() string {
	return fmt.Sprintf("{TopLeft: %s, Width: %.0f, Height: %.0f}", b.TopLeft.ToString(), b.Width, b.Height)
}
