package geo

import (
	"math"
	"math/rand"
)

// Disc is a circle with its interior.
type Disc struct {
	Center Point
	Radius float64
}

func (d Disc) Contains(p Point) bool {
	return d.Center.DistanceTo(p) <= d.Radius+1e-9*(1+d.Radius)
}

// Intersects reports whether the two discs share at least one point.
func (d Disc) Intersects(o Disc) bool {
	return d.Center.DistanceTo(o.Center) <= d.Radius+o.Radius
}

func discFrom2(a, b Point) Disc {
	c := a.Add(b).Scale(0.5)
	return Disc{Center: c, Radius: c.DistanceTo(a)}
}

// discFrom3 is the circumscribed disc of a, b and c. Collinear points fall back
// to the disc over the farthest pair.
func discFrom3(a, b, c Point) Disc {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-12 {
		best := discFrom2(a, b)
		if o := discFrom2(a, c); o.Radius > best.Radius {
			best = o
		}
		if o := discFrom2(b, c); o.Radius > best.Radius {
			best = o
		}
		return best
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	center := NewPoint(a.X+ux, a.Y+uy)
	return Disc{Center: center, Radius: math.Hypot(ux, uy)}
}

// MinimumEnclosingDisc returns the smallest disc containing every point (Welzl).
// The input order is shuffled with a seed derived from its length so results
// are reproducible.
func MinimumEnclosingDisc(ps []Point) Disc {
	if len(ps) == 0 {
		return Disc{}
	}
	pts := make([]Point, len(ps))
	copy(pts, ps)
	r := rand.New(rand.NewSource(int64(len(pts))))
	r.Shuffle(len(pts), func(i, j int) {
		pts[i], pts[j] = pts[j], pts[i]
	})

	d := Disc{Center: pts[0]}
	for i := 1; i < len(pts); i++ {
		if d.Contains(pts[i]) {
			continue
		}
		d = Disc{Center: pts[i]}
		for j := 0; j < i; j++ {
			if d.Contains(pts[j]) {
				continue
			}
			d = discFrom2(pts[i], pts[j])
			for k := 0; k < j; k++ {
				if !d.Contains(pts[k]) {
					d = discFrom3(pts[i], pts[j], pts[k])
				}
			}
		}
	}
	return d
}
