// Package multipole approximates all-pairs repulsion with a KD-tree whose
// nodes carry truncated multipole expansions of the points below them.
//
// Points are treated as complex numbers. For a set of points q around a center
// z0 the expansion is
//
//	a0 = m, ak = -sum((q - z0)^k) / k
//
// and the force it exerts on a distant point follows from the derivative of
// the expansion's potential.
package multipole

import (
	"oss.terrastruct.com/d2incremental/lib/geo"
)

// MIN_DISTANCE_SQUARED is the squared distance below which Force stops growing.
const MIN_DISTANCE_SQUARED = 0.1

// Force is the unscaled repulsion gradient between u and v: it points from u
// toward v with magnitude 1/|v-u|. Coincident points get a fixed unit push.
func Force(u, v geo.Point) geo.Point {
	duv := v.Sub(u)
	l := duv.LengthSquared()
	if l < MIN_DISTANCE_SQUARED {
		if l != 0 {
			return duv.Scale(1 / MIN_DISTANCE_SQUARED)
		}
		return geo.NewPoint(1, 0)
	}
	return duv.Scale(1 / l)
}

type Coefficients struct {
	z0 complex128
	a  []complex128
}

// NewCoefficients expands points about center keeping precision terms.
func NewCoefficients(precision int, center geo.Point, points []geo.Point) *Coefficients {
	m := &Coefficients{
		z0: toComplex(center),
		a:  make([]complex128, precision),
	}
	if precision == 0 {
		return m
	}
	m.a[0] = complex(float64(len(points)), 0)
	for k := 1; k < precision; k++ {
		var ak complex128
		for _, q := range points {
			ak -= pow(toComplex(q)-m.z0, k)
		}
		m.a[k] = ak / complex(float64(k), 0)
	}
	return m
}

// Combine shifts the expansions of two children to center and sums them.
func Combine(center geo.Point, m1, m2 *Coefficients) *Coefficients {
	z0 := toComplex(center)
	b1 := m1.shift(z0)
	b2 := m2.shift(z0)
	m := &Coefficients{
		z0: z0,
		a:  make([]complex128, len(b1)),
	}
	for i := range b1 {
		m.a[i] = b1[i] + b2[i]
	}
	return m
}

func (m *Coefficients) Precision() int {
	return len(m.a)
}

func (m *Coefficients) shift(z1 complex128) []complex128 {
	p := len(m.a)
	b := make([]complex128, p)
	if p == 0 {
		return b
	}
	a0 := m.a[0]
	b[0] = a0
	d := m.z0 - z1
	for l := 1; l < p; l++ {
		s := -a0 * pow(d, l) / complex(float64(l), 0)
		for k := 1; k <= l; k++ {
			s += m.a[k] * pow(d, l-k) * complex(binomial(l-1, k-1), 0)
		}
		b[l] = s
	}
	return b
}

// ApproximateForce is the force the expanded points exert on v, in the same
// orientation as the sum of Force(q, v) over the points.
func (m *Coefficients) ApproximateForce(v geo.Point) geo.Point {
	if len(m.a) == 0 {
		return geo.Point{}
	}
	d := toComplex(v) - m.z0
	fz := div(m.a[0], d)
	dk := d
	for k := 1; k < len(m.a); k++ {
		dk *= d
		fz -= div(m.a[k]*complex(float64(k), 0), dk)
	}
	return geo.NewPoint(real(fz), -imag(fz))
}

func toComplex(p geo.Point) complex128 {
	return complex(p.X, p.Y)
}

// div is complex division that yields 0 for a zero divisor.
func div(a, b complex128) complex128 {
	if b == 0 {
		return 0
	}
	return a / b
}

func pow(z complex128, k int) complex128 {
	out := complex(1, 0)
	for k > 0 {
		if k&1 == 1 {
			out *= z
		}
		z *= z
		k >>= 1
	}
	return out
}

func binomial(n, k int) float64 {
	out := 1.0
	for i := 1; i <= k; i++ {
		out = out * float64(n-k+i) / float64(i)
	}
	return out
}
