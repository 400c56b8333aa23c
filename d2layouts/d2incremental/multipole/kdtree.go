package multipole

import (
	"sort"

	"oss.terrastruct.com/d2incremental/lib/geo"
)

// Particle is a point in a KDTree. ComputeForces accumulates into Force.
type Particle struct {
	Point geo.Point
	Force geo.Point

	splitLeft bool
}

func NewParticle(p geo.Point) *Particle {
	return &Particle{Point: p}
}

func (p *Particle) pos(horizontal bool) float64 {
	return p.Point.Coord(horizontal)
}

const (
	dimX = 0
	dimY = 1
)

type kdNode struct {
	med    geo.Disc
	coeffs *Coefficients

	left  *kdNode
	right *kdNode

	// particles of a leaf, sorted by x and by y.
	particles [2][]*Particle
}

func (n *kdNode) isLeaf() bool {
	return n.left == nil
}

func (n *kdNode) size() int {
	return len(n.particles[dimX])
}

func (n *kdNode) intersects(o *kdNode) bool {
	return n.med.Center.DistanceTo(o.med.Center) < n.med.Radius+o.med.Radius
}

func (n *kdNode) computeMED() {
	ps := make([]geo.Point, 0, n.size())
	for _, p := range n.particles[dimX] {
		ps = append(ps, p.Point)
	}
	n.med = geo.MinimumEnclosingDisc(ps)
}

func (n *kdNode) extent(d int) float64 {
	ps := n.particles[d]
	return ps[len(ps)-1].pos(d == dimX) - ps[0].pos(d == dimX)
}

// split turns the leaf n into an internal node over two new leaves, dividing
// its particles at the median of its wider dimension. n keeps its disc.
func (n *kdNode) split() (*kdNode, *kdNode) {
	sd, nd := dimY, dimX
	if n.extent(dimX) > n.extent(dimY) {
		sd, nd = dimX, dimY
	}
	count := n.size()
	nLeft := count / 2

	left := &kdNode{}
	right := &kdNode{}
	for i, p := range n.particles[sd] {
		p.splitLeft = i < nLeft
		if p.splitLeft {
			left.particles[sd] = append(left.particles[sd], p)
		} else {
			right.particles[sd] = append(right.particles[sd], p)
		}
	}
	for _, p := range n.particles[nd] {
		if p.splitLeft {
			left.particles[nd] = append(left.particles[nd], p)
		} else {
			right.particles[nd] = append(right.particles[nd], p)
		}
	}
	left.computeMED()
	right.computeMED()

	n.left = left
	n.right = right
	n.particles = [2][]*Particle{}
	return left, right
}

func (n *kdNode) computeCoefficients(precision int) {
	if n.isLeaf() {
		ps := make([]geo.Point, 0, n.size())
		for _, p := range n.particles[dimX] {
			ps = append(ps, p.Point)
		}
		n.coeffs = NewCoefficients(precision, n.med.Center, ps)
		return
	}
	n.left.computeCoefficients(precision)
	n.right.computeCoefficients(precision)
	n.coeffs = Combine(n.med.Center, n.left.coeffs, n.right.coeffs)
}

// KDTree partitions particles until every leaf holds at most bucketSize of
// them.
type KDTree struct {
	root   *kdNode
	leaves []*kdNode
}

func NewKDTree(particles []*Particle, bucketSize int) *KDTree {
	if bucketSize < 1 {
		bucketSize = 1
	}
	root := &kdNode{}
	for d := range root.particles {
		sorted := make([]*Particle, len(particles))
		copy(sorted, particles)
		horizontal := d == dimX
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].pos(horizontal) < sorted[j].pos(horizontal)
		})
		root.particles[d] = sorted
	}
	t := &KDTree{root: root}
	if len(particles) == 0 {
		return t
	}
	root.computeMED()

	queue := []*kdNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.size() <= bucketSize {
			t.leaves = append(t.leaves, n)
			continue
		}
		l, r := n.split()
		queue = append(queue, l, r)
	}
	return t
}

// ComputeForces adds to every particle's Force the repulsion from all others.
// Pairs in leaves whose enclosing discs intersect are summed exactly, the rest
// through the multipole expansion of the farthest subtree that does not
// intersect.
func (t *KDTree) ComputeForces(precision int) {
	if len(t.leaves) == 0 {
		return
	}
	t.root.computeCoefficients(precision)
	for _, l := range t.leaves {
		ps := l.particles[dimX]
		for _, u := range ps {
			for _, v := range ps {
				if u != v {
					u.Force = u.Force.Add(Force(u.Point, v.Point))
				}
			}
		}

		stack := []*kdNode{t.root}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if v == l {
				continue
			}
			if !l.intersects(v) {
				for _, p := range ps {
					p.Force = p.Force.Sub(v.coeffs.ApproximateForce(p.Point))
				}
				continue
			}
			if v.isLeaf() {
				for _, p := range ps {
					for _, q := range v.particles[dimX] {
						p.Force = p.Force.Add(Force(p.Point, q.Point))
					}
				}
				continue
			}
			stack = append(stack, v.left, v.right)
		}
	}
}
