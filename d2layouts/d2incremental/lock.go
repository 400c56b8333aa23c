package d2incremental

import (
	"fmt"

	"oss.terrastruct.com/d2incremental/geograph"
	"oss.terrastruct.com/d2incremental/lib/geo"
)

const (
	DEFAULT_LOCK_WEIGHT = 1e6
	MIN_LOCK_WEIGHT     = 1e-3
	MAX_LOCK_WEIGHT     = 1e20
)

// Lock pins a node, or a cluster and its contents, to Bounds.
type Lock struct {
	node    *geograph.Node
	cluster *geograph.Cluster

	Bounds geo.Box
	// Sticky locks keep Bounds. Other locks follow their node after each
	// separation solve.
	Sticky bool

	weight float64
}

func newLock(n *geograph.Node, c *geograph.Cluster, bounds geo.Box) *Lock {
	return &Lock{
		node:    n,
		cluster: c,
		Bounds:  bounds,
		weight:  DEFAULT_LOCK_WEIGHT,
	}
}

func (l *Lock) Weight() float64 {
	return l.weight
}

func (l *Lock) SetWeight(w float64) error {
	if !(w >= MIN_LOCK_WEIGHT && w <= MAX_LOCK_WEIGHT) {
		return fmt.Errorf("%w: lock weight %v not in [%v, %v]", ErrInvalidArgument, w, MIN_LOCK_WEIGHT, MAX_LOCK_WEIGHT)
	}
	l.weight = w
	return nil
}

// Element is the locked *geograph.Node or *geograph.Cluster.
func (l *Lock) Element() geograph.Element {
	if l.cluster != nil {
		return l.cluster
	}
	return l.node
}

func (l *Lock) Level() int { return 0 }

func (l *Lock) Nodes() []*geograph.Node {
	if l.cluster != nil {
		var out []*geograph.Node
		l.cluster.ForEachNode(func(n *geograph.Node) {
			out = append(out, n)
		})
		return out
	}
	return []*geograph.Node{l.node}
}

// Project moves the locked element to Bounds. A locked cluster drags its
// descendants and their boundaries along.
func (l *Lock) Project(ps Positions) float64 {
	if l.cluster == nil {
		c := ps.Center(l.node)
		target := l.Bounds.Center()
		ps.SetCenter(l.node, target)
		return c.DistanceTo(target)
	}

	current := l.cluster.Boundary.Rect
	if current.IsEmpty() {
		current = l.cluster.Bounds
	}
	delta := l.Bounds.TopLeft.Sub(current.TopLeft)
	step := delta.Length()
	displacement := step
	for _, c := range l.cluster.AllClustersDepthFirst() {
		for _, n := range c.Nodes {
			ps.SetCenter(n, ps.Center(n).Add(delta))
			displacement += step
		}
		if c == l.cluster {
			c.Boundary.Rect = l.Bounds
		} else {
			c.Boundary.Rect = c.Boundary.Rect.Translate(delta)
		}
	}
	return displacement
}

// weigher is implemented by position stores that track stay weights.
type weigher interface {
	SetWeight(*geograph.Node, float64)
}

// apply gives the locked nodes the lock weight. A locked cluster gets fixed
// borders and its descendants translate rigidly, while its ancestors stop
// translating rigidly so they can make room.
func (l *Lock) apply(w weigher) {
	var ancestors []*geograph.Cluster
	if l.cluster != nil {
		b := l.Bounds
		l.cluster.Boundary.Lock(b.Left(), b.Right(), b.Top(), b.Bottom())
		for _, c := range l.cluster.AllClustersDepthFirst() {
			c.Boundary.GenerateFixedConstraints = true
			for _, n := range c.Nodes {
				w.SetWeight(n, l.weight)
			}
		}
		ancestors = l.cluster.Ancestors()
	} else {
		w.SetWeight(l.node, l.weight)
		ancestors = l.node.Ancestors()
	}
	for _, a := range ancestors {
		a.Boundary.GenerateFixedConstraints = false
	}
}

// restore undoes apply. w may be nil when no session holds weights.
func (l *Lock) restore(w weigher) {
	var parent *geograph.Cluster
	if l.cluster != nil {
		l.cluster.Boundary.Unlock()
		for _, c := range l.cluster.AllClustersDepthFirst() {
			c.Boundary.RestoreDefaultConstraints()
			if w == nil {
				continue
			}
			for _, n := range c.Nodes {
				w.SetWeight(n, 1)
			}
		}
		parent = l.cluster.Parent
	} else {
		if w != nil {
			w.SetWeight(l.node, 1)
		}
		parent = l.node.Parent
	}
	for ; parent != nil; parent = parent.Parent {
		parent.Boundary.RestoreDefaultConstraints()
	}
}
