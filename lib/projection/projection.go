// Package projection solves one-dimensional separation constraint problems:
// given variables with desired positions and weights, and constraints of the
// form left + gap <= right (or left + gap == right), it finds positions that
// satisfy the constraints while minimizing the weighted squared displacement
// from the desired positions.
//
// The solver merges variables into rigid blocks along active constraints and
// splits blocks again when a Lagrange multiplier shows that an active
// inequality is holding the solution back.
package projection

import (
	"math"
	"sort"
)

const (
	DEFAULT_GAP_TOLERANCE = 1e-4
	LAGRANGIAN_TOLERANCE  = 1e-7
)

type Parameters struct {
	// GapTolerance is the slack below which a constraint counts as violated.
	GapTolerance float64
	// MaxSplits caps block splits during refinement. 0 picks a bound from the
	// problem size.
	MaxSplits int
}

func DefaultParameters() *Parameters {
	return &Parameters{GapTolerance: DEFAULT_GAP_TOLERANCE}
}

type Variable struct {
	ID         int
	DesiredPos float64
	Weight     float64
	// Position holds the solved position after Solve.
	Position float64

	offset float64
	blk    *block
	in     []*Constraint
	out    []*Constraint
}

func (v *Variable) position() float64 {
	return v.blk.posn + v.offset
}

func (v *Variable) InConstraints() []*Constraint {
	return v.in
}

func (v *Variable) OutConstraints() []*Constraint {
	return v.out
}

type Constraint struct {
	Left       *Variable
	Right      *Variable
	Gap        float64
	IsEquality bool

	active        bool
	unsatisfiable bool
	lm            float64
}

// Slack is right - left - gap at the current positions.
func (c *Constraint) Slack() float64 {
	return c.Right.position() - c.Left.position() - c.Gap
}

func (c *Constraint) violation() float64 {
	s := c.Slack()
	if c.IsEquality {
		return math.Abs(s)
	}
	return -s
}

func (c *Constraint) IsActive() bool {
	return c.active
}

func (c *Constraint) IsUnsatisfiable() bool {
	return c.unsatisfiable
}

type Solution struct {
	NumberOfUnsatisfiableConstraints int
	Splits                           int
	// Goal is the weighted sum of squared displacements from the desired positions.
	Goal float64
}

type Solver struct {
	vars []*Variable
	cons []*Constraint
}

func New() *Solver {
	return &Solver{}
}

// AddVariable registers a variable. Non-positive weights are treated as 1.
func (s *Solver) AddVariable(desired, weight float64) *Variable {
	if !(weight > 0) {
		weight = 1
	}
	v := &Variable{
		ID:         len(s.vars),
		DesiredPos: desired,
		Weight:     weight,
		Position:   desired,
	}
	s.vars = append(s.vars, v)
	return v
}

func (s *Solver) AddConstraint(left, right *Variable, gap float64, isEquality bool) *Constraint {
	c := &Constraint{
		Left:       left,
		Right:      right,
		Gap:        gap,
		IsEquality: isEquality,
	}
	left.out = append(left.out, c)
	right.in = append(right.in, c)
	s.cons = append(s.cons, c)
	return c
}

func (s *Solver) Variables() []*Variable {
	return s.vars
}

func (s *Solver) Constraints() []*Constraint {
	return s.cons
}

func (s *Solver) Solve(p *Parameters) *Solution {
	if p == nil {
		p = DefaultParameters()
	}
	sol := &Solution{}
	if len(s.vars) == 0 {
		return sol
	}
	for _, v := range s.vars {
		v.offset = 0
		newBlock(v)
	}
	for _, c := range s.cons {
		c.active = false
		c.unsatisfiable = false
		c.lm = 0
	}

	for _, v := range s.topologicalOrder() {
		s.mergeLeft(v.blk, p.GapTolerance)
	}
	sol.Splits = s.refine(p)
	s.mergeViolated(p.GapTolerance)

	for _, v := range s.vars {
		v.Position = v.position()
		d := v.Position - v.DesiredPos
		sol.Goal += v.Weight * d * d
	}
	for _, c := range s.cons {
		if c.violation() > p.GapTolerance {
			c.unsatisfiable = true
			sol.NumberOfUnsatisfiableConstraints++
		}
	}
	return sol
}

// topologicalOrder orders variables so that constraint left sides come first.
// Variables on cycles are appended by ID.
func (s *Solver) topologicalOrder() []*Variable {
	indegree := make([]int, len(s.vars))
	for _, c := range s.cons {
		indegree[c.Right.ID]++
	}
	order := make([]*Variable, 0, len(s.vars))
	queue := make([]*Variable, 0, len(s.vars))
	for _, v := range s.vars {
		if indegree[v.ID] == 0 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for _, c := range v.out {
			indegree[c.Right.ID]--
			if indegree[c.Right.ID] == 0 {
				queue = append(queue, c.Right)
			}
		}
	}
	if len(order) < len(s.vars) {
		var rest []*Variable
		for _, v := range s.vars {
			if indegree[v.ID] > 0 {
				rest = append(rest, v)
			}
		}
		sort.Slice(rest, func(i, j int) bool {
			return rest[i].ID < rest[j].ID
		})
		order = append(order, rest...)
	}
	return order
}

func (s *Solver) mergeLeft(b *block, tol float64) *block {
	for {
		c := b.mostViolated(tol, true)
		if c == nil {
			return b
		}
		b = merge(c)
	}
}

func (s *Solver) mergeRight(b *block, tol float64) *block {
	for {
		c := b.mostViolated(tol, false)
		if c == nil {
			return b
		}
		b = merge(c)
	}
}

func (s *Solver) refine(p *Parameters) int {
	maxSplits := p.MaxSplits
	if maxSplits <= 0 {
		maxSplits = 10*len(s.cons) + 100
	}
	splits := 0
	for ; splits < maxSplits; splits++ {
		c := s.mostNegativeMultiplier()
		if c == nil {
			break
		}
		posn := c.Left.blk.posn
		l, r := split(c)
		r.posn = posn
		s.mergeLeft(l, p.GapTolerance)
		r = c.Right.blk
		r.update()
		s.mergeRight(r, p.GapTolerance)
	}
	return splits
}

// mergeViolated merges across any constraint still violated between two
// blocks. Every merge removes a block so this ends after at most len(vars) rounds.
func (s *Solver) mergeViolated(tol float64) {
	for round := 0; round < len(s.vars); round++ {
		changed := false
		for _, c := range s.cons {
			if c.Left.blk != c.Right.blk && c.violation() > tol {
				s.mergeLeft(c.Right.blk, tol)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (s *Solver) blocks() []*block {
	var bs []*block
	seen := make(map[*block]struct{})
	for _, v := range s.vars {
		if _, ok := seen[v.blk]; ok {
			continue
		}
		seen[v.blk] = struct{}{}
		bs = append(bs, v.blk)
	}
	return bs
}

func (s *Solver) mostNegativeMultiplier() *Constraint {
	for _, b := range s.blocks() {
		b.computeMultipliers()
	}
	var min *Constraint
	minLM := -LAGRANGIAN_TOLERANCE
	for _, c := range s.cons {
		if c.active && !c.IsEquality && c.lm < minLM {
			minLM = c.lm
			min = c
		}
	}
	return min
}
