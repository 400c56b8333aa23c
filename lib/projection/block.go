package projection

// block is a set of variables held at fixed offsets from each other by active
// constraints. The active constraints inside a block form a tree.
type block struct {
	vars   []*Variable
	posn   float64
	weight float64
}

func newBlock(v *Variable) *block {
	b := &block{vars: []*Variable{v}}
	v.blk = b
	b.update()
	return b
}

// update moves the block to the weighted optimum of its variables' desired positions.
func (b *block) update() {
	var w, wp float64
	for _, v := range b.vars {
		w += v.Weight
		wp += v.Weight * (v.DesiredPos - v.offset)
	}
	b.weight = w
	b.posn = wp / w
}

// mostViolated returns the constraint crossing into (left) or out of (!left)
// the block with the largest violation above tol.
func (b *block) mostViolated(tol float64, left bool) *Constraint {
	var worst *Constraint
	worstV := tol
	for _, v := range b.vars {
		cs := v.out
		if left {
			cs = v.in
		}
		for _, c := range cs {
			other := c.Right
			if left {
				other = c.Left
			}
			if other.blk == b {
				continue
			}
			if vi := c.violation(); vi > worstV {
				worstV = vi
				worst = c
			}
		}
	}
	return worst
}

// merge joins the blocks of c's variables so that c is tight and returns the
// surviving block. The smaller block is folded into the larger one.
func merge(c *Constraint) *block {
	l, r := c.Left.blk, c.Right.blk
	dist := c.Left.offset + c.Gap - c.Right.offset
	c.active = true
	if len(l.vars) >= len(r.vars) {
		for _, v := range r.vars {
			v.offset += dist
			v.blk = l
		}
		l.vars = append(l.vars, r.vars...)
		l.update()
		return l
	}
	for _, v := range l.vars {
		v.offset -= dist
		v.blk = r
	}
	r.vars = append(r.vars, l.vars...)
	r.update()
	return r
}

func (b *block) computeMultipliers() {
	if len(b.vars) == 0 {
		return
	}
	b.dfdv(b.vars[0], nil)
}

// dfdv walks the active constraint tree from v, away from u, setting the
// Lagrange multiplier of every active constraint it crosses.
func (b *block) dfdv(v, u *Variable) float64 {
	d := 2 * v.Weight * (v.position() - v.DesiredPos)
	for _, c := range v.out {
		if c.active && c.Right != u && c.Right.blk == b {
			c.lm = b.dfdv(c.Right, v)
			d += c.lm
		}
	}
	for _, c := range v.in {
		if c.active && c.Left != u && c.Left.blk == b {
			c.lm = -b.dfdv(c.Left, v)
			d -= c.lm
		}
	}
	return d
}

// split deactivates c and divides its block into the part reachable from
// c.Left and the part reachable from c.Right. Offsets are kept.
func split(c *Constraint) (*block, *block) {
	c.active = false
	old := c.Left.blk
	l := &block{}
	r := &block{}
	populate(l, old, c.Left)
	populate(r, old, c.Right)
	l.update()
	r.update()
	return l, r
}

func populate(dst, src *block, start *Variable) {
	stack := []*Variable{start}
	start.blk = dst
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		dst.vars = append(dst.vars, v)
		for _, c := range v.out {
			if c.active && c.Right.blk == src {
				c.Right.blk = dst
				stack = append(stack, c.Right)
			}
		}
		for _, c := range v.in {
			if c.active && c.Left.blk == src {
				c.Left.blk = dst
				stack = append(stack, c.Left)
			}
		}
	}
}
