package projection_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oss.terrastruct.com/d2incremental/lib/projection"
)

func TestSolve(t *testing.T) {
	t.Parallel()

	type variable struct {
		desired float64
		weight  float64
	}
	type constraint struct {
		left, right int
		gap         float64
		equality    bool
	}
	testCases := []struct {
		name          string
		vars          []variable
		cons          []constraint
		exp           []float64
		unsatisfiable int
	}{
		{
			name: "satisfied",
			vars: []variable{{0, 1}, {10, 1}},
			cons: []constraint{{0, 1, 5, false}},
			exp:  []float64{0, 10},
		},
		{
			name: "swapped",
			vars: []variable{{10, 1}, {0, 1}},
			cons: []constraint{{0, 1, 5, false}},
			exp:  []float64{2.5, 7.5},
		},
		{
			name: "equality",
			vars: []variable{{0, 1}, {0, 1}},
			cons: []constraint{{0, 1, 3, true}},
			exp:  []float64{-1.5, 1.5},
		},
		{
			name: "equality_pulls_together",
			vars: []variable{{0, 1}, {10, 1}},
			cons: []constraint{{0, 1, 4, true}},
			exp:  []float64{3, 7},
		},
		{
			name: "heavy_stays",
			vars: []variable{{0, 1e6}, {0, 1}},
			cons: []constraint{{0, 1, 10, false}},
			exp:  []float64{-1e-5, 10},
		},
		{
			name: "chain",
			vars: []variable{{0, 1}, {0, 1}, {0, 1}},
			cons: []constraint{{0, 1, 1, false}, {1, 2, 1, false}},
			exp:  []float64{-1, 0, 1},
		},
		{
			name: "merge_three",
			vars: []variable{{3, 1}, {0, 1}, {2, 1}},
			cons: []constraint{{0, 1, 1, false}, {1, 2, 1, false}},
			exp:  []float64{2.0 / 3, 5.0 / 3, 8.0 / 3},
		},
		{
			name:          "cycle",
			vars:          []variable{{0, 1}, {0, 1}},
			cons:          []constraint{{0, 1, 1, false}, {1, 0, 1, false}},
			unsatisfiable: 1,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := projection.New()
			var vs []*projection.Variable
			for _, v := range tc.vars {
				vs = append(vs, s.AddVariable(v.desired, v.weight))
			}
			for _, c := range tc.cons {
				s.AddConstraint(vs[c.left], vs[c.right], c.gap, c.equality)
			}
			sol := s.Solve(nil)
			if tc.unsatisfiable > 0 {
				assert.GreaterOrEqual(t, sol.NumberOfUnsatisfiableConstraints, tc.unsatisfiable)
				return
			}
			assert.Equal(t, 0, sol.NumberOfUnsatisfiableConstraints)
			for i, exp := range tc.exp {
				assert.InDeltaf(t, exp, vs[i].Position, 1e-4, "variable %d", i)
			}
		})
	}
}

func TestContradictoryEqualities(t *testing.T) {
	s := projection.New()
	a := s.AddVariable(0, 1)
	b := s.AddVariable(0, 1)
	s.AddConstraint(a, b, 1, true)
	s.AddConstraint(a, b, 2, true)
	sol := s.Solve(nil)
	assert.Equal(t, 1, sol.NumberOfUnsatisfiableConstraints)
}

func TestSolveRandomIsFeasible(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		s := projection.New()
		n := 5 + r.Intn(30)
		vs := make([]*projection.Variable, n)
		for i := range vs {
			vs[i] = s.AddVariable(r.Float64()*100, 0.5+r.Float64()*2)
		}
		// left index < right index keeps the constraint graph acyclic
		for k := 0; k < 2*n; k++ {
			i := r.Intn(n - 1)
			j := i + 1 + r.Intn(n-i-1)
			s.AddConstraint(vs[i], vs[j], r.Float64()*10, false)
		}
		sol := s.Solve(nil)
		require.Equal(t, 0, sol.NumberOfUnsatisfiableConstraints)
		for _, c := range s.Constraints() {
			assert.GreaterOrEqual(t, c.Right.Position-c.Left.Position-c.Gap, -1e-4)
		}
	}
}

func TestSolveIsLocallyOptimal(t *testing.T) {
	s := projection.New()
	a := s.AddVariable(0, 1)
	b := s.AddVariable(1, 1)
	c := s.AddVariable(10, 1)
	s.AddConstraint(a, b, 2, false)
	s.AddConstraint(b, c, 2, false)
	sol := s.Solve(nil)
	assert.Equal(t, 0, sol.NumberOfUnsatisfiableConstraints)
	assert.InDelta(t, -0.5, a.Position, 1e-6)
	assert.InDelta(t, 1.5, b.Position, 1e-6)
	assert.InDelta(t, 10, c.Position, 1e-6)
	assert.InDelta(t, 0.5, sol.Goal, 1e-6)
}
