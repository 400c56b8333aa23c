package d2incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateStepSize(t *testing.T) {
	t.Parallel()

	settings, err := NewSettings(nil)
	assert.NoError(t, err)
	s := &Session{settings: settings, stepSize: 1}

	energies := []float32{90, 80, 70}
	prev := float32(100)
	for i, e := range energies {
		s.energy = e
		s.updateStepSize(prev)
		prev = e
		if i < 2 {
			assert.Equal(t, 1., s.stepSize)
		}
	}
	// three decreases in a row grow the step
	assert.InDelta(t, 1/0.9, s.stepSize, 1e-12)
	assert.Equal(t, 0, s.progress)

	s.energy = 60
	s.updateStepSize(prev)
	assert.Equal(t, 1, s.progress)

	// any increase shrinks it and resets the streak
	s.energy = 75
	s.updateStepSize(60)
	assert.InDelta(t, 1, s.stepSize, 1e-12)
	assert.Equal(t, 0, s.progress)
}

func TestLedgerLevels(t *testing.T) {
	t.Parallel()

	l := ledger{}
	l.addLevel(2)
	l.addLevel(0)
	l.add(&ProcrustesCircleConstraint{ConstraintLevel: 1})
	l.add(&MinSeparationConstraint{ConstraintLevel: 3})
	l.addLevel(0)
	assert.Equal(t, []int{0, 1, 2, 3}, l.levels())
	assert.Len(t, l[1], 1)
	assert.Len(t, l[3], 1)
	assert.Empty(t, l[0])
}
