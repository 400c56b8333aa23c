package go2_test

import (
	"testing"

	"oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/d2incremental/lib/go2"
)

func TestMinMaxClamp(t *testing.T) {
	assert.Equal(t, 1, go2.Min(1, 2))
	assert.Equal(t, 2.5, go2.Max(1.0, 2.5))
	assert.Equal(t, 0.1, go2.Clamp(0.01, 0.1, 1))
	assert.Equal(t, 1.0, go2.Clamp(3.0, 0.1, 1))
	assert.Equal(t, 0.5, go2.Clamp(0.5, 0.1, 1))
}

func TestFilterSum(t *testing.T) {
	els := []int{1, 2, 3, 4, 5}
	even := go2.Filter(els, func(v int) bool { return v%2 == 0 })
	assert.Equal(t, 2, len(even))
	assert.Equal(t, 4, even[1])
	assert.Equal(t, true, go2.Contains(els, 3))
	assert.Equal(t, false, go2.Contains(even, 3))
	assert.Equal(t, 15.0, go2.Sum(els, func(v int) float64 { return float64(v) }))
}
