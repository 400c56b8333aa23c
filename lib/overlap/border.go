package overlap

import "math"

const (
	DEFAULT_FREE_WEIGHT  = 1e-6
	DEFAULT_FIXED_WEIGHT = 1e8
	// DEFAULT_BORDER_WIDTH is the width of a border node when the border has no margin.
	DEFAULT_BORDER_WIDTH = 1e-3
)

// BorderInfo describes one side of a cluster: its inner margin, an optional
// fixed outer position (NaN when free) and the weight of the border variable.
type BorderInfo struct {
	InnerMargin   float64 `json:"innerMargin"`
	FixedPosition float64 `json:"fixedPosition"`
	Weight        float64 `json:"weight"`
}

func NewBorderInfo(margin float64) BorderInfo {
	return BorderInfo{
		InnerMargin:   margin,
		FixedPosition: math.NaN(),
		Weight:        DEFAULT_FREE_WEIGHT,
	}
}

func NewFixedBorderInfo(margin, position, weight float64) BorderInfo {
	return BorderInfo{
		InnerMargin:   margin,
		FixedPosition: position,
		Weight:        weight,
	}
}

func (b BorderInfo) IsFixedPosition() bool {
	return !math.IsNaN(b.FixedPosition) && b.Weight > 0
}

// Width is the extent of the border node for this side.
func (b BorderInfo) Width() float64 {
	if b.InnerMargin > 0 {
		return b.InnerMargin
	}
	return DEFAULT_BORDER_WIDTH
}

// Free clears the fixed position and restores the free weight.
func (b *BorderInfo) Free() {
	b.FixedPosition = math.NaN()
	b.Weight = DEFAULT_FREE_WEIGHT
}
