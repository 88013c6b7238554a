package tracker

import (
	"fmt"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// MedianFilter is a null-aware running median over the last N raw pitch
// readings. Unvoiced readings occupy a slot but are excluded from the median.
type MedianFilter struct {
	window  *common.Ring[float64] // 0 marks an unvoiced slot
	scratch []float64
}

// NewMedianFilter creates a filter of size n, which must be odd and >= 1.
func NewMedianFilter(n int) (*MedianFilter, error) {
	if n < 1 || n%2 == 0 {
		return nil, fmt.Errorf("%w: median window must be odd and >= 1, got %d", ErrInvalidConfig, n)
	}
	return &MedianFilter{
		window:  common.NewRing[float64](n),
		scratch: make([]float64, 0, n),
	}, nil
}

// Push records a reading and returns the median of the voiced readings in
// the window, or false when the window holds none.
func (m *MedianFilter) Push(hz float64, voiced bool) (float64, bool) {
	if !voiced || !common.IsUsableHz(hz) {
		hz = 0
	}
	m.window.Push(hz)

	m.scratch = m.scratch[:0]
	for i := 0; i < m.window.Len(); i++ {
		if v := m.window.At(i); v > 0 {
			m.scratch = append(m.scratch, v)
		}
	}
	if len(m.scratch) == 0 {
		return 0, false
	}
	return common.MedianInPlace(m.scratch), true
}

// Size returns the window length.
func (m *MedianFilter) Size() int {
	return m.window.Cap()
}

// Reset empties the window.
func (m *MedianFilter) Reset() {
	m.window.Clear()
}
