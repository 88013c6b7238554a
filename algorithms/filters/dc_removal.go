package filters

import (
	"math"
)

// DCBlocker is a one-pole DC blocking (high-pass) filter:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCBlocker creates a DC blocker with the given -3dB cutoff.
// The pole is derived as R = 1 - 2*pi*fc/fs and clamped to (0, 1).
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	pole := 0.995
	if sampleRate > 0 && cutoffHz > 0 {
		pole = 1.0 - (2.0 * math.Pi * cutoffHz / float64(sampleRate))
	}
	switch {
	case pole >= 1.0:
		pole = 0.999
	case pole <= 0.0:
		pole = 0.001
	}
	return &DCBlocker{pole: pole}
}

// Pole returns R.
func (dc *DCBlocker) Pole() float64 {
	return dc.pole
}

// ProcessInPlace filters buf in place, carrying state across calls.
func (dc *DCBlocker) ProcessInPlace(buf []float64) {
	for i, x := range buf {
		y := x - dc.x1 + dc.pole*dc.y1
		dc.x1 = x
		dc.y1 = y
		buf[i] = y
	}
}

// Reset clears the filter's internal state.
func (dc *DCBlocker) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}
