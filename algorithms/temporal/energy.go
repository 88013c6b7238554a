package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// RMS returns the root-mean-square energy of a frame.
func RMS(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, v := range frame {
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}

// DBFS converts a linear RMS value to decibels relative to full scale,
// flooring at floorDB.
func DBFS(rms, floorDB float64) float64 {
	if rms <= 0 {
		return floorDB
	}
	return math.Max(20.0*math.Log10(rms), floorDB)
}

// NormalizedLoudness maps rms onto [0, 1], where floorDB (negative) maps to 0
// and 0 dBFS maps to 1.
func NormalizedLoudness(rms, floorDB float64) float64 {
	if floorDB >= 0 {
		return 0
	}
	return common.Clamp((DBFS(rms, floorDB)-floorDB)/(-floorDB), 0, 1)
}

// LoudnessMeter tracks an exponential moving average of per-hop RMS.
type LoudnessMeter struct {
	ema  common.EMA
	last float64
}

// NewLoudnessMeter creates a meter with smoothing factor alpha in (0, 1].
func NewLoudnessMeter(alpha float64) *LoudnessMeter {
	return &LoudnessMeter{ema: common.EMA{Alpha: alpha}}
}

// Update measures hop and returns the smoothed RMS.
func (lm *LoudnessMeter) Update(hop []float64) float64 {
	lm.last = RMS(hop)
	return lm.ema.Update(lm.last)
}

// Last returns the unsmoothed RMS of the most recent hop.
func (lm *LoudnessMeter) Last() float64 {
	return lm.last
}

// Value returns the smoothed RMS.
func (lm *LoudnessMeter) Value() float64 {
	return lm.ema.Value
}

// Reset clears the average.
func (lm *LoudnessMeter) Reset() {
	lm.ema.Reset()
	lm.last = 0
}
