package tracker

import (
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

const jitterAlpha = 0.1

// Jitter is an EMA of the absolute semitone delta between consecutive voiced
// hops. It starts at 0 and is not updated during silence, so it never
// exceeds the largest delta observed.
type Jitter struct {
	ema     common.EMA
	prev    float64
	hasPrev bool
}

// NewJitter creates a jitter meter at 0.
func NewJitter() *Jitter {
	return &Jitter{ema: common.EMA{Alpha: jitterAlpha}}
}

// Update records a voiced hop's smoothed semitone value.
func (j *Jitter) Update(semitones float64) float64 {
	if j.hasPrev {
		j.ema.Update(math.Abs(semitones - j.prev))
	}
	j.prev = semitones
	j.hasPrev = true
	return j.ema.Value
}

// Break ends the current voiced run; the next voiced hop starts a new pair.
func (j *Jitter) Break() {
	j.hasPrev = false
}

// Value returns the current EMA.
func (j *Jitter) Value() float64 {
	return j.ema.Value
}

// Reset returns the meter to 0.
func (j *Jitter) Reset() {
	j.ema.Reset()
	j.hasPrev = false
}
