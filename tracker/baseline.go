package tracker

import "github.com/RyanBlaney/sonido-coach/algorithms/common"

// baselineAlpha is the drift rate of the baseline EMA.
const baselineAlpha = 0.005

// Baseline tracks the speaker's register as a slow EMA of the median pitch.
// It starts at the first confident median and ignores brief excursions.
type Baseline struct {
	ema common.EMA
	set bool
}

// NewBaseline creates an unset baseline.
func NewBaseline() *Baseline {
	return &Baseline{ema: common.EMA{Alpha: baselineAlpha}}
}

// Update folds a confident median pitch into the baseline and returns it.
func (b *Baseline) Update(medianHz float64) float64 {
	if !b.set {
		b.ema.Value = medianHz
		b.set = true
		return medianHz
	}
	return b.ema.Update(medianHz)
}

// Hz returns the baseline and whether it has been set.
func (b *Baseline) Hz() (float64, bool) {
	return b.ema.Value, b.set
}

// Reset clears the baseline.
func (b *Baseline) Reset() {
	b.ema.Reset()
	b.set = false
}
