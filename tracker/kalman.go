package tracker

import "math"

// fastLockBoost multiplies the Kalman gain during fast lock.
const fastLockBoost = 1.6

// Kalman is a scalar filter on pitch in semitones relative to the baseline.
//
// The first voiced measurement after silence primes the state (x=z, P=r).
// During the first FastLockFrames voiced frames of a run the gain is boosted
// so the output converges quickly after onset. An unvoiced frame ends the run
// but keeps x and P; only Reset clears them.
type Kalman struct {
	q, r     float64
	fastLock int

	x      float64
	p      float64
	primed bool

	framesSinceVoiced int
}

// NewKalman creates a filter from cfg. Variances are assumed validated.
func NewKalman(cfg KalmanConfig) *Kalman {
	return &Kalman{
		q:        cfg.QSemitones2,
		r:        cfg.RSemitones2,
		fastLock: cfg.FastLockFrames,
	}
}

// Update folds measurement z (semitones) into the state and returns the
// smoothed estimate.
func (k *Kalman) Update(z float64) float64 {
	if k.framesSinceVoiced == 0 || !k.primed {
		k.x = z
		k.p = k.r
		k.primed = true
		k.framesSinceVoiced = 1
		return k.x
	}

	pPred := k.p + k.q
	gain := pPred / (pPred + k.r)
	if k.framesSinceVoiced < k.fastLock {
		gain = math.Min(gain*fastLockBoost, 1.0)
	}

	k.x += gain * (z - k.x)
	k.p = math.Max((1-gain)*pPred, 0)
	k.framesSinceVoiced++
	return k.x
}

// Unvoiced marks a frame without a measurement.
func (k *Kalman) Unvoiced() {
	k.framesSinceVoiced = 0
}

// State returns the current estimate, its variance and whether the filter
// has been primed since the last Reset.
func (k *Kalman) State() (x, p float64, primed bool) {
	return k.x, k.p, k.primed
}

// FramesSinceVoiced returns the length of the current voiced run.
func (k *Kalman) FramesSinceVoiced() int {
	return k.framesSinceVoiced
}

// Reset clears all state.
func (k *Kalman) Reset() {
	k.x = 0
	k.p = 0
	k.primed = false
	k.framesSinceVoiced = 0
}
