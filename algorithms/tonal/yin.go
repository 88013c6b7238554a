package tonal

import (
	"context"
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
	"github.com/RyanBlaney/sonido-coach/algorithms/spectral"
)

// YinDetector implements the YIN fundamental frequency estimator.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
//
// The difference function d(τ) = Σ(x[i]-x[i+τ])² is evaluated for all lags at
// once through an FFT cross-correlation:
//
//	d(τ) = E(0) + E(τ) - 2·r(τ)
//
// where E(τ) is the energy of the length-W segment starting at τ.
// Scratch buffers are reused between frames; a detector must be owned by a
// single goroutine.
type YinDetector struct {
	minHz     float64
	maxHz     float64
	threshold float64

	fft    *spectral.FFT
	corr   []float64
	diff   []float64
	cmndf  []float64
	energy []float64
}

// NewYinDetector creates a YIN detector from cfg.
func NewYinDetector(cfg Config) *YinDetector {
	return &YinDetector{
		minHz:     cfg.MinHz,
		maxHz:     cfg.MaxHz,
		threshold: cfg.YinThreshold,
		fft:       spectral.NewFFT(),
	}
}

// Initialize is a no-op for YIN.
func (y *YinDetector) Initialize(context.Context) error {
	return nil
}

// Name returns "yin".
func (y *YinDetector) Name() string {
	return string(KindYIN)
}

// Reset is a no-op; YIN holds no state across frames.
func (y *YinDetector) Reset() {}

// lags returns the τ search range for a frame of n samples.
func (y *YinDetector) lags(n, sampleRate int) (tauMin, tauMax int) {
	tauMax = int(float64(sampleRate) / y.minHz)
	if tauMax > n/2 {
		tauMax = n / 2
	}
	tauMin = int(math.Ceil(float64(sampleRate) / y.maxHz))
	if tauMin < 2 {
		tauMin = 2
	}
	return tauMin, tauMax
}

// ProcessFrame estimates the pitch of frame.
func (y *YinDetector) ProcessFrame(frame []float64, sampleRate int) PitchFrame {
	if sampleRate <= 0 {
		return Unvoiced
	}
	tauMin, tauMax := y.lags(len(frame), sampleRate)
	if tauMax <= tauMin {
		return Unvoiced
	}

	y.difference(frame, tauMax)
	y.cumulativeMeanNormalize(tauMax)

	tau := y.absoluteThreshold(tauMin, tauMax)
	if tau < 0 {
		return Unvoiced
	}

	period := float64(tau) + common.ParabolicOffset(y.cmndf, tau)
	if period <= 0 {
		return Unvoiced
	}

	return PitchFrame{
		PitchHz:    float64(sampleRate) / period,
		Confidence: 1.0 - y.cmndf[tau],
	}.Sanitize()
}

// difference fills y.diff[0..tauMax] with d(τ).
func (y *YinDetector) difference(frame []float64, tauMax int) {
	w := len(frame) - tauMax

	// prefix energies: energy[k] = Σ_{i<k} x[i]²
	if cap(y.energy) < len(frame)+1 {
		y.energy = make([]float64, len(frame)+1)
	}
	y.energy = y.energy[:len(frame)+1]
	y.energy[0] = 0
	for i, v := range frame {
		y.energy[i+1] = y.energy[i] + v*v
	}

	y.corr = y.fft.CrossCorrelate(y.corr, frame[:w], frame, tauMax)

	if cap(y.diff) < tauMax+1 {
		y.diff = make([]float64, tauMax+1)
	}
	y.diff = y.diff[:tauMax+1]

	e0 := y.energy[w]
	for tau := 0; tau <= tauMax; tau++ {
		eTau := y.energy[tau+w] - y.energy[tau]
		d := e0 + eTau - 2*y.corr[tau]
		if d < 0 {
			d = 0 // FFT rounding
		}
		y.diff[tau] = d
	}
}

// cumulativeMeanNormalize fills y.cmndf with d'(τ) = d(τ)·τ / Σ_{j<=τ} d(j).
func (y *YinDetector) cumulativeMeanNormalize(tauMax int) {
	if cap(y.cmndf) < tauMax+1 {
		y.cmndf = make([]float64, tauMax+1)
	}
	y.cmndf = y.cmndf[:tauMax+1]
	y.cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau <= tauMax; tau++ {
		runningSum += y.diff[tau]
		if runningSum <= 1e-12 {
			y.cmndf[tau] = 1.0
			continue
		}
		y.cmndf[tau] = y.diff[tau] * float64(tau) / runningSum
	}
}

// absoluteThreshold returns the first τ >= tauMin whose normalized value dips
// below the threshold, advanced to the bottom of that dip, or -1.
func (y *YinDetector) absoluteThreshold(tauMin, tauMax int) int {
	for tau := tauMin; tau <= tauMax; tau++ {
		if y.cmndf[tau] < y.threshold {
			for tau+1 <= tauMax && y.cmndf[tau+1] < y.cmndf[tau] {
				tau++
			}
			return tau
		}
	}
	return -1
}
