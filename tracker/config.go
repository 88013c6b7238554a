package tracker

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/tonal"
)

// ErrInvalidConfig is wrapped by every configuration error returned from New.
var ErrInvalidConfig = errors.New("tracker: invalid config")

// KalmanConfig parameterizes the semitone-space Kalman filter.
type KalmanConfig struct {
	QSemitones2    float64 `yaml:"q_semitones2" json:"q_semitones2"`         // process variance
	RSemitones2    float64 `yaml:"r_semitones2" json:"r_semitones2"`         // measurement variance
	FastLockFrames int     `yaml:"fast_lock_frames" json:"fast_lock_frames"` // boosted-gain frames after onset
}

// Config holds engine configuration.
type Config struct {
	InputSampleRate int `yaml:"input_sample_rate" json:"input_sample_rate"`
	// ModelSampleRate overrides detector.model.sample_rate when > 0.
	ModelSampleRate int `yaml:"model_sample_rate" json:"model_sample_rate"`

	HopSec   float64 `yaml:"hop_sec" json:"hop_sec"`
	FrameSec float64 `yaml:"frame_sec" json:"frame_sec"`

	MedianWindow int          `yaml:"median_window" json:"median_window"`
	Kalman       KalmanConfig `yaml:"kalman" json:"kalman"`

	ConfidenceGate float64 `yaml:"confidence_gate" json:"confidence_gate"`
	// RMSGate drops hops quieter than this linear RMS; 0 disables it.
	RMSGate float64 `yaml:"rms_gate" json:"rms_gate"`

	LoudnessAlpha float64 `yaml:"loudness_alpha" json:"loudness_alpha"`
	DCCutoffHz    float64 `yaml:"dc_cutoff_hz" json:"dc_cutoff_hz"`

	Detector tonal.Config `yaml:"detector" json:"detector"`
}

// DefaultConfig returns the engine defaults for 48 kHz capture.
func DefaultConfig() Config {
	return Config{
		InputSampleRate: 48000,
		ModelSampleRate: 16000,
		HopSec:          0.010,
		FrameSec:        0.032,
		MedianWindow:    5,
		Kalman: KalmanConfig{
			QSemitones2:    0.04,
			RSemitones2:    0.25,
			FastLockFrames: 4,
		},
		ConfidenceGate: 0.5,
		LoudnessAlpha:  0.1,
		DCCutoffHz:     20.0,
		Detector:       tonal.DefaultConfig(),
	}
}

// HopSize returns the hop length in samples.
func (c Config) HopSize() int {
	return int(math.Round(c.HopSec * float64(c.InputSampleRate)))
}

// FrameSize returns the analysis window length in samples, never shorter
// than one hop.
func (c Config) FrameSize() int {
	n := int(math.Round(c.FrameSec * float64(c.InputSampleRate)))
	if hop := c.HopSize(); n < hop {
		n = hop
	}
	return n
}

// Validate reports every configuration error, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.InputSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("input_sample_rate must be > 0, got %d", c.InputSampleRate))
	}
	if c.ModelSampleRate < 0 {
		errs = append(errs, fmt.Errorf("model_sample_rate must be >= 0, got %d", c.ModelSampleRate))
	}
	if c.HopSec <= 0 {
		errs = append(errs, fmt.Errorf("hop_sec must be > 0, got %v", c.HopSec))
	} else if c.InputSampleRate > 0 && c.HopSize() < 1 {
		errs = append(errs, fmt.Errorf("hop_sec %v is shorter than one sample at %d Hz", c.HopSec, c.InputSampleRate))
	}
	if c.FrameSec < 0 {
		errs = append(errs, fmt.Errorf("frame_sec must be >= 0, got %v", c.FrameSec))
	}
	if c.MedianWindow < 1 || c.MedianWindow%2 == 0 {
		errs = append(errs, fmt.Errorf("median_window must be odd and >= 1, got %d", c.MedianWindow))
	}
	if c.Kalman.QSemitones2 < 0 {
		errs = append(errs, fmt.Errorf("kalman.q_semitones2 must be >= 0, got %v", c.Kalman.QSemitones2))
	}
	if c.Kalman.RSemitones2 <= 0 {
		errs = append(errs, fmt.Errorf("kalman.r_semitones2 must be > 0, got %v", c.Kalman.RSemitones2))
	}
	if c.Kalman.FastLockFrames < 0 {
		errs = append(errs, fmt.Errorf("kalman.fast_lock_frames must be >= 0, got %d", c.Kalman.FastLockFrames))
	}
	if c.ConfidenceGate < 0 || c.ConfidenceGate > 1 {
		errs = append(errs, fmt.Errorf("confidence_gate must be in [0,1], got %v", c.ConfidenceGate))
	}
	if c.RMSGate < 0 {
		errs = append(errs, fmt.Errorf("rms_gate must be >= 0, got %v", c.RMSGate))
	}
	if c.LoudnessAlpha <= 0 || c.LoudnessAlpha > 1 {
		errs = append(errs, fmt.Errorf("loudness_alpha must be in (0,1], got %v", c.LoudnessAlpha))
	}
	if c.DCCutoffHz < 0 || (c.InputSampleRate > 0 && c.DCCutoffHz >= float64(c.InputSampleRate)/2) {
		errs = append(errs, fmt.Errorf("dc_cutoff_hz must be in [0, nyquist), got %v", c.DCCutoffHz))
	}
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
