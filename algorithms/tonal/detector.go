package tonal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// DetectorKind selects a pitch detection strategy.
type DetectorKind string

const (
	// KindYIN is the autocorrelation-based YIN detector.
	KindYIN DetectorKind = "yin"
	// KindModel is the neural inference-based detector.
	KindModel DetectorKind = "model"
)

// ErrModelUnavailable marks a model detector that could not be initialized
// because its runtime or asset is missing. It is recoverable.
var ErrModelUnavailable = errors.New("tonal: pitch model unavailable")

// PitchFrame is the raw output of a detector for one frame.
// PitchHz is 0 when the frame is unvoiced.
type PitchFrame struct {
	PitchHz    float64 `json:"pitch_hz,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Voiced reports whether the frame carries a pitch.
func (f PitchFrame) Voiced() bool {
	return f.PitchHz > 0
}

// Unvoiced is the frame reported when no pitch is found.
var Unvoiced = PitchFrame{}

// Sanitize clamps confidence to [0, 1]. A non-finite or negative pitch is an
// invalid reading and becomes unvoiced with zero confidence; an explicit 0
// keeps its confidence.
func (f PitchFrame) Sanitize() PitchFrame {
	conf := f.Confidence
	if math.IsNaN(conf) {
		conf = 0
	}
	conf = common.Clamp(conf, 0, 1)
	if f.PitchHz == 0 {
		return PitchFrame{Confidence: conf}
	}
	if !common.IsUsableHz(f.PitchHz) {
		return Unvoiced
	}
	return PitchFrame{PitchHz: f.PitchHz, Confidence: conf}
}

// Detector is a pitch detection strategy. ProcessFrame is stateless per call
// and must not block; Initialize may load assets and must be called once
// before use.
type Detector interface {
	Initialize(ctx context.Context) error
	ProcessFrame(frame []float64, sampleRate int) PitchFrame
	Reset()
	Name() string
}

// Config selects and parameterizes a detector.
type Config struct {
	Kind DetectorKind `yaml:"kind" json:"kind"`

	// Frequency search range (Hz)
	MinHz float64 `yaml:"min_hz" json:"min_hz"`
	MaxHz float64 `yaml:"max_hz" json:"max_hz"`

	// YIN absolute threshold on the normalized difference function
	YinThreshold float64 `yaml:"yin_threshold" json:"yin_threshold"`

	Model ModelConfig `yaml:"model" json:"model"`
}

// DefaultConfig returns a YIN configuration covering speaking and singing voice.
func DefaultConfig() Config {
	return Config{
		Kind:         KindYIN,
		MinHz:        60.0,
		MaxHz:        1000.0,
		YinThreshold: 0.1,
		Model:        DefaultModelConfig(),
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	switch c.Kind {
	case KindYIN, KindModel:
	default:
		errs = append(errs, fmt.Errorf("detector.kind %q is invalid; valid values: yin, model", c.Kind))
	}
	if c.MinHz <= 0 {
		errs = append(errs, fmt.Errorf("detector.min_hz must be > 0, got %v", c.MinHz))
	}
	if c.MaxHz <= c.MinHz {
		errs = append(errs, fmt.Errorf("detector.max_hz (%v) must exceed min_hz (%v)", c.MaxHz, c.MinHz))
	}
	if c.YinThreshold <= 0 || c.YinThreshold >= 1 {
		errs = append(errs, fmt.Errorf("detector.yin_threshold must be in (0,1), got %v", c.YinThreshold))
	}
	if c.Kind == KindModel {
		if err := c.Model.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
