package tonal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// ModelConfig parameterizes the model-based detector.
//
// FrameSize must equal the input size of the model file. The bin decoding
// constants describe a log-spaced pitch grid (BinMinHz..BinMaxHz over Bins
// bins). They must match the exported model.
type ModelConfig struct {
	Path             string  `yaml:"path" json:"path"`
	SampleRate       int     `yaml:"sample_rate" json:"sample_rate"`
	FrameSize        int     `yaml:"frame_size" json:"frame_size"`
	VoicingThreshold float64 `yaml:"voicing_threshold" json:"voicing_threshold"`
	Bins             int     `yaml:"bins" json:"bins"`
	BinMinHz         float64 `yaml:"bin_min_hz" json:"bin_min_hz"`
	BinMaxHz         float64 `yaml:"bin_max_hz" json:"bin_max_hz"`
	Normalize        bool    `yaml:"normalize" json:"normalize"`
}

// DefaultModelConfig returns the constants of the reference model export.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		SampleRate:       16000,
		FrameSize:        1024,
		VoicingThreshold: 0.5,
		Bins:             360,
		BinMinHz:         50.0,
		BinMaxHz:         2000.0,
		Normalize:        true,
	}
}

// Validate reports configuration errors.
func (c ModelConfig) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("detector.model.sample_rate must be > 0, got %d", c.SampleRate))
	}
	if c.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("detector.model.frame_size must be > 0, got %d", c.FrameSize))
	}
	if c.VoicingThreshold < 0 || c.VoicingThreshold > 1 {
		errs = append(errs, fmt.Errorf("detector.model.voicing_threshold must be in [0,1], got %v", c.VoicingThreshold))
	}
	if c.Bins < 2 {
		errs = append(errs, fmt.Errorf("detector.model.bins must be >= 2, got %d", c.Bins))
	}
	if c.BinMinHz <= 0 || c.BinMaxHz <= c.BinMinHz {
		errs = append(errs, fmt.Errorf("detector.model bin range [%v, %v] is invalid", c.BinMinHz, c.BinMaxHz))
	}
	return errors.Join(errs...)
}

// BinHz returns the center frequency of bin i on the log-spaced grid.
func (c ModelConfig) BinHz(i int) float64 {
	return c.BinMinHz * math.Pow(c.BinMaxHz/c.BinMinHz, float64(i)/float64(c.Bins-1))
}

// ModelOutput is one forward pass result. A model either reports a frequency
// directly (HasFrequency) or a distribution over pitch bins as Logits.
type ModelOutput struct {
	FrequencyHz  float64
	Confidence   float64
	HasFrequency bool
	Logits       []float64
}

// Model is an inference backend.
type Model interface {
	InputSize() int
	Infer(input []float64) (ModelOutput, error)
}

// ModelDetector estimates pitch with a neural model.
type ModelDetector struct {
	cfg   ModelConfig
	model Model

	resampled []float64
	input     []float64
	probs     []float64
}

// NewModelDetector creates a detector that loads cfg.Path on Initialize.
func NewModelDetector(cfg ModelConfig) *ModelDetector {
	return &ModelDetector{cfg: cfg}
}

// NewModelDetectorWithModel creates a detector around an already loaded model.
func NewModelDetectorWithModel(cfg ModelConfig, model Model) *ModelDetector {
	return &ModelDetector{cfg: cfg, model: model}
}

// Name returns "model".
func (m *ModelDetector) Name() string {
	return string(KindModel)
}

// Initialize loads the model asset. Failures wrap ErrModelUnavailable.
func (m *ModelDetector) Initialize(ctx context.Context) error {
	if m.model != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Path == "" {
		return fmt.Errorf("%w: no model path configured", ErrModelUnavailable)
	}

	model, err := LoadDenseModelFile(m.cfg.Path)
	if err != nil {
		return err
	}
	if got := model.InputSize(); got != m.cfg.FrameSize {
		return fmt.Errorf("%w: %s takes %d-sample frames, frame_size is %d",
			ErrModelUnavailable, m.cfg.Path, got, m.cfg.FrameSize)
	}
	m.model = model
	return nil
}

// Reset is a no-op; inference is stateless per frame.
func (m *ModelDetector) Reset() {}

// ProcessFrame resamples and fits frame to the model input, runs one forward
// pass and decodes the result.
func (m *ModelDetector) ProcessFrame(frame []float64, sampleRate int) PitchFrame {
	if m.model == nil || len(frame) == 0 {
		return Unvoiced
	}

	m.resampled = common.LinearResample(m.resampled, frame, sampleRate, m.cfg.SampleRate)
	m.input = common.CenterFit(m.input, m.resampled, m.model.InputSize())

	if m.cfg.Normalize {
		mean, std := common.MeanStdDev(m.input)
		if std < 1e-8 {
			return Unvoiced
		}
		for i := range m.input {
			m.input[i] = (m.input[i] - mean) / std
		}
	}

	out, err := m.model.Infer(m.input)
	if err != nil {
		return Unvoiced
	}
	if out.HasFrequency {
		return PitchFrame{PitchHz: out.FrequencyHz, Confidence: out.Confidence}.Sanitize()
	}
	return m.decodeBins(out.Logits)
}

// decodeBins takes the softmax argmax over the pitch grid.
func (m *ModelDetector) decodeBins(logits []float64) PitchFrame {
	if len(logits) != m.cfg.Bins {
		return Unvoiced
	}
	if cap(m.probs) < len(logits) {
		m.probs = make([]float64, len(logits))
	}
	m.probs = m.probs[:len(logits)]

	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, v)
	}
	sum := 0.0
	for i, v := range logits {
		m.probs[i] = math.Exp(v - maxLogit)
		sum += m.probs[i]
	}

	best := 0
	for i := range m.probs {
		m.probs[i] /= sum
		if m.probs[i] > m.probs[best] {
			best = i
		}
	}

	conf := m.probs[best]
	if math.IsNaN(conf) {
		return Unvoiced
	}
	if conf < m.cfg.VoicingThreshold {
		return PitchFrame{Confidence: conf}.Sanitize()
	}
	return PitchFrame{PitchHz: m.cfg.BinHz(best), Confidence: conf}.Sanitize()
}
