// Package prosody labels the intonation contour of a phrase and scores it
// against a reference contour.
package prosody

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// ErrInvalidOptions is wrapped by option validation errors.
var ErrInvalidOptions = errors.New("prosody: invalid options")

// Frame is one (time, f0) observation. F0Hz <= 0 or non-finite is unvoiced.
type Frame struct {
	T    time.Duration `json:"t"`
	F0Hz float64       `json:"f0_hz,omitempty"`
}

// Voiced reports whether the frame carries a usable pitch.
func (f Frame) Voiced() bool {
	return common.IsUsableHz(f.F0Hz)
}

// Label is the direction of a contour.
type Label string

const (
	LabelRising  Label = "rising"
	LabelFalling Label = "falling"
	LabelFlat    Label = "flat"
)

// Options tune Classify.
type Options struct {
	Window    time.Duration `yaml:"window" json:"window"`
	MinVoiced time.Duration `yaml:"min_voiced" json:"min_voiced"`

	RiseCentsPerSec float64 `yaml:"rise_cents_per_sec" json:"rise_cents_per_sec"`
	FallCentsPerSec float64 `yaml:"fall_cents_per_sec" json:"fall_cents_per_sec"` // negative

	// EMAAlpha smooths the f0 series before regression; 0 disables.
	EMAAlpha   float64 `yaml:"ema_alpha" json:"ema_alpha"`
	MinSamples int     `yaml:"min_samples" json:"min_samples"`
}

// DefaultOptions returns options tuned for question/statement endings.
func DefaultOptions() Options {
	return Options{
		Window:          1200 * time.Millisecond,
		MinVoiced:       300 * time.Millisecond,
		RiseCentsPerSec: 150,
		FallCentsPerSec: -150,
		MinSamples:      5,
	}
}

// Validate reports option errors wrapped in ErrInvalidOptions.
func (o Options) Validate() error {
	var errs []error
	if o.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be > 0, got %v", o.Window))
	}
	if o.MinVoiced < 0 {
		errs = append(errs, fmt.Errorf("min_voiced must be >= 0, got %v", o.MinVoiced))
	}
	if o.RiseCentsPerSec <= o.FallCentsPerSec {
		errs = append(errs, fmt.Errorf("rise_cents_per_sec (%v) must exceed fall_cents_per_sec (%v)", o.RiseCentsPerSec, o.FallCentsPerSec))
	}
	if o.EMAAlpha < 0 || o.EMAAlpha > 1 {
		errs = append(errs, fmt.Errorf("ema_alpha must be in [0,1], got %v", o.EMAAlpha))
	}
	if o.MinSamples < 0 {
		errs = append(errs, fmt.Errorf("min_samples must be >= 0, got %d", o.MinSamples))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
}

// Result is the outcome of Classify.
type Result struct {
	Label              Label         `json:"label"`
	SlopeCentsPerSec   float64       `json:"slope_cents_per_sec"`
	Voiced             time.Duration `json:"voiced"`
	SampleCount        int           `json:"sample_count"`
	InsufficientVoiced bool          `json:"insufficient_voiced"`
	RefHz              float64       `json:"ref_hz,omitempty"`
}

const (
	maxTail      = 400 * time.Millisecond
	tailFraction = 0.4
	minTailCount = 3
)

// Classify labels the trailing window of frames, which must be in time
// order. The window ends at the last voiced frame, so silence after the
// phrase does not push its ending out of view. The slope is fitted on the
// phrase ending when it holds enough samples, otherwise on the whole window.
//
// When voicing is too thin the result is flat and InsufficientVoiced, but
// RefHz and the slope are still reported once two voiced frames exist.
func Classify(frames []Frame, opts Options) Result {
	res := Result{Label: LabelFlat}
	last := len(frames) - 1
	for last >= 0 && !frames[last].Voiced() {
		last--
	}
	if last < 0 {
		res.InsufficientVoiced = true
		return res
	}
	frames = frames[:last+1]

	end := frames[last].T
	start := sort.Search(len(frames), func(i int) bool {
		return frames[i].T >= end-opts.Window
	})
	window := frames[start:]

	spacing := medianSpacing(window)
	var (
		times []float64
		f0    []float64
	)
	for i, f := range window {
		if !f.Voiced() {
			continue
		}
		gap := spacing
		if i+1 < len(window) {
			gap = window[i+1].T - f.T
		}
		res.Voiced += gap
		times = append(times, (f.T - window[0].T).Seconds())
		f0 = append(f0, f.F0Hz)
	}
	res.SampleCount = len(f0)

	res.InsufficientVoiced = len(f0) < max(2, opts.MinSamples) || res.Voiced < opts.MinVoiced
	if len(f0) < 2 {
		return res
	}

	res.RefHz = common.Median(f0)
	if opts.EMAAlpha > 0 {
		ema := common.EMA{Alpha: opts.EMAAlpha, Value: f0[0]}
		for i := range f0 {
			f0[i] = ema.Update(f0[i])
		}
	}
	cents := make([]float64, len(f0))
	for i, hz := range f0 {
		cents[i] = common.Cents(hz, res.RefHz)
	}

	tail := min(maxTail, time.Duration(tailFraction*float64(opts.Window)))
	tailFrom := (end - tail - window[0].T).Seconds()
	tailStart := sort.SearchFloat64s(times, tailFrom)
	if len(times)-tailStart >= minTailCount {
		res.SlopeCentsPerSec, _ = common.LinRegression(times[tailStart:], cents[tailStart:])
	} else {
		res.SlopeCentsPerSec, _ = common.LinRegression(times, cents)
	}

	switch {
	case res.InsufficientVoiced:
	case res.SlopeCentsPerSec >= opts.RiseCentsPerSec:
		res.Label = LabelRising
	case res.SlopeCentsPerSec <= opts.FallCentsPerSec:
		res.Label = LabelFalling
	}
	return res
}

// medianSpacing is the typical frame interval, used for the last frame.
func medianSpacing(frames []Frame) time.Duration {
	if len(frames) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		gaps = append(gaps, float64(frames[i].T-frames[i-1].T))
	}
	return time.Duration(common.MedianInPlace(gaps))
}
