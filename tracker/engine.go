// Package tracker turns a stream of mono PCM chunks into one pitch snapshot
// per analysis hop.
//
// Each hop runs: DC blocking, loudness, pitch detection over a sliding
// analysis window, confidence gating, a null-aware median filter, a
// semitone-space Kalman filter relative to a drifting baseline, and a jitter
// EMA. An Engine must be owned by a single goroutine.
package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
	"github.com/RyanBlaney/sonido-coach/algorithms/filters"
	"github.com/RyanBlaney/sonido-coach/algorithms/temporal"
	"github.com/RyanBlaney/sonido-coach/algorithms/tonal"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/observe"
)

// Snapshot is the engine output for one completed hop. Snapshots are values
// and are never mutated after emission.
type Snapshot struct {
	// T is the end time of the hop since the engine was created.
	T time.Duration `json:"t"`

	// PitchHz and SemitoneRel are set only when Voiced.
	PitchHz     float64 `json:"pitch_hz,omitempty"`
	SemitoneRel float64 `json:"semitone_rel,omitempty"`
	Voiced      bool    `json:"voiced"`

	JitterEMA float64 `json:"jitter_ema"`
	// BaselineHz is 0 until the first confident hop.
	BaselineHz  float64 `json:"baseline_hz,omitempty"`
	LoudnessRMS float64 `json:"loudness_rms"`

	Raw tonal.PitchFrame `json:"raw"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithDetector replaces the detector chosen by the configuration. The
// detector is initialized by New.
func WithDetector(d tonal.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSnapshotSink registers fn to receive every snapshot, including those
// PushSamples does not return because a later hop completed in the same
// chunk.
func WithSnapshotSink(fn func(Snapshot)) Option {
	return func(e *Engine) { e.sink = fn }
}

// Engine is the hop-synchronous pitch pipeline.
type Engine struct {
	cfg     Config
	hopDur  time.Duration
	logger  logging.Logger
	metrics *observe.Metrics
	sink    func(Snapshot)

	detector tonal.Detector
	hop      *common.HopBuffer
	window   *common.SlidingWindow
	dc       *filters.DCBlocker
	loudness *temporal.LoudnessMeter
	median   *MedianFilter
	kalman   *Kalman
	baseline *Baseline
	jitter   *Jitter

	hops int64
}

// New validates cfg and builds an engine. Configuration errors wrap
// ErrInvalidConfig. A model detector that cannot be initialized is replaced
// by YIN and does not fail construction.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ModelSampleRate > 0 {
		cfg.Detector.Model.SampleRate = cfg.ModelSampleRate
	}

	median, err := NewMedianFilter(cfg.MedianWindow)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		hopDur:   time.Duration(math.Round(float64(cfg.HopSize()) * float64(time.Second) / float64(cfg.InputSampleRate))),
		hop:      common.NewHopBuffer(cfg.HopSize()),
		window:   common.NewSlidingWindow(cfg.FrameSize()),
		loudness: temporal.NewLoudnessMeter(cfg.LoudnessAlpha),
		median:   median,
		kalman:   NewKalman(cfg.Kalman),
		baseline: NewBaseline(),
		jitter:   NewJitter(),
	}
	if cfg.DCCutoffHz > 0 {
		e.dc = filters.NewDCBlocker(cfg.InputSampleRate, cfg.DCCutoffHz)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.WithFields(logging.Fields{"component": "tracker"})
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}

	if err := e.initDetector(ctx); err != nil {
		return nil, err
	}

	e.logger.Debug("pitch engine ready", logging.Fields{
		"detector":    e.detector.Name(),
		"sample_rate": cfg.InputSampleRate,
		"hop_size":    cfg.HopSize(),
		"frame_size":  cfg.FrameSize(),
	})
	return e, nil
}

func (e *Engine) initDetector(ctx context.Context) error {
	if e.detector == nil {
		d, err := tonal.NewDetector(ctx, e.cfg.Detector)
		e.detector = d
		if err != nil {
			return e.fallback(ctx, string(tonal.KindModel), err)
		}
		return nil
	}
	if err := e.detector.Initialize(ctx); err != nil {
		name := e.detector.Name()
		e.detector = tonal.NewYinDetector(e.cfg.Detector)
		return e.fallback(ctx, name, err)
	}
	return nil
}

// fallback records a detector initialization failure after YIN has been
// installed. Cancellation is the only failure that aborts construction.
func (e *Engine) fallback(ctx context.Context, name string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("initialize detector: %w", ctxErr)
	}
	e.logger.Warn("pitch detector unavailable, falling back to yin", logging.Fields{
		"detector": name,
		"error":    err.Error(),
	})
	e.metrics.RecordDetectorFallback(ctx, name)
	return nil
}

// DetectorName returns the name of the active detector.
func (e *Engine) DetectorName() string {
	return e.detector.Name()
}

// HopDuration returns the duration of one hop.
func (e *Engine) HopDuration() time.Duration {
	return e.hopDur
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// PushSamples buffers chunk and runs one analysis cycle per completed hop.
// It returns the snapshot of the last hop completed by this call, if any.
// chunk is only read during the call.
func (e *Engine) PushSamples(chunk []float64) (Snapshot, bool) {
	var (
		last Snapshot
		ok   bool
	)
	for len(chunk) > 0 {
		n := e.hop.Fill(chunk)
		chunk = chunk[n:]
		if !e.hop.Full() {
			break
		}
		last = e.processHop(e.hop.Hop())
		ok = true
		e.hop.Reset()
	}
	return last, ok
}

func (e *Engine) processHop(hop []float64) Snapshot {
	start := time.Now()

	if e.dc != nil {
		e.dc.ProcessInPlace(hop)
	}
	rmsEMA := e.loudness.Update(hop)
	e.window.Slide(hop)

	raw := e.detector.ProcessFrame(e.window.Samples(), e.cfg.InputSampleRate).Sanitize()
	confident := raw.Voiced() && raw.Confidence >= e.cfg.ConfidenceGate
	if e.cfg.RMSGate > 0 && e.loudness.Last() < e.cfg.RMSGate {
		confident = false
	}

	e.hops++
	snap := Snapshot{
		T:           time.Duration(e.hops) * e.hopDur,
		LoudnessRMS: rmsEMA,
		Raw:         raw,
	}

	medianHz, haveMedian := e.median.Push(raw.PitchHz, confident)
	if confident && haveMedian {
		baseHz := e.baseline.Update(medianHz)
		x := e.kalman.Update(common.Semitones(medianHz, baseHz))
		snap.Voiced = true
		snap.SemitoneRel = x
		snap.PitchHz = baseHz * math.Exp2(x/12)
		e.jitter.Update(x)
	} else {
		e.kalman.Unvoiced()
		e.jitter.Break()
	}
	snap.JitterEMA = e.jitter.Value()
	if hz, set := e.baseline.Hz(); set {
		snap.BaselineHz = hz
	}

	e.metrics.RecordHop(context.Background(), snap.Voiced, time.Since(start).Seconds())
	if e.sink != nil {
		e.sink(snap)
	}
	return snap
}

// Reset clears the filters, the baseline, the analysis window and any
// partially filled hop. Snapshot time keeps advancing. Safe at any point
// between calls.
func (e *Engine) Reset() {
	e.hop.Reset()
	e.window.Reset()
	if e.dc != nil {
		e.dc.Reset()
	}
	e.loudness.Reset()
	e.median.Reset()
	e.kalman.Reset()
	e.baseline.Reset()
	e.jitter.Reset()
	e.detector.Reset()
}
