// Package session wires the pitch engine, the coach policy and the prosody
// classifier into one practice session driven by raw PCM chunks.
//
// Policy time is stream time: the clock follows the latest snapshot, so a
// session behaves the same live and when fed from a file. A Session must be
// owned by one goroutine; Runner provides that ownership for concurrent hosts.
package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
	"github.com/RyanBlaney/sonido-coach/algorithms/temporal"
	"github.com/RyanBlaney/sonido-coach/coach"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/observe"
	"github.com/RyanBlaney/sonido-coach/prosody"
	"github.com/RyanBlaney/sonido-coach/tracker"
)

// streamClock reports the time of the most recent snapshot.
type streamClock struct {
	now time.Duration
}

func (c *streamClock) Now() time.Duration { return c.now }

// Update is the result of one PushSamples call that completed a hop.
type Update struct {
	Snapshot tracker.Snapshot `json:"snapshot"`
	Hint     *coach.Hint      `json:"hint,omitempty"`
}

// PhraseResult is the outcome of EndPhrase.
type PhraseResult struct {
	Start   time.Duration      `json:"start"`
	End     time.Duration      `json:"end"`
	Prosody prosody.Result     `json:"prosody"`
	Tier    prosody.TierResult `json:"tier"`
	Hint    coach.Hint         `json:"hint"`
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger  logging.Logger
	metrics *observe.Metrics
	copy    coach.Copy
	engine  []tracker.Option
}

// WithLogger sets the logger for the session and its components.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metric instruments for the session and its components.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCopy sets the hint text table.
func WithCopy(c coach.Copy) Option {
	return func(o *options) { o.copy = c }
}

// WithEngineOptions passes extra options to the pitch engine.
func WithEngineOptions(opts ...tracker.Option) Option {
	return func(o *options) { o.engine = append(o.engine, opts...) }
}

// Session is one practice session.
type Session struct {
	cfg     Config
	logger  logging.Logger
	metrics *observe.Metrics

	clock  *streamClock
	engine *tracker.Engine
	policy *coach.Policy

	history *common.Ring[coach.Frame]
	contour *common.Ring[prosody.Frame]

	historyBuf []coach.Frame
	contourBuf []prosody.Frame

	phraseStart time.Duration
}

// New validates cfg and builds a session.
func New(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.WithFields(logging.Fields{"component": "session"})
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		logger:  o.logger,
		metrics: o.metrics,
		clock:   &streamClock{},
	}

	engineOpts := append([]tracker.Option{
		tracker.WithLogger(o.logger.WithFields(logging.Fields{"component": "tracker"})),
		tracker.WithMetrics(o.metrics),
		tracker.WithSnapshotSink(s.record),
	}, o.engine...)
	engine, err := tracker.New(ctx, cfg.Engine, engineOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine

	// history frames are engine hops
	cfg.Coach.Hop = engine.HopDuration()
	policyOpts := []coach.Option{
		coach.WithClock(s.clock),
		coach.WithLogger(o.logger.WithFields(logging.Fields{"component": "coach"})),
		coach.WithMetrics(o.metrics),
	}
	if o.copy != nil {
		policyOpts = append(policyOpts, coach.WithCopy(o.copy))
	}
	policy, err := coach.New(cfg.Coach, policyOpts...)
	if err != nil {
		return nil, err
	}
	s.policy = policy
	s.cfg.Coach = cfg.Coach

	capacity := int(cfg.History / engine.HopDuration())
	if capacity < 1 {
		capacity = 1
	}
	s.history = common.NewRing[coach.Frame](capacity)
	s.contour = common.NewRing[prosody.Frame](capacity)
	s.historyBuf = make([]coach.Frame, 0, capacity)
	s.contourBuf = make([]prosody.Frame, 0, capacity)
	return s, nil
}

// Engine returns the pitch engine.
func (s *Session) Engine() *tracker.Engine {
	return s.engine
}

// Now returns the stream time of the latest snapshot.
func (s *Session) Now() time.Duration {
	return s.clock.now
}

// PushSamples feeds a chunk through the engine and asks the policy for a
// hint once if any hop completed. chunk is only read during the call.
func (s *Session) PushSamples(chunk []float64) (Update, bool) {
	snap, ok := s.engine.PushSamples(chunk)
	if !ok {
		return Update{}, false
	}
	up := Update{Snapshot: snap}
	s.historyBuf = s.history.AppendTo(s.historyBuf[:0])
	if h, ok := s.policy.Realtime(s.historyBuf); ok {
		up.Hint = &h
	}
	return up, true
}

// record converts each snapshot into policy and contour frames.
func (s *Session) record(snap tracker.Snapshot) {
	s.clock.now = snap.T

	f := coach.Frame{
		T:          snap.T,
		LoudNorm:   coach.Some(temporal.NormalizedLoudness(snap.LoudnessRMS, s.cfg.LoudnessFloorDB)),
		Confidence: coach.Some(snap.Raw.Confidence),
	}
	if snap.Voiced {
		// jitter is stale during silence
		f.JitterEMA = coach.Some(snap.JitterEMA)
		if t := s.cfg.Target; t.CenterHz > 0 {
			f.InTarget = coach.Some(math.Abs(common.Cents(snap.PitchHz, t.CenterHz)) <= t.ToleranceCents)
		}
	}
	s.history.Push(f)

	pf := prosody.Frame{T: snap.T}
	if snap.Voiced {
		pf.F0Hz = snap.PitchHz
	}
	s.contour.Push(pf)
}

// StartStep begins a new practice step: policy cooldowns, the history and the
// current phrase are cleared.
func (s *Session) StartStep() {
	s.policy.StartStep()
	s.history.Clear()
	s.contour.Clear()
	s.phraseStart = s.clock.now
	s.logger.Debug("step started", logging.Fields{"at": s.clock.now.String()})
}

// SetTarget changes the pitch target. A zero CenterHz removes it.
func (s *Session) SetTarget(t Target) error {
	if t.CenterHz < 0 || (t.CenterHz > 0 && t.ToleranceCents <= 0) {
		return fmt.Errorf("invalid target %+v", t)
	}
	s.cfg.Target = t
	return nil
}

// EndPhrase classifies the contour since the previous phrase end, rates it
// against reference when one is given, and resolves the phrase hint. The
// next phrase starts now.
func (s *Session) EndPhrase(reference []prosody.Frame) PhraseResult {
	res := PhraseResult{Start: s.phraseStart, End: s.clock.now}

	s.contourBuf = s.contourBuf[:0]
	for i := 0; i < s.contour.Len(); i++ {
		if f := s.contour.At(i); f.T > s.phraseStart {
			s.contourBuf = append(s.contourBuf, f)
		}
	}

	res.Prosody = prosody.Classify(s.contourBuf, s.cfg.Prosody)
	if len(reference) > 0 {
		res.Tier = prosody.Tier(s.contourBuf, reference, s.cfg.Tier)
	}
	res.Hint = s.policy.PostPhrase(coach.PhraseSummary{
		Tier:    res.Tier.Tier,
		EndRise: res.Prosody.Label == prosody.LabelRising,
	})

	s.metrics.RecordPhrase(context.Background(), string(res.Prosody.Label))
	s.logger.Debug("phrase ended", logging.Fields{
		"label": res.Prosody.Label,
		"slope": res.Prosody.SlopeCentsPerSec,
		"tier":  res.Tier.Tier,
		"hint":  res.Hint.ID,
	})
	s.phraseStart = s.clock.now
	return res
}

// Reset clears the engine, the history and the phrase. Stream time keeps
// advancing.
func (s *Session) Reset() {
	s.engine.Reset()
	s.history.Clear()
	s.contour.Clear()
	s.phraseStart = s.clock.now
}
