// Package coach turns a rolling history of pitch frames into coaching hints.
//
// The real-time resolver collects candidates from the safety, environment,
// technique and praise buckets, then emits at most one hint per call subject
// to a global rate limit, a per-step dwell and per-id anti-repeat cooldowns.
// A separate resolver picks exactly one hint at the end of each phrase.
//
// A Policy is not safe for concurrent use.
package coach

import (
	"context"
	"time"

	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/observe"
)

// Optional is a value that may be absent.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Frame is one history entry as seen by the policy.
type Frame struct {
	T          time.Duration
	LoudNorm   Optional[float64]
	JitterEMA  Optional[float64]
	InTarget   Optional[bool]
	Confidence Optional[float64]
}

type candidate struct {
	id     HintID
	bucket Bucket
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock sets the time source. The default is a SystemClock.
func WithClock(c Clock) Option {
	return func(p *Policy) { p.clock = c }
}

// WithCopy sets the hint text table.
func WithCopy(c Copy) Option {
	return func(p *Policy) { p.copy = c }
}

// WithLogger sets the policy logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// Policy is the coaching state machine.
type Policy struct {
	cfg     Config
	clock   Clock
	copy    Copy
	logger  logging.Logger
	metrics *observe.Metrics

	stepStartedAt time.Duration
	lastHintAt    time.Duration
	hinted        bool // a hint fired this step; lastHintAt is valid
	lastByID      map[HintID]time.Duration

	candidates []candidate
}

// New validates cfg and creates a policy whose first step starts now.
func New(cfg Config, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		cfg:        cfg,
		lastByID:   make(map[HintID]time.Duration),
		candidates: make([]candidate, 0, 8),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = NewSystemClock()
	}
	if p.copy == nil {
		p.copy = DefaultCopy()
	}
	if p.logger == nil {
		p.logger = logging.WithFields(logging.Fields{"component": "coach"})
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.stepStartedAt = p.clock.Now()
	return p, nil
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// StartStep begins a new practice step: the rate limit and all cooldowns
// are cleared and dwell is measured from now.
func (p *Policy) StartStep() {
	p.stepStartedAt = p.clock.Now()
	p.hinted = false
	p.lastHintAt = 0
	clear(p.lastByID)
}

// LastHintAt returns the time of the last hint this step.
func (p *Policy) LastHintAt() (time.Duration, bool) {
	return p.lastHintAt, p.hinted
}

// Realtime evaluates history (oldest first) and returns at most one hint.
func (p *Policy) Realtime(history []Frame) (Hint, bool) {
	now := p.clock.Now()
	if len(history) == 0 || !p.admissible(now) {
		return Hint{}, false
	}

	p.candidates = p.candidates[:0]
	if p.tooLoud(history, now) {
		// safety short-circuits every other bucket
		p.candidates = append(p.candidates, candidate{HintTooLoud, BucketSafety})
	} else {
		p.collect(history, now)
	}

	for _, c := range p.candidates {
		if last, ok := p.lastByID[c.id]; ok && now-last < p.cfg.AntiRepeat {
			continue
		}
		return p.emit(c, now), true
	}
	return Hint{}, false
}

// admissible applies the rate limit and the dwell requirement.
func (p *Policy) admissible(now time.Duration) bool {
	if p.hinted && now-p.lastHintAt < p.cfg.RateLimit {
		return false
	}
	dwell := p.cfg.DwellFirstHint
	if p.hinted {
		dwell = p.cfg.DwellAfterFirst
	}
	return now-p.stepStartedAt >= dwell
}

// collect appends non-safety candidates in priority order.
func (p *Policy) collect(history []Frame, now time.Duration) {
	if p.tooQuiet(history, now) {
		p.candidates = append(p.candidates, candidate{HintTooQuiet, BucketEnvironment})
	}

	technique := false
	if j := history[len(history)-1].JitterEMA; j.Valid && j.Value > p.cfg.JitterThreshold {
		p.candidates = append(p.candidates, candidate{HintJitter, BucketTechniqueTarget})
		technique = true
	}
	if now-p.stepStartedAt >= p.cfg.TargetCheckAfter {
		if ratio, ok := p.inTargetRatio(history, p.stepStartedAt); ok && ratio < p.cfg.TargetMinRatio {
			p.candidates = append(p.candidates, candidate{HintTargetMiss, BucketTechniqueTarget})
			technique = true
		}
	}
	if !technique && p.lowConfidence(history) {
		p.candidates = append(p.candidates, candidate{HintLowConfidence, BucketTechniqueConfidence})
		technique = true
	}

	if !technique && p.steady(history, now) {
		p.candidates = append(p.candidates, candidate{HintSteady, BucketPraise})
	}
}

// coverage sums frame durations in (now-window, now] matching pred.
func (p *Policy) coverage(history []Frame, now, window time.Duration, pred func(Frame) bool) time.Duration {
	var d time.Duration
	for i := len(history) - 1; i >= 0 && history[i].T > now-window; i-- {
		if history[i].T <= now && pred(history[i]) {
			d += p.cfg.Hop
		}
	}
	return d
}

func (p *Policy) tooLoud(history []Frame, now time.Duration) bool {
	loud := p.coverage(history, now, p.cfg.LoudWindow, func(f Frame) bool {
		return f.LoudNorm.Valid && f.LoudNorm.Value >= p.cfg.LoudnessThreshold
	})
	return loud >= p.cfg.LoudWindow
}

func (p *Policy) tooQuiet(history []Frame, now time.Duration) bool {
	quiet := p.coverage(history, now, p.cfg.QuietWindow, func(f Frame) bool {
		return f.LoudNorm.Valid && f.LoudNorm.Value < p.cfg.QuietThreshold
	})
	return quiet >= p.cfg.QuietWindow
}

// inTargetRatio is the in-target fraction of frames at or after since that
// carry a target flag.
func (p *Policy) inTargetRatio(history []Frame, since time.Duration) (float64, bool) {
	var flagged, hit int
	for i := len(history) - 1; i >= 0 && history[i].T >= since; i-- {
		if f := history[i].InTarget; f.Valid {
			flagged++
			if f.Value {
				hit++
			}
		}
	}
	if flagged == 0 {
		return 0, false
	}
	return float64(hit) / float64(flagged), true
}

func (p *Policy) lowConfidence(history []Frame) bool {
	n := p.cfg.ConfidenceMinFrames
	if len(history) < n {
		return false
	}
	sum := 0.0
	for _, f := range history[len(history)-n:] {
		if !f.Confidence.Valid {
			return false
		}
		sum += f.Confidence.Value
	}
	return sum/float64(n) < p.cfg.ConfidenceThreshold
}

func (p *Policy) steady(history []Frame, now time.Duration) bool {
	j := history[len(history)-1].JitterEMA
	if !j.Valid || j.Value > p.cfg.PraiseJitterMax {
		return false
	}
	start := now - p.cfg.PraiseWindow
	covered := p.coverage(history, now, p.cfg.PraiseWindow, func(f Frame) bool { return f.InTarget.Valid })
	if covered < p.cfg.PraiseWindow {
		return false
	}
	ratio, ok := p.inTargetRatio(history, start+1)
	return ok && ratio >= p.cfg.PraiseTargetRatio
}

func (p *Policy) emit(c candidate, now time.Duration) Hint {
	p.hinted = true
	p.lastHintAt = now
	p.lastByID[c.id] = now
	h := p.hint(c)
	p.record(h, now)
	return h
}

func (p *Policy) hint(c candidate) Hint {
	entry := p.copy.lookup(c.id)
	return Hint{
		ID:       c.id,
		Text:     entry.Text,
		Aria:     entry.Aria,
		Severity: severityOf(c.bucket),
		Priority: c.bucket.priority(),
		Bucket:   c.bucket,
	}
}

func (p *Policy) record(h Hint, now time.Duration) {
	p.metrics.RecordHint(context.Background(), string(h.ID), string(h.Bucket))
	p.logger.Debug("coach hint", logging.Fields{
		"id":     h.ID,
		"bucket": h.Bucket,
		"at":     now.String(),
	})
}

func severityOf(b Bucket) Severity {
	switch b {
	case BucketSafety, BucketEnvironment:
		return SeverityWarning
	case BucketPraise:
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}
