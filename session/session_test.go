package session

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-coach/coach"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/prosody"
)

const testRate = 16000

// tone generates a sine gliding linearly from fromHz to toHz, keeping phase
// continuous across calls.
type tone struct {
	phase float64
	amp   float64
}

func (g *tone) glide(fromHz, toHz float64, d time.Duration) []float64 {
	n := int(d.Seconds() * testRate)
	out := make([]float64, n)
	for i := range out {
		hz := fromHz + (toHz-fromHz)*float64(i)/float64(n)
		g.phase += 2 * math.Pi * hz / testRate
		out[i] = g.amp * math.Sin(g.phase)
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Engine.InputSampleRate = testRate
	return cfg
}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(context.Background(), cfg, WithLogger(&logging.NoOpLogger{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// feed pushes samples in 10 ms chunks and returns every hint raised.
func feed(s *Session, samples []float64) []coach.Hint {
	var hints []coach.Hint
	for len(samples) > 0 {
		n := min(testRate/100, len(samples))
		if up, ok := s.PushSamples(samples[:n]); ok && up.Hint != nil {
			hints = append(hints, *up.Hint)
		}
		samples = samples[n:]
	}
	return hints
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad engine", func(c *Config) { c.Engine.MedianWindow = 2 }},
		{"bad coach", func(c *Config) { c.Coach.RateLimit = -time.Second }},
		{"bad prosody", func(c *Config) { c.Prosody.Window = 0 }},
		{"negative target", func(c *Config) { c.Target.CenterHz = -1 }},
		{"target without tolerance", func(c *Config) { c.Target = Target{CenterHz: 220} }},
		{"floor above zero", func(c *Config) { c.LoudnessFloorDB = 3 }},
		{"no history", func(c *Config) { c.History = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(context.Background(), cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStreamClockFollowsSnapshots(t *testing.T) {
	s := newTestSession(t, testConfig())
	g := &tone{amp: 0.1}
	feed(s, g.glide(220, 220, 500*time.Millisecond))
	if got := s.Now(); got != 500*time.Millisecond {
		t.Fatalf("Now = %v, want 500ms", got)
	}
	s.Reset()
	feed(s, g.glide(220, 220, 100*time.Millisecond))
	if got := s.Now(); got != 600*time.Millisecond {
		t.Fatalf("Now after Reset = %v, want 600ms", got)
	}
}

func TestSteadyInTargetEarnsPraise(t *testing.T) {
	cfg := testConfig()
	cfg.Target = Target{CenterHz: 220, ToleranceCents: 50}
	s := newTestSession(t, cfg)

	g := &tone{amp: 0.1}
	hints := feed(s, g.glide(220, 220, 4*time.Second))
	if len(hints) == 0 {
		t.Fatal("no hints")
	}
	if hints[0].ID != coach.HintSteady {
		t.Fatalf("first hint = %s, want %s", hints[0].ID, coach.HintSteady)
	}
	for _, h := range hints {
		if h.Bucket != coach.BucketPraise {
			t.Errorf("unexpected hint %s", h.ID)
		}
	}
}

func TestLoudSingingRaisesSafetyHint(t *testing.T) {
	s := newTestSession(t, testConfig())
	g := &tone{amp: 0.9}

	if hints := feed(s, g.glide(220, 220, 4*time.Second)); len(hints) != 0 {
		t.Fatalf("hint before the loud window filled: %v", hints[0].ID)
	}
	hints := feed(s, g.glide(220, 220, 2*time.Second))
	if len(hints) == 0 || hints[0].ID != coach.HintTooLoud {
		t.Fatalf("hints = %v, want tooLoud first", hints)
	}
}

func TestEndPhraseClassifiesRisingEnding(t *testing.T) {
	s := newTestSession(t, testConfig())
	g := &tone{amp: 0.1}
	feed(s, g.glide(200, 300, time.Second))

	res := s.EndPhrase(nil)
	if res.Prosody.Label != prosody.LabelRising {
		t.Fatalf("label = %s (slope %.1f), want rising", res.Prosody.Label, res.Prosody.SlopeCentsPerSec)
	}
	if res.Tier.Tier != 0 {
		t.Fatalf("tier without reference = %d, want 0", res.Tier.Tier)
	}
	// rising ending without a rating
	if res.Hint.ID != coach.HintRetry {
		t.Fatalf("hint = %s, want %s", res.Hint.ID, coach.HintRetry)
	}
	if res.Start != 0 || res.End != time.Second {
		t.Fatalf("phrase span = [%v, %v]", res.Start, res.End)
	}

	// nothing new since the last phrase end
	next := s.EndPhrase(nil)
	if !next.Prosody.InsufficientVoiced {
		t.Fatal("empty phrase should be insufficient")
	}
	if next.Hint.ID != coach.HintRise {
		t.Fatalf("hint = %s, want %s", next.Hint.ID, coach.HintRise)
	}
}

func TestEndPhraseAfterPauseKeepsRisingEnding(t *testing.T) {
	s := newTestSession(t, testConfig())
	g := &tone{amp: 0.1}
	feed(s, g.glide(200, 200, 800*time.Millisecond))
	feed(s, g.glide(200, 215, 300*time.Millisecond))
	// the pause a caller waits out before deciding the phrase is over
	feed(s, make([]float64, 4*testRate/10))

	res := s.EndPhrase(nil)
	if res.Prosody.Label != prosody.LabelRising {
		t.Fatalf("label = %s (slope %.1f), want rising", res.Prosody.Label, res.Prosody.SlopeCentsPerSec)
	}
	if res.Hint.ID != coach.HintRetry {
		t.Fatalf("hint = %s, want %s", res.Hint.ID, coach.HintRetry)
	}
}

func TestEndPhraseRatesAgainstReference(t *testing.T) {
	s := newTestSession(t, testConfig())
	g := &tone{amp: 0.1}
	feed(s, g.glide(200, 300, time.Second))

	var ref []prosody.Frame
	for i := 0; i < 50; i++ {
		ref = append(ref, prosody.Frame{
			T:    time.Duration(i) * 20 * time.Millisecond,
			F0Hz: 200 + 100*float64(i)/50,
		})
	}
	res := s.EndPhrase(ref)
	if res.Tier.Tier < 4 {
		t.Fatalf("tier = %d (distance %.1f), want >= 4", res.Tier.Tier, res.Tier.DistanceCents)
	}
	if res.Hint.ID != coach.HintPraise {
		t.Fatalf("hint = %s, want praise", res.Hint.ID)
	}
}

func TestSilenceIsNotVoiced(t *testing.T) {
	s := newTestSession(t, testConfig())
	up, ok := s.PushSamples(make([]float64, testRate/10))
	if !ok {
		t.Fatal("no snapshot")
	}
	if up.Snapshot.Voiced {
		t.Fatal("silence voiced")
	}
	res := s.EndPhrase(nil)
	if !res.Prosody.InsufficientVoiced {
		t.Fatal("silent phrase should be insufficient")
	}
}

func TestSetTargetValidates(t *testing.T) {
	s := newTestSession(t, testConfig())
	if err := s.SetTarget(Target{CenterHz: 440}); err == nil {
		t.Fatal("missing tolerance accepted")
	}
	if err := s.SetTarget(Target{CenterHz: 440, ToleranceCents: 30}); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	if err := s.SetTarget(Target{}); err != nil {
		t.Fatalf("clearing target: %v", err)
	}
}

func TestRunnerPublishesEvents(t *testing.T) {
	s := newTestSession(t, testConfig())
	r := NewRunner(s, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	var snapshots, phrases int
	phraseSeen := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range r.Events() {
			switch ev.Kind {
			case EventSnapshot:
				snapshots++
			case EventPhrase:
				phrases++
				close(phraseSeen)
			}
		}
	}()

	g := &tone{amp: 0.1}
	samples := g.glide(200, 300, time.Second)
	for i := 0; i < len(samples); i += 160 {
		if err := r.PushSamples(ctx, samples[i:i+160]); err != nil {
			t.Fatalf("PushSamples: %v", err)
		}
	}
	if err := r.SetTarget(ctx, Target{CenterHz: 250, ToleranceCents: 100}); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	res, err := r.EndPhrase(ctx, nil)
	if err != nil {
		t.Fatalf("EndPhrase: %v", err)
	}
	if res.End != time.Second {
		t.Fatalf("phrase end = %v, want 1s", res.End)
	}
	if err := r.StartStep(ctx); err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	<-phraseSeen

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	<-drained
	if snapshots != 100 {
		t.Fatalf("snapshots = %d, want 100", snapshots)
	}
	if phrases != 1 {
		t.Fatalf("phrases = %d, want 1", phrases)
	}

	if err := r.StartStep(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("StartStep after stop = %v, want ErrStopped", err)
	}
}
