package prosody

import (
	"errors"
	"math"
	"testing"
	"time"
)

const step = 20 * time.Millisecond

// ramp returns n frames at 20 ms spacing moving linearly from fromHz to toHz.
func ramp(fromHz, toHz float64, n int, startAt time.Duration) []Frame {
	frames := make([]Frame, n)
	for i := range frames {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		frames[i] = Frame{T: startAt + time.Duration(i)*step, F0Hz: fromHz + (toHz-fromHz)*frac}
	}
	return frames
}

func TestClassifyContours(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		name   string
		frames []Frame
		label  Label
		check  func(float64) bool
	}{
		{"rising ramp", ramp(180, 200, 20, 0), LabelRising, func(s float64) bool { return s > 250 }},
		{"falling ramp", ramp(200, 180, 20, 0), LabelFalling, func(s float64) bool { return s < -250 }},
		{"constant", ramp(200, 200, 60, 0), LabelFlat, func(s float64) bool { return math.Abs(s) < 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.frames, opts)
			if got.Label != tt.label || !tt.check(got.SlopeCentsPerSec) {
				t.Fatalf("got %s slope %.1f c/s, want %s", got.Label, got.SlopeCentsPerSec, tt.label)
			}
			if got.InsufficientVoiced {
				t.Fatal("unexpected insufficientVoiced")
			}
			if got.SampleCount != len(tt.frames) {
				t.Errorf("sample count = %d, want %d", got.SampleCount, len(tt.frames))
			}
		})
	}
}

func TestClassifyShortVoicingIsFlat(t *testing.T) {
	// 200 ms of a steep rise, below the 300 ms voiced minimum
	got := Classify(ramp(180, 260, 10, 0), DefaultOptions())
	if !got.InsufficientVoiced || got.Label != LabelFlat {
		t.Fatalf("got %+v, want insufficient flat", got)
	}
	if got.Voiced != 200*time.Millisecond {
		t.Errorf("voiced = %v, want 200ms", got.Voiced)
	}
}

func TestClassifyShortVoicingStillMeasures(t *testing.T) {
	got := Classify(ramp(180, 260, 10, 0), DefaultOptions())
	if got.Label != LabelFlat || !got.InsufficientVoiced {
		t.Fatalf("got %+v, want insufficient flat", got)
	}
	if got.RefHz < 180 || got.RefHz > 260 {
		t.Errorf("ref = %.1f Hz, want the median of the ramp", got.RefHz)
	}
	if got.SlopeCentsPerSec < 150 {
		t.Errorf("slope = %.1f c/s, want the measured rise", got.SlopeCentsPerSec)
	}
}

func TestClassifyIgnoresTrailingSilence(t *testing.T) {
	// a steady second, a 300 ms rise, then 400 ms of unvoiced hops
	frames := append(ramp(200, 200, 50, 0), ramp(200, 220, 15, time.Second)...)
	for i := 0; i < 20; i++ {
		frames = append(frames, Frame{T: 1300*time.Millisecond + time.Duration(i)*step})
	}
	got := Classify(frames, DefaultOptions())
	if got.Label != LabelRising || got.InsufficientVoiced {
		t.Fatalf("got %+v, want rising", got)
	}
	// the window reaches back 1.2 s from the last voiced frame at 1.28 s
	if got.SampleCount != 61 {
		t.Errorf("sample count = %d, want 61", got.SampleCount)
	}
}

func TestClassifyTooFewSamples(t *testing.T) {
	frames := []Frame{{T: 0, F0Hz: 200}, {T: 20 * time.Millisecond}, {T: 40 * time.Millisecond, F0Hz: math.NaN()}}
	got := Classify(frames, DefaultOptions())
	if !got.InsufficientVoiced || got.SampleCount != 1 {
		t.Fatalf("got %+v", got)
	}
	if got := Classify(nil, DefaultOptions()); !got.InsufficientVoiced || got.Label != LabelFlat {
		t.Fatalf("empty input: %+v", got)
	}
}

func TestClassifyPrefersPhraseEnding(t *testing.T) {
	// 800 ms steep fall, then a 400 ms rise: a question ending
	frames := append(ramp(240, 181, 40, 0), ramp(180, 200, 20, 800*time.Millisecond)...)
	got := Classify(frames, DefaultOptions())
	if got.Label != LabelRising {
		t.Fatalf("label = %s (slope %.1f), want rising from the phrase ending", got.Label, got.SlopeCentsPerSec)
	}
}

func TestClassifyIgnoresFramesOutsideWindow(t *testing.T) {
	// an old rise followed by 1.2 s of steady pitch
	frames := append(ramp(150, 250, 30, 0), ramp(200, 200, 61, 600*time.Millisecond)...)
	got := Classify(frames, DefaultOptions())
	if got.Label != LabelFlat || got.RefHz != 200 {
		t.Fatalf("got %+v, want flat at 200 Hz", got)
	}
}

func TestClassifySmoothingKeepsDirection(t *testing.T) {
	opts := DefaultOptions()
	opts.EMAAlpha = 0.5
	got := Classify(ramp(180, 220, 30, 0), opts)
	if got.Label != LabelRising {
		t.Fatalf("label = %s, want rising", got.Label)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := DefaultOptions()
	bad.Window = 0
	bad.RiseCentsPerSec = -500
	if err := bad.Validate(); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("err = %v, want ErrInvalidOptions", err)
	}
}

func TestTierMapping(t *testing.T) {
	opts := DefaultTierOptions()
	tests := []struct {
		distance float64
		want     int
	}{
		{0, 5}, {25, 5}, {25.1, 4}, {50, 4}, {99, 3}, {150, 2}, {200, 2}, {201, 1}, {1000, 1},
	}
	for _, tt := range tests {
		if got := opts.tierFor(tt.distance); got != tt.want {
			t.Errorf("tierFor(%v) = %d, want %d", tt.distance, got, tt.want)
		}
	}
}

func TestTier(t *testing.T) {
	ref := ramp(180, 300, 30, 0)

	t.Run("same shape other register", func(t *testing.T) {
		perf := make([]Frame, len(ref))
		for i, f := range ref {
			perf[i] = Frame{T: f.T, F0Hz: f.F0Hz * 1.5}
		}
		if got := Tier(perf, ref, DefaultTierOptions()); got.Tier != 5 {
			t.Fatalf("got %+v, want tier 5", got)
		}
	})

	t.Run("slower performance", func(t *testing.T) {
		perf := ramp(180, 300, 60, 0)
		if got := Tier(perf, ref, DefaultTierOptions()); got.Tier < 4 {
			t.Fatalf("got %+v, want tier >= 4", got)
		}
	})

	t.Run("mirrored contour", func(t *testing.T) {
		perf := ramp(300, 180, 30, 0)
		if got := Tier(perf, ref, DefaultTierOptions()); got.Tier != 1 {
			t.Fatalf("got %+v, want tier 1", got)
		}
	})

	t.Run("no voiced frames", func(t *testing.T) {
		if got := Tier([]Frame{{T: 0}}, ref, DefaultTierOptions()); got.Tier != 0 {
			t.Fatalf("got %+v, want tier 0", got)
		}
	})
}
