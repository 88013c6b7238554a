package common

import (
	"math"
	"testing"
)

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Fatalf("len/cap = %d/%d, want 3/3", r.Len(), r.Cap())
	}
	got := r.AppendTo(nil)
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("contents = %v, want %v", got, want)
		}
	}
	if last, ok := r.Last(); !ok || last != 5 {
		t.Fatalf("Last = %d,%v", last, ok)
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len after clear = %d", r.Len())
	}
	if _, ok := r.Last(); ok {
		t.Fatal("Last on empty ring reported ok")
	}
}

func TestHopBufferCarriesPartialHop(t *testing.T) {
	hb := NewHopBuffer(4)
	if n := hb.Fill([]float64{1, 2, 3}); n != 3 || hb.Full() {
		t.Fatalf("fill 3: n=%d full=%v", n, hb.Full())
	}
	if n := hb.Fill([]float64{4, 5}); n != 1 || !hb.Full() {
		t.Fatalf("fill 2: n=%d full=%v", n, hb.Full())
	}
	if hb.Len() > hb.Size() {
		t.Fatalf("fill %d exceeds size %d", hb.Len(), hb.Size())
	}
	hop := hb.Hop()
	if hop[0] != 1 || hop[3] != 4 {
		t.Fatalf("hop = %v", hop)
	}
	hb.Reset()
	if hb.Len() != 0 {
		t.Fatalf("len after reset = %d", hb.Len())
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(4)
	sw.Slide([]float64{1, 2})
	sw.Slide([]float64{3, 4})
	sw.Slide([]float64{5, 6})
	got := sw.Samples()
	want := []float64{3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window = %v, want %v", got, want)
		}
	}
	sw.Slide([]float64{7, 8, 9, 10, 11})
	if got[0] != 8 || got[3] != 11 {
		t.Fatalf("oversized hop window = %v", got)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{5, 1, 3}, 3},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := Median(tt.in); got != tt.want {
			t.Errorf("Median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLinRegression(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}
	slope, intercept := LinRegression(x, y)
	if math.Abs(slope-2) > 1e-9 || math.Abs(intercept-1) > 1e-9 {
		t.Fatalf("slope,intercept = %v,%v want 2,1", slope, intercept)
	}

	slope, _ = LinRegression([]float64{1, 1, 1}, []float64{1, 2, 3})
	if slope != 0 {
		t.Fatalf("degenerate x slope = %v, want 0", slope)
	}
}

func TestParabolicOffset(t *testing.T) {
	// vertex of (x-1.25)^2 sampled at 0,1,2
	data := []float64{1.5625, 0.0625, 0.5625}
	if got := ParabolicOffset(data, 1); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("offset = %v, want 0.25", got)
	}
	if got := ParabolicOffset(data, 0); got != 0 {
		t.Fatalf("edge offset = %v, want 0", got)
	}
}

func TestLinearResampleAndCenterFit(t *testing.T) {
	src := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	out := LinearResample(nil, src, 8000, 4000)
	if len(out) != 4 || out[1] != 2 || out[3] != 6 {
		t.Fatalf("downsample = %v", out)
	}
	same := LinearResample(nil, src, 16000, 16000)
	if len(same) != len(src) {
		t.Fatalf("identity resample len = %d", len(same))
	}

	crop := CenterFit(nil, src, 4)
	if crop[0] != 2 || crop[3] != 5 {
		t.Fatalf("crop = %v", crop)
	}
	pad := CenterFit(nil, []float64{1, 2}, 6)
	if pad[0] != 0 || pad[2] != 1 || pad[3] != 2 || pad[5] != 0 {
		t.Fatalf("pad = %v", pad)
	}
}

func TestEMA(t *testing.T) {
	e := EMA{Alpha: 0.5}
	e.Update(2)
	if got := e.Update(2); got != 1.5 {
		t.Fatalf("ema = %v, want 1.5", got)
	}
	e.Reset()
	if e.Value != 0 {
		t.Fatal("reset did not zero")
	}
}
