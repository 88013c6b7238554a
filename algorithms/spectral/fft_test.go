package spectral

import (
	"math"
	"testing"
)

func directCorrelation(a, b []float64, maxLag int) []float64 {
	out := make([]float64, maxLag+1)
	for tau := range out {
		for i := range a {
			out[tau] += a[i] * b[i+tau]
		}
	}
	return out
}

func TestCrossCorrelateMatchesDirectSum(t *testing.T) {
	tests := []struct {
		name   string
		n, lag int
	}{
		{"power of two", 64, 32},
		{"odd length", 37, 20},
		{"zero lag", 16, 0},
	}
	f := NewFFT()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]float64, tt.n+tt.lag)
			for i := range b {
				b[i] = math.Sin(0.3*float64(i)) + 0.1*float64(i%5)
			}
			a := b[:tt.n]

			got := f.CrossCorrelate(nil, a, b, tt.lag)
			want := directCorrelation(a, b, tt.lag)
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if math.Abs(got[i]-want[i]) > 1e-9 {
					t.Fatalf("r[%d] = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestCrossCorrelateReusesScratch(t *testing.T) {
	f := NewFFT()
	long := make([]float64, 96)
	for i := range long {
		long[i] = float64(i % 7)
	}
	dst := f.CrossCorrelate(nil, long[:64], long, 32)

	// a shorter call afterwards must not see stale padding
	short := []float64{1, 2, 3, 4, 5, 6}
	dst = f.CrossCorrelate(dst, short[:4], short, 2)
	want := directCorrelation(short[:4], short, 2)
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-9 {
			t.Fatalf("r[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}
