package spectral

import (
	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// FFT computes correlations through mjibson/go-dsp transforms. It keeps
// padded scratch buffers between calls, so a single FFT must not be shared
// between goroutines.
type FFT struct {
	padA []float64
	padB []float64
	prod []complex128
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// CrossCorrelate writes r[τ] = Σ_{i<len(a)} a[i]·b[i+τ] for τ in [0, maxLag]
// into dst and returns it. b must hold at least len(a)+maxLag samples.
func (f *FFT) CrossCorrelate(dst, a, b []float64, maxLag int) []float64 {
	n := common.NextPowerOfTwo(len(b))
	f.padA = resize(f.padA, n)
	f.padB = resize(f.padB, n)
	copy(f.padA, a)
	copy(f.padB, b)

	specA := fft.FFTReal(f.padA)
	specB := fft.FFTReal(f.padB)
	if cap(f.prod) < n {
		f.prod = make([]complex128, n)
	}
	f.prod = f.prod[:n]
	for i := range specA {
		re, im := real(specA[i]), -imag(specA[i])
		f.prod[i] = complex(re, im) * specB[i]
	}
	corr := fft.IFFT(f.prod)

	if cap(dst) < maxLag+1 {
		dst = make([]float64, maxLag+1)
	}
	dst = dst[:maxLag+1]
	for tau := range dst {
		dst[tau] = real(corr[tau])
	}
	return dst
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}
