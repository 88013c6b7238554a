package common

import "math"

// ParabolicOffset fits a parabola through data[idx-1], data[idx], data[idx+1]
// and returns the fractional offset of its vertex from idx, in [-1, 1].
// Edges and flat neighbourhoods return 0.
func ParabolicOffset(data []float64, idx int) float64 {
	if idx <= 0 || idx >= len(data)-1 {
		return 0
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2
	if math.Abs(a) < 1e-12 {
		return 0
	}

	return Clamp(-b/(2*a), -1, 1)
}

// LinearResample resamples src from srcRate to dstRate with linear
// interpolation, writing into dst (grown if needed) and returning it.
func LinearResample(dst, src []float64, srcRate, dstRate int) []float64 {
	if len(src) == 0 || srcRate <= 0 || dstRate <= 0 {
		return dst[:0]
	}
	if srcRate == dstRate {
		return append(dst[:0], src...)
	}

	outLen := int(math.Round(float64(len(src)) * float64(dstRate) / float64(srcRate)))
	if outLen < 1 {
		outLen = 1
	}
	if cap(dst) < outLen {
		dst = make([]float64, outLen)
	}
	dst = dst[:outLen]

	step := float64(srcRate) / float64(dstRate)
	last := len(src) - 1
	for i := range dst {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			dst[i] = src[last]
			continue
		}
		frac := pos - float64(j)
		dst[i] = src[j] + frac*(src[j+1]-src[j])
	}
	return dst
}

// CenterFit center-crops or zero-pads src into dst of exactly size samples.
func CenterFit(dst, src []float64, size int) []float64 {
	if cap(dst) < size {
		dst = make([]float64, size)
	}
	dst = dst[:size]
	for i := range dst {
		dst[i] = 0
	}

	if len(src) >= size {
		off := (len(src) - size) / 2
		copy(dst, src[off:off+size])
	} else {
		off := (size - len(src)) / 2
		copy(dst[off:], src)
	}
	return dst
}
