package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MedianInPlace sorts data and returns its median. An even count yields the
// mean of the two middle values. Returns 0 for empty input.
func MedianInPlace(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0.0
	}
	sort.Float64s(data)
	if n%2 == 0 {
		return (data[n/2-1] + data[n/2]) / 2.0
	}
	return data[n/2]
}

// Median returns the median of data without modifying it.
func Median(data []float64) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	return MedianInPlace(sorted)
}

// LinRegression performs simple linear regression and returns slope and intercept.
// Returns zeros when x has no spread.
func LinRegression(x, y []float64) (slope, intercept float64) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, 0
	}
	if floats.Max(x)-floats.Min(x) < 1e-12 {
		return 0, Mean(y)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, Mean(y)
	}
	return beta, alpha
}

// MeanStdDev returns the mean and sample standard deviation of data.
func MeanStdDev(data []float64) (mean, std float64) {
	switch len(data) {
	case 0:
		return 0, 0
	case 1:
		return data[0], 0
	}
	return stat.MeanStdDev(data, nil)
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsUsableHz reports whether hz is a finite, strictly positive frequency.
func IsUsableHz(hz float64) bool {
	return hz > 0 && !math.IsNaN(hz) && !math.IsInf(hz, 0)
}

// Semitones returns the distance from ref to hz in semitones.
func Semitones(hz, ref float64) float64 {
	return 12 * math.Log2(hz/ref)
}

// Cents returns the distance from ref to hz in cents.
func Cents(hz, ref float64) float64 {
	return 1200 * math.Log2(hz/ref)
}

// EMA is an exponential moving average: next = alpha*sample + (1-alpha)*prev.
// The zero value with a non-zero Alpha starts from 0.
type EMA struct {
	Alpha float64
	Value float64
}

// Update folds sample into the average and returns the new value.
func (e *EMA) Update(sample float64) float64 {
	e.Value = e.Alpha*sample + (1-e.Alpha)*e.Value
	return e.Value
}

// Reset returns the average to zero.
func (e *EMA) Reset() {
	e.Value = 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
