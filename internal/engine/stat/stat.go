// Package stat provides the small numeric kernel shared by the extractor,
// classifier, and detectors: moments, entropy, percentiles, and finite
// clamping.
package stat

import (
	"math"
	"sort"
)

// FiniteBound caps non-finite intermediate results so downstream feature
// values are always finite.
const FiniteBound = 1e6

// Mean returns the arithmetic mean of xs, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// PopStd returns the population standard deviation of xs, 0 when fewer than
// two samples are available.
func PopStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// entropyEpsilon avoids log2(0) on degenerate distributions.
const entropyEpsilon = 1e-10

// Entropy returns the base-2 Shannon entropy of the empirical distribution
// described by counts.
func Entropy(counts map[uint16]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p+entropyEpsilon)
	}
	if h < 0 {
		h = 0
	}
	return h
}

// Percentile returns the p-th percentile (0..100) of xs using linear
// interpolation between closest ranks. xs is not modified.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Finite clamps non-finite values to ±FiniteBound and NaN to 0.
func Finite(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case math.IsInf(x, 1) || x > FiniteBound:
		return FiniteBound
	case math.IsInf(x, -1) || x < -FiniteBound:
		return -FiniteBound
	}
	return x
}

// Clamp01 bounds x to the closed unit interval.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
