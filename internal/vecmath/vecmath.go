// Package vecmath provides dense float64 vector helpers used by the trust
// matrix and the power-iteration engine.
package vecmath

import "math"

// Sum returns the sum of the elements of v.
func Sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

// Normalize scales v in place so that its elements sum to 1.
// Returns false and leaves v unchanged when the sum is zero.
func Normalize(v []float64) bool {
	s := Sum(v)
	if s == 0 {
		return false
	}
	for i := range v {
		v[i] /= s
	}
	return true
}

// L1Distance returns Σ|a_i - b_i|. Slices must have the same length.
func L1Distance(a, b []float64) float64 {
	var d float64
	for i := range a {
		d += math.Abs(a[i] - b[i])
	}
	return d
}

// L2Distance returns the Euclidean distance between a and b.
// Slices must have the same length.
func L2Distance(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Sqrt(d)
}

// MulTransposed computes out_j = Σ_i m[i][j] * v[i], i.e. mᵀ·v, for a
// square matrix m. out must have len(v) elements.
func MulTransposed(m [][]float64, v, out []float64) {
	for j := range out {
		out[j] = 0
	}
	for i, row := range m {
		vi := v[i]
		if vi == 0 {
			continue
		}
		for j, c := range row {
			out[j] += c * vi
		}
	}
}

// Clone returns a copy of v.
func Clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
