// Package similarity holds the one vector kernel shared by the scorer,
// the MMR selector and the exploration injector.
package similarity

import "math"

const epsilon = 1e-8

// Dot returns the dot product over the shared prefix of a and b.
// Vectors of differing length are not an error; the longer tail is
// ignored so heterogeneous embeddings stay comparable. A nil or empty
// vector contributes 0.
func Dot(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, or 0 when either
// vector is missing. The epsilon term keeps all-zero vectors from
// dividing by zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var s, na, nb float64
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	return s / (math.Sqrt(na)*math.Sqrt(nb) + epsilon)
}
