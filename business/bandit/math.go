package bandit

import (
	"fmt"
	"math"
)

const decayRate = 0.001 // soft forgetting

// y = A * x
func matVecMul(A [FeatureDim][FeatureDim]float64, x [FeatureDim]float64) [FeatureDim]float64 {
	var y [FeatureDim]float64
	for i := range FeatureDim {
		sum := 0.0
		for j := range FeatureDim {
			sum += A[i][j] * x[j]
		}
		y[i] = sum
	}
	return y
}

func dot(a, b [FeatureDim]float64) float64 {
	sum := 0.0
	for i := range FeatureDim {
		sum += a[i] * b[i]
	}
	return sum
}

// A := A + x x^T
func addOuter(A *[FeatureDim][FeatureDim]float64, x [FeatureDim]float64) {
	for i := range FeatureDim {
		for j := range FeatureDim {
			(*A)[i][j] += x[i] * x[j]
		}
	}
}

// b := b + r x
func addScaled(b *[FeatureDim]float64, x [FeatureDim]float64, r float64) {
	for i := range FeatureDim {
		(*b)[i] += r * x[i]
	}
}

// Decay old contributions in A and b (soft forgetting)
func applyDecay(arm *ArmState) {
	if decayRate <= 0 {
		return
	}
	decay := 1.0 - decayRate

	for i := range FeatureDim {
		for j := range FeatureDim {
			arm.A[i][j] *= decay
		}
		arm.B[i] *= decay
	}

	if arm.Count > 0 {
		arm.Count = int(float64(arm.Count) * decay)
	}
}

// Invert a FeatureDim x FeatureDim matrix using Gauss-Jordan.
func invert(A [FeatureDim][FeatureDim]float64) ([FeatureDim][FeatureDim]float64, error) {
	var aug [FeatureDim][2 * FeatureDim]float64

	// Build augmented [A | I]
	for i := range FeatureDim {
		for j := range FeatureDim {
			aug[i][j] = A[i][j]
		}
		aug[i][FeatureDim+i] = 1.0
	}

	// Gauss-Jordan elimination
	for col := range FeatureDim {
		pivot := aug[col][col]
		if math.Abs(pivot) < 1e-9 {
			return [FeatureDim][FeatureDim]float64{}, fmt.Errorf("matrix is singular")
		}

		// Normalize pivot row
		for j := range 2 * FeatureDim {
			aug[col][j] /= pivot
		}

		// Eliminate other rows
		for i := range FeatureDim {
			if i == col {
				continue
			}
			factor := aug[i][col]
			for j := range 2 * FeatureDim {
				aug[i][j] -= factor * aug[col][j]
			}
		}
	}

	// Extract inverse
	var inv [FeatureDim][FeatureDim]float64
	for i := range FeatureDim {
		for j := range FeatureDim {
			inv[i][j] = aug[i][FeatureDim+j]
		}
	}
	return inv, nil
}
