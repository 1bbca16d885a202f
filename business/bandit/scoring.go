package bandit

import "math"

// ucbScore = theta·x + alpha * sqrt(x^T A^-1 x)
func ucbScore(theta, x [FeatureDim]float64, AInv [FeatureDim][FeatureDim]float64, alpha float64) float64 {
	mean := dot(theta, x)
	tmp := matVecMul(AInv, x)
	uncertainty := math.Sqrt(dot(x, tmp))
	return mean + alpha*uncertainty
}
