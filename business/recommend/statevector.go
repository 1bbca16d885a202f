package recommend

import (
	"math"
	"time"

	"buckit/domain"
)

// stateHalfLife is how long it takes a past engagement to lose half its
// weight in the state vector.
const stateHalfLife = 7 * 24 * time.Hour

// ComputeStateVector builds a recency-weighted average of the
// embeddings a user recently engaged with. Returns nil when no row
// carries an embedding; callers treat nil as "no short-term signal".
func ComputeStateVector(rows []domain.EngagementRow, now time.Time) []float64 {
	dim := 0
	for _, r := range rows {
		if len(r.Embedding) > dim {
			dim = len(r.Embedding)
		}
	}
	if dim == 0 {
		return nil
	}

	acc := make([]float64, dim)
	wsum := 0.0

	for _, r := range rows {
		if len(r.Embedding) == 0 {
			continue
		}

		age := now.Sub(r.CreatedAt).Seconds()
		if age < 0 {
			age = 0
		}
		w := math.Exp(-age / stateHalfLife.Seconds() * math.Ln2)

		for i := 0; i < len(r.Embedding); i++ {
			acc[i] += r.Embedding[i] * w
		}
		wsum += w
	}

	if wsum == 0 {
		return nil
	}
	for i := range acc {
		acc[i] /= wsum
	}
	return acc
}
