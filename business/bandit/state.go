package bandit

import "time"

// FeatureDim is the arm feature dimension: the scorer's reason
// breakdown [appeal, trait, state, social, cost, poprec].
const FeatureDim = 6

// ArmState holds the LinUCB parameters for one (user, item) pair.
type ArmState struct {
	A           [FeatureDim][FeatureDim]float64 `json:"A"`
	B           [FeatureDim]float64             `json:"b"`
	Count       int                             `json:"count"`
	LastUpdated time.Time                       `json:"last_updated"`
}

// NewArmState creates a fresh arm with A initialized to a scaled
// identity, so an unseen arm starts with high uncertainty.
func NewArmState() *ArmState {
	var A [FeatureDim][FeatureDim]float64
	for i := 0; i < FeatureDim; i++ {
		A[i][i] = 0.1
	}
	return &ArmState{
		A:           A,
		B:           [FeatureDim]float64{},
		Count:       0,
		LastUpdated: time.Now(),
	}
}
