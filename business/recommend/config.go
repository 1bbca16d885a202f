package recommend

import "buckit/domain"

// Scoring defaults. Experiment assignments may override the weighted
// factors; the social sub-weights and the poprec weight are fixed.
const (
	defaultAppealWeight = 0.25
	defaultTraitWeight  = 0.25
	defaultStateWeight  = 0.20
	defaultCostWeight   = 0.25
	defaultSocialWeight = 0.15
	poprecWeight        = 0.10

	socialWeightCompletes  = 0.10
	socialWeightSaves      = 0.08
	socialWeightLikes      = 0.06
	socialWeightCollabHint = 0.05

	defaultMMRLambda    = 0.7
	defaultExploreSlots = 2

	// mmrPoolCap bounds the MMR loop to O(pool * k)
	mmrPoolCap = 120
	// explorePoolCap bounds the per-request UCB fan-out
	explorePoolCap = 50
	// banditFanout caps concurrent UCB lookups
	banditFanout = 10

	maxPerBucket = 3

	exposureMaxExposures = 5
	exposureWindowDays   = 7

	controlVariant = "control"
)

// Weights is the resolved per-request weight set: defaults overlaid
// with whatever the experiment assignment overrides.
type Weights struct {
	Appeal       float64
	Trait        float64
	State        float64
	Cost         float64
	Social       float64
	MMRLambda    float64
	ExploreSlots int
}

func resolveWeights(a *domain.ExperimentAssignment) Weights {
	w := Weights{
		Appeal:       defaultAppealWeight,
		Trait:        defaultTraitWeight,
		State:        defaultStateWeight,
		Cost:         defaultCostWeight,
		Social:       defaultSocialWeight,
		MMRLambda:    defaultMMRLambda,
		ExploreSlots: defaultExploreSlots,
	}
	if a == nil {
		return w
	}

	if a.AppealWeight != nil {
		w.Appeal = *a.AppealWeight
	}
	if a.TraitWeight != nil {
		w.Trait = *a.TraitWeight
	}
	if a.StateWeight != nil {
		w.State = *a.StateWeight
	}
	if a.CostWeight != nil {
		w.Cost = *a.CostWeight
	}
	if a.SocialWeight != nil {
		w.Social = *a.SocialWeight
	}
	if a.MMRLambda != nil {
		w.MMRLambda = *a.MMRLambda
	}
	if a.ExploreSlots != nil {
		w.ExploreSlots = *a.ExploreSlots
	}

	return w
}
