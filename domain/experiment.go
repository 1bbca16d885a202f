package domain

// ExperimentAssignment carries the active variant for a user plus its
// scoring-weight overrides. Fetched once per request, never mutated.
// Every override is optional; nil means the documented default applies.
type ExperimentAssignment struct {
	ExperimentID string `json:"experiment_id"`
	Variant      string `json:"variant"`

	SocialWeight *float64 `json:"social_weight"`
	AppealWeight *float64 `json:"appeal_weight"`
	TraitWeight  *float64 `json:"trait_weight"`
	StateWeight  *float64 `json:"state_weight"`
	CostWeight   *float64 `json:"cost_weight"`
	MMRLambda    *float64 `json:"mmr_lambda"`
	ExploreSlots *int     `json:"explore_slots"`
}
