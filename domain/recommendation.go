package domain

import "time"

// RecommendRequest is the caller-facing request body. One per call,
// never mutated.
type RecommendRequest struct {
	UserID   string  `json:"userId" validate:"required"`
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon      float64 `json:"lon" validate:"gte=-180,lte=180"`
	RadiusKm float64 `json:"radiusKm" validate:"gte=0"`
	K        int     `json:"k" validate:"gte=0"`
}

// RawCandidate is one row from candidate retrieval. Optional numeric
// fields are pointers so absence is distinguishable from zero.
type RawCandidate struct {
	ID              string     `json:"id"`
	BucketID        string     `json:"bucket_id"`
	Embedding       []float64  `json:"embedding"`
	DistanceKm      *float64   `json:"distance_km"`
	PriceMin        *float64   `json:"price_min"`
	PriceMax        *float64   `json:"price_max"`
	Difficulty      *float64   `json:"difficulty"`
	Completes       int        `json:"completes"`
	FriendCompletes float64    `json:"friend_completes"`
	FriendSaves     float64    `json:"friend_saves"`
	FriendLikes     float64    `json:"friend_likes"`
	CollabHint      bool       `json:"collab_hint"`
	CreatedAt       *time.Time `json:"created_at"`
	AppealScore     *float64   `json:"appeal_score"`
}

// Reasons is the per-factor score breakdown returned to the caller.
// Every field is always a finite number.
type Reasons struct {
	Appeal float64 `json:"appeal"`
	Trait  float64 `json:"trait"`
	State  float64 `json:"state"`
	Social float64 `json:"social"`
	Cost   float64 `json:"cost"`
	Poprec float64 `json:"poprec"`
}

// FeatureVector flattens the breakdown into the fixed 6-dim vector the
// bandit arms are trained on.
func (r Reasons) FeatureVector() [6]float64 {
	return [6]float64{r.Appeal, r.Trait, r.State, r.Social, r.Cost, r.Poprec}
}

// ScoredItem is an enriched candidate inside the pipeline. The
// embedding is request-scoped and never serialized.
type ScoredItem struct {
	ID        string    `json:"id"`
	BucketID  string    `json:"-"`
	Score     float64   `json:"score"`
	Reasons   Reasons   `json:"reasons"`
	Embedding []float64 `json:"-"`
}

// RecommendedItem is what actually leaves the service: a ScoredItem
// with the embedding stripped.
type RecommendedItem struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Reasons Reasons `json:"reasons"`
}

type ExperimentRef struct {
	ID      *string `json:"id"`
	Variant *string `json:"variant"`
}

type RecommendResponse struct {
	Items      []RecommendedItem `json:"items"`
	Cached     bool              `json:"cached"`
	Remaining  int               `json:"remaining"`
	Experiment ExperimentRef     `json:"experiment"`
}

// RateLimitStatus mirrors the external limiter's allowed/remaining/reset
// triple.
type RateLimitStatus struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
