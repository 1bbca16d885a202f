package recommend

import (
	"math"
	"time"

	"buckit/domain"
	"buckit/pkg/similarity"
)

// ScoreCandidate turns one raw candidate into a scored item. traitVec
// and stateVec may be nil; every optional candidate field degrades to a
// 0 contribution. Only a missing id is an error.
func ScoreCandidate(c domain.RawCandidate, traitVec, stateVec []float64, now time.Time, w Weights) (domain.ScoredItem, error) {
	if c.ID == "" {
		return domain.ScoredItem{}, domain.ErrMissingItemID
	}

	trait := finite(similarity.Dot(traitVec, c.Embedding))
	state := finite(similarity.Dot(stateVec, c.Embedding))

	// appeal falls back to trait when no precomputed score exists, so
	// identical inputs always degrade identically
	appeal := trait
	if c.AppealScore != nil {
		appeal = finite(*c.AppealScore)
	}

	collab := 0.0
	if c.CollabHint {
		collab = 1.0
	}
	social := finite(w.Social * (socialWeightCompletes*c.FriendCompletes +
		socialWeightSaves*c.FriendSaves +
		socialWeightLikes*c.FriendLikes +
		socialWeightCollabHint*collab))

	cost := finite(distancePenalty(c.DistanceKm) + pricePenalty(c.PriceMin, c.PriceMax) + difficultyPenalty(c.Difficulty))
	poprec := finite(popularityBoost(c.Completes, c.CreatedAt, now))

	score := finite(w.Appeal*appeal + w.Trait*trait + w.State*state + social - w.Cost*cost + poprecWeight*poprec)

	return domain.ScoredItem{
		ID:       c.ID,
		BucketID: c.BucketID,
		Score:    score,
		Reasons: domain.Reasons{
			Appeal: appeal,
			Trait:  trait,
			State:  state,
			Social: social,
			Cost:   cost,
			Poprec: poprec,
		},
		Embedding: c.Embedding,
	}, nil
}

// finite scrubs NaN and Inf to 0 so a malformed input vector can never
// poison a score or a reason field.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// distancePenalty is free inside 3 km, ramps to 0.3 at 10 km, then
// climbs to a hard cap of 1.5 at 30 km.
func distancePenalty(km *float64) float64 {
	if km == nil || *km <= 0 {
		return 0
	}
	d := *km
	switch {
	case d <= 3:
		return 0
	case d <= 10:
		return (d - 3) / 7 * 0.3
	case d <= 30:
		return 0.3 + (d-10)/20*1.2
	default:
		return 1.5
	}
}

// pricePenalty steps with the upper end of the price range.
func pricePenalty(min, max *float64) float64 {
	p := 0.0
	if max != nil {
		p = *max
	} else if min != nil {
		p = *min
	}
	switch {
	case p <= 0:
		return 0
	case p <= 25:
		return 0.05
	case p <= 50:
		return 0.15
	case p <= 100:
		return 0.30
	default:
		return 0.50
	}
}

// difficultyPenalty maps difficulty 1..5 onto [0, 0.5]. Missing
// difficulty contributes nothing.
func difficultyPenalty(d *float64) float64 {
	if d == nil {
		return 0
	}
	v := *d
	if v < 1 {
		v = 1
	}
	if v > 5 {
		v = 5
	}
	return (v - 1) / 4 * 0.5
}

// popularityBoost rewards completion volume with a linear freshness
// bonus over the first 10 days, clamped to [0, 1].
func popularityBoost(completes int, createdAt *time.Time, now time.Time) float64 {
	if completes < 0 {
		completes = 0
	}
	pop := math.Log1p(float64(completes)) / 3

	rec := 0.0
	if createdAt != nil {
		age := now.Sub(*createdAt)
		rec = 1 - age.Hours()/(10*24)
		if rec < 0 {
			rec = 0
		}
		if rec > 1 {
			rec = 1
		}
	}

	boost := pop + 0.2*rec
	if boost > 1 {
		boost = 1
	}
	return boost
}
