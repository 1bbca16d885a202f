package recommend

import (
	"sort"

	"buckit/domain"
	"buckit/pkg/similarity"
)

// mmrSelect greedily re-ranks candidates by maximal marginal relevance:
// each round picks the item with the best lambda-weighted trade-off
// between its own score and its similarity to anything already chosen.
// The pool is capped so the loop is O(mmrPoolCap * k). Greedy and
// non-optimal on purpose; an optimal assignment would reorder output.
func mmrSelect(candidates []domain.ScoredItem, k int, lambda float64) []domain.ScoredItem {
	if k <= 0 || len(candidates) == 0 {
		return []domain.ScoredItem{}
	}

	pool := make([]domain.ScoredItem, len(candidates))
	copy(pool, candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})
	if len(pool) > mmrPoolCap {
		pool = pool[:mmrPoolCap]
	}

	selected := make([]domain.ScoredItem, 0, k)

	for len(selected) < k && len(pool) > 0 {
		bestIdx := 0
		best := 0.0

		for i, c := range pool {
			simToUser := c.Score

			simToSelected := 0.0
			for _, s := range selected {
				if sim := similarity.Cosine(c.Embedding, s.Embedding); sim > simToSelected {
					simToSelected = sim
				}
			}

			marginal := lambda*simToUser - (1-lambda)*simToSelected
			// strict > keeps ties on the first occurrence, i.e. the
			// higher original score
			if i == 0 || marginal > best {
				best = marginal
				bestIdx = i
			}
		}

		selected = append(selected, pool[bestIdx])
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	return selected
}
