package recommend

import (
	"context"
	"sort"

	"buckit/domain"
	"buckit/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// injectExplore splices up to `slots` under-exposed candidates into the
// diversified list, ranked by their bandit UCB score. Exploration keeps
// the reward estimates calibrated, so picks go in regardless of their
// relevance score. Any UCB lookup failure degrades that candidate to 0;
// a deadline on ctx degrades the whole step to a no-op.
func (s *Service) injectExplore(ctx context.Context, userID string, current, all []domain.ScoredItem, slots int) []domain.ScoredItem {
	if slots <= 0 || len(all) <= len(current) {
		return current
	}

	has := make(map[string]struct{}, len(current))
	for _, it := range current {
		has[it.ID] = struct{}{}
	}

	pool := make([]domain.ScoredItem, 0, explorePoolCap)
	for _, it := range all {
		if _, ok := has[it.ID]; ok {
			continue
		}
		pool = append(pool, it)
		if len(pool) == explorePoolCap {
			break
		}
	}
	if len(pool) == 0 {
		return current
	}

	ucb := make([]float64, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(banditFanout)
	for i, it := range pool {
		g.Go(func() error {
			score, err := s.bandit.UCBScore(gctx, userID, it.ID, it.Reasons.FeatureVector())
			if err != nil {
				logger.Warn("ucb score lookup failed", "item_id", it.ID, "error", err)
				return nil
			}
			ucb[i] = score
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		// ran out of time; serve the diversified list as-is
		logger.Warn("exploration timed out", "user_id", userID)
		return current
	}

	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ucb[order[a]] > ucb[order[b]]
	})

	if slots > len(pool) {
		slots = len(pool)
	}

	out := make([]domain.ScoredItem, len(current), len(current)+slots)
	copy(out, current)

	// picks land near the top third of the feed: index 3, then 7
	// (measured after the previous insertion), and so on
	for i := 0; i < slots; i++ {
		pos := 3 + 4*i
		if pos > len(out) {
			pos = len(out)
		}
		out = splice(out, pos, pool[order[i]])
	}

	return out
}

func splice(items []domain.ScoredItem, idx int, item domain.ScoredItem) []domain.ScoredItem {
	items = append(items, domain.ScoredItem{})
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	return items
}
