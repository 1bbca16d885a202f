package recommend

import "buckit/domain"

// capPerBucket drops candidates past the first maxPerBucket items of
// each bucket, preserving order. Items without a bucket share one
// default slot group.
func capPerBucket(items []domain.ScoredItem, max int) []domain.ScoredItem {
	if max <= 0 {
		return items
	}

	counts := make(map[string]int)
	out := make([]domain.ScoredItem, 0, len(items))

	for _, it := range items {
		bucket := it.BucketID
		if bucket == "" {
			bucket = "default"
		}
		if counts[bucket] >= max {
			continue
		}
		counts[bucket]++
		out = append(out, it)
	}

	return out
}
