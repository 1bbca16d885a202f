package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buckit/business/recommend"
	"buckit/domain"

	"github.com/redis/go-redis/v9"
)

// CacheRepository stores rendered recommendation payloads. The key
// carries the experiment variant so variants never read each other's
// entries.
type CacheRepository struct {
	client *redis.Client
}

var _ recommend.CacheRepository = (*CacheRepository)(nil)

func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{client: client}
}

// key format: "reco:{user_id}:{lat}:{lon}:{variant}", coordinates
// rounded to 4 decimals (~11m) so GPS jitter still hits the cache.
func cacheKey(userID string, lat, lon float64, variant string) string {
	return fmt.Sprintf("reco:%s:%.4f:%.4f:%s", userID, lat, lon, variant)
}

func (r *CacheRepository) Get(ctx context.Context, userID string, lat, lon float64, variant string) (*domain.RecommendResponse, error) {
	key := cacheKey(userID, lat, lon, variant)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached recommendations: %w", err)
	}

	var resp domain.RecommendResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached recommendations: %w", err)
	}

	return &resp, nil
}

func (r *CacheRepository) Set(ctx context.Context, userID string, lat, lon float64, variant string, payload *domain.RecommendResponse, ttl time.Duration) error {
	key := cacheKey(userID, lat, lon, variant)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	if err := r.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache recommendations: %w", err)
	}

	return nil
}
