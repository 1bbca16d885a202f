package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"buckit/business/recommend"
	"buckit/domain"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter keyed on (user, ip, window
// bucket). Check only reads the counter; Increment is called after the
// request has actually been served, so rejected requests don't consume
// quota.
type RateLimiter struct {
	client *redis.Client
	window time.Duration
}

var _ recommend.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(client *redis.Client, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, window: window}
}

func (r *RateLimiter) key(userID, ip string, bucket time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", userID, ip, bucket.Unix())
}

func (r *RateLimiter) Check(ctx context.Context, userID, ip string, limit int, window time.Duration) (domain.RateLimitStatus, error) {
	bucket := time.Now().Truncate(window)

	val, err := r.client.Get(ctx, r.key(userID, ip, bucket)).Result()
	count := 0
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return domain.RateLimitStatus{}, fmt.Errorf("failed to read rate limit counter: %w", err)
		}
	} else {
		count, err = strconv.Atoi(val)
		if err != nil {
			return domain.RateLimitStatus{}, fmt.Errorf("corrupt rate limit counter: %w", err)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return domain.RateLimitStatus{
		Allowed:   count < limit,
		Remaining: remaining,
		ResetAt:   bucket.Add(window),
	}, nil
}

func (r *RateLimiter) Increment(ctx context.Context, userID, ip string) error {
	bucket := time.Now().Truncate(r.window)
	key := r.key(userID, ip, bucket)

	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	// expiry a little past the window edge so Check never races a
	// vanished key
	pipe.Expire(ctx, key, r.window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return nil
}
