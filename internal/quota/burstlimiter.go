package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	burstKeyPrefix = "generate:minute:"
	burstWindow    = 60 * time.Second
	burstKeyTTL    = 90 * time.Second
)

// BurstLimiter caps how many generation requests a user may start per
// minute, independent of the monthly quota. Redis sorted-set sliding window.
type BurstLimiter struct {
	rdb redis.Cmdable
}

// NewBurstLimiter creates a Redis-backed burst limiter.
func NewBurstLimiter(rdb redis.Cmdable) *BurstLimiter {
	return &BurstLimiter{rdb: rdb}
}

// Allow checks whether the user is under the per-minute cap and records the
// attempt if so. Returns false when the cap is hit.
func (bl *BurstLimiter) Allow(ctx context.Context, userID uuid.UUID, maxPerMinute int) (bool, error) {
	key := burstKeyPrefix + userID.String()
	now := time.Now()
	windowStart := float64(now.Add(-burstWindow).UnixMilli())

	pipe := bl.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(windowStart, 'f', 0, 64))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("burst limiter pipeline (clean+count): %w", err)
	}

	count := countCmd.Val()
	if count >= int64(maxPerMinute) {
		return false, nil
	}

	pipe2 := bl.rdb.Pipeline()
	member := fmt.Sprintf("%d:%d", now.UnixNano(), count)
	pipe2.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe2.Expire(ctx, key, burstKeyTTL)

	if _, err := pipe2.Exec(ctx); err != nil {
		return false, fmt.Errorf("burst limiter pipeline (add): %w", err)
	}

	return true, nil
}

// MinuteUsage returns the number of generation attempts in the current window.
func (bl *BurstLimiter) MinuteUsage(ctx context.Context, userID uuid.UUID) (int, error) {
	key := burstKeyPrefix + userID.String()
	now := time.Now()
	windowStart := strconv.FormatFloat(float64(now.Add(-burstWindow).UnixMilli()), 'f', 0, 64)
	nowMs := strconv.FormatFloat(float64(now.UnixMilli()), 'f', 0, 64)

	count, err := bl.rdb.ZCount(ctx, key, windowStart, nowMs).Result()
	if err != nil {
		return 0, fmt.Errorf("getting minute usage: %w", err)
	}
	return int(count), nil
}
