package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// WithdrawalLimiter caps how many withdrawal requests a student can file
// within a rolling window. Counters live in Redis so every API instance
// shares them.
type WithdrawalLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewWithdrawalLimiter(rdb *redis.Client, limit int, window time.Duration) *WithdrawalLimiter {
	return &WithdrawalLimiter{redis: rdb, limit: limit, window: window}
}

func key(studentID int64) string {
	return fmt.Sprintf("withdrawal:ratelimit:%d", studentID)
}

// Allow reports whether the student is still under the limit.
func (l *WithdrawalLimiter) Allow(ctx context.Context, studentID int64) (bool, error) {
	count, err := l.redis.Get(ctx, key(studentID)).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return count < l.limit, nil
}

// Record counts one accepted request. The window starts at the first request.
func (l *WithdrawalLimiter) Record(ctx context.Context, studentID int64) error {
	k := key(studentID)
	n, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return l.redis.Expire(ctx, k, l.window).Err()
	}
	return nil
}
