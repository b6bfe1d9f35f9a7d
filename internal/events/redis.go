package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("type", string(event.Type)),
		zap.Int64("student_id", event.StudentID),
		zap.String("channel", p.channel),
	)
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }
