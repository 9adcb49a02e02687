package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes each event as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Publish implements Sink.
func (p *RedisPublisher) Publish(ctx context.Context, turn int, evs []Event) error {
	if len(evs) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, e := range evs {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("events: encode %s: %w", e.ID, err)
		}
		pipe.Publish(ctx, p.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("events: publish turn %d: %w", turn, err)
	}
	return nil
}
