// Package dedup keeps a bounded, expiring set of event IDs whose
// notification has already been sent.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notify:sent:"

// RedisSet is a recently-seen set backed by Redis keys with a TTL.
type RedisSet struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisSet creates a set whose entries expire after ttl.
func NewRedisSet(client redis.Cmdable, ttl time.Duration) *RedisSet {
	return &RedisSet{client: client, ttl: ttl}
}

// Connect parses redisURL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// Seen reports whether eventID has been marked and not yet expired.
func (s *RedisSet) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("checking event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Mark records eventID as sent.
func (s *RedisSet) Mark(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, keyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("marking event %s: %w", eventID, err)
	}
	return nil
}
