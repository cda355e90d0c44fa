package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const heartbeatKey = "support:presence"

// Tracker records heartbeats per identity token and estimates how many
// participants are currently online.
type Tracker interface {
	Heartbeat(ctx context.Context, token string) error
	EstimateOnline(ctx context.Context) (int, error)
}

// RedisTracker keeps heartbeats in a sorted set scored by unix time. Entries
// are ephemeral: stale ones drop out of the estimate and get pruned lazily on
// the next read, never synchronously on write.
type RedisTracker struct {
	client *redis.Client
	window time.Duration
}

// NewRedisTracker constructs a tracker with the given freshness window.
func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	return &RedisTracker{client: client, window: window}
}

// Heartbeat upserts the token's last-seen timestamp to now.
func (t *RedisTracker) Heartbeat(ctx context.Context, token string) error {
	return t.client.ZAdd(ctx, heartbeatKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: token,
	}).Err()
}

// EstimateOnline counts distinct tokens with a heartbeat inside the freshness
// window. The caller itself is always online, so the floor is 1.
func (t *RedisTracker) EstimateOnline(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-t.window).Unix()

	if err := t.client.ZRemRangeByScore(ctx, heartbeatKey, "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	count, err := t.client.ZCount(ctx, heartbeatKey, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, err
	}
	if count < 1 {
		return 1, nil
	}
	return int(count), nil
}
