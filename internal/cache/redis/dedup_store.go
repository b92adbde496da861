package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharpline/valuebot/internal/domain"
)

// DedupStore implements domain.DedupStore using Redis SETNX. The marker
// outlives the process, so a restart cannot re-dispatch an already placed
// opportunity.
type DedupStore struct {
	rdb *redis.Client
}

var _ domain.DedupStore = (*DedupStore)(nil)

// NewDedupStore creates a DedupStore backed by the given Client.
func NewDedupStore(c *Client) *DedupStore {
	return &DedupStore{rdb: c.Underlying()}
}

func dedupKey(key string) string {
	return "dispatched:" + key
}

// MarkDispatched sets the marker for a key. It returns false when the marker
// already existed, meaning another process (or an earlier run) claimed it.
func (d *DedupStore) MarkDispatched(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark dispatched %s: %w", key, err)
	}
	return ok, nil
}

// IsDispatched reports whether the marker exists for a key.
func (d *DedupStore) IsDispatched(ctx context.Context, key string) (bool, error) {
	n, err := d.rdb.Exists(ctx, dedupKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check dispatched %s: %w", key, err)
	}
	return n > 0, nil
}
