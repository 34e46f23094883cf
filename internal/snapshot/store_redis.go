package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agent-console/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "console:snapshot:"

func Key(agentID string) string { return keyPrefix + agentID }

// RedisStore keeps one snapshot per agent in Redis. The key expires with the
// snapshot TTL, and writes carrying an older timestamp than the stored one
// are rejected atomically.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Save(ctx context.Context, agentID string, s Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if _, err := utils.SetIfNewer(ctx, r.rdb, Key(agentID), string(raw), s.Timestamp, r.ttl); err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, agentID string) (*Snapshot, error) {
	raw, ok, err := utils.GetVersioned(ctx, r.rdb, Key(agentID))
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decode([]byte(raw))
}

func (r *RedisStore) Clear(ctx context.Context, agentID string) error {
	if err := r.rdb.Del(ctx, Key(agentID)).Err(); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}
	return nil
}
