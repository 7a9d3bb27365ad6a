package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSharedKey is the Redis key holding the shared rate.
const DefaultSharedKey = "storefront:exchange-rate"

// SharedStore lets several gateway replicas reuse one fetched rate.
type SharedStore interface {
	// Load returns the stored rate and false when there is none.
	Load(ctx context.Context) (Rate, bool, error)
	Save(ctx context.Context, rate Rate) error
}

type sharedEntry struct {
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RedisStore keeps the shared rate in a single Redis key.
type RedisStore struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. Entries expire after ttl, which
// defaults to MaxAge.
func NewRedisStore(rdb redis.Cmdable, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultSharedKey
	}
	if ttl <= 0 {
		ttl = MaxAge
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

// Load reads the shared rate.
func (s *RedisStore) Load(ctx context.Context) (Rate, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, fmt.Errorf("read shared rate: %w", err)
	}

	var entry sharedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Rate{}, false, fmt.Errorf("decode shared rate: %w", err)
	}
	if entry.Value <= 0 || entry.FetchedAt.IsZero() {
		return Rate{}, false, nil
	}
	return Rate{Value: entry.Value, FetchedAt: entry.FetchedAt}, true, nil
}

// Save writes the rate with the store's expiry.
func (s *RedisStore) Save(ctx context.Context, rate Rate) error {
	raw, err := json.Marshal(sharedEntry{Value: rate.Value, FetchedAt: rate.FetchedAt.UTC()})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write shared rate: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
