// Package exchangerate holds the USD to bolívar rate used to display checkout
// totals. The rate is fetched from the store backend and kept in an explicit
// cache value owned by one service instance, optionally shared with other
// replicas through Redis.
package exchangerate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ferreteria/storefront/internal/observability"
	"github.com/ferreteria/storefront/services"
	"go.uber.org/zap"
)

// MaxAge is the oldest rate that may be used for a conversion.
const MaxAge = 5 * time.Minute

// Source fetches the current rate from the store backend.
type Source interface {
	GetExchangeRate(ctx context.Context) (float64, error)
}

// Rate is a snapshot of the cached value.
type Rate struct {
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// Convert converts a USD amount using the rate. Stale rates are refused.
func (r Rate) Convert(usd float64) (float64, error) {
	if r.Stale || r.Value <= 0 {
		return 0, services.ErrRateStale
	}
	return usd * r.Value, nil
}

// Cache is the {value, fetchedAt, ttl} value object. Safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	source    Source
	ttl       time.Duration
	value     float64
	fetchedAt time.Time
	invalid   bool
	shared    SharedStore
	now       func() time.Time
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewCache creates a rate cache. A ttl of zero or above MaxAge is clamped to MaxAge.
func NewCache(source Source, ttl time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Cache {
	if ttl <= 0 || ttl > MaxAge {
		ttl = MaxAge
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: metrics,
	}
}

// SetShared makes the cache read and publish rates through store. Call it
// before the cache is used.
func (c *Cache) SetShared(store SharedStore) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shared = store
}

// GetCurrent returns the cached rate, refreshing it when missing or expired.
// A fresh rate published by another replica is used before asking the
// backend. When the refresh fails the last good value is returned flagged as
// stale. Only when nothing was ever fetched does it return an error.
func (c *Cache) GetCurrent(ctx context.Context) (Rate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.fetchedAt.IsZero() && !c.invalid && now.Sub(c.fetchedAt) < c.ttl {
		return Rate{Value: c.value, FetchedAt: c.fetchedAt}, nil
	}

	if c.shared != nil && !c.invalid {
		if r, ok := c.loadShared(ctx); ok {
			// keep the original fetch time so the age bound holds across replicas
			if r.FetchedAt.After(c.fetchedAt) && !r.FetchedAt.After(now) {
				c.value = r.Value
				c.fetchedAt = r.FetchedAt
			}
			if age := now.Sub(r.FetchedAt); age >= 0 && age < c.ttl {
				c.metrics.IncRateRefresh("shared")
				return Rate{Value: r.Value, FetchedAt: r.FetchedAt}, nil
			}
		}
	}

	value, err := c.source.GetExchangeRate(ctx)
	if err == nil && value <= 0 {
		err = errors.New("non-positive rate")
	}
	if err != nil {
		c.metrics.IncRateRefresh("error")
		c.logger.Warn("exchange rate refresh failed", zap.Error(err))
		if c.fetchedAt.IsZero() {
			return Rate{}, services.ErrRateUnavailable.Wrap(err)
		}
		return Rate{Value: c.value, FetchedAt: c.fetchedAt, Stale: true}, nil
	}

	c.metrics.IncRateRefresh("ok")
	c.value = value
	c.fetchedAt = now
	c.invalid = false
	rate := Rate{Value: value, FetchedAt: now}
	if c.shared != nil {
		if err := c.shared.Save(ctx, rate); err != nil {
			c.logger.Warn("failed to publish exchange rate", zap.Error(err))
		}
	}
	return rate, nil
}

func (c *Cache) loadShared(ctx context.Context) (Rate, bool) {
	r, ok, err := c.shared.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to read shared exchange rate", zap.Error(err))
		return Rate{}, false
	}
	return r, ok
}

// Invalidate forces the next GetCurrent to refresh. The last good value is
// kept as the fallback.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalid = true
}

// TTL returns the effective time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
