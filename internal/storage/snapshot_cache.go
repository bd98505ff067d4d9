package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/mohamedkhairy/strikeview/pkg/logger"
)

const (
	defaultSnapshotTTL = 15 * time.Minute
	snapshotKeyPrefix  = "strikeview:snapshot"
	latestExpiry       = "latest"
)

// SnapshotCache keeps the last good chain per symbol and expiry in Redis so a
// restarted dashboard has something to show before its first fetch. Entries
// expire; nothing here is a history.
type SnapshotCache struct {
	redis RedisClient
	ttl   time.Duration
}

// NewSnapshotCache creates a cache. A non-positive ttl uses 15 minutes.
func NewSnapshotCache(redis RedisClient, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{redis: redis, ttl: ttl}
}

// Key returns the cache key for symbol and expiry. An empty expiry addresses
// the most recent snapshot stored for the symbol.
func (c *SnapshotCache) Key(symbol, expiry string) string {
	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		expiry = latestExpiry
	}
	return fmt.Sprintf("%s:%s:%s", snapshotKeyPrefix, strings.ToUpper(strings.TrimSpace(symbol)), expiry)
}

// Store writes snap under its own expiry and as the symbol's latest
func (c *SnapshotCache) Store(ctx context.Context, snap *models.ChainSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if err := c.redis.Set(ctx, c.Key(snap.Symbol, snap.Expiry), snap, c.ttl); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	if snap.Expiry != "" {
		if err := c.redis.Set(ctx, c.Key(snap.Symbol, ""), snap, c.ttl); err != nil {
			return fmt.Errorf("failed to cache latest snapshot: %w", err)
		}
	}
	return nil
}

// Load reads a cached snapshot. It returns ErrKeyNotFound when nothing is
// cached. An entry that fails validation is evicted.
func (c *SnapshotCache) Load(ctx context.Context, symbol, expiry string) (*models.ChainSnapshot, error) {
	var snap models.ChainSnapshot
	if err := c.redis.GetJSON(ctx, c.Key(symbol, expiry), &snap); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load cached snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		key := c.Key(symbol, expiry)
		if delErr := c.redis.Delete(ctx, key); delErr != nil {
			logger.Warn("Failed to evict invalid cached snapshot",
				logger.String("key", key),
				logger.ErrorField(delErr),
			)
		}
		return nil, fmt.Errorf("cached snapshot is invalid: %w", err)
	}
	return &snap, nil
}
