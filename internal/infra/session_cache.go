package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"posterminal/internal/model"

	"github.com/redis/go-redis/v9"
)

const lastClosedKeyPrefix = "pos:last_closed:"

// SessionCache keeps the last closed session summary per location so an idle
// terminal can still show it while the backend is unreachable.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionCache{rdb: rdb, ttl: ttl}
}

func lastClosedKey(locationID int) string {
	return fmt.Sprintf("%s%d", lastClosedKeyPrefix, locationID)
}

// GetLastClosed returns (nil, nil) on a cache miss.
func (c *SessionCache) GetLastClosed(ctx context.Context, locationID int) (*model.SessionSummary, error) {
	raw, err := c.rdb.Get(ctx, lastClosedKey(locationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s model.SessionSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &s, nil
}

func (c *SessionCache) SetLastClosed(ctx context.Context, s *model.SessionSummary) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, lastClosedKey(s.LocationID), data, c.ttl).Err()
}
