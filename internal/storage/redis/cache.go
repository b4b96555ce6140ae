package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/redis/go-redis/v9"
)

const availabilityPrefix = "inventory:availability:"

// AvailabilityCache keeps short-lived JSON snapshots of unit availability.
type AvailabilityCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewAvailabilityCache(client redis.Cmdable, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(unitID string) string {
	return availabilityPrefix + unitID
}

func (c *AvailabilityCache) Get(ctx context.Context, unitID string) (domain.Availability, bool, error) {
	data, err := c.client.Get(ctx, availabilityKey(unitID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Availability{}, false, nil
		}
		return domain.Availability{}, false, fmt.Errorf("get availability: %w", err)
	}

	var a domain.Availability
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Availability{}, false, fmt.Errorf("decode availability: %w", err)
	}
	return a, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, a domain.Availability) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availabilityKey(a.UnitID), data, c.ttl).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, unitID string) error {
	return c.client.Del(ctx, availabilityKey(unitID)).Err()
}
