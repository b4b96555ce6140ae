package app

import (
	"context"
	"errors"
	"testing"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

type fakeCache struct {
	entries     map[string]domain.Availability
	invalidated []string
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Availability)}
}

func (c *fakeCache) Get(_ context.Context, unitID string) (domain.Availability, bool, error) {
	if c.getErr != nil {
		return domain.Availability{}, false, c.getErr
	}
	a, ok := c.entries[unitID]
	return a, ok, nil
}

func (c *fakeCache) Set(_ context.Context, a domain.Availability) error {
	c.entries[a.UnitID] = a
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, unitID string) error {
	c.invalidated = append(c.invalidated, unitID)
	delete(c.entries, unitID)
	return nil
}

func TestInventoryService_Availability(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	f := newFixture(t, WithAvailabilityCache(cache))
	u := f.unit(t, f.event(t, "org-1").ID, 10)
	svc := NewInventoryService(f.store, WithAvailabilityCache(cache))

	a, err := svc.Availability(ctx, u.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if a.Available != 10 {
		t.Fatalf("expected 10 available, got %d", a.Available)
	}
	if _, ok := cache.entries[u.ID]; !ok {
		t.Fatalf("expected availability cached")
	}

	if _, err := f.reservations.Reserve(ctx, ReserveInput{UnitID: u.ID, Quantity: 4}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(cache.invalidated) == 0 || cache.invalidated[len(cache.invalidated)-1] != u.ID {
		t.Fatalf("expected reserve to invalidate the cache, got %v", cache.invalidated)
	}

	a, err = svc.Availability(ctx, u.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if a.Available != 6 || a.Reserved != 4 {
		t.Fatalf("expected fresh numbers, got %+v", a)
	}
}

func TestInventoryService_CacheFailureFallsBackToLedger(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	f := newFixture(t)
	u := f.unit(t, f.event(t, "org-1").ID, 3)
	svc := NewInventoryService(f.store, WithAvailabilityCache(cache))

	a, err := svc.Availability(ctx, u.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if a.Available != 3 {
		t.Fatalf("expected 3 available, got %d", a.Available)
	}

	if _, err := svc.Availability(ctx, "missing"); err != domain.ErrUnitNotFound {
		t.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
}
