package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/cimillas/ticket-inventory/internal/storage/memory"
)

var fixtureStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store         *memory.Store
	clock         *clock.Manual
	admin         *AdminService
	reservations  *ReservationService
	expiry        *ExpiryService
	confirmations *ConfirmationService
	allocation    *AllocationService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.New()
	clk := clock.NewManual(fixtureStart)
	return newFixtureWithLedger(store, store, clk, opts...)
}

func newFixtureWithLedger(store *memory.Store, ledger InventoryLedger, clk *clock.Manual, opts ...Option) *fixture {
	allocation := NewAllocationService(store, ledger, clk, opts...)
	expiry := NewExpiryService(store, ledger, allocation, clk, opts...)
	return &fixture{
		store:         store,
		clock:         clk,
		admin:         NewAdminService(store, allocation, clk, opts...),
		reservations:  NewReservationService(store, ledger, expiry, clk, opts...),
		expiry:        expiry,
		confirmations: NewConfirmationService(store, ledger, clk, opts...),
		allocation:    allocation,
	}
}

func (f *fixture) event(t *testing.T, organizerID string) domain.Event {
	t.Helper()
	ev, err := f.admin.CreateEvent(context.Background(), CreateEventInput{OrganizerID: organizerID, Name: "Concert"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	// Keep creation order unambiguous for first-event checks.
	f.clock.Advance(time.Second)
	return ev
}

func (f *fixture) unit(t *testing.T, eventID string, capacity int) domain.SellableUnit {
	t.Helper()
	u, err := f.admin.CreateUnit(context.Background(), CreateUnitInput{
		EventID:    eventID,
		Name:       fmt.Sprintf("tier-%d", f.clock.Now().UnixNano()),
		Capacity:   capacity,
		PriceCents: 2500,
	})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	f.clock.Advance(time.Millisecond)
	return u
}

func (f *fixture) ledgerState(t *testing.T, unitID string) domain.SellableUnit {
	t.Helper()
	u, err := f.store.GetUnit(context.Background(), unitID)
	if err != nil {
		t.Fatalf("get unit: %v", err)
	}
	return u
}

// contendedLedger fails the first n TryReserve calls with transient
// contention before delegating.
type contendedLedger struct {
	InventoryLedger

	mu       sync.Mutex
	failures int
	calls    int
}

func (l *contendedLedger) TryReserve(ctx context.Context, unitID string, quantity int) (domain.SellableUnit, error) {
	l.mu.Lock()
	l.calls++
	fail := l.calls <= l.failures
	l.mu.Unlock()
	if fail {
		return domain.SellableUnit{}, domain.ErrTransientContention
	}
	return l.InventoryLedger.TryReserve(ctx, unitID, quantity)
}
