package domain

import (
	"math"
	"time"
)

// MaxQuantity bounds a single ledger movement. Capacity columns are INTEGER.
const MaxQuantity = math.MaxInt32

// ValidQuantity reports whether q can move through the ledger.
func ValidQuantity(q int) bool {
	return q > 0 && q <= MaxQuantity
}

// SellableUnit is a ticket tier with finite capacity. Reserved and Sold are
// only ever changed through the inventory ledger.
type SellableUnit struct {
	ID            string
	EventID       string
	Name          string
	PriceCents    int64
	CapacityTotal int
	Reserved      int
	Sold          int
	CreatedAt     time.Time
}

// Available returns capacity not held or sold.
func (u SellableUnit) Available() int {
	available := u.CapacityTotal - u.Reserved - u.Sold
	if available < 0 {
		return 0
	}
	return available
}

func (u SellableUnit) Availability() Availability {
	return Availability{
		UnitID:        u.ID,
		CapacityTotal: u.CapacityTotal,
		Reserved:      u.Reserved,
		Sold:          u.Sold,
		Available:     u.Available(),
	}
}

// Availability is a point-in-time snapshot of a unit's ledger numbers.
type Availability struct {
	UnitID        string `json:"unit_id"`
	CapacityTotal int    `json:"capacity_total"`
	Reserved      int    `json:"reserved"`
	Sold          int    `json:"sold"`
	Available     int    `json:"available"`
}

// LedgerRelease describes the outcome of returning held capacity.
// Clamped is set when the ledger held less than requested.
type LedgerRelease struct {
	Unit      SellableUnit
	Requested int
	Released  int
	Clamped   bool
}
