package domain

import "time"

// CreditBalance tracks an organizer's ticket credits. Free credits come from
// the one-time first-event grant and can only be spent on the linked event;
// everything else in CreditsTotal was purchased.
type CreditBalance struct {
	OrganizerID        string
	CreditsTotal       int
	CreditsUsed        int
	FirstFreeGrantUsed bool
	LinkedEventID      string
	FreeAllocated      int
	FreeUsed           int
	FreeExpired        int
	FreeExpiredAt      *time.Time
	UpdatedAt          time.Time
}

// Remaining returns total minus used, never negative.
func (b CreditBalance) Remaining() int {
	if b.CreditsUsed >= b.CreditsTotal {
		return 0
	}
	return b.CreditsTotal - b.CreditsUsed
}

// FreeOutstanding is the unspent part of the free grant that has not expired.
func (b CreditBalance) FreeOutstanding() int {
	if b.FreeExpiredAt != nil {
		return 0
	}
	return b.FreeAllocated - b.FreeUsed
}

func (b CreditBalance) purchasedRemaining() int {
	total := b.CreditsTotal - (b.FreeAllocated - b.FreeExpired)
	used := b.CreditsUsed - b.FreeUsed
	return total - used
}

// CheckFreeGrant reports whether a grant of quantity would be accepted.
func (b CreditBalance) CheckFreeGrant(quantity, limit int) error {
	if !ValidQuantity(quantity) {
		return ErrInvalidQuantity
	}
	if b.FirstFreeGrantUsed {
		return ErrFreeGrantAlreadyUsed
	}
	if quantity > limit {
		return ErrExceedsFreeLimit
	}
	return nil
}

// ApplyFreeGrant records the one-time grant against eventID.
func (b *CreditBalance) ApplyFreeGrant(eventID string, quantity, limit int, now time.Time) error {
	if err := b.CheckFreeGrant(quantity, limit); err != nil {
		return err
	}
	b.FirstFreeGrantUsed = true
	b.LinkedEventID = eventID
	b.FreeAllocated = quantity
	b.CreditsTotal += quantity
	b.UpdatedAt = now
	return nil
}

// AddPurchased adds purchased credits.
func (b *CreditBalance) AddPurchased(amount int, now time.Time) error {
	if amount <= 0 || amount > MaxQuantity {
		return ErrInvalidAmount
	}
	b.CreditsTotal += amount
	b.UpdatedAt = now
	return nil
}

// Consume spends quantity credits for a ticket on eventID. Free credits are
// drawn first when eventID is the linked event.
func (b *CreditBalance) Consume(eventID string, quantity int, now time.Time) error {
	if !ValidQuantity(quantity) {
		return ErrInvalidQuantity
	}
	free := 0
	if eventID != "" && eventID == b.LinkedEventID {
		free = min(quantity, b.FreeOutstanding())
	}
	if quantity-free > b.purchasedRemaining() {
		return ErrInsufficientCredits
	}
	b.FreeUsed += free
	b.CreditsUsed += quantity
	b.UpdatedAt = now
	return nil
}

// ExpireFree removes the unspent free grant from the balance and returns how
// many credits were removed. Calling it again is a no-op.
func (b *CreditBalance) ExpireFree(now time.Time) int {
	if b.LinkedEventID == "" || b.FreeExpiredAt != nil {
		return 0
	}
	unused := b.FreeAllocated - b.FreeUsed
	b.CreditsTotal -= unused
	b.FreeExpired = unused
	expiredAt := now
	b.FreeExpiredAt = &expiredAt
	b.UpdatedAt = now
	return unused
}
