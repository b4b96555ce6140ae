package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidQuantity(t *testing.T) {
	t.Parallel()

	assert.False(t, ValidQuantity(0))
	assert.False(t, ValidQuantity(-1))
	assert.True(t, ValidQuantity(1))
	assert.True(t, ValidQuantity(MaxQuantity))
	assert.False(t, ValidQuantity(MaxQuantity+1))
	assert.False(t, ValidQuantity(math.MaxInt))
}

func TestCreditBalance_RejectsOversizedAmounts(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var b CreditBalance

	assert.ErrorIs(t, b.AddPurchased(MaxQuantity+1, now), ErrInvalidAmount)
	assert.ErrorIs(t, b.Consume("", math.MaxInt, now), ErrInvalidQuantity)
	assert.Zero(t, b.CreditsTotal)
}
