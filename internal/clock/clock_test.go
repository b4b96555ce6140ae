package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	c := NewFixed(at)
	if got := c.Now(); !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("expected %v in UTC, got %v", at, got)
	}
}

func TestManual_Advance(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(at)
	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(at.Add(90 * time.Second)) {
		t.Fatalf("expected clock advanced, got %v", got)
	}
	c.Set(at)
	if got := c.Now(); !got.Equal(at) {
		t.Fatalf("expected clock reset, got %v", got)
	}
}
