package domain

import "time"

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Terminal reports whether no further sales can happen for the event.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCancelled || s == EventStatusCompleted
}

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

// Event is owned by an organizer and groups sellable units.
type Event struct {
	ID          string
	OrganizerID string
	Name        string
	StartsAt    time.Time
	Status      EventStatus
	CreatedAt   time.Time
}
