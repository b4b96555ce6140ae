package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreditExpirer is called when an event reaches a terminal status.
type CreditExpirer interface {
	ExpireUnusedFreeCredits(ctx context.Context, eventID string) (int, error)
}

type AdminService struct {
	repo    AdminRepository
	credits CreditExpirer
	clock   clock.Clock
	opts    options
}

// NewAdminService builds the event and tier management service. credits may
// be nil; the sweeper still picks up terminal events on its own.
func NewAdminService(repo AdminRepository, credits CreditExpirer, clk clock.Clock, opts ...Option) *AdminService {
	return &AdminService{
		repo:    repo,
		credits: credits,
		clock:   clk,
		opts:    newOptions(opts),
	}
}

type CreateEventInput struct {
	OrganizerID string
	Name        string
	StartsAt    *time.Time
}

func (s *AdminService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	if strings.TrimSpace(in.OrganizerID) == "" {
		return domain.Event{}, domain.ErrOrganizerRequired
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}
	now := s.clock.Now()
	startsAt := now
	if in.StartsAt != nil {
		startsAt = in.StartsAt.UTC()
	}

	event := domain.Event{
		ID:          uuid.NewString(),
		OrganizerID: in.OrganizerID,
		Name:        in.Name,
		StartsAt:    startsAt,
		Status:      domain.EventStatusActive,
		CreatedAt:   now,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *AdminService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

// SetEventStatus moves an active event to cancelled or completed. Terminal
// events cannot change again.
func (s *AdminService) SetEventStatus(ctx context.Context, eventID string, status domain.EventStatus) (domain.Event, error) {
	if eventID == "" {
		return domain.Event{}, domain.ErrInvalidID
	}
	if !status.Terminal() {
		return domain.Event{}, domain.ErrInvalidEventStatus
	}

	var result domain.Event
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEvent(txCtx, eventID)
		if err != nil {
			return err
		}
		if event.Status != domain.EventStatusActive {
			return domain.ErrInvalidEventStatus
		}
		if err := s.repo.SetEventStatus(txCtx, eventID, status); err != nil {
			return err
		}
		event.Status = status
		result = event
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}

	log := s.opts.log.WithFields(logrus.Fields{"event_id": eventID, "status": status})
	log.Info("event status changed")

	if s.credits != nil {
		if n, err := s.credits.ExpireUnusedFreeCredits(ctx, eventID); err != nil {
			log.WithError(err).Warn("free credit expiry deferred to sweeper")
		} else if n > 0 {
			log.WithField("expired", n).Debug("free credits expired with event")
		}
	}
	return result, nil
}

type CreateUnitInput struct {
	EventID    string
	Name       string
	Capacity   int
	PriceCents int64
}

func (s *AdminService) CreateUnit(ctx context.Context, in CreateUnitInput) (domain.SellableUnit, error) {
	if in.EventID == "" {
		return domain.SellableUnit{}, domain.ErrInvalidID
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.SellableUnit{}, domain.ErrUnitNameRequired
	}
	if in.Capacity < 0 || in.Capacity > domain.MaxQuantity {
		return domain.SellableUnit{}, domain.ErrInvalidCapacity
	}
	if in.PriceCents < 0 {
		return domain.SellableUnit{}, domain.ErrInvalidPrice
	}

	unit := domain.SellableUnit{
		ID:            uuid.NewString(),
		EventID:       in.EventID,
		Name:          in.Name,
		PriceCents:    in.PriceCents,
		CapacityTotal: in.Capacity,
		CreatedAt:     s.clock.Now(),
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEvent(txCtx, in.EventID)
		if err != nil {
			return err
		}
		if event.Status != domain.EventStatusActive {
			return domain.ErrEventNotActive
		}
		return s.repo.CreateUnit(txCtx, unit)
	})
	if err != nil {
		return domain.SellableUnit{}, err
	}
	return unit, nil
}

func (s *AdminService) ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListUnits(ctx, eventID)
}

// SetUnitCapacity changes capacity_total. It fails with ErrCapacityLocked once
// any reservation references the unit.
func (s *AdminService) SetUnitCapacity(ctx context.Context, unitID string, capacity int) (domain.SellableUnit, error) {
	if unitID == "" {
		return domain.SellableUnit{}, domain.ErrInvalidID
	}
	if capacity < 0 || capacity > domain.MaxQuantity {
		return domain.SellableUnit{}, domain.ErrInvalidCapacity
	}

	var result domain.SellableUnit
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateUnitCapacity(txCtx, unitID, capacity); err != nil {
			return err
		}
		unit, err := s.repo.GetUnit(txCtx, unitID)
		if err != nil {
			return err
		}
		result = unit
		return nil
	})
	if err != nil {
		return domain.SellableUnit{}, err
	}
	invalidate(ctx, s.opts, unitID)
	return result, nil
}

// DeleteUnit removes a tier that has neither sales nor held inventory.
func (s *AdminService) DeleteUnit(ctx context.Context, unitID string) error {
	if unitID == "" {
		return domain.ErrInvalidID
	}
	if err := s.repo.DeleteUnit(ctx, unitID); err != nil {
		return err
	}
	invalidate(ctx, s.opts, unitID)
	return nil
}
