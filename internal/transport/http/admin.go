package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

// AdminEventService is the minimal interface needed for admin event endpoints.
type AdminEventService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	SetEventStatus(ctx context.Context, eventID string, status domain.EventStatus) (domain.Event, error)
}

// AdminUnitService is the minimal interface needed for admin tier endpoints.
type AdminUnitService interface {
	CreateUnit(ctx context.Context, in app.CreateUnitInput) (domain.SellableUnit, error)
	ListUnits(ctx context.Context, eventID string) ([]domain.SellableUnit, error)
	SetUnitCapacity(ctx context.Context, unitID string, capacity int) (domain.SellableUnit, error)
	DeleteUnit(ctx context.Context, unitID string) error
}

func HandleListEvents(svc AdminEventService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context())
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		resp := make([]eventResponse, 0, len(events))
		for _, event := range events {
			resp = append(resp, newEventResponse(event))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleCreateEvent(svc AdminEventService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEventRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.OrganizerID) == "" {
			writeError(w, http.StatusBadRequest, codeOrganizerRequired, domain.ErrOrganizerRequired.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, codeEventNameRequired, domain.ErrEventNameRequired.Error())
			return
		}

		var startsAt *time.Time
		if req.StartsAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.StartsAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidStartsAt, "invalid starts_at format")
				return
			}
			startsAt = &parsed
		}

		event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
			OrganizerID: req.OrganizerID,
			Name:        req.Name,
			StartsAt:    startsAt,
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, newEventResponse(event))
	}
}

// HandleSetEventStatus moves an event to cancelled or completed.
func HandleSetEventStatus(svc AdminEventService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req eventStatusRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		status := domain.EventStatus(req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, codeInvalidEventStatus, "unknown event status")
			return
		}

		event, err := svc.SetEventStatus(r.Context(), r.PathValue("id"), status)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newEventResponse(event))
	}
}

func HandleListUnits(svc AdminUnitService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		units, err := svc.ListUnits(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		resp := make([]unitResponse, 0, len(units))
		for _, unit := range units {
			resp = append(resp, newUnitResponse(unit))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleCreateUnit(svc AdminUnitService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUnitRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, codeUnitNameRequired, domain.ErrUnitNameRequired.Error())
			return
		}
		if req.Capacity <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidCapacity, domain.ErrInvalidCapacity.Error())
			return
		}
		if req.PriceCents < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidPrice, domain.ErrInvalidPrice.Error())
			return
		}

		unit, err := svc.CreateUnit(r.Context(), app.CreateUnitInput{
			EventID:    r.PathValue("id"),
			Name:       req.Name,
			Capacity:   req.Capacity,
			PriceCents: req.PriceCents,
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, newUnitResponse(unit))
	}
}

// HandleSetUnitCapacity changes a tier's capacity before anything was
// reserved against it.
func HandleSetUnitCapacity(svc AdminUnitService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req unitCapacityRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Capacity <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidCapacity, domain.ErrInvalidCapacity.Error())
			return
		}

		unit, err := svc.SetUnitCapacity(r.Context(), r.PathValue("id"), req.Capacity)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newUnitResponse(unit))
	}
}

func HandleDeleteUnit(svc AdminUnitService, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteUnit(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createEventRequest struct {
	OrganizerID string `json:"organizer_id"`
	Name        string `json:"name"`
	StartsAt    string `json:"starts_at,omitempty"`
}

type eventStatusRequest struct {
	Status string `json:"status"`
}

type eventResponse struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Name        string    `json:"name"`
	StartsAt    time.Time `json:"starts_at"`
	Status      string    `json:"status"`
}

func newEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		OrganizerID: e.OrganizerID,
		Name:        e.Name,
		StartsAt:    e.StartsAt,
		Status:      string(e.Status),
	}
}

type createUnitRequest struct {
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	PriceCents int64  `json:"price_cents"`
}

type unitCapacityRequest struct {
	Capacity int `json:"capacity"`
}

type unitResponse struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Capacity   int    `json:"capacity"`
	Reserved   int    `json:"reserved"`
	Sold       int    `json:"sold"`
	Available  int    `json:"available"`
}

func newUnitResponse(u domain.SellableUnit) unitResponse {
	return unitResponse{
		ID:         u.ID,
		EventID:    u.EventID,
		Name:       u.Name,
		PriceCents: u.PriceCents,
		Capacity:   u.CapacityTotal,
		Reserved:   u.Reserved,
		Sold:       u.Sold,
		Available:  u.Available(),
	}
}
