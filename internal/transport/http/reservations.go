package http

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

const idempotencyHeader = "Idempotency-Key"

// ReservationManager is the minimal interface needed by reservation endpoints.
type ReservationManager interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Reservation, error)
	Get(ctx context.Context, reservationID string) (domain.Reservation, error)
	Cancel(ctx context.Context, reservationID string) (domain.Reservation, error)
}

// AvailabilityReader is the minimal interface needed by the availability endpoint.
type AvailabilityReader interface {
	Availability(ctx context.Context, unitID string) (domain.Availability, error)
}

// HandleCreateReservation returns an HTTP handler that places a hold.
func HandleCreateReservation(svc ReservationManager, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReservationRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.UnitID) == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "unit_id is required")
			return
		}
		if !domain.ValidQuantity(req.Quantity) {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}
		if req.HoldSeconds < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidHoldDuration, domain.ErrInvalidHoldDuration.Error())
			return
		}
		key := req.IdempotencyKey
		if key == "" {
			key = r.Header.Get(idempotencyHeader)
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			UnitID:         req.UnitID,
			Quantity:       req.Quantity,
			HoldDuration:   holdDuration(req.HoldSeconds),
			IdempotencyKey: key,
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, newReservationResponse(res))
	}
}

// holdDuration converts seconds without overflowing; the service caps
// anything above its maximum hold.
func holdDuration(seconds int) time.Duration {
	if int64(seconds) > math.MaxInt64/int64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds) * time.Second
}

// HandleGetReservation returns an HTTP handler that reads one reservation.
func HandleGetReservation(svc ReservationManager, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newReservationResponse(res))
	}
}

// HandleCancelReservation returns an HTTP handler that releases a hold.
// Cancelling a reservation that already reached a final state returns it
// unchanged.
func HandleCancelReservation(svc ReservationManager, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Cancel(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newReservationResponse(res))
	}
}

func HandleGetAvailability(svc AvailabilityReader, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Availability(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

type createReservationRequest struct {
	UnitID         string `json:"unit_id"`
	Quantity       int    `json:"quantity"`
	HoldSeconds    int    `json:"hold_seconds,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type reservationResponse struct {
	ID             string    `json:"id"`
	UnitID         string    `json:"unit_id"`
	EventID        string    `json:"event_id"`
	Quantity       int       `json:"quantity"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func newReservationResponse(r domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:             r.ID,
		UnitID:         r.UnitID,
		EventID:        r.EventID,
		Quantity:       r.Quantity,
		Status:         string(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
	}
}
