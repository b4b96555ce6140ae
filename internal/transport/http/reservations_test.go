package http

import (
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

func TestHandleCreateReservation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	held := domain.Reservation{
		ID:        "res-123",
		UnitID:    "u1",
		Quantity:  2,
		Status:    domain.ReservationHeld,
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	valid := `{"unit_id":"u1","quantity":2,"idempotency_key":"k1"}`

	tests := []struct {
		handlerCase
		serviceErr error
	}{
		{handlerCase: handlerCase{name: "success", body: valid, expectedStatus: http.StatusCreated, expectedSubstr: `"id":"res-123"`}},
		{handlerCase: handlerCase{name: "invalid json", body: `{"unit_id":`, expectedStatus: http.StatusBadRequest}},
		{handlerCase: handlerCase{name: "unknown field", body: `{"unit_id":"u1","quantity":1,"zone":"x"}`, expectedStatus: http.StatusBadRequest}},
		{handlerCase: handlerCase{name: "missing unit", body: `{"quantity":1}`, expectedStatus: http.StatusBadRequest, expectedSubstr: codeMissingRequiredField}},
		{handlerCase: handlerCase{name: "invalid quantity", body: `{"unit_id":"u1","quantity":0}`, expectedStatus: http.StatusBadRequest, expectedSubstr: codeInvalidQuantity}},
		{handlerCase: handlerCase{name: "quantity above bound", body: `{"unit_id":"u1","quantity":2147483648}`, expectedStatus: http.StatusBadRequest, expectedSubstr: codeInvalidQuantity}},
		{handlerCase: handlerCase{name: "negative hold", body: `{"unit_id":"u1","quantity":1,"hold_seconds":-5}`, expectedStatus: http.StatusBadRequest}},
		{handlerCase: handlerCase{name: "unit not found", body: valid, expectedStatus: http.StatusNotFound}, serviceErr: domain.ErrUnitNotFound},
		{handlerCase: handlerCase{name: "sold out", body: valid, expectedStatus: http.StatusConflict, expectedSubstr: codeInsufficientCapacity}, serviceErr: domain.ErrInsufficientCapacity},
		{handlerCase: handlerCase{name: "contention", body: valid, expectedStatus: http.StatusServiceUnavailable, expectedSubstr: codeTransientContention}, serviceErr: domain.ErrTransientContention},
		{handlerCase: handlerCase{name: "idempotency conflict", body: valid, expectedStatus: http.StatusConflict}, serviceErr: domain.ErrIdempotencyConflict},
		{handlerCase: handlerCase{name: "internal error", body: valid, expectedStatus: http.StatusInternalServerError}, serviceErr: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReservations{res: held, err: tt.serviceErr}
			tt.method, tt.path = http.MethodPost, "/reservations"
			serve(t, "POST /reservations", HandleCreateReservation(svc, discardLogger()), tt.handlerCase)
		})
	}
}

func TestHandleCreateReservation_PassesHoldAndHeaderKey(t *testing.T) {
	t.Parallel()

	svc := &stubReservations{res: domain.Reservation{ID: "r1", Status: domain.ReservationHeld}}
	mux := http.NewServeMux()
	mux.Handle("POST /reservations", HandleCreateReservation(svc, discardLogger()))

	rec := serveWithHeader(mux, http.MethodPost, "/reservations", `{"unit_id":"u1","quantity":3,"hold_seconds":90}`, idempotencyHeader, "hdr-key")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if svc.lastIn.HoldDuration != 90*time.Second {
		t.Fatalf("expected hold 90s, got %s", svc.lastIn.HoldDuration)
	}
	if svc.lastIn.IdempotencyKey != "hdr-key" {
		t.Fatalf("expected header idempotency key, got %q", svc.lastIn.IdempotencyKey)
	}
	if svc.lastIn.Quantity != 3 || svc.lastIn.UnitID != "u1" {
		t.Fatalf("unexpected input %+v", svc.lastIn)
	}
}

func TestHandleCreateReservation_ClampsLargeHold(t *testing.T) {
	t.Parallel()

	for _, seconds := range []string{"9223372037", "18446744074"} {
		svc := &stubReservations{res: domain.Reservation{ID: "r1", Status: domain.ReservationHeld}}
		mux := http.NewServeMux()
		mux.Handle("POST /reservations", HandleCreateReservation(svc, discardLogger()))

		rec := serveWithHeader(mux, http.MethodPost, "/reservations", `{"unit_id":"u1","quantity":1,"hold_seconds":`+seconds+`}`, idempotencyHeader, "k")
		if rec.Code != http.StatusCreated {
			t.Fatalf("hold_seconds=%s: expected status 201, got %d", seconds, rec.Code)
		}
		if svc.lastIn.HoldDuration != time.Duration(math.MaxInt64) {
			t.Fatalf("hold_seconds=%s: expected clamped hold, got %s", seconds, svc.lastIn.HoldDuration)
		}
	}
}

func TestHoldDuration(t *testing.T) {
	t.Parallel()

	if got := holdDuration(90); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	limit := int(math.MaxInt64 / int64(time.Second))
	if got := holdDuration(limit); got != time.Duration(limit)*time.Second {
		t.Fatalf("expected %d seconds, got %s", limit, got)
	}
	if got := holdDuration(limit + 1); got != time.Duration(math.MaxInt64) {
		t.Fatalf("expected clamp, got %s", got)
	}
}

func TestHandleGetAndCancelReservation(t *testing.T) {
	t.Parallel()

	svc := &stubReservations{res: domain.Reservation{ID: "r1", Status: domain.ReservationCancelled}}
	serve(t, "GET /reservations/{id}", HandleGetReservation(svc, discardLogger()), handlerCase{
		method: http.MethodGet, path: "/reservations/r1", expectedStatus: http.StatusOK, expectedSubstr: `"status":"cancelled"`,
	})
	if svc.lastID != "r1" {
		t.Fatalf("expected id r1, got %q", svc.lastID)
	}

	serve(t, "POST /reservations/{id}/cancel", HandleCancelReservation(svc, discardLogger()), handlerCase{
		method: http.MethodPost, path: "/reservations/r1/cancel", expectedStatus: http.StatusOK,
	})

	missing := &stubReservations{err: domain.ErrReservationNotFound}
	serve(t, "GET /reservations/{id}", HandleGetReservation(missing, discardLogger()), handlerCase{
		method: http.MethodGet, path: "/reservations/nope", expectedStatus: http.StatusNotFound, expectedSubstr: codeReservationNotFound,
	})
}

func TestHandleGetAvailability(t *testing.T) {
	t.Parallel()

	svc := &stubAvailability{a: domain.Availability{UnitID: "u1", CapacityTotal: 10, Reserved: 2, Sold: 3, Available: 5}}
	serve(t, "GET /units/{id}/availability", HandleGetAvailability(svc, discardLogger()), handlerCase{
		method: http.MethodGet, path: "/units/u1/availability", expectedStatus: http.StatusOK, expectedSubstr: `"available":5`,
	})
}
