package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidStartsAt      = "invalid_starts_at"
	codeInvalidID            = "invalid_id"
	codeInvalidQuantity      = "invalid_quantity"
	codeInvalidHoldDuration  = "invalid_hold_duration"
	codeInvalidCapacity      = "invalid_capacity"
	codeInvalidPrice         = "invalid_price"
	codeInvalidAmount        = "invalid_amount"
	codeInvalidEventStatus   = "invalid_event_status"
	codeInvalidPaymentStatus = "invalid_payment_status"
	codeEventNameRequired    = "event_name_required"
	codeOrganizerRequired    = "organizer_required"
	codeUnitNameRequired     = "unit_name_required"
	codePaymentRefRequired   = "payment_reference_required"
	codeIdempotencyConflict  = "idempotency_conflict"
	codeInsufficientCapacity = "insufficient_capacity"
	codeTransientContention  = "transient_contention"
	codeUnitNotFound         = "unit_not_found"
	codeEventNotFound        = "event_not_found"
	codeReservationNotFound  = "reservation_not_found"
	codeSaleNotFound         = "sale_not_found"
	codeReservationExpired   = "reservation_expired"
	codeReservationCancelled = "reservation_cancelled"
	codeAlreadyConfirmed     = "already_confirmed"
	codeEventNotActive       = "event_not_active"
	codeEventNotTerminal     = "event_not_terminal"
	codeUnitAlreadyExists    = "unit_already_exists"
	codeCapacityLocked       = "capacity_locked"
	codeUnitHasSales         = "unit_has_sales"
	codeUnitHasHolds         = "unit_has_holds"
	codeFreeGrantUsed        = "free_grant_already_used"
	codeExceedsFreeLimit     = "exceeds_free_limit"
	codeNotFirstEvent        = "not_first_event"
	codeInsufficientCredits  = "insufficient_credits"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidHoldDuration, http.StatusBadRequest, codeInvalidHoldDuration},
	{domain.ErrInvalidCapacity, http.StatusBadRequest, codeInvalidCapacity},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{domain.ErrInvalidPaymentStatus, http.StatusBadRequest, codeInvalidPaymentStatus},
	{domain.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{domain.ErrOrganizerRequired, http.StatusBadRequest, codeOrganizerRequired},
	{domain.ErrUnitNameRequired, http.StatusBadRequest, codeUnitNameRequired},
	{domain.ErrPaymentRefRequired, http.StatusBadRequest, codePaymentRefRequired},

	{domain.ErrUnitNotFound, http.StatusNotFound, codeUnitNotFound},
	{domain.ErrEventNotFound, http.StatusNotFound, codeEventNotFound},
	{domain.ErrReservationNotFound, http.StatusNotFound, codeReservationNotFound},
	{domain.ErrSaleNotFound, http.StatusNotFound, codeSaleNotFound},

	{domain.ErrInsufficientCapacity, http.StatusConflict, codeInsufficientCapacity},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrAlreadyConfirmed, http.StatusConflict, codeAlreadyConfirmed},
	{domain.ErrReservationCancelled, http.StatusConflict, codeReservationCancelled},
	{domain.ErrInvalidEventStatus, http.StatusConflict, codeInvalidEventStatus},
	{domain.ErrEventNotActive, http.StatusConflict, codeEventNotActive},
	{domain.ErrEventNotTerminal, http.StatusConflict, codeEventNotTerminal},
	{domain.ErrUnitAlreadyExists, http.StatusConflict, codeUnitAlreadyExists},
	{domain.ErrCapacityLocked, http.StatusConflict, codeCapacityLocked},
	{domain.ErrUnitHasSales, http.StatusConflict, codeUnitHasSales},
	{domain.ErrUnitHasHolds, http.StatusConflict, codeUnitHasHolds},
	{domain.ErrFreeGrantAlreadyUsed, http.StatusConflict, codeFreeGrantUsed},
	{domain.ErrNotFirstEvent, http.StatusConflict, codeNotFirstEvent},
	{domain.ErrInsufficientCredits, http.StatusConflict, codeInsufficientCredits},
	{domain.ErrExceedsFreeLimit, http.StatusUnprocessableEntity, codeExceedsFreeLimit},

	{domain.ErrReservationExpired, http.StatusGone, codeReservationExpired},
	{domain.ErrTransientContention, http.StatusServiceUnavailable, codeTransientContention},
}

// mapError resolves a service error to a status and stable code. Unknown
// errors are internal.
func mapError(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.err.Error()
		}
	}
	return http.StatusInternalServerError, codeInternalError, "internal error"
}

// writeServiceError writes the mapped error and logs anything that ends up
// as a 500.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.WithError(err).Error("request failed")
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody rejects unknown fields like every JSON endpoint here.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
