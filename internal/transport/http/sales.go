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

// SaleConfirmer is the minimal interface needed by confirmation endpoints.
type SaleConfirmer interface {
	Confirm(ctx context.Context, in app.ConfirmInput) (app.ConfirmResult, error)
	GetSale(ctx context.Context, reservationID string) (domain.SaleRecord, error)
}

// PaymentEventHandler processes payment processor callbacks.
type PaymentEventHandler interface {
	Handle(ctx context.Context, ev app.PaymentEvent) error
}

// HandleConfirmReservation returns an HTTP handler that turns a hold into a
// sale. A replay with the same payment reference answers 200 with the
// original sale; a first confirmation answers 201.
func HandleConfirmReservation(svc SaleConfirmer, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.PaymentReference) == "" {
			writeError(w, http.StatusBadRequest, codePaymentRefRequired, domain.ErrPaymentRefRequired.Error())
			return
		}
		if req.AmountCents < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidAmount, domain.ErrInvalidAmount.Error())
			return
		}

		res, err := svc.Confirm(r.Context(), app.ConfirmInput{
			ReservationID:    r.PathValue("id"),
			PaymentReference: req.PaymentReference,
			Buyer:            domain.Buyer{Name: req.BuyerName, Email: req.BuyerEmail},
			AmountCents:      req.AmountCents,
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}

		status := http.StatusCreated
		if res.AlreadyConfirmed {
			status = http.StatusOK
		}
		writeJSON(w, status, newSaleResponse(res.Sale, res.AlreadyConfirmed))
	}
}

// HandleGetSale returns the sale behind a reservation. Check-in uses it to
// validate a ticket.
func HandleGetSale(svc SaleConfirmer, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sale, err := svc.GetSale(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newSaleResponse(sale, false))
	}
}

// HandlePaymentWebhook accepts payment processor callbacks. Outcomes that
// mean the event was already applied or can never apply are acknowledged
// with 200 so the processor stops redelivering.
func HandlePaymentWebhook(svc PaymentEventHandler, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev app.PaymentEvent
		if err := decodeBody(r, &ev); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if ev.ReservationID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "reservation_id is required")
			return
		}

		err := svc.Handle(r.Context(), ev)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, webhookResponse{Status: "processed"})
		case app.PaymentOutcomeFinal(err):
			log.WithError(err).WithField("reservation_id", ev.ReservationID).Warn("payment event not applied")
			_, code, _ := mapError(err)
			writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored", Reason: code})
		default:
			writeServiceError(w, log, err)
		}
	}
}

type confirmRequest struct {
	PaymentReference string `json:"payment_reference"`
	BuyerName        string `json:"buyer_name"`
	BuyerEmail       string `json:"buyer_email"`
	AmountCents      int64  `json:"amount_cents"`
}

type saleResponse struct {
	ID               string    `json:"id"`
	ReservationID    string    `json:"reservation_id"`
	UnitID           string    `json:"unit_id"`
	Quantity         int       `json:"quantity"`
	BuyerName        string    `json:"buyer_name"`
	BuyerEmail       string    `json:"buyer_email"`
	AmountCents      int64     `json:"amount_cents"`
	PaymentReference string    `json:"payment_reference"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
	AlreadyConfirmed bool      `json:"already_confirmed"`
}

func newSaleResponse(s domain.SaleRecord, replay bool) saleResponse {
	return saleResponse{
		ID:               s.ID,
		ReservationID:    s.ReservationID,
		UnitID:           s.UnitID,
		Quantity:         s.Quantity,
		BuyerName:        s.Buyer.Name,
		BuyerEmail:       s.Buyer.Email,
		AmountCents:      s.AmountCents,
		PaymentReference: s.PaymentReference,
		ConfirmedAt:      s.ConfirmedAt,
		AlreadyConfirmed: replay,
	}
}

type webhookResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
