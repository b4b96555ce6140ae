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

// CreditAllocator is the minimal interface needed by organizer credit endpoints.
type CreditAllocator interface {
	GrantFirstFreeAllocation(ctx context.Context, organizerID, eventID string, quantity int) (domain.CreditBalance, error)
	AddCredits(ctx context.Context, organizerID string, amount int) (domain.CreditBalance, error)
	Balance(ctx context.Context, organizerID string) (domain.CreditBalance, error)
	IssueComplimentary(ctx context.Context, in app.ComplimentaryInput) (domain.SaleRecord, error)
}

func HandleFreeGrant(svc CreditAllocator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req freeGrantRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if strings.TrimSpace(req.EventID) == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "event_id is required")
			return
		}

		balance, err := svc.GrantFirstFreeAllocation(r.Context(), r.PathValue("id"), req.EventID, req.Quantity)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newCreditResponse(balance))
	}
}

// HandleAddCredits records purchased credits. Payment for them is settled
// elsewhere.
func HandleAddCredits(svc CreditAllocator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addCreditsRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Amount <= 0 || req.Amount > domain.MaxQuantity {
			writeError(w, http.StatusBadRequest, codeInvalidAmount, domain.ErrInvalidAmount.Error())
			return
		}

		balance, err := svc.AddCredits(r.Context(), r.PathValue("id"), req.Amount)
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newCreditResponse(balance))
	}
}

func HandleGetCredits(svc CreditAllocator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := svc.Balance(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newCreditResponse(balance))
	}
}

func HandleIssueComplimentary(svc CreditAllocator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req complimentaryRequest
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

		sale, err := svc.IssueComplimentary(r.Context(), app.ComplimentaryInput{
			OrganizerID: r.PathValue("id"),
			UnitID:      req.UnitID,
			Quantity:    req.Quantity,
			Buyer:       domain.Buyer{Name: req.BuyerName, Email: req.BuyerEmail},
		})
		if err != nil {
			writeServiceError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSaleResponse(sale, false))
	}
}

type freeGrantRequest struct {
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
}

type addCreditsRequest struct {
	Amount int `json:"amount"`
}

type complimentaryRequest struct {
	UnitID     string `json:"unit_id"`
	Quantity   int    `json:"quantity"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
}

type creditResponse struct {
	OrganizerID        string     `json:"organizer_id"`
	CreditsTotal       int        `json:"credits_total"`
	CreditsUsed        int        `json:"credits_used"`
	CreditsRemaining   int        `json:"credits_remaining"`
	FirstFreeGrantUsed bool       `json:"first_free_grant_used"`
	LinkedEventID      string     `json:"linked_event_id,omitempty"`
	FreeAllocated      int        `json:"free_allocated"`
	FreeUsed           int        `json:"free_used"`
	FreeExpired        int        `json:"free_expired"`
	FreeExpiredAt      *time.Time `json:"free_expired_at,omitempty"`
}

func newCreditResponse(b domain.CreditBalance) creditResponse {
	return creditResponse{
		OrganizerID:        b.OrganizerID,
		CreditsTotal:       b.CreditsTotal,
		CreditsUsed:        b.CreditsUsed,
		CreditsRemaining:   b.Remaining(),
		FirstFreeGrantUsed: b.FirstFreeGrantUsed,
		LinkedEventID:      b.LinkedEventID,
		FreeAllocated:      b.FreeAllocated,
		FreeUsed:           b.FreeUsed,
		FreeExpired:        b.FreeExpired,
		FreeExpiredAt:      b.FreeExpiredAt,
	}
}
