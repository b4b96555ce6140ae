package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/storage/memory"
)

type apiErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type testAPI struct {
	handler http.Handler
	clock   *clock.Manual
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	clk := clock.NewManual(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	log := discardLogger()
	opts := []app.Option{app.WithLogger(log)}

	allocation := app.NewAllocationService(store, store, clk, opts...)
	expiry := app.NewExpiryService(store, store, allocation, clk, opts...)
	reservations := app.NewReservationService(store, store, expiry, clk, opts...)
	confirmations := app.NewConfirmationService(store, store, clk, opts...)
	admin := app.NewAdminService(store, allocation, clk, opts...)

	handler := NewRouter(Services{
		Reservations: reservations,
		Sales:        confirmations,
		Payments:     app.NewPaymentEventService(confirmations, reservations, opts...),
		Inventory:    app.NewInventoryService(store, opts...),
		Events:       admin,
		Units:        admin,
		Credits:      allocation,
	}, []string{"*"}, log)

	return &testAPI{handler: handler, clock: clk}
}

func (a *testAPI) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestRouter_ReserveConfirmFlow(t *testing.T) {
	api := newTestAPI(t)

	var event eventResponse
	if code := api.do(t, http.MethodPost, "/admin/events", `{"organizer_id":"org-1","name":"Concert"}`, &event); code != http.StatusCreated {
		t.Fatalf("create event: expected 201, got %d", code)
	}

	var unit unitResponse
	if code := api.do(t, http.MethodPost, "/admin/events/"+event.ID+"/units", `{"name":"GA","capacity":1,"price_cents":2500}`, &unit); code != http.StatusCreated {
		t.Fatalf("create unit: expected 201, got %d", code)
	}

	var res reservationResponse
	if code := api.do(t, http.MethodPost, "/reservations", `{"unit_id":"`+unit.ID+`","quantity":1}`, &res); code != http.StatusCreated {
		t.Fatalf("reserve: expected 201, got %d", code)
	}
	if res.Status != "held" {
		t.Fatalf("expected held, got %s", res.Status)
	}

	var apiErr apiErrorResponse
	if code := api.do(t, http.MethodPost, "/reservations", `{"unit_id":"`+unit.ID+`","quantity":1}`, &apiErr); code != http.StatusConflict {
		t.Fatalf("second reserve: expected 409, got %d", code)
	}
	if apiErr.Code != codeInsufficientCapacity {
		t.Fatalf("expected %s, got %s", codeInsufficientCapacity, apiErr.Code)
	}

	confirm := `{"payment_reference":"pay-1","buyer_name":"Ada","buyer_email":"ada@example.com"}`
	var sale saleResponse
	if code := api.do(t, http.MethodPost, "/reservations/"+res.ID+"/confirm", confirm, &sale); code != http.StatusCreated {
		t.Fatalf("confirm: expected 201, got %d", code)
	}
	if sale.AmountCents != 2500 {
		t.Fatalf("expected amount 2500, got %d", sale.AmountCents)
	}

	var replay saleResponse
	if code := api.do(t, http.MethodPost, "/reservations/"+res.ID+"/confirm", confirm, &replay); code != http.StatusOK {
		t.Fatalf("replay confirm: expected 200, got %d", code)
	}
	if replay.ID != sale.ID || !replay.AlreadyConfirmed {
		t.Fatalf("expected replay of %s, got %+v", sale.ID, replay)
	}

	if code := api.do(t, http.MethodPost, "/reservations/"+res.ID+"/confirm", `{"payment_reference":"pay-2"}`, &apiErr); code != http.StatusConflict {
		t.Fatalf("confirm with other reference: expected 409, got %d", code)
	}

	var availability struct {
		Sold      int `json:"sold"`
		Available int `json:"available"`
	}
	if code := api.do(t, http.MethodGet, "/units/"+unit.ID+"/availability", "", &availability); code != http.StatusOK {
		t.Fatalf("availability: expected 200, got %d", code)
	}
	if availability.Sold != 1 || availability.Available != 0 {
		t.Fatalf("expected sold 1 available 0, got %+v", availability)
	}

	if code := api.do(t, http.MethodGet, "/reservations/"+res.ID+"/sale", "", &sale); code != http.StatusOK {
		t.Fatalf("get sale: expected 200, got %d", code)
	}
}

func TestRouter_ExpiredHoldIsGone(t *testing.T) {
	api := newTestAPI(t)

	var event eventResponse
	api.do(t, http.MethodPost, "/admin/events", `{"organizer_id":"org-1","name":"Concert"}`, &event)
	var unit unitResponse
	api.do(t, http.MethodPost, "/admin/events/"+event.ID+"/units", `{"name":"GA","capacity":2}`, &unit)

	var res reservationResponse
	if code := api.do(t, http.MethodPost, "/reservations", `{"unit_id":"`+unit.ID+`","quantity":2,"hold_seconds":60}`, &res); code != http.StatusCreated {
		t.Fatalf("reserve: expected 201, got %d", code)
	}

	api.clock.Advance(2 * time.Minute)

	var apiErr apiErrorResponse
	if code := api.do(t, http.MethodPost, "/reservations/"+res.ID+"/confirm", `{"payment_reference":"late"}`, &apiErr); code != http.StatusGone {
		t.Fatalf("late confirm: expected 410, got %d", code)
	}

	var fresh reservationResponse
	if code := api.do(t, http.MethodPost, "/reservations", `{"unit_id":"`+unit.ID+`","quantity":2}`, &fresh); code != http.StatusCreated {
		t.Fatalf("capacity should be reservable again, got %d", code)
	}
}

func TestRouter_PaymentWebhookCancels(t *testing.T) {
	api := newTestAPI(t)

	var event eventResponse
	api.do(t, http.MethodPost, "/admin/events", `{"organizer_id":"org-1","name":"Concert"}`, &event)
	var unit unitResponse
	api.do(t, http.MethodPost, "/admin/events/"+event.ID+"/units", `{"name":"GA","capacity":3}`, &unit)
	var res reservationResponse
	api.do(t, http.MethodPost, "/reservations", `{"unit_id":"`+unit.ID+`","quantity":3}`, &res)

	body := `{"reservation_id":"` + res.ID + `","payment_reference":"pay-9","status":"failed"}`
	if code := api.do(t, http.MethodPost, "/webhooks/payments", body, nil); code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d", code)
	}

	var got reservationResponse
	api.do(t, http.MethodGet, "/reservations/"+res.ID, "", &got)
	if got.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
}

func TestRouter_FreeGrantOnce(t *testing.T) {
	api := newTestAPI(t)

	var event eventResponse
	api.do(t, http.MethodPost, "/admin/events", `{"organizer_id":"org-1","name":"Launch"}`, &event)

	grant := `{"event_id":"` + event.ID + `","quantity":50}`
	var balance creditResponse
	if code := api.do(t, http.MethodPost, "/organizers/org-1/free-grant", grant, &balance); code != http.StatusOK {
		t.Fatalf("grant: expected 200, got %d", code)
	}
	if balance.CreditsRemaining != 50 {
		t.Fatalf("expected 50 credits, got %d", balance.CreditsRemaining)
	}

	var apiErr apiErrorResponse
	if code := api.do(t, http.MethodPost, "/organizers/org-1/free-grant", grant, &apiErr); code != http.StatusConflict {
		t.Fatalf("second grant: expected 409, got %d", code)
	}
	if apiErr.Code != codeFreeGrantUsed {
		t.Fatalf("expected %s, got %s", codeFreeGrantUsed, apiErr.Code)
	}

	var after creditResponse
	api.do(t, http.MethodGet, "/organizers/org-1/credits", "", &after)
	if after.CreditsTotal != 50 || after.CreditsUsed != 0 {
		t.Fatalf("balance changed after rejected grant: %+v", after)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	var apiErr apiErrorResponse
	if code := api.do(t, http.MethodGet, "/holds", "", &apiErr); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if apiErr.Code != codeNotFound {
		t.Fatalf("expected %s, got %s", codeNotFound, apiErr.Code)
	}
}
