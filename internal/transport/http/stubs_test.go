package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/sirupsen/logrus"
)

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type handlerCase struct {
	name           string
	method         string
	path           string
	body           string
	expectedStatus int
	expectedSubstr string
}

// serve runs a request through a mux so path values resolve like they do in
// NewRouter.
func serve(t *testing.T, pattern string, h http.Handler, tc handlerCase) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(pattern, h)

	var body io.Reader
	if tc.body != "" {
		body = strings.NewReader(tc.body)
	}
	req := httptest.NewRequest(tc.method, tc.path, body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != tc.expectedStatus {
		t.Fatalf("expected status %d, got %d (%s)", tc.expectedStatus, rec.Code, rec.Body.String())
	}
	if tc.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tc.expectedSubstr) {
		t.Fatalf("expected response to contain %q, got %q", tc.expectedSubstr, rec.Body.String())
	}
	return rec
}

type stubReservations struct {
	res    domain.Reservation
	err    error
	lastIn app.ReserveInput
	lastID string
}

func (s *stubReservations) Reserve(_ context.Context, in app.ReserveInput) (domain.Reservation, error) {
	s.lastIn = in
	return s.res, s.err
}

func (s *stubReservations) Get(_ context.Context, id string) (domain.Reservation, error) {
	s.lastID = id
	return s.res, s.err
}

func (s *stubReservations) Cancel(_ context.Context, id string) (domain.Reservation, error) {
	s.lastID = id
	return s.res, s.err
}

type stubAvailability struct {
	a   domain.Availability
	err error
}

func (s *stubAvailability) Availability(context.Context, string) (domain.Availability, error) {
	return s.a, s.err
}

type stubSales struct {
	result app.ConfirmResult
	err    error
	lastIn app.ConfirmInput
}

func (s *stubSales) Confirm(_ context.Context, in app.ConfirmInput) (app.ConfirmResult, error) {
	s.lastIn = in
	return s.result, s.err
}

func (s *stubSales) GetSale(context.Context, string) (domain.SaleRecord, error) {
	return s.result.Sale, s.err
}

type stubPayments struct {
	err error
}

func (s *stubPayments) Handle(context.Context, app.PaymentEvent) error { return s.err }

type stubAdmin struct {
	event  domain.Event
	unit   domain.SellableUnit
	err    error
	status domain.EventStatus
}

func (s *stubAdmin) CreateEvent(context.Context, app.CreateEventInput) (domain.Event, error) {
	return s.event, s.err
}

func (s *stubAdmin) ListEvents(context.Context) ([]domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Event{s.event}, nil
}

func (s *stubAdmin) SetEventStatus(_ context.Context, _ string, status domain.EventStatus) (domain.Event, error) {
	s.status = status
	ev := s.event
	ev.Status = status
	return ev, s.err
}

func (s *stubAdmin) CreateUnit(context.Context, app.CreateUnitInput) (domain.SellableUnit, error) {
	return s.unit, s.err
}

func (s *stubAdmin) ListUnits(context.Context, string) ([]domain.SellableUnit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.SellableUnit{s.unit}, nil
}

func (s *stubAdmin) SetUnitCapacity(context.Context, string, int) (domain.SellableUnit, error) {
	return s.unit, s.err
}

func (s *stubAdmin) DeleteUnit(context.Context, string) error { return s.err }

type stubCredits struct {
	balance domain.CreditBalance
	sale    domain.SaleRecord
	err     error
}

func (s *stubCredits) GrantFirstFreeAllocation(context.Context, string, string, int) (domain.CreditBalance, error) {
	return s.balance, s.err
}

func (s *stubCredits) AddCredits(context.Context, string, int) (domain.CreditBalance, error) {
	return s.balance, s.err
}

func (s *stubCredits) Balance(context.Context, string) (domain.CreditBalance, error) {
	return s.balance, s.err
}

func (s *stubCredits) IssueComplimentary(context.Context, app.ComplimentaryInput) (domain.SaleRecord, error) {
	return s.sale, s.err
}

func serveWithHeader(h http.Handler, method, path, body, key, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(key, value)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
