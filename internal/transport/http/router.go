package http

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// Services bundles what the router dispatches to. DB may be nil.
type Services struct {
	Reservations ReservationManager
	Sales        SaleConfirmer
	Payments     PaymentEventHandler
	Inventory    AvailabilityReader
	Events       AdminEventService
	Units        AdminUnitService
	Credits      CreditAllocator
	DB           Pinger
}

// NewRouter registers every endpoint and wraps the mux with recovery,
// request logging and CORS.
func NewRouter(svc Services, corsOrigins []string, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", HandleHealth(svc.DB))

	mux.Handle("POST /reservations", HandleCreateReservation(svc.Reservations, log))
	mux.Handle("GET /reservations/{id}", HandleGetReservation(svc.Reservations, log))
	mux.Handle("POST /reservations/{id}/cancel", HandleCancelReservation(svc.Reservations, log))
	mux.Handle("POST /reservations/{id}/confirm", HandleConfirmReservation(svc.Sales, log))
	mux.Handle("GET /reservations/{id}/sale", HandleGetSale(svc.Sales, log))
	mux.Handle("POST /webhooks/payments", HandlePaymentWebhook(svc.Payments, log))
	mux.Handle("GET /units/{id}/availability", HandleGetAvailability(svc.Inventory, log))

	mux.Handle("GET /admin/events", HandleListEvents(svc.Events, log))
	mux.Handle("POST /admin/events", HandleCreateEvent(svc.Events, log))
	mux.Handle("POST /admin/events/{id}/status", HandleSetEventStatus(svc.Events, log))
	mux.Handle("GET /admin/events/{id}/units", HandleListUnits(svc.Units, log))
	mux.Handle("POST /admin/events/{id}/units", HandleCreateUnit(svc.Units, log))
	mux.Handle("PUT /admin/units/{id}/capacity", HandleSetUnitCapacity(svc.Units, log))
	mux.Handle("DELETE /admin/units/{id}", HandleDeleteUnit(svc.Units, log))

	mux.Handle("POST /organizers/{id}/free-grant", HandleFreeGrant(svc.Credits, log))
	mux.Handle("POST /organizers/{id}/credits", HandleAddCredits(svc.Credits, log))
	mux.Handle("GET /organizers/{id}/credits", HandleGetCredits(svc.Credits, log))
	mux.Handle("POST /organizers/{id}/complimentary", HandleIssueComplimentary(svc.Credits, log))

	mux.Handle("/", NotFoundHandler(mux))

	return Recover(RequestLogger(CORS(corsOrigins, mux), log), log)
}
