package domain

import "time"

type Buyer struct {
	Name  string
	Email string
}

// SaleRecord is the permanent result of a confirmed reservation. There is at
// most one per reservation.
type SaleRecord struct {
	ID               string
	ReservationID    string
	UnitID           string
	Quantity         int
	Buyer            Buyer
	AmountCents      int64
	PaymentReference string
	ConfirmedAt      time.Time
}
