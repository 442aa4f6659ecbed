package entity

import "time"

const (
	EventChargeCreated    = "charge_created"
	EventPaymentAdmitted  = "payment_admitted"
	EventPaymentRejected  = "payment_rejected"
	EventPaymentConfirmed = "payment_confirmed"
)

// PaymentEvent is an audit record of a gate decision or backend payment
// operation. Persisted when a database is configured, logged otherwise.
type PaymentEvent struct {
	ID uint64

	RouteKey string
	ChargeID string

	EventType     string
	TransactionID *string

	Amount   string
	Currency string

	Detail *string

	CreatedAt time.Time
}
