package entity

import (
	"encoding/json"
	"time"
)

// Charge is a backend-issued payment obligation. The backend owns its
// lifecycle; this service only creates and reads charges.
type Charge struct {
	ID          string
	Amount      string
	Currency    string
	CustomerRef string
	ResourceRef string

	// CheckoutURL is the hosted payment page for the charge, when the
	// backend issued one.
	CheckoutURL string

	// Requirements is the opaque x402 payment-requirements payload, passed
	// through to callers unchanged.
	Requirements json.RawMessage

	CreatedAt time.Time
	ExpiresAt *time.Time
}

// PaymentProof is caller-supplied evidence referencing a charge. It lives
// only for the duration of one verification call.
type PaymentProof struct {
	// TransactionID comes from the X-Transaction-Id header.
	TransactionID string
	// ChargeID and ProofToken come from query parameters on redirect return.
	ChargeID   string
	ProofToken string
}

// Empty reports whether the request carried no proof at all.
func (p PaymentProof) Empty() bool {
	return p.TransactionID == "" && p.ChargeID == ""
}

// Reference is the identifier submitted to the backend for verification.
// Header proof takes precedence over the redirect-return query proof.
func (p PaymentProof) Reference() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.ChargeID
}

// VerificationResult is the backend's verdict on a payment proof. Produced
// fresh per verification call and never cached across requests.
type VerificationResult struct {
	Verified      bool
	TransactionID string
	Amount        string
	Currency      string
	CustomerRef   string
	FailureReason string
}

// PaymentContext is attached to a request after a verified payment admitted
// it. Amount and currency always reflect backend-reported values.
type PaymentContext struct {
	TransactionID string
	ChargeID      string
	Amount        string
	Currency      string
	CustomerRef   string
}
