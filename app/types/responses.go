package types

import "encoding/json"

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

type ConfigResponse struct {
	BackendURL string `json:"backend_url"`
	Mode       string `json:"mode"`
	Version    string `json:"version"`
}

// ChallengeResponse is the HTTP 402 body for header-mode routes. The
// x402_requirements payload is opaque and passed through from the backend.
type ChallengeResponse struct {
	Error            string          `json:"error"`
	ChargeID         string          `json:"charge_id"`
	Amount           string          `json:"amount"`
	Currency         string          `json:"currency"`
	X402Requirements json.RawMessage `json:"x402_requirements,omitempty"`
	Description      string          `json:"description,omitempty"`
}

// BackendStatus reports backend reachability and API key validity for the
// connection test endpoint. Pointer fields stay null until the corresponding
// probe ran.
type BackendStatus struct {
	Reachable      bool   `json:"reachable"`
	HealthStatus   *int   `json:"health_status"`
	APIKeyValid    *bool  `json:"api_key_valid"`
	OrganizationID string `json:"organization_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

type TestConnectionResponse struct {
	DemoServer string        `json:"demo_server"`
	Backend    BackendStatus `json:"backend"`
}

type RouteSummary struct {
	ID               string `json:"id"`
	RoutePattern     string `json:"route_pattern"`
	Method           string `json:"method"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	ReceiverConfigID string `json:"receiver_config_id,omitempty"`
}

type RoutesResponse struct {
	Routes []*RouteSummary `json:"routes"`
	Error  string          `json:"error,omitempty"`
}

type PaymentInfo struct {
	TransactionID string `json:"transaction_id"`
	ChargeID      string `json:"charge_id,omitempty"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type Article struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ContentResponse is the body of the gated demo endpoints once payment has
// been verified.
type ContentResponse struct {
	Access  string       `json:"access"`
	Message string       `json:"message"`
	Mode    string       `json:"mode"`
	Article *Article     `json:"article,omitempty"`
	Payment *PaymentInfo `json:"payment,omitempty"`
}
