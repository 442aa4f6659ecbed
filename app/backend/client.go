package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/metrics"
)

type Config struct {
	APIKey  string
	BaseURL string

	// HealthTimeout bounds health and configuration calls, PaymentTimeout
	// bounds payment-affecting calls.
	HealthTimeout  time.Duration
	PaymentTimeout time.Duration
}

// Client wraps the Orvion payments backend HTTP API. Every call carries a
// bearer token and a bounded timeout; backend error statuses are surfaced to
// callers, never swallowed here.
type Client struct {
	cfg           Config
	healthClient  *http.Client
	paymentClient *http.Client
}

func New(cfg Config) *Client {
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 10 * time.Second
	}
	paymentTimeout := cfg.PaymentTimeout
	if paymentTimeout <= 0 {
		paymentTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg:           cfg,
		healthClient:  &http.Client{Timeout: healthTimeout},
		paymentClient: &http.Client{Timeout: paymentTimeout},
	}
}

// HealthStatus is the outcome of the backend connectivity and API key probe.
type HealthStatus struct {
	Reachable      bool   `json:"reachable"`
	HealthStatus   int    `json:"health_status"`
	APIKeyValid    bool   `json:"api_key_valid"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// HealthCheck probes the unauthenticated backend health endpoint and then
// validates the API key against the authenticated one.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status, _, err := c.do(ctx, c.healthClient, "health", http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	result := &HealthStatus{Reachable: true, HealthStatus: status}
	if status != http.StatusOK {
		return result, nil
	}

	authStatus, body, err := c.do(ctx, c.healthClient, "health_auth", http.MethodGet, "/v1/health", nil)
	if err != nil {
		return result, nil
	}
	if authStatus == http.StatusUnauthorized {
		return result, nil
	}

	result.APIKeyValid = true
	var payload struct {
		OrganizationID string `json:"organization_id"`
	}
	if json.Unmarshal(body, &payload) == nil {
		result.OrganizationID = payload.OrganizationID
	}
	return result, nil
}

// ChargeRequest is the charge-creation payload. Amount and currency always
// come from the route configuration, never from the caller.
type ChargeRequest struct {
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	CustomerRef      string `json:"customer_ref,omitempty"`
	ResourceRef      string `json:"resource_ref,omitempty"`
	Description      string `json:"description,omitempty"`
	ReturnURL        string `json:"return_url,omitempty"`
	ReceiverConfigID string `json:"receiver_config_id,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

type chargePayload struct {
	ID               string          `json:"id"`
	ChargeID         string          `json:"charge_id"`
	Amount           string          `json:"amount"`
	Currency         string          `json:"currency"`
	CustomerRef      string          `json:"customer_ref"`
	ResourceRef      string          `json:"resource_ref"`
	CheckoutURL      string          `json:"checkout_url"`
	X402Requirements json.RawMessage `json:"x402_requirements"`
	Requirements     json.RawMessage `json:"requirements"`
	CreatedAt        string          `json:"created_at"`
	ExpiresAt        string          `json:"expires_at"`
}

func (c *Client) CreateCharge(ctx context.Context, in *ChargeRequest) (*entity.Charge, error) {
	status, body, err := c.do(ctx, c.paymentClient, "create_charge", http.MethodPost, "/v1/charges", in)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{StatusCode: status, Body: body}
	}

	var payload chargePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &APIError{StatusCode: status, Body: body}
	}

	charge := &entity.Charge{
		ID:           payload.ID,
		Amount:       payload.Amount,
		Currency:     payload.Currency,
		CustomerRef:  payload.CustomerRef,
		ResourceRef:  payload.ResourceRef,
		CheckoutURL:  payload.CheckoutURL,
		Requirements: payload.X402Requirements,
	}
	if charge.ID == "" {
		charge.ID = payload.ChargeID
	}
	if len(charge.Requirements) == 0 {
		charge.Requirements = payload.Requirements
	}
	if ts, err := time.Parse(time.RFC3339, payload.CreatedAt); err == nil {
		charge.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, payload.ExpiresAt); err == nil {
		charge.ExpiresAt = &ts
	}
	return charge, nil
}

// VerifyCharge validates a payment proof against the backend. A 404 or 409
// is a verification verdict, not a transport failure, so it comes back as an
// unverified result with the backend's reason attached.
func (c *Client) VerifyCharge(ctx context.Context, proof entity.PaymentProof, resourceRef string) (*entity.VerificationResult, error) {
	request := map[string]string{
		"transaction_id": proof.Reference(),
	}
	if resourceRef != "" {
		request["resource_ref"] = resourceRef
	}
	if proof.ProofToken != "" {
		request["proof_token"] = proof.ProofToken
	}

	status, body, err := c.do(ctx, c.paymentClient, "verify_charge", http.MethodPost, "/v1/charges/verify", request)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusConflict:
		return &entity.VerificationResult{
			Verified:      false,
			TransactionID: proof.Reference(),
			FailureReason: failureReasonFromBody(body, status),
		}, nil
	case status >= 400:
		return nil, &APIError{StatusCode: status, Body: body}
	}

	var payload struct {
		Verified      bool   `json:"verified"`
		TransactionID string `json:"transaction_id"`
		Amount        string `json:"amount"`
		Currency      string `json:"currency"`
		CustomerRef   string `json:"customer_ref"`
		Reason        string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &APIError{StatusCode: status, Body: body}
	}

	result := &entity.VerificationResult{
		Verified:      payload.Verified,
		TransactionID: payload.TransactionID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		CustomerRef:   payload.CustomerRef,
	}
	if result.TransactionID == "" {
		result.TransactionID = proof.Reference()
	}
	if !result.Verified {
		result.FailureReason = payload.Reason
	}
	return result, nil
}

// ConfirmPayment manually confirms a charge with a transaction hash, used by
// the demo wallet flow.
func (c *Client) ConfirmPayment(ctx context.Context, chargeID, txHash string) (json.RawMessage, error) {
	request := map[string]string{
		"charge_id": chargeID,
		"tx_hash":   txHash,
	}
	status, body, err := c.do(ctx, c.paymentClient, "confirm_payment", http.MethodPost, "/v1/facilitator/confirm", request)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{StatusCode: status, Body: body}
	}
	return normalizeJSONBody(body), nil
}

type routePayload struct {
	ID               string `json:"id"`
	Method           string `json:"method"`
	RoutePattern     string `json:"route_pattern"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	ReceiverConfigID string `json:"receiver_config_id"`
}

// ListRoutes fetches all protected routes configured on the backend.
func (c *Client) ListRoutes(ctx context.Context) ([]*entity.Route, error) {
	status, body, err := c.do(ctx, c.healthClient, "list_routes", http.MethodGet, "/v1/protected-routes/routes", nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{StatusCode: status, Body: body}
	}

	var payloads []routePayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, &APIError{StatusCode: status, Body: body}
	}

	routes := make([]*entity.Route, 0, len(payloads))
	for _, p := range payloads {
		method := strings.ToUpper(strings.TrimSpace(p.Method))
		if method == "" {
			method = http.MethodGet
		}
		routes = append(routes, &entity.Route{
			ID:               p.ID,
			Method:           method,
			Pattern:          p.RoutePattern,
			Amount:           p.Amount,
			Currency:         p.Currency,
			Name:             p.Name,
			Description:      p.Description,
			Status:           p.Status,
			ReceiverConfigID: p.ReceiverConfigID,
		})
	}
	return routes, nil
}

// Proxy forwards a request to the backend 1:1 and returns the backend status
// with a JSON-safe body. Only transport failures are returned as errors.
func (c *Client) Proxy(ctx context.Context, method, path string, body []byte) (int, json.RawMessage, error) {
	var payload any
	if len(body) > 0 {
		payload = json.RawMessage(body)
	}
	status, respBody, err := c.do(ctx, c.paymentClient, "proxy", method, path, payload)
	if err != nil {
		return 0, nil, err
	}
	return status, normalizeJSONBody(respBody), nil
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, operation, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		classified := classifyTransportError(err)
		metrics.BackendErrorsTotal.WithLabelValues(operation, errorKind(classified)).Inc()
		return 0, nil, classified
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		classified := classifyTransportError(err)
		metrics.BackendErrorsTotal.WithLabelValues(operation, errorKind(classified)).Inc()
		return 0, nil, classified
	}
	return resp.StatusCode, respBody, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "other"
	}
}

func failureReasonFromBody(body []byte, status int) string {
	var payload struct {
		Reason string `json:"reason"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Reason != "":
			return payload.Reason
		case payload.Detail != "":
			return payload.Detail
		case payload.Error != "":
			return payload.Error
		}
	}
	if status == http.StatusNotFound {
		return "transaction not found"
	}
	return "verification failed"
}

// PathEscape escapes a path segment for backend URLs.
func PathEscape(segment string) string {
	return url.PathEscape(segment)
}
