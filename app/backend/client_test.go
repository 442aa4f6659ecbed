package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orvion-sh/orvion-quick-start/app/entity"
)

func newTestClient(baseURL string) *Client {
	return New(Config{
		APIKey:         "sk_test_key",
		BaseURL:        baseURL,
		HealthTimeout:  2 * time.Second,
		PaymentTimeout: 2 * time.Second,
	})
}

func TestCreateChargeSendsBearerAndParsesCharge(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/charges" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "ch_123",
			"amount": "0.01",
			"currency": "USDC",
			"checkout_url": "https://pay.example/checkout/ch_123",
			"x402_requirements": {"scheme": "exact", "network": "base"},
			"created_at": "2025-07-01T12:00:00Z"
		}`))
	}))
	defer server.Close()

	charge, err := newTestClient(server.URL).CreateCharge(context.Background(), &ChargeRequest{
		Amount:      "0.01",
		Currency:    "USDC",
		ResourceRef: "/api/premium",
		RequestID:   "req-1",
	})
	if err != nil {
		t.Fatalf("create charge failed: %v", err)
	}
	if gotAuth != "Bearer sk_test_key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotContentType)
	}
	if gotBody["amount"] != "0.01" || gotBody["resource_ref"] != "/api/premium" {
		t.Fatalf("unexpected request payload: %v", gotBody)
	}
	if charge.ID != "ch_123" || charge.CheckoutURL != "https://pay.example/checkout/ch_123" {
		t.Fatalf("unexpected charge: %+v", charge)
	}
	if len(charge.Requirements) == 0 {
		t.Fatal("expected x402 requirements to be captured")
	}
	if charge.CreatedAt.IsZero() {
		t.Fatal("expected created_at to parse")
	}
}

func TestCreateChargeAcceptsChargeIDAlias(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"charge_id": "ch_alias", "requirements": {"scheme": "exact"}}`))
	}))
	defer server.Close()

	charge, err := newTestClient(server.URL).CreateCharge(context.Background(), &ChargeRequest{Amount: "0.01", Currency: "USDC"})
	if err != nil {
		t.Fatalf("create charge failed: %v", err)
	}
	if charge.ID != "ch_alias" {
		t.Fatalf("expected charge_id alias to be used, got %q", charge.ID)
	}
	if string(charge.Requirements) != `{"scheme": "exact"}` {
		t.Fatalf("expected requirements alias, got %s", charge.Requirements)
	}
}

func TestCreateChargeBackendErrorIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "invalid_amount", "detail": "amount must be positive"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateCharge(context.Background(), &ChargeRequest{Amount: "-1", Currency: "USDC"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", apiErr.StatusCode)
	}
	if string(apiErr.JSONBody()) != `{"error": "invalid_amount", "detail": "amount must be positive"}` {
		t.Fatalf("backend body must pass through verbatim, got %s", apiErr.JSONBody())
	}
}

func TestVerifyChargeVerified(t *testing.T) {
	var gotRequest map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/charges/verify" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Fatalf("decode verify request: %v", err)
		}
		_, _ = w.Write([]byte(`{"verified": true, "transaction_id": "0xabc", "amount": "0.01", "currency": "USDC"}`))
	}))
	defer server.Close()

	proof := entity.PaymentProof{TransactionID: "0xabc", ChargeID: "ch_ignored"}
	result, err := newTestClient(server.URL).VerifyCharge(context.Background(), proof, "/api/premium")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Verified {
		t.Fatal("expected verified result")
	}
	if gotRequest["transaction_id"] != "0xabc" {
		t.Fatalf("header proof must win over query charge id, got %q", gotRequest["transaction_id"])
	}
	if gotRequest["resource_ref"] != "/api/premium" {
		t.Fatalf("expected resource ref in verify request, got %q", gotRequest["resource_ref"])
	}
}

func TestVerifyChargeNotFoundIsVerdictNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "charge not found"}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).VerifyCharge(context.Background(), entity.PaymentProof{TransactionID: "0xmissing"}, "")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if result.Verified {
		t.Fatal("expected unverified result")
	}
	if result.FailureReason != "charge not found" {
		t.Fatalf("expected backend detail as reason, got %q", result.FailureReason)
	}
}

func TestVerifyChargeConflictIsVerdictNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).VerifyCharge(context.Background(), entity.PaymentProof{TransactionID: "0xdup"}, "")
	if err != nil {
		t.Fatalf("409 must not be an error: %v", err)
	}
	if result.Verified {
		t.Fatal("expected unverified result")
	}
	if result.FailureReason != "verification failed" {
		t.Fatalf("expected generic reason for unparseable body, got %q", result.FailureReason)
	}
}

func TestVerifyChargeServerErrorIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "internal"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifyCharge(context.Background(), entity.PaymentProof{TransactionID: "0xabc"}, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError for 500, got %v", err)
	}
}

func TestUnreachableBackendIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).HealthCheck(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestTimeoutIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:        server.URL,
		HealthTimeout:  50 * time.Millisecond,
		PaymentTimeout: 50 * time.Millisecond,
	})
	_, err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestHealthCheckInvalidAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status": "ok"}`))
		case "/v1/health":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if !status.Reachable || status.HealthStatus != http.StatusOK {
		t.Fatalf("expected reachable 200, got %+v", status)
	}
	if status.APIKeyValid {
		t.Fatal("expected invalid api key on 401")
	}
}

func TestHealthCheckValidAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status": "ok"}`))
		case "/v1/health":
			_, _ = w.Write([]byte(`{"organization_id": "org_42"}`))
		}
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if !status.APIKeyValid || status.OrganizationID != "org_42" {
		t.Fatalf("expected valid key with organization, got %+v", status)
	}
}

func TestListRoutesDefaultsMethodToGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/protected-routes/routes" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id": "rt_1", "route_pattern": "/api/premium", "amount": "0.01", "currency": "USDC", "status": "active"},
			{"id": "rt_2", "method": "post", "route_pattern": "/api/flow", "amount": "0.0015", "currency": "USDC"}
		]`))
	}))
	defer server.Close()

	routes, err := newTestClient(server.URL).ListRoutes(context.Background())
	if err != nil {
		t.Fatalf("list routes failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected two routes, got %d", len(routes))
	}
	if routes[0].Method != http.MethodGet {
		t.Fatalf("expected missing method to default to GET, got %q", routes[0].Method)
	}
	if routes[1].Method != http.MethodPost {
		t.Fatalf("expected method to normalize to POST, got %q", routes[1].Method)
	}
}

func TestProxyNormalizesNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	status, body, err := newTestClient(server.URL).Proxy(context.Background(), http.MethodGet, "/v1/facilitator/monitor/m1", nil)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if status != http.StatusBadGateway {
		t.Fatalf("expected backend status to pass through, got %d", status)
	}
	if !json.Valid(body) {
		t.Fatalf("expected a JSON-safe body, got %s", body)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal normalized body: %v", err)
	}
	if payload["error"] != "backend_error" || payload["raw_response"] != "upstream exploded" {
		t.Fatalf("unexpected normalized body: %v", payload)
	}
}
