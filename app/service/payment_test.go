package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/orvion-sh/orvion-quick-start/app/backend"
	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

type serviceBackend struct {
	health    *backend.HealthStatus
	healthErr error

	charge     *entity.Charge
	chargeErr  error
	chargeReqs []*backend.ChargeRequest

	confirmBody json.RawMessage
	confirmErr  error

	routes    []*entity.Route
	routesErr error

	proxyStatus int
	proxyBody   json.RawMessage
	proxyErr    error
	proxyCalls  []string
	proxyBodies [][]byte
}

func (b *serviceBackend) HealthCheck(context.Context) (*backend.HealthStatus, error) {
	if b.healthErr != nil {
		return nil, b.healthErr
	}
	copyItem := *b.health
	return &copyItem, nil
}

func (b *serviceBackend) CreateCharge(_ context.Context, in *backend.ChargeRequest) (*entity.Charge, error) {
	copyItem := *in
	b.chargeReqs = append(b.chargeReqs, &copyItem)
	if b.chargeErr != nil {
		return nil, b.chargeErr
	}
	copyCharge := *b.charge
	return &copyCharge, nil
}

func (b *serviceBackend) ConfirmPayment(context.Context, string, string) (json.RawMessage, error) {
	if b.confirmErr != nil {
		return nil, b.confirmErr
	}
	return b.confirmBody, nil
}

func (b *serviceBackend) ListRoutes(context.Context) ([]*entity.Route, error) {
	if b.routesErr != nil {
		return nil, b.routesErr
	}
	return b.routes, nil
}

func (b *serviceBackend) Proxy(_ context.Context, method, path string, body []byte) (int, json.RawMessage, error) {
	b.proxyCalls = append(b.proxyCalls, method+" "+path)
	b.proxyBodies = append(b.proxyBodies, body)
	if b.proxyErr != nil {
		return 0, nil, b.proxyErr
	}
	return b.proxyStatus, b.proxyBody, nil
}

type serviceEvents struct {
	events []*entity.PaymentEvent
}

func (r *serviceEvents) Create(_ context.Context, event *entity.PaymentEvent) error {
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func TestTestConnectionUnreachable(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{healthErr: backend.ErrUnreachable}, nil)

	result := svc.TestConnection(context.Background())
	if result.DemoServer != "ok" {
		t.Fatalf("demo server status must always be ok, got %q", result.DemoServer)
	}
	if result.Backend.Reachable {
		t.Fatal("expected unreachable backend")
	}
	if result.Backend.Error != "Connection refused - is the payments backend running?" {
		t.Fatalf("unexpected error message %q", result.Backend.Error)
	}
}

func TestTestConnectionTimeout(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{healthErr: backend.ErrTimeout}, nil)

	result := svc.TestConnection(context.Background())
	if result.Backend.Error != "Connection timeout - backend not responding" {
		t.Fatalf("unexpected error message %q", result.Backend.Error)
	}
}

func TestTestConnectionInvalidKey(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{health: &backend.HealthStatus{
		Reachable:    true,
		HealthStatus: http.StatusOK,
		APIKeyValid:  false,
	}}, nil)

	result := svc.TestConnection(context.Background())
	if !result.Backend.Reachable {
		t.Fatal("expected reachable backend")
	}
	if result.Backend.APIKeyValid == nil || *result.Backend.APIKeyValid {
		t.Fatal("expected invalid api key")
	}
	if result.Backend.Error != "401 Unauthorized - check ORVION_API_KEY" {
		t.Fatalf("unexpected error message %q", result.Backend.Error)
	}
}

func TestTestConnectionHealthy(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{health: &backend.HealthStatus{
		Reachable:      true,
		HealthStatus:   http.StatusOK,
		APIKeyValid:    true,
		OrganizationID: "org_42",
	}}, nil)

	result := svc.TestConnection(context.Background())
	if result.Backend.Error != "" {
		t.Fatalf("expected no error, got %q", result.Backend.Error)
	}
	if result.Backend.OrganizationID != "org_42" {
		t.Fatalf("expected organization id, got %q", result.Backend.OrganizationID)
	}
}

func TestProxyChargeRecordsEventOnSuccess(t *testing.T) {
	events := &serviceEvents{}
	b := &serviceBackend{
		proxyStatus: http.StatusCreated,
		proxyBody:   json.RawMessage(`{"id": "ch_1", "amount": "0.01", "currency": "USDC"}`),
	}
	svc := NewPaymentService(b, events)

	status, body, err := svc.ProxyCharge(context.Background(), []byte(`{"amount": "0.01"}`))
	if err != nil {
		t.Fatalf("proxy charge failed: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if string(body) != `{"id": "ch_1", "amount": "0.01", "currency": "USDC"}` {
		t.Fatalf("body must pass through, got %s", body)
	}
	if b.proxyCalls[0] != "POST /v1/charges" {
		t.Fatalf("unexpected proxy call %q", b.proxyCalls[0])
	}
	if len(events.events) != 1 || events.events[0].ChargeID != "ch_1" {
		t.Fatalf("expected charge event, got %+v", events.events)
	}
}

func TestProxyChargeNoEventOnBackendError(t *testing.T) {
	events := &serviceEvents{}
	b := &serviceBackend{
		proxyStatus: http.StatusUnprocessableEntity,
		proxyBody:   json.RawMessage(`{"error": "invalid_amount"}`),
	}
	svc := NewPaymentService(b, events)

	status, _, err := svc.ProxyCharge(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("proxy charge failed: %v", err)
	}
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("backend status must pass through, got %d", status)
	}
	if len(events.events) != 0 {
		t.Fatalf("no event expected for failed charge, got %d", len(events.events))
	}
}

func TestProxyVerifyPassesVerdictStatusesThrough(t *testing.T) {
	b := &serviceBackend{
		proxyStatus: http.StatusNotFound,
		proxyBody:   json.RawMessage(`{"detail": "charge not found"}`),
	}
	svc := NewPaymentService(b, &serviceEvents{})

	status, body, err := svc.ProxyVerify(context.Background(), &types.VerifyChargeRequest{TransactionID: "0xmissing"})
	if err != nil {
		t.Fatalf("proxy verify failed: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("404 verdict must pass through, got %d", status)
	}
	if string(body) != `{"detail": "charge not found"}` {
		t.Fatalf("body must pass through, got %s", body)
	}

	var sent map[string]string
	if err := json.Unmarshal(b.proxyBodies[0], &sent); err != nil {
		t.Fatalf("unmarshal forwarded body: %v", err)
	}
	if sent["transaction_id"] != "0xmissing" {
		t.Fatalf("unexpected forwarded body: %v", sent)
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	events := &serviceEvents{}
	b := &serviceBackend{
		routes: []*entity.Route{{
			ID:       "rt_1",
			Method:   "GET",
			Pattern:  "/api/premium",
			Amount:   "0.01",
			Currency: "USDC",
			Status:   entity.RouteStatusActive,
		}},
		charge: &entity.Charge{
			ID:          "ch_1",
			Amount:      "0.01",
			Currency:    "USDC",
			CheckoutURL: "https://pay.example/checkout/ch_1",
		},
	}
	svc := NewPaymentService(b, events)

	url, err := svc.Checkout(context.Background(), "rt_1", "https://demo.example/")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if url != "https://pay.example/checkout/ch_1" {
		t.Fatalf("unexpected checkout url %q", url)
	}

	created := b.chargeReqs[0]
	if created.Amount != "0.01" || created.Currency != "USDC" {
		t.Fatalf("charge must use route pricing, got %s %s", created.Amount, created.Currency)
	}
	if created.ReturnURL != "https://demo.example/premium" {
		t.Fatalf("unexpected return url %q", created.ReturnURL)
	}
	if created.RequestID == "" {
		t.Fatal("expected request id on checkout charge")
	}
	if len(events.events) != 1 || events.events[0].EventType != entity.EventChargeCreated {
		t.Fatalf("expected charge event, got %+v", events.events)
	}
}

func TestCheckoutUnknownRoute(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{routes: []*entity.Route{}}, nil)

	_, err := svc.Checkout(context.Background(), "rt_missing", "https://demo.example")
	if !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestCheckoutInactiveRoute(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{routes: []*entity.Route{
		{ID: "rt_1", Amount: "0.01", Currency: "USDC", Status: "disabled"},
	}}, nil)

	_, err := svc.Checkout(context.Background(), "rt_1", "https://demo.example")
	if !errors.Is(err, ErrRouteInactive) {
		t.Fatalf("expected ErrRouteInactive, got %v", err)
	}
}

func TestCheckoutUnpricedRoute(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{routes: []*entity.Route{
		{ID: "rt_1", Status: entity.RouteStatusActive},
	}}, nil)

	_, err := svc.Checkout(context.Background(), "rt_1", "https://demo.example")
	if !errors.Is(err, ErrRouteMisconfigured) {
		t.Fatalf("expected ErrRouteMisconfigured, got %v", err)
	}
}

func TestCheckoutWithoutCheckoutURL(t *testing.T) {
	svc := NewPaymentService(&serviceBackend{
		routes: []*entity.Route{{ID: "rt_1", Amount: "0.01", Currency: "USDC"}},
		charge: &entity.Charge{ID: "ch_1"},
	}, nil)

	_, err := svc.Checkout(context.Background(), "rt_1", "https://demo.example")
	if !errors.Is(err, ErrCheckoutUnavailable) {
		t.Fatalf("expected ErrCheckoutUnavailable, got %v", err)
	}
}

func TestConfirmPaymentRecordsEvent(t *testing.T) {
	events := &serviceEvents{}
	svc := NewPaymentService(&serviceBackend{
		confirmBody: json.RawMessage(`{"status": "confirmed"}`),
	}, events)

	body, err := svc.ConfirmPayment(context.Background(), &types.ConfirmPaymentRequest{
		ChargeID: "ch_1",
		TxHash:   "0xhash",
	})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if string(body) != `{"status": "confirmed"}` {
		t.Fatalf("unexpected body %s", body)
	}
	if len(events.events) != 1 || events.events[0].EventType != entity.EventPaymentConfirmed {
		t.Fatalf("expected confirmed event, got %+v", events.events)
	}
}
