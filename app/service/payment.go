package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orvion-sh/orvion-quick-start/app/backend"
	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/factory"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

type backendAPI interface {
	HealthCheck(ctx context.Context) (*backend.HealthStatus, error)
	CreateCharge(ctx context.Context, in *backend.ChargeRequest) (*entity.Charge, error)
	ConfirmPayment(ctx context.Context, chargeID, txHash string) (json.RawMessage, error)
	ListRoutes(ctx context.Context) ([]*entity.Route, error)
	Proxy(ctx context.Context, method, path string, body []byte) (int, json.RawMessage, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

// PaymentService fronts the payments backend for the demo endpoints: the
// connection probe, the 1:1 charge proxies, and the hosted checkout flow.
type PaymentService struct {
	backend backendAPI
	events  paymentEventRepository
	logger  logrus.FieldLogger
}

// NewPaymentService creates the service. events may be nil when no audit
// store is configured; events are then dropped silently.
func NewPaymentService(backendClient backendAPI, events paymentEventRepository) *PaymentService {
	return &PaymentService{
		backend: backendClient,
		events:  events,
		logger:  factory.NewModuleLogger("payment-service"),
	}
}

// TestConnection probes backend reachability and API key validity. It never
// fails; every outcome is reported in the response body.
func (s *PaymentService) TestConnection(ctx context.Context) *types.TestConnectionResponse {
	result := &types.TestConnectionResponse{DemoServer: "ok"}

	health, err := s.backend.HealthCheck(ctx)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrTimeout):
			result.Backend.Error = "Connection timeout - backend not responding"
		case errors.Is(err, backend.ErrUnreachable):
			result.Backend.Error = "Connection refused - is the payments backend running?"
		default:
			result.Backend.Error = err.Error()
		}
		return result
	}

	result.Backend.Reachable = true
	result.Backend.HealthStatus = &health.HealthStatus
	if health.HealthStatus != http.StatusOK {
		result.Backend.Error = fmt.Sprintf("Health check returned %d", health.HealthStatus)
		return result
	}

	valid := health.APIKeyValid
	result.Backend.APIKeyValid = &valid
	if !valid {
		result.Backend.Error = "401 Unauthorized - check ORVION_API_KEY"
		return result
	}
	result.Backend.OrganizationID = health.OrganizationID
	return result
}

// ProxyCharge forwards a charge-creation body to the backend unchanged and
// returns its status and body 1:1.
func (s *PaymentService) ProxyCharge(ctx context.Context, body []byte) (int, json.RawMessage, error) {
	status, respBody, err := s.backend.Proxy(ctx, http.MethodPost, "/v1/charges", body)
	if err != nil {
		return 0, nil, err
	}
	if status < 300 {
		s.recordChargeEvent(ctx, respBody)
	}
	return status, respBody, nil
}

// ProxyVerify forwards a verification request. Backend verdict statuses
// (404, 409) pass through unchanged.
func (s *PaymentService) ProxyVerify(ctx context.Context, req *types.VerifyChargeRequest) (int, json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, nil, err
	}
	status, respBody, err := s.backend.Proxy(ctx, http.MethodPost, "/v1/charges/verify", body)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusOK {
		s.record(ctx, &entity.PaymentEvent{
			EventType:     entity.EventPaymentConfirmed,
			TransactionID: optionalString(req.TransactionID),
			CreatedAt:     time.Now().UTC(),
		})
	}
	return status, respBody, nil
}

// RegisterMonitor forwards a facilitator monitor registration.
func (s *PaymentService) RegisterMonitor(ctx context.Context, body []byte) (int, json.RawMessage, error) {
	return s.backend.Proxy(ctx, http.MethodPost, "/v1/facilitator/monitor", body)
}

// MonitorStatus checks a payment monitor's state.
func (s *PaymentService) MonitorStatus(ctx context.Context, monitorID string) (int, json.RawMessage, error) {
	return s.backend.Proxy(ctx, http.MethodGet, "/v1/facilitator/monitor/"+backend.PathEscape(monitorID), nil)
}

// ConfirmPayment manually confirms a charge with a transaction hash.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req *types.ConfirmPaymentRequest) (json.RawMessage, error) {
	result, err := s.backend.ConfirmPayment(ctx, req.ChargeID, req.TxHash)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &entity.PaymentEvent{
		EventType: entity.EventPaymentConfirmed,
		ChargeID:  req.ChargeID,
		Detail:    optionalString("manual confirm: " + req.TxHash),
		CreatedAt: time.Now().UTC(),
	})
	return result, nil
}

// ChargeUIState fetches the aggregated polling state for a transaction.
func (s *PaymentService) ChargeUIState(ctx context.Context, transactionID string) (int, json.RawMessage, error) {
	return s.backend.Proxy(ctx, http.MethodGet, "/v1/demo/charges/"+backend.PathEscape(transactionID)+"/ui-state", nil)
}

// ListRoutes fetches the protected routes configured on the backend.
func (s *PaymentService) ListRoutes(ctx context.Context) ([]*entity.Route, error) {
	return s.backend.ListRoutes(ctx)
}

// Checkout creates a charge from a backend protected route and returns the
// hosted checkout URL. The route's configuration supplies amount, currency,
// and receiver; the caller supplies nothing price-related.
func (s *PaymentService) Checkout(ctx context.Context, routeID, requestBase string) (string, error) {
	routes, err := s.backend.ListRoutes(ctx)
	if err != nil {
		return "", err
	}

	var route *entity.Route
	for _, candidate := range routes {
		if candidate.ID == routeID {
			route = candidate
			break
		}
	}
	if route == nil {
		return "", ErrRouteNotFound
	}
	if !route.Active() {
		return "", ErrRouteInactive
	}
	if route.Amount == "" {
		return "", ErrRouteMisconfigured
	}

	currency := route.Currency
	if currency == "" {
		currency = "USDC"
	}

	charge, err := s.backend.CreateCharge(ctx, &backend.ChargeRequest{
		Amount:           route.Amount,
		Currency:         currency,
		CustomerRef:      "demo-user",
		ResourceRef:      route.ResourceRef(),
		ReturnURL:        strings.TrimRight(requestBase, "/") + "/premium",
		ReceiverConfigID: route.ReceiverConfigID,
		RequestID:        uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	if charge.CheckoutURL == "" {
		return "", ErrCheckoutUnavailable
	}

	s.record(ctx, &entity.PaymentEvent{
		EventType: entity.EventChargeCreated,
		RouteKey:  route.Key(),
		ChargeID:  charge.ID,
		Amount:    charge.Amount,
		Currency:  charge.Currency,
		CreatedAt: time.Now().UTC(),
	})
	return charge.CheckoutURL, nil
}

func (s *PaymentService) recordChargeEvent(ctx context.Context, chargeBody json.RawMessage) {
	var payload struct {
		ID       string `json:"id"`
		ChargeID string `json:"charge_id"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if json.Unmarshal(chargeBody, &payload) != nil {
		return
	}
	chargeID := payload.ID
	if chargeID == "" {
		chargeID = payload.ChargeID
	}
	s.record(ctx, &entity.PaymentEvent{
		EventType: entity.EventChargeCreated,
		ChargeID:  chargeID,
		Amount:    payload.Amount,
		Currency:  payload.Currency,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *PaymentService) record(ctx context.Context, event *entity.PaymentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Failed to record payment event")
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
