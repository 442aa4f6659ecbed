package interceptor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/orvion-sh/orvion-quick-start/app/backend"
	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/factory"
	"github.com/orvion-sh/orvion-quick-start/app/gate"
	"github.com/orvion-sh/orvion-quick-start/app/metrics"
	"github.com/orvion-sh/orvion-quick-start/app/registry"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

// HeaderTransactionID carries header-mode payment proof.
const HeaderTransactionID = "X-Transaction-Id"

const paymentContextKey = "orvion.payment"

type eventRecorder interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

// Interceptor wires the payment gate into echo's request pipeline. Protected
// handlers run at most once per request, and only after an Admit decision.
type Interceptor struct {
	registry *registry.Registry
	gate     *gate.Gate
	events   eventRecorder
	logger   logrus.FieldLogger
}

// New creates an interceptor. events may be nil when no audit store is
// configured.
func New(reg *registry.Registry, paymentGate *gate.Gate, events eventRecorder) *Interceptor {
	return &Interceptor{
		registry: reg,
		gate:     paymentGate,
		events:   events,
		logger:   factory.NewModuleLogger("route-interceptor"),
	}
}

// SyncRoutes pulls backend route configuration into the registry. Failures
// degrade to lazy per-route registration instead of blocking startup.
func (i *Interceptor) SyncRoutes(ctx context.Context) {
	count, err := i.registry.SyncAll(ctx)
	if err != nil {
		i.logger.WithError(err).Warn("Route sync failed, falling back to lazy registration")
		return
	}
	i.logger.WithField("routes", count).Info("Protected routes registered")
}

// Require returns per-route middleware that gates requests behind payment.
// The route is registered at declaration time; registration is idempotent,
// so a concurrent first hit re-registering it is harmless.
func (i *Interceptor) Require(route entity.Route) echo.MiddlewareFunc {
	i.registry.Register(&route)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			resolved, err := i.registry.Lookup(route.Key())
			if err != nil {
				if !errors.Is(err, registry.ErrRouteNotFound) {
					return ctx.JSON(http.StatusInternalServerError, &types.ErrorResponse{Error: "internal server error"})
				}
				// Lazy registration for routes discovered on first hit.
				i.registry.Register(&route)
				resolved = &route
			}

			proof := ExtractProof(ctx.Request())
			decision := i.gate.Evaluate(ctx.Request().Context(), resolved, proof, ctx.Request().URL.Path)
			metrics.GateDecisionsTotal.WithLabelValues(resolved.Key(), decision.Kind.String()).Inc()

			switch decision.Kind {
			case gate.KindAdmit:
				ctx.Set(paymentContextKey, decision.Payment)
				i.record(ctx, resolved, &entity.PaymentEvent{
					EventType:     entity.EventPaymentAdmitted,
					ChargeID:      decision.Payment.ChargeID,
					TransactionID: optionalString(decision.Payment.TransactionID),
					Amount:        decision.Payment.Amount,
					Currency:      decision.Payment.Currency,
				})
				return next(ctx)

			case gate.KindChallenge:
				i.record(ctx, resolved, &entity.PaymentEvent{
					EventType: entity.EventChargeCreated,
					ChargeID:  decision.ChargeID,
					Amount:    resolved.Amount,
					Currency:  resolved.Currency,
				})
				return ctx.JSON(http.StatusPaymentRequired, decision.Challenge)

			case gate.KindRedirect:
				i.record(ctx, resolved, &entity.PaymentEvent{
					EventType: entity.EventChargeCreated,
					ChargeID:  decision.ChargeID,
					Amount:    resolved.Amount,
					Currency:  resolved.Currency,
				})
				return ctx.Redirect(http.StatusFound, decision.RedirectURL)

			default:
				return i.writeDecisionError(ctx, resolved, decision)
			}
		}
	}
}

func (i *Interceptor) writeDecisionError(ctx echo.Context, route *entity.Route, decision gate.Decision) error {
	logger := factory.LoggerWithContext(i.logger, ctx).WithField("route", route.Key())

	switch {
	case errors.Is(decision.Err, gate.ErrInvalidProof):
		i.record(ctx, route, &entity.PaymentEvent{
			EventType: entity.EventPaymentRejected,
			Amount:    route.Amount,
			Currency:  route.Currency,
			Detail:    optionalString(decision.Reason),
		})
		return ctx.JSON(http.StatusPaymentRequired, &types.ErrorResponse{
			Error:  "payment_not_verified",
			Detail: decision.Reason,
		})
	case errors.Is(decision.Err, gate.ErrRouteMisconfigured):
		logger.Error("Protected route has no resolved price")
		return ctx.JSON(http.StatusInternalServerError, &types.ErrorResponse{
			Error:  "route_misconfigured",
			Detail: "no price resolved for this route",
		})
	case errors.Is(decision.Err, backend.ErrTimeout):
		logger.WithError(decision.Err).Error("Payments backend timed out")
		return ctx.JSON(http.StatusGatewayTimeout, &types.ErrorResponse{
			Error:  "backend_timeout",
			Detail: "payments backend request timed out",
		})
	case errors.Is(decision.Err, backend.ErrUnreachable):
		logger.WithError(decision.Err).Error("Payments backend unreachable")
		return ctx.JSON(http.StatusBadGateway, &types.ErrorResponse{
			Error:  "backend_unreachable",
			Detail: "connection to payments backend failed",
		})
	}

	var apiErr *backend.APIError
	if errors.As(decision.Err, &apiErr) {
		// Preserve the backend's error semantics 1:1.
		return ctx.JSONBlob(apiErr.StatusCode, apiErr.JSONBody())
	}

	logger.WithError(decision.Err).Error("Payment gate evaluation failed")
	return ctx.JSON(http.StatusBadGateway, &types.ErrorResponse{Error: "proxy_error"})
}

func (i *Interceptor) record(ctx echo.Context, route *entity.Route, event *entity.PaymentEvent) {
	event.RouteKey = route.Key()
	event.CreatedAt = time.Now().UTC()
	if i.events == nil {
		i.logger.WithFields(logrus.Fields{
			"route":  event.RouteKey,
			"event":  event.EventType,
			"charge": event.ChargeID,
		}).Debug("Payment event")
		return
	}
	if err := i.events.Create(ctx.Request().Context(), event); err != nil {
		i.logger.WithError(err).Warn("Failed to record payment event")
	}
}

// ExtractProof pulls payment proof from a request. The explicit proof header
// wins over the redirect-return query parameters when both are present.
func ExtractProof(r *http.Request) entity.PaymentProof {
	return entity.PaymentProof{
		TransactionID: strings.TrimSpace(r.Header.Get(HeaderTransactionID)),
		ChargeID:      strings.TrimSpace(r.URL.Query().Get("charge_id")),
		ProofToken:    strings.TrimSpace(r.URL.Query().Get("proof")),
	}
}

// PaymentFromContext returns the payment context attached on Admit.
func PaymentFromContext(ctx echo.Context) (*entity.PaymentContext, bool) {
	payment, ok := ctx.Get(paymentContextKey).(*entity.PaymentContext)
	return payment, ok && payment != nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
