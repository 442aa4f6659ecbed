package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/orvion-sh/orvion-quick-start/app/backend"
	"github.com/orvion-sh/orvion-quick-start/app/factory"
	"github.com/orvion-sh/orvion-quick-start/app/mapper"
	"github.com/orvion-sh/orvion-quick-start/app/service"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	publicConfig   types.ConfigResponse
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService, publicConfig types.ConfigResponse) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		publicConfig:   publicConfig,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok", Service: "demo-playground"})
}

// GetConfig returns public configuration for the demo frontend. No secrets.
func (c *PaymentController) GetConfig(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &c.publicConfig)
}

// TestConnection reports backend reachability and API key validity. Always
// answers 200; failures are part of the body.
func (c *PaymentController) TestConnection(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.paymentService.TestConnection(ctx.Request().Context()))
}

// CreateCharge proxies a charge request to the backend 1:1, so validation
// messages reach the caller unchanged.
func (c *PaymentController) CreateCharge(ctx echo.Context) error {
	body, err := readJSONBody(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
	}

	status, respBody, err := c.paymentService.ProxyCharge(ctx.Request().Context(), body)
	if err != nil {
		return c.writeBackendError(ctx, err)
	}
	return ctx.JSONBlob(status, respBody)
}

// VerifyCharge lets sellers verify a payment before releasing content.
// Backend verdicts (200/404/409) pass through unchanged.
func (c *PaymentController) VerifyCharge(ctx echo.Context) error {
	req, err := types.NewVerifyChargeRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
	}

	status, respBody, err := c.paymentService.ProxyVerify(ctx.Request().Context(), req)
	if err != nil {
		return c.writeBackendError(ctx, err)
	}
	return ctx.JSONBlob(status, respBody)
}

func (c *PaymentController) RegisterMonitor(ctx echo.Context) error {
	body, err := readJSONBody(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
	}

	status, respBody, err := c.paymentService.RegisterMonitor(ctx.Request().Context(), body)
	if err != nil {
		return c.writeBackendError(ctx, err)
	}
	return ctx.JSONBlob(status, respBody)
}

func (c *PaymentController) MonitorStatus(ctx echo.Context) error {
	monitorID := ctx.Param("id")
	if monitorID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_request", "monitor id is required")
	}

	status, respBody, err := c.paymentService.MonitorStatus(ctx.Request().Context(), monitorID)
	if err != nil {
		return c.writeBackendError(ctx, err)
	}
	return ctx.JSONBlob(status, respBody)
}

func (c *PaymentController) ConfirmPayment(ctx echo.Context) error {
	req, err := types.NewConfirmPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
	}

	result, err := c.paymentService.ConfirmPayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeBackendError(ctx, err)
	}
	return ctx.JSONBlob(http.StatusOK, result)
}

// ChargeUIState serves the polling state for the demo UI. Poll while the
// status is pending; stop on succeeded or failed.
func (c *PaymentController) ChargeUIState(ctx echo.Context) error {
	transactionID := ctx.Param("id")
	if transactionID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_request", "transaction id is required")
	}

	status, respBody, err := c.paymentService.ChargeUIState(ctx.Request().Context(), transactionID)
	if err != nil {
		return c.writeBackendError(ctx, err)
	}
	return ctx.JSONBlob(status, respBody)
}

// ListRoutes returns the backend's protected routes for the demo dropdown.
// Failures degrade to an empty list with the error attached.
func (c *PaymentController) ListRoutes(ctx echo.Context) error {
	routes, err := c.paymentService.ListRoutes(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusOK, &types.RoutesResponse{
			Routes: []*types.RouteSummary{},
			Error:  err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, &types.RoutesResponse{Routes: mapper.RoutesToSummaries(routes)})
}

// Checkout creates a charge from a protected route and redirects to its
// hosted checkout page.
func (c *PaymentController) Checkout(ctx echo.Context) error {
	req := types.NewCheckoutRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid_request", err.Error())
	}

	requestBase := ctx.Scheme() + "://" + ctx.Request().Host
	checkoutURL, err := c.paymentService.Checkout(ctx.Request().Context(), req.RouteID, requestBase)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRouteNotFound):
			return c.writeError(ctx, http.StatusNotFound, "route_not_found", err.Error())
		case errors.Is(err, service.ErrRouteInactive), errors.Is(err, service.ErrRouteMisconfigured):
			return c.writeError(ctx, http.StatusBadRequest, "invalid_route", err.Error())
		case errors.Is(err, service.ErrCheckoutUnavailable):
			return c.writeError(ctx, http.StatusInternalServerError, "checkout_unavailable", err.Error())
		default:
			return c.writeBackendError(ctx, err)
		}
	}
	return ctx.Redirect(http.StatusFound, checkoutURL)
}

func (c *PaymentController) writeBackendError(ctx echo.Context, err error) error {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrTimeout):
		return c.writeError(ctx, http.StatusGatewayTimeout, "backend_timeout", "payments backend request timed out")
	case errors.Is(err, backend.ErrUnreachable):
		return c.writeError(ctx, http.StatusBadGateway, "backend_unreachable", "connection to payments backend failed")
	case errors.As(err, &apiErr):
		return ctx.JSONBlob(apiErr.StatusCode, apiErr.JSONBody())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Backend call failed")
		return c.writeError(ctx, http.StatusBadGateway, "proxy_error", "")
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message, detail string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message, Detail: detail})
}

func readJSONBody(ctx echo.Context) ([]byte, error) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 || !json.Valid(body) {
		return nil, errors.New("request body must be valid JSON")
	}
	return body, nil
}
