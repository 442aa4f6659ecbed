package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type VerifyChargeRequest struct {
	TransactionID string `json:"transaction_id"`
	CustomerRef   string `json:"customer_ref,omitempty"`
	ResourceRef   string `json:"resource_ref,omitempty"`
}

func NewVerifyChargeRequestFromContext(ctx echo.Context) (*VerifyChargeRequest, error) {
	var body VerifyChargeRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.TransactionID = strings.TrimSpace(body.TransactionID)
	body.CustomerRef = strings.TrimSpace(body.CustomerRef)
	body.ResourceRef = strings.TrimSpace(body.ResourceRef)
	return &body, nil
}

func (r *VerifyChargeRequest) Validate() error {
	if r.TransactionID == "" {
		return errors.New("transaction_id is required")
	}
	return nil
}

type ConfirmPaymentRequest struct {
	ChargeID string `json:"charge_id"`
	TxHash   string `json:"tx_hash"`
}

func NewConfirmPaymentRequestFromContext(ctx echo.Context) (*ConfirmPaymentRequest, error) {
	var body ConfirmPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ChargeID = strings.TrimSpace(body.ChargeID)
	body.TxHash = strings.TrimSpace(body.TxHash)
	return &body, nil
}

func (r *ConfirmPaymentRequest) Validate() error {
	if r.ChargeID == "" {
		return errors.New("charge_id is required")
	}
	if r.TxHash == "" {
		return errors.New("tx_hash is required")
	}
	return nil
}

type CheckoutRequest struct {
	RouteID string
}

func NewCheckoutRequestFromContext(ctx echo.Context) *CheckoutRequest {
	return &CheckoutRequest{
		RouteID: strings.TrimSpace(ctx.QueryParam("route_id")),
	}
}

func (r *CheckoutRequest) Validate() error {
	if r.RouteID == "" {
		return errors.New("route_id query parameter is required")
	}
	return nil
}
