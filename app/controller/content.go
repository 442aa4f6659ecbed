package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orvion-sh/orvion-quick-start/app/interceptor"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

// PremiumContent backs the x402-gated demo route. The interceptor only lets
// verified requests through, so this handler just reports the payment.
func (c *PaymentController) PremiumContent(ctx echo.Context) error {
	response := &types.ContentResponse{
		Access:  "granted",
		Message: "Welcome to premium content!",
		Mode:    "x402",
		Article: &types.Article{
			Title:   "The Future of Micropayments",
			Content: "Full article content here...",
		},
	}
	response.Payment = paymentInfoFromContext(ctx)
	return ctx.JSON(http.StatusOK, response)
}

// FlowContent backs the hosted-checkout-gated demo route.
func (c *PaymentController) FlowContent(ctx echo.Context) error {
	response := &types.ContentResponse{
		Access:  "granted",
		Message: "Welcome! Payment was completed through hosted checkout.",
		Mode:    "hosted_checkout",
	}
	response.Payment = paymentInfoFromContext(ctx)
	return ctx.JSON(http.StatusOK, response)
}

func paymentInfoFromContext(ctx echo.Context) *types.PaymentInfo {
	payment, ok := interceptor.PaymentFromContext(ctx)
	if !ok {
		return nil
	}
	return &types.PaymentInfo{
		TransactionID: payment.TransactionID,
		ChargeID:      payment.ChargeID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
	}
}
