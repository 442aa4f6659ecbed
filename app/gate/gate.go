package gate

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orvion-sh/orvion-quick-start/app/backend"
	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/factory"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

var (
	// ErrInvalidProof means the presented proof did not resolve to a
	// verified charge.
	ErrInvalidProof = errors.New("payment proof not verified")
	// ErrRouteMisconfigured means no price could be resolved for the route.
	ErrRouteMisconfigured = errors.New("route has no resolved price")
)

type backendClient interface {
	CreateCharge(ctx context.Context, in *backend.ChargeRequest) (*entity.Charge, error)
	VerifyCharge(ctx context.Context, proof entity.PaymentProof, resourceRef string) (*entity.VerificationResult, error)
}

type Config struct {
	// CheckoutBaseURL is the hosted payment page, used when the backend
	// does not return a checkout URL on the charge.
	CheckoutBaseURL string
	// ReturnURL overrides the return destination for redirect-mode routes.
	ReturnURL string
}

// Gate decides whether a request on a protected route is admitted,
// challenged, or redirected to hosted checkout. It keeps no per-request
// state; every proof is re-verified against the backend, which owns replay
// prevention.
type Gate struct {
	backend backendClient
	cfg     Config
	logger  logrus.FieldLogger
}

func New(backendClient backendClient, cfg Config) *Gate {
	return &Gate{
		backend: backendClient,
		cfg:     cfg,
		logger:  factory.NewModuleLogger("payment-gate"),
	}
}

type Kind int

const (
	KindAdmit Kind = iota + 1
	KindChallenge
	KindRedirect
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindAdmit:
		return "admit"
	case KindChallenge:
		return "challenge"
	case KindRedirect:
		return "redirect"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Decision is the gate's verdict for one request. Exactly one of Payment,
// Challenge, RedirectURL, or Err is meaningful, selected by Kind.
type Decision struct {
	Kind        Kind
	Payment     *entity.PaymentContext
	Challenge   *types.ChallengeResponse
	ChargeID    string
	RedirectURL string
	Err         error
	Reason      string
}

// Evaluate runs the gating decision for a request on a protected route.
// requestPath is the inbound request path, used to derive the redirect
// return destination when none is configured.
func (g *Gate) Evaluate(ctx context.Context, route *entity.Route, proof entity.PaymentProof, requestPath string) Decision {
	if !route.Priced() {
		return Decision{Kind: KindError, Err: ErrRouteMisconfigured}
	}

	if proof.Empty() {
		return g.challenge(ctx, route, requestPath)
	}

	result, err := g.backend.VerifyCharge(ctx, proof, route.ResourceRef())
	if err != nil {
		return Decision{Kind: KindError, Err: err}
	}

	if !result.Verified {
		// A failed hosted-checkout return falls back to a fresh challenge
		// so the user is not stranded; header-mode callers get the reason
		// and decide for themselves.
		if route.Mode == entity.ChallengeModeRedirect {
			g.logger.WithFields(logrus.Fields{
				"route":  route.Key(),
				"reason": result.FailureReason,
			}).Info("Redirect-mode proof rejected, re-challenging")
			return g.challenge(ctx, route, requestPath)
		}
		return Decision{Kind: KindError, Err: ErrInvalidProof, Reason: result.FailureReason}
	}

	payment := &entity.PaymentContext{
		TransactionID: result.TransactionID,
		ChargeID:      proof.ChargeID,
		Amount:        result.Amount,
		Currency:      result.Currency,
		CustomerRef:   result.CustomerRef,
	}
	if payment.Amount == "" {
		payment.Amount = route.Amount
	}
	if payment.Currency == "" {
		payment.Currency = route.Currency
	}
	return Decision{Kind: KindAdmit, Payment: payment}
}

func (g *Gate) challenge(ctx context.Context, route *entity.Route, requestPath string) Decision {
	request := &backend.ChargeRequest{
		Amount:           route.Amount,
		Currency:         route.Currency,
		ResourceRef:      route.ResourceRef(),
		Description:      route.Description,
		ReceiverConfigID: route.ReceiverConfigID,
		RequestID:        uuid.NewString(),
	}

	returnURL := g.returnURL(route, requestPath)
	if route.Mode == entity.ChallengeModeRedirect {
		request.ReturnURL = returnURL
	}

	charge, err := g.backend.CreateCharge(ctx, request)
	if err != nil {
		return Decision{Kind: KindError, Err: err}
	}

	if route.Mode == entity.ChallengeModeRedirect {
		return Decision{
			Kind:        KindRedirect,
			ChargeID:    charge.ID,
			RedirectURL: g.checkoutURL(charge, returnURL),
		}
	}

	amount := charge.Amount
	if amount == "" {
		amount = route.Amount
	}
	currency := charge.Currency
	if currency == "" {
		currency = route.Currency
	}
	return Decision{
		Kind:     KindChallenge,
		ChargeID: charge.ID,
		Challenge: &types.ChallengeResponse{
			Error:            "Payment Required",
			ChargeID:         charge.ID,
			Amount:           amount,
			Currency:         currency,
			X402Requirements: charge.Requirements,
			Description:      route.Description,
		},
	}
}

// returnURL resolves the redirect return destination: route config first,
// then the gate-wide override, then the request path with its /api prefix
// stripped.
func (g *Gate) returnURL(route *entity.Route, requestPath string) string {
	if route.ReturnURL != "" {
		return route.ReturnURL
	}
	if g.cfg.ReturnURL != "" {
		return g.cfg.ReturnURL
	}
	derived := strings.TrimPrefix(requestPath, "/api")
	if derived == "" {
		derived = "/"
	}
	return derived
}

func (g *Gate) checkoutURL(charge *entity.Charge, returnURL string) string {
	if charge.CheckoutURL != "" {
		return charge.CheckoutURL
	}
	return g.cfg.CheckoutBaseURL +
		"?charge_id=" + url.QueryEscape(charge.ID) +
		"&return_url=" + url.QueryEscape(returnURL)
}
