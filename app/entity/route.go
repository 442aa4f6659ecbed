package entity

// ChallengeMode selects how a protected route challenges unpaid requests.
type ChallengeMode string

const (
	// ChallengeModeHeader returns HTTP 402 with machine-readable payment
	// requirements (x402 flow).
	ChallengeModeHeader ChallengeMode = "header"
	// ChallengeModeRedirect sends the caller to the hosted checkout page.
	ChallengeModeRedirect ChallengeMode = "redirect"
)

const RouteStatusActive = "active"

// Route is the pricing configuration of a payment-protected route.
// Immutable after registration; re-registering the same key replaces it.
type Route struct {
	ID      string
	Method  string
	Pattern string

	Amount   string
	Currency string

	Name        string
	Description string

	Mode      ChallengeMode
	ReturnURL string

	ReceiverConfigID string
	Status           string
}

// Key identifies a route by method and path pattern.
func (r *Route) Key() string {
	return r.Method + " " + r.Pattern
}

// ResourceRef is the resource identity reported to the payments backend.
func (r *Route) ResourceRef() string {
	return r.Pattern
}

// Priced reports whether the route's price is fully resolved. A request is
// never admitted through a route without a resolved price.
func (r *Route) Priced() bool {
	return r.Amount != "" && r.Currency != ""
}

// Active reports whether the route accepts payments. An unset status is
// treated as active, matching backend defaults.
func (r *Route) Active() bool {
	return r.Status == "" || r.Status == RouteStatusActive
}
