package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/factory"
	"github.com/orvion-sh/orvion-quick-start/app/metrics"
)

// ErrRouteNotFound means no pricing configuration exists for a route key.
// The interceptor treats this as "not a protected route".
var ErrRouteNotFound = errors.New("route not found")

type routeLister interface {
	ListRoutes(ctx context.Context) ([]*entity.Route, error)
}

// Registry maps protected-route identity to pricing configuration. Reads
// dominate; writes happen during startup sync and lazy first registration.
type Registry struct {
	backend routeLister
	logger  logrus.FieldLogger

	mu     sync.RWMutex
	routes map[string]*entity.Route
}

func New(backend routeLister) *Registry {
	return &Registry{
		backend: backend,
		logger:  factory.NewModuleLogger("charge-registry"),
		routes:  make(map[string]*entity.Route),
	}
}

// Register stores a route's configuration. Re-registering the same key
// replaces the prior entry without error, so concurrent first registration
// of one route is a benign race.
func (r *Registry) Register(route *entity.Route) {
	copied := *route
	r.mu.Lock()
	r.routes[copied.Key()] = &copied
	size := len(r.routes)
	r.mu.Unlock()
	metrics.RegisteredRoutes.Set(float64(size))
}

// Lookup returns the configuration for a route key.
func (r *Registry) Lookup(key string) (*entity.Route, error) {
	r.mu.RLock()
	route, ok := r.routes[key]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRouteNotFound
	}
	copied := *route
	return &copied, nil
}

// SyncAll fetches all routes known to the backend and merges them in.
// Backend-declared pricing wins over locally declared defaults; challenge
// mode and return URL stay local since the backend does not know them.
// Returns the number of routes in the registry after the merge.
func (r *Registry) SyncAll(ctx context.Context) (int, error) {
	remote, err := r.backend.ListRoutes(ctx)
	if err != nil {
		return r.Count(), err
	}

	r.mu.Lock()
	for _, route := range remote {
		merged := *route
		if existing, ok := r.routes[merged.Key()]; ok {
			merged.Mode = existing.Mode
			merged.ReturnURL = existing.ReturnURL
			if merged.Amount == "" {
				merged.Amount = existing.Amount
			}
			if merged.Currency == "" {
				merged.Currency = existing.Currency
			}
		}
		if merged.Mode == "" {
			merged.Mode = entity.ChallengeModeHeader
		}
		r.routes[merged.Key()] = &merged
	}
	size := len(r.routes)
	r.mu.Unlock()

	metrics.RegisteredRoutes.Set(float64(size))
	r.logger.WithField("routes", size).Info("Route sync completed")
	return size, nil
}

// Count returns the number of registered routes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Snapshot returns a copy of all registered routes.
func (r *Registry) Snapshot() []*entity.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*entity.Route, 0, len(r.routes))
	for _, route := range r.routes {
		copied := *route
		result = append(result, &copied)
	}
	return result
}
