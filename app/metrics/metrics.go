package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orvion_gate_decisions_total",
			Help: "Payment gate decisions per protected route",
		},
		[]string{"route", "decision"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orvion_backend_request_duration_seconds",
			Help:    "Duration of calls to the payments backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orvion_backend_errors_total",
			Help: "Transport-level failures calling the payments backend",
		},
		[]string{"operation", "kind"},
	)

	RegisteredRoutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orvion_registered_routes",
			Help: "Number of protected routes in the charge registry",
		},
	)
)

func init() {
	prometheus.MustRegister(
		GateDecisionsTotal,
		BackendRequestDuration,
		BackendErrorsTotal,
		RegisteredRoutes,
	)
}
