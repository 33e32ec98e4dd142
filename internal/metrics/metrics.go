package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_gateway_requests_total",
			Help: "Backend requests issued by the gateway",
		},
		[]string{"method", "resource", "outcome"},
	)

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_gateway_request_duration_seconds",
			Help:    "Duration of backend requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "resource"},
	)

	// AbsorbedFailures counts aggregation branches that fell back to an empty list.
	AbsorbedFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_aggregation_absorbed_failures_total",
			Help: "Question or option fetches absorbed into empty lists",
		},
		[]string{"branch"},
	)

	AttemptTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempt_resolutions_total",
			Help: "How start-or-resume resolved the current attempt",
		},
		[]string{"resolution"},
	)

	BadgesAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_badge_assignments_total",
			Help: "Reward assignment outcomes",
		},
		[]string{"outcome"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(GatewayRequests, GatewayDuration, AbsorbedFailures, AttemptTransitions, BadgesAssigned)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
