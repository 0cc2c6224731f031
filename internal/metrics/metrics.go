package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "credentials"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder counts auth operations and outbound notifications.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	authEvents    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handed to the mail queue by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	reg.MustRegister(r.authEvents, r.notifications, r.rateLimited)

	return r
}

func (r *Recorder) AuthEvent(operation, outcome string) {
	if r == nil {
		return
	}
	r.authEvents.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) Notification(purpose, outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(purpose, outcome).Inc()
}

func (r *Recorder) RateLimited(limiter string) {
	if r == nil {
		return
	}
	r.rateLimited.WithLabelValues(limiter).Inc()
}
