package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "contentflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "contentflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "contentflow", Name: "workflow_transitions_total", Help: "Committed workflow actions by content kind and action."},
		[]string{"kind", "action"},
	)
	WorkflowFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "contentflow", Name: "workflow_failures_total", Help: "Rejected workflow actions by content kind, action and error kind."},
		[]string{"kind", "action", "error"},
	)
	StoreRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "contentflow", Name: "store_retries_total", Help: "Content store operations retried after a transient failure."},
		[]string{"op"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(WorkflowTransitions)
	reg.MustRegister(WorkflowFailures)
	reg.MustRegister(StoreRetries)
}
