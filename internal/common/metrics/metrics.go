// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_queries_total",
			Help: "Total number of assistant queries handled",
		},
		[]string{"outcome"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "assistant_query_duration_seconds",
			Help: "Duration of end-to-end query handling in seconds",
		},
	)

	IntentClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_intent_classified_total",
			Help: "Total number of intent classifications by strategy",
		},
		[]string{"strategy", "defaulted"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_upstream_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"service", "status"},
	)

	PartialFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_partial_failures_total",
			Help: "Per-entity fetch failures absorbed into partial results",
		},
		[]string{"scope"},
	)
)
