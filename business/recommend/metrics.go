package recommend

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecommendationsServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Count of served recommendation responses by variant and cache outcome.",
		},
		[]string{"variant", "cached"},
	)

	FeedbackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_feedback_events_total",
			Help: "Count of feedback events by event_type.",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(RecommendationsServedTotal, FeedbackEventsTotal)
}
