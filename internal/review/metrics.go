package review

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pendingreview_decisions_total",
	Help: "Number of revision decisions produced, by status",
}, []string{"status"})

var pageEvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pendingreview_page_evaluation_duration_seconds",
	Help:    "Duration of evaluating every pending revision of a page",
	Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
})

var refreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pendingreview_refresh_total",
	Help: "Number of pending-pages refreshes, by wiki and result",
}, []string{"wiki", "result"})

var refreshPages = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "pendingreview_pending_pages",
	Help: "Pending pages cached by the latest refresh",
}, []string{"wiki"})

var profileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pendingreview_profile_lookups_total",
	Help: "Editor profile lookups, by where they were answered",
}, []string{"source"})
