package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "appdedupe"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	Confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "confirmations_total", Help: "Confirm requests by outcome (confirmed, already_confirmed)."},
		[]string{"outcome"},
	)
	XPAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "xp_awarded_total", Help: "Experience points awarded across all users."},
	)
	IngestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ingest_runs_total", Help: "CSV ingestion runs by result."},
		[]string{"result"},
	)
	IngestRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ingest_rows_total", Help: "CSV rows seen by ingestion, by outcome (ingested, skipped)."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Confirmations)
	reg.MustRegister(XPAwarded)
	reg.MustRegister(IngestRuns)
	reg.MustRegister(IngestRows)
}
