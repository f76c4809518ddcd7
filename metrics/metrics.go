// Package metrics holds the Prometheus instrumentation for fetches and pipeline runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "centavo"

// Fetch attempt outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeRetry     = "retry"
	OutcomePermanent = "permanent"
	OutcomeExhausted = "exhausted"
)

// Row gap reasons
const (
	GapCurrency = "currency"
	GapRate     = "rate"
)

// Run statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Metrics struct {
	FetchAttempts *prometheus.CounterVec
	FetchRetries  *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	RowGaps       *prometheus.CounterVec
	GrandTotal    *prometheus.GaugeVec
}

// New creates the metrics and registers them with the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "HTTP fetch attempts, by host and outcome",
			},
			[]string{"host", "outcome"},
		),
		FetchRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "HTTP fetch retries scheduled after a transient failure",
			},
			[]string{"host"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs, by status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Pipeline run duration",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),
		RowGaps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "row_gaps_total",
				Help:      "Rows left without a derived value, by reason",
			},
			[]string{"reason"},
		),
		GrandTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "grand_total",
				Help:      "Grand total of the latest successful run, in the target currency",
			},
			[]string{"target"},
		),
	}
}

func (m *Metrics) ObserveFetchAttempt(host, outcome string) {
	if m == nil {
		return
	}

	m.FetchAttempts.WithLabelValues(host, outcome).Inc()
}

func (m *Metrics) ObserveFetchRetry(host string) {
	if m == nil {
		return
	}

	m.FetchRetries.WithLabelValues(host).Inc()
}

func (m *Metrics) ObserveRowGap(reason string) {
	if m == nil {
		return
	}

	m.RowGaps.WithLabelValues(reason).Inc()
}

// ObserveRun records the outcome of a pipeline run
func (m *Metrics) ObserveRun(took time.Duration, err error) {
	if m == nil {
		return
	}

	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}

	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(took.Seconds())
}

func (m *Metrics) SetGrandTotal(target string, total float64) {
	if m == nil {
		return
	}

	m.GrandTotal.WithLabelValues(target).Set(total)
}
