package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for threadline_send_total.
const (
	outcomeSuccess    = "success"
	outcomeValidation = "validation"
	outcomeTimeout    = "timeout"
	outcomeCanceled   = "canceled"
	outcomeBackend    = "backend_error"
	outcomeMalformed  = "malformed"
	outcomeStore      = "store_error"
	outcomeError      = "error"
)

// Mode labels for threadline_send_duration_seconds.
const (
	modeSingle      = "single"
	modeStream      = "stream"
	modePrecomputed = "precomputed"
)

// Metrics holds the Prometheus collectors updated by a Session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sends           *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	promptTokens    prometheus.Histogram
	persistFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "threadline_send_total",
			Help: "SendMessage calls by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadline_send_duration_seconds",
			Help:    "SendMessage latency by transport mode.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		promptTokens: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "threadline_prompt_tokens",
			Help:    "Token count of assembled prompts.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "threadline_persist_failures_total",
			Help: "Assistant messages that could not be written to the store.",
		}),
	}
}

func (m *Metrics) observeSend(outcome, mode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) observePrompt(tokens int) {
	if m == nil {
		return
	}
	m.promptTokens.Observe(float64(tokens))
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}
