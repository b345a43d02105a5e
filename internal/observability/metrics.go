// Package observability exposes Prometheus instruments and a rolling latency
// window for the generation pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names observed by the generation pipeline.
const (
	StageFirstToken    = "request_to_first_token"
	StageFirstSentence = "request_to_first_sentence"
	StageGeneration    = "generation_total"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	PhaseTransitions   *prometheus.CounterVec
	FirstTokenLatency  prometheus.Histogram
	FirstSentenceDelay prometheus.Histogram
	SentencesEmitted   prometheus.Counter

	Latency *LatencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected podcast sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Generations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations by outcome.",
		}, []string{"outcome"}),
		PhaseTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Dialogue phase transitions by target phase.",
		}, []string{"to"}),
		FirstTokenLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_token_latency_ms",
			Help:      "Latency from request to first model token in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
		FirstSentenceDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_sentence_latency_ms",
			Help:      "Latency from request to first speakable sentence in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}),
		SentencesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_emitted_total",
			Help:      "Sentences handed to speech playback.",
		}),
		Latency: NewLatencyWindow(256),
	}
}

func (m *Metrics) ObserveFirstToken(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstTokenLatency.Observe(float64(d.Milliseconds()))
	m.Latency.Observe(StageFirstToken, d)
}

func (m *Metrics) ObserveFirstSentence(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstSentenceDelay.Observe(float64(d.Milliseconds()))
	m.Latency.Observe(StageFirstSentence, d)
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		m.Latency.Observe(StageGeneration, d)
	}
}

func (m *Metrics) CountSentence() {
	if m == nil {
		return
	}
	m.SentencesEmitted.Inc()
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(name).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
