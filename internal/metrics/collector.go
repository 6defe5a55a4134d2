// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector records relay metrics. A nil *Collector is valid and
// records nothing, which keeps tests and optional wiring simple.
type Collector struct {
	registry *prometheus.Registry

	activeSessions  prometheus.Gauge
	sessionsTotal   *prometheus.CounterVec
	framesTotal     *prometheus.CounterVec
	queueOverflows  *prometheus.CounterVec
	codecErrors     *prometheus.CounterVec
	backendStates   *prometheus.CounterVec
	translations    *prometheus.CounterVec
	translationTime prometheus.Histogram
	syntheses       *prometheus.CounterVec
	synthesisTime   prometheus.Histogram
	deliveryFailed  prometheus.Counter
	subscribers     *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector registers every relay metric on a private registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.activeSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Call sessions currently in the registry",
	})

	c.sessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Call sessions torn down, by end reason",
		},
		[]string{"reason"},
	)

	c.framesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Audio frames handled, by track and hop",
		},
		[]string{"track", "hop"},
	)

	c.queueOverflows = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_overflows_total",
			Help:      "Items evicted from bounded relay queues",
		},
		[]string{"queue"},
	)

	c.codecErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_errors_total",
			Help:      "Frames dropped because they could not be decoded",
		},
		[]string{"track"},
	)

	c.backendStates = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_state_transitions_total",
			Help:      "Speech backend capability state transitions",
		},
		[]string{"provider", "speaker", "state"},
	)

	c.translations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Dispatcher turns sent for translation, by outcome",
		},
		[]string{"outcome"},
	)

	c.translationTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "translation_duration_seconds",
		Help:      "Translation latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	c.syntheses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "Speech synthesis requests, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	c.synthesisTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "synthesis_duration_seconds",
		Help:      "Speech synthesis latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	c.deliveryFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriber_delivery_failures_total",
		Help:      "Subscribers dropped after a failed delivery",
	})

	c.subscribers = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Connected subscribers, by kind",
		},
		[]string{"kind"},
	)

	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Set(float64(n))
}

func (c *Collector) RecordSessionEnd(reason string) {
	if c == nil {
		return
	}
	c.sessionsTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordFrame(track, hop string) {
	if c == nil {
		return
	}
	c.framesTotal.WithLabelValues(track, hop).Inc()
}

func (c *Collector) RecordOverflow(queue string) {
	if c == nil {
		return
	}
	c.queueOverflows.WithLabelValues(queue).Inc()
}

// OverflowHook adapts RecordOverflow to queue.WithOverflowHook.
func (c *Collector) OverflowHook(queue string) func() {
	return func() { c.RecordOverflow(queue) }
}

func (c *Collector) RecordCodecError(track string) {
	if c == nil {
		return
	}
	c.codecErrors.WithLabelValues(track).Inc()
}

func (c *Collector) RecordBackendState(provider, speaker, state string) {
	if c == nil {
		return
	}
	c.backendStates.WithLabelValues(provider, speaker, state).Inc()
}

func (c *Collector) RecordTranslation(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.translations.WithLabelValues(outcome).Inc()
	c.translationTime.Observe(duration.Seconds())
}

func (c *Collector) RecordSynthesis(provider, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.syntheses.WithLabelValues(provider, outcome).Inc()
	c.synthesisTime.Observe(duration.Seconds())
}

func (c *Collector) RecordDeliveryFailure() {
	if c == nil {
		return
	}
	c.deliveryFailed.Inc()
}

func (c *Collector) SetSubscribers(kind string, n int) {
	if c == nil {
		return
	}
	c.subscribers.WithLabelValues(kind).Set(float64(n))
}
