// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes prometheus collectors for bankbot sessions and the
// HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/bankbot/internal/session"
)

const namespace = "bankbot"

// Metrics holds every collector. It implements session.Observer.
type Metrics struct {
	registry *prometheus.Registry

	messages         *prometheus.CounterVec
	generationErrors *prometheus.CounterVec
	replyDuration    *prometheus.HistogramVec
	saveDuration     prometheus.Histogram
	saveFailures     prometheus.Counter
	conversations    prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ session.Observer = (*Metrics)(nil)

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages answered, by route (refused, faq, model, error).",
		}, []string{"route"}),

		generationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Failed reply generations, by error kind.",
		}, []string{"kind"}),

		replyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_duration_seconds",
			Help:      "Time to produce a reply, by route.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"route"}),

		saveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_save_duration_seconds",
			Help:      "Time to write the history file.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),

		saveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_save_failures_total",
			Help:      "History writes that returned an error.",
		}),

		conversations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations",
			Help:      "Conversations currently in the history.",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests, by method, route template and status code.",
		}, []string{"method", "route", "code"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request latency, by method and route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// =============================================================================
// SESSION OBSERVER
// =============================================================================

// MessageAnswered counts the outcome and records its latency.
func (m *Metrics) MessageAnswered(out session.Outcome) {
	route := string(out.Route)
	m.messages.WithLabelValues(route).Inc()
	m.replyDuration.WithLabelValues(route).Observe(out.Elapsed.Seconds())
	if out.Route == session.RouteError {
		m.generationErrors.WithLabelValues(out.ErrorKind.String()).Inc()
	}
}

// HistorySaved records a history write.
func (m *Metrics) HistorySaved(elapsed time.Duration, err error) {
	m.saveDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.saveFailures.Inc()
	}
}

// ConversationCountChanged sets the conversation gauge.
func (m *Metrics) ConversationCountChanged(n int) {
	m.conversations.Set(float64(n))
}

// =============================================================================
// HTTP
// =============================================================================

// ObserveHTTP records one API request. route is the mux path template, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
