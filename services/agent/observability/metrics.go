// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the agent.
//
// # Description
//
// Metrics cover the chat-stream lifecycle: request counters, active
// stream gauges, time-to-first-token and stream-duration histograms,
// token counts, per-stage pipeline durations, and errors by type.
// Exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "styleseek"

// Subsystem for agent metrics
const agentSubsystem = "agent"

// AgentMetrics holds all Prometheus metrics for chat-stream operations.
// Initialize once at startup via InitMetrics().
type AgentMetrics struct {
	// RequestsTotal counts chat requests.
	// Labels: endpoint (chat_stream, feedback), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ActiveStreams tracks currently open SSE connections.
	ActiveStreams prometheus.Gauge

	// TimeToFirstTokenSeconds measures latency from request receipt to
	// the first token event.
	TimeToFirstTokenSeconds prometheus.Histogram

	// StreamDurationSeconds measures total request duration.
	// Labels: status (success, error)
	StreamDurationSeconds *prometheus.HistogramVec

	// TokenEventsTotal counts emitted token events.
	TokenEventsTotal prometheus.Counter

	// StageDurationSeconds measures pipeline stage latency.
	// Labels: stage (intent_split, structured_search, ...)
	StageDurationSeconds *prometheus.HistogramVec

	// RelaxationAttemptsTotal counts constraint attempts per outcome.
	// Labels: outcome (original, fallback, exhausted)
	RelaxationAttemptsTotal *prometheus.CounterVec

	// ErrorsTotal counts errors by type.
	// Labels: error_type (transport, generation, persistence)
	ErrorsTotal *prometheus.CounterVec
}

// NewAgentMetrics creates and registers all agent metrics.
func NewAgentMetrics() *AgentMetrics {
	return &AgentMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "requests_total",
			Help:      "Total chat requests by endpoint and status.",
		}, []string{"endpoint", "status"}),

		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "active_streams",
			Help:      "Currently open SSE connections.",
		}),

		TimeToFirstTokenSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "time_to_first_token_seconds",
			Help:      "Latency from request receipt to first token event.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		StreamDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "stream_duration_seconds",
			Help:      "Total chat-stream request duration.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"status"}),

		TokenEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "token_events_total",
			Help:      "Total emitted token events.",
		}),

		StageDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		}, []string{"stage"}),

		RelaxationAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "relaxation_attempts_total",
			Help:      "Constraint-search outcomes.",
		}, []string{"outcome"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: agentSubsystem,
			Name:      "errors_total",
			Help:      "Errors by type.",
		}, []string{"error_type"}),
	}
}

// DefaultMetrics is the process-wide metrics instance. Nil until
// InitMetrics runs; call sites nil-check so tests need no registry.
var DefaultMetrics *AgentMetrics

// InitMetrics initializes DefaultMetrics. Call once from main.
func InitMetrics() {
	if DefaultMetrics == nil {
		DefaultMetrics = NewAgentMetrics()
	}
}
