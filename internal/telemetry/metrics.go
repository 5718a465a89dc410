// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry wires the orchestration loop and MCP coordinator into
// Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_loop_steps_total",
		Help: "Reasoning loop steps, by step type and outcome.",
	}, []string{"step_type", "outcome"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestrator_loop_step_duration_seconds",
		Help:    "Duration of a single reasoning loop step.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step_type"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_tool_calls_total",
		Help: "MCP tool calls dispatched by the coordinator, by server, tool, and outcome.",
	}, []string{"server_name", "tool_name", "outcome"})

	admissionTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_admission_timeouts_total",
		Help: "Requests that gave up waiting for a free orchestration slot.",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_active_sessions",
		Help: "Sessions currently held by the session context manager.",
	})

	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_server_health_checks_total",
		Help: "MCP server health check results, by server and outcome.",
	}, []string{"server_name", "outcome"})

	toolCacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_tool_cache_events_total",
		Help: "Tool discovery cache hits, misses, and invalidations, by server.",
	}, []string{"server_name", "event"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep records the outcome and duration of one reasoning loop step
// ("analyze", "tool_call", or "synthesize").
func RecordStep(stepType string, duration time.Duration, err error) {
	stepsTotal.WithLabelValues(stepType, outcome(err)).Inc()
	stepDuration.WithLabelValues(stepType).Observe(duration.Seconds())
}

// RecordToolCall records the outcome of one MCP tool invocation.
func RecordToolCall(serverName, toolName string, err error) {
	toolCallsTotal.WithLabelValues(serverName, toolName, outcome(err)).Inc()
}

// RecordAdmissionTimeout records a request that never acquired an
// orchestration slot within its admission timeout.
func RecordAdmissionTimeout() {
	admissionTimeoutsTotal.Inc()
}

// SetActiveSessions reports the session manager's current session count.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordHealthCheck records the result of probing one MCP server.
func RecordHealthCheck(serverName string, healthy bool) {
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	healthChecksTotal.WithLabelValues(serverName, result).Inc()
}

// RecordCacheHit and RecordCacheMiss and RecordCacheInvalidation record
// tool discovery cache behavior for a given server.
func RecordCacheHit(serverName string)          { toolCacheEventsTotal.WithLabelValues(serverName, "hit").Inc() }
func RecordCacheMiss(serverName string)         { toolCacheEventsTotal.WithLabelValues(serverName, "miss").Inc() }
func RecordCacheInvalidation(serverName string) { toolCacheEventsTotal.WithLabelValues(serverName, "invalidate").Inc() }

// Handler exposes the process's registered metrics for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
