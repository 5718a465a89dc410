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

// Package api is the thin HTTP binding over the orchestration core. It
// translates JSON requests into internal/orchestration calls and back; it
// holds no business logic of its own.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/log"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/orchestration"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/session"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/telemetry"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/tracing"
)

// RouterConfig names the router's own identity, reported by the status
// endpoint.
type RouterConfig struct {
	Version string
}

// Router wires the orchestration loop, MCP coordinator, and session manager
// behind spec.md's REST endpoint table.
type Router struct {
	mux    *http.ServeMux
	config RouterConfig

	loop        *orchestration.Loop
	coordinator *mcp.Coordinator
	sessions    *session.Manager

	logger *slog.Logger
}

// NewRouter builds a Router and registers every endpoint.
func NewRouter(cfg RouterConfig, loop *orchestration.Loop, coordinator *mcp.Coordinator, sessions *session.Manager, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:         http.NewServeMux(),
		config:      cfg,
		loop:        loop,
		coordinator: coordinator,
		sessions:    sessions,
		logger:      logger,
	}

	r.mux.HandleFunc("POST /api/v1/orchestration/process", r.handleProcess)
	r.mux.HandleFunc("GET /api/v1/orchestration/tools", r.handleListTools)
	r.mux.HandleFunc("GET /api/v1/orchestration/tools/{server}", r.handleListServerTools)
	r.mux.HandleFunc("POST /api/v1/orchestration/configure", r.handleConfigure)
	r.mux.HandleFunc("GET /api/v1/orchestration/health", r.handleHealth)
	r.mux.HandleFunc("GET /api/v1/orchestration/status", r.handleStatus)
	r.mux.HandleFunc("DELETE /api/v1/orchestration/session/{id}", r.handleDeleteSession)
	r.mux.HandleFunc("GET /api/v1/orchestration/sessions", r.handleListSessions)
	r.mux.HandleFunc("GET /api/v1/orchestration/session/{id}", r.handleGetSession)
	r.mux.HandleFunc("POST /api/v1/orchestration/servers/{name}/test", r.handleTestServer)
	r.mux.HandleFunc("POST /api/v1/orchestration/cache/invalidate", r.handleInvalidateCache)

	r.mux.Handle("GET /metrics", telemetry.Handler())

	return r
}

// ServeHTTP implements http.Handler, wrapping every request in correlation
// ID propagation and request logging.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = r.mux

	inner := handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		correlationID := tracing.FromContextOrEmpty(req.Context())
		logger := log.WithCorrelationID(r.logger, string(correlationID))
		defer func() {
			logger.Info("request completed",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		}()
		inner.ServeHTTP(w, req)
	})

	handler = tracing.CorrelationMiddleware(handler)
	handler.ServeHTTP(w, req)
}

// Mux exposes the underlying ServeMux for tests and additional registration.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}
