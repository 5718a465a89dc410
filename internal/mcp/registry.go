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

package mcp

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// trackedServer separates a server's immutable configuration from its
// mutable runtime status, so a health check updating status never races
// with a config reload replacing the definition.
type trackedServer struct {
	def ServerDefinition

	healthy   atomic.Bool
	lastCheck atomic.Int64 // unix nanos

	capMu        sync.RWMutex
	capabilities *ServerCapabilities
}

func newTrackedServer(def ServerDefinition) *trackedServer {
	t := &trackedServer{def: def}
	t.healthy.Store(false)
	return t
}

func (t *trackedServer) markHealthy(caps *ServerCapabilities) {
	t.healthy.Store(true)
	t.lastCheck.Store(time.Now().UnixNano())
	if caps != nil {
		t.capMu.Lock()
		t.capabilities = caps
		t.capMu.Unlock()
	}
}

func (t *trackedServer) markUnhealthy() {
	t.healthy.Store(false)
	t.lastCheck.Store(time.Now().UnixNano())
}

func (t *trackedServer) health() ServerHealth {
	t.capMu.RLock()
	caps := t.capabilities
	t.capMu.RUnlock()

	last := t.lastCheck.Load()
	var lastCheck time.Time
	if last > 0 {
		lastCheck = time.Unix(0, last)
	}

	return ServerHealth{
		Name:          t.def.Name,
		Healthy:       t.healthy.Load(),
		Enabled:       t.def.Enabled,
		LastCheckedAt: lastCheck,
		Capabilities:  caps,
	}
}

// ServerHealth is a point-in-time snapshot of one server's runtime status.
type ServerHealth struct {
	Name          string
	Healthy       bool
	Enabled       bool
	LastCheckedAt time.Time
	Capabilities  *ServerCapabilities
}

// Registry tracks the set of configured MCP servers and their runtime
// health, independent of the request-scoped tool cache the Coordinator
// layers on top.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*trackedServer
	logger  *slog.Logger
}

// NewRegistry builds a Registry from a set of server definitions.
func NewRegistry(defs []ServerDefinition, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		servers: make(map[string]*trackedServer, len(defs)),
		logger:  logger,
	}
	for _, def := range defs {
		r.servers[def.Name] = newTrackedServer(def)
	}
	return r
}

// Get returns a server's definition, or false if it isn't registered.
func (r *Registry) Get(name string) (ServerDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.servers[name]
	if !ok {
		return ServerDefinition{}, false
	}
	return t.def, true
}

// All returns every registered server definition.
func (r *Registry) All() []ServerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServerDefinition, 0, len(r.servers))
	for _, t := range r.servers {
		out = append(out, t.def)
	}
	return out
}

// GetEnabledHealthy returns the definitions of servers that are both
// enabled in configuration and currently marked healthy.
func (r *Registry) GetEnabledHealthy() []ServerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ServerDefinition
	for _, t := range r.servers {
		if t.def.Enabled && t.healthy.Load() {
			out = append(out, t.def)
		}
	}
	return out
}

// MarkHealthy records a successful health probe for a server.
func (r *Registry) MarkHealthy(name string, caps *ServerCapabilities) {
	r.mu.RLock()
	t, ok := r.servers[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	t.markHealthy(caps)
}

// MarkUnhealthy records a failed health probe for a server.
func (r *Registry) MarkUnhealthy(name string, cause error) {
	r.mu.RLock()
	t, ok := r.servers[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	t.markUnhealthy()
	r.logger.Warn("mcp server marked unhealthy",
		slog.String("server_name", name), slog.Any("error", cause))
}

// GetHealth returns a snapshot of a single server's runtime status.
func (r *Registry) GetHealth(name string) (ServerHealth, bool) {
	r.mu.RLock()
	t, ok := r.servers[name]
	r.mu.RUnlock()
	if !ok {
		return ServerHealth{}, false
	}
	return t.health(), true
}

// AllHealth returns a snapshot of every registered server's runtime status.
func (r *Registry) AllHealth() []ServerHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServerHealth, 0, len(r.servers))
	for _, t := range r.servers {
		out = append(out, t.health())
	}
	return out
}
