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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/telemetry"
	orcherrors "github.com/ajay-kumar-das/mcp-orchestration/pkg/errors"
)

// DefaultCacheTTL is how long a server's discovered tool catalog is
// trusted before the coordinator re-lists it.
const DefaultCacheTTL = 5 * time.Minute

// AvailableTool pairs a tool definition with the server that hosts it, the
// shape the reasoning loop and prompt builder consume.
type AvailableTool struct {
	ServerName string
	Tool       ToolDefinition
}

// ExecuteResult is the outcome of dispatching one tool call.
type ExecuteResult struct {
	ServerName string
	ToolName   string
	Output     string
	IsError    bool
	Err        error
	Duration   time.Duration
}

type toolCacheEntry struct {
	mu        sync.Mutex
	tools     []ToolDefinition
	fetchedAt time.Time
}

// Coordinator discovers tools across registered servers, caches the
// results per server, and dispatches tool calls, isolating failures to the
// server that caused them.
type Coordinator struct {
	registry *Registry
	newClient func(ServerDefinition) *Client
	ttl       time.Duration
	logger    *slog.Logger

	cacheMu sync.RWMutex
	cache   map[string]*toolCacheEntry
}

// NewCoordinator builds a Coordinator over a Registry. clientTTL of zero
// selects DefaultCacheTTL.
func NewCoordinator(registry *Registry, logger *slog.Logger, ttl time.Duration) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Coordinator{
		registry:  registry,
		newClient: func(def ServerDefinition) *Client { return NewClient(def, logger) },
		ttl:       ttl,
		logger:    logger,
		cache:     make(map[string]*toolCacheEntry),
	}
}

func (c *Coordinator) entry(serverName string) *toolCacheEntry {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	e, ok := c.cache[serverName]
	if !ok {
		e = &toolCacheEntry{}
		c.cache[serverName] = e
	}
	return e
}

// GetAvailableTools returns the union of tools across every enabled,
// healthy server, discovering and caching per-server catalogs as needed.
// Discovery fans out one goroutine per server; a failure on one server
// never blocks the others' results.
func (c *Coordinator) GetAvailableTools(ctx context.Context) ([]AvailableTool, error) {
	servers := c.registry.GetEnabledHealthy()
	if len(servers) == 0 {
		return nil, nil
	}

	type result struct {
		server string
		tools  []ToolDefinition
		err    error
	}
	resultsCh := make(chan result, len(servers))

	var wg sync.WaitGroup
	for _, def := range servers {
		wg.Add(1)
		go func(def ServerDefinition) {
			defer wg.Done()
			tools, err := c.toolsFor(ctx, def)
			resultsCh <- result{server: def.Name, tools: tools, err: err}
		}(def)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var out []AvailableTool
	for res := range resultsCh {
		if res.err != nil {
			c.logger.Warn("tool discovery failed for server",
				slog.String("server_name", res.server), slog.Any("error", res.err))
			continue
		}
		for _, t := range res.tools {
			out = append(out, AvailableTool{ServerName: res.server, Tool: t})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ServerName != out[j].ServerName {
			return out[i].ServerName < out[j].ServerName
		}
		return out[i].Tool.Name < out[j].Tool.Name
	})
	return out, nil
}

// toolsFor returns a server's tool catalog, using the cache when it's still
// backed by a recent health check, and refreshing it otherwise. A cache
// entry is trusted so long as the server's lastHealthCheckAt is within the
// TTL, whichever came later: an entry just fetched is fresh on its own, and
// one fetched a while ago is renewed for free by a subsequent periodic
// health check that finds the server still healthy. If the server's
// capabilities haven't been established yet (e.g. it was marked healthy by
// a bare /health probe rather than a full handshake), it is initialized
// first. Health-check failures during a forced refresh mark the server
// unhealthy; a transient protocol error from listing tools leaves the
// server's health untouched.
func (c *Coordinator) toolsFor(ctx context.Context, def ServerDefinition) ([]ToolDefinition, error) {
	e := c.entry(def.Name)
	e.mu.Lock()
	defer e.mu.Unlock()

	lastChecked := e.fetchedAt
	if health, ok := c.registry.GetHealth(def.Name); ok && health.LastCheckedAt.After(lastChecked) {
		lastChecked = health.LastCheckedAt
	}
	if time.Since(lastChecked) < c.ttl && e.tools != nil {
		telemetry.RecordCacheHit(def.Name)
		return e.tools, nil
	}
	telemetry.RecordCacheMiss(def.Name)

	client := c.newClient(def)

	if health, ok := c.registry.GetHealth(def.Name); !ok || health.Capabilities == nil {
		caps, err := client.Initialize(ctx)
		if err != nil {
			c.registry.MarkUnhealthy(def.Name, err)
			return nil, err
		}
		c.registry.MarkHealthy(def.Name, caps)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		markUnhealthyOnTransportError(c.registry, def.Name, err)
		return nil, err
	}

	e.tools = tools
	e.fetchedAt = time.Now()
	return tools, nil
}

// markUnhealthyOnTransportError downgrades a server's health only when err
// is a TransportError (connect refused, read timeout, HTTP non-2xx).
// spec.md §7 keeps a server healthy through a ProtocolError (JSON-RPC
// error, malformed result) — only a transport-level failure indicates the
// server itself may be unreachable.
func markUnhealthyOnTransportError(registry *Registry, name string, err error) {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		registry.MarkUnhealthy(name, err)
	}
}

// InvalidateToolCache drops the cached catalog for one server, or every
// server when name is empty, forcing the next GetAvailableTools call to
// re-list.
func (c *Coordinator) InvalidateToolCache(name string) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if name == "" {
		c.cache = make(map[string]*toolCacheEntry)
		telemetry.RecordCacheInvalidation("*")
		return
	}
	delete(c.cache, name)
	telemetry.RecordCacheInvalidation(name)
}

// ExecuteTool dispatches a single tool call to the named server. It does
// not consult or update the tool cache; callers that just discovered tools
// already have a fresh catalog.
func (c *Coordinator) ExecuteTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) ExecuteResult {
	start := time.Now()
	def, ok := c.registry.Get(serverName)
	if !ok {
		return ExecuteResult{
			ServerName: serverName,
			ToolName:   toolName,
			Err:        &ServerNotFoundError{Name: serverName},
			Duration:   time.Since(start),
		}
	}
	if !def.Enabled {
		return ExecuteResult{
			ServerName: serverName,
			ToolName:   toolName,
			Err:        &ServerDisabledError{Name: serverName},
			Duration:   time.Since(start),
		}
	}
	if health, ok := c.registry.GetHealth(serverName); ok && !health.Healthy {
		return ExecuteResult{
			ServerName: serverName,
			ToolName:   toolName,
			Err:        &ServerUnhealthyError{Name: serverName},
			Duration:   time.Since(start),
		}
	}

	client := c.newClient(def)
	output, isErr, err := client.CallTool(ctx, toolName, args)
	if err != nil {
		markUnhealthyOnTransportError(c.registry, serverName, err)
		return ExecuteResult{
			ServerName: serverName,
			ToolName:   toolName,
			Err:        err,
			Duration:   time.Since(start),
		}
	}

	return ExecuteResult{
		ServerName: serverName,
		ToolName:   toolName,
		Output:     output,
		IsError:    isErr,
		Duration:   time.Since(start),
	}
}

// TestServerConnection probes one server's liveness, updating its recorded
// health and lastHealthCheckAt to match, and purging its tool cache on a
// transition to unhealthy so the next discovery re-lists it.
func (c *Coordinator) TestServerConnection(ctx context.Context, serverName string) error {
	def, ok := c.registry.Get(serverName)
	if !ok {
		return fmt.Errorf("mcp server %q is not registered", serverName)
	}
	wasHealthy := false
	if health, ok := c.registry.GetHealth(serverName); ok {
		wasHealthy = health.Healthy
	}

	client := c.newClient(def)
	if err := client.TestConnection(ctx); err != nil {
		c.registry.MarkUnhealthy(serverName, err)
		if wasHealthy {
			c.InvalidateToolCache(serverName)
		}
		var transportErr *TransportError
		if errors.As(err, &transportErr) && transportErr.Type == ErrorTypeTimeout {
			timeout := time.Duration(def.TimeoutMS) * time.Millisecond
			return &orcherrors.TimeoutError{Operation: fmt.Sprintf("connection test for %q", serverName), Duration: timeout, Cause: err}
		}
		return err
	}
	c.registry.MarkHealthy(serverName, nil)
	return nil
}

// PerformHealthChecks probes every registered server concurrently and
// updates the registry accordingly. It returns once every probe has
// completed or the context is done.
func (c *Coordinator) PerformHealthChecks(ctx context.Context) {
	servers := c.registry.All()
	var wg sync.WaitGroup
	for _, def := range servers {
		if !def.Enabled {
			continue
		}
		wg.Add(1)
		go func(def ServerDefinition) {
			defer wg.Done()
			client := c.newClient(def)
			if err := client.Ping(ctx); err == nil {
				// The lighter /health probe succeeded; no need for a full
				// initialize round trip. Leave any already-discovered
				// capabilities in place.
				c.registry.MarkHealthy(def.Name, nil)
				telemetry.RecordHealthCheck(def.Name, true)
				return
			}
			caps, err := client.Initialize(ctx)
			if err != nil {
				c.registry.MarkUnhealthy(def.Name, err)
				telemetry.RecordHealthCheck(def.Name, false)
				return
			}
			c.registry.MarkHealthy(def.Name, caps)
			telemetry.RecordHealthCheck(def.Name, true)
		}(def)
	}
	wg.Wait()
}

// Summary reports the health of every registered server, used by the REST
// status endpoint and the CLI's status command.
func (c *Coordinator) Summary() []ServerHealth {
	return c.registry.AllHealth()
}
