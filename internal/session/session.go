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

// Package session holds in-memory conversation state for the orchestration
// loop. Contexts are never persisted to disk; a restart loses every
// in-flight session by design.
package session

import (
	"sync"
	"time"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/reasoner"
)

// Message is one turn of a session's conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionStep is an immutable record of one operation the orchestration
// loop performed on this session's behalf: an LLM analysis call, an MCP
// tool dispatch, or a synthesis call. Once appended it is never mutated.
type ExecutionStep struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"` // "ai_analysis", "mcp_call", "synthesis"
	Timestamp  time.Time              `json:"timestamp"`
	Duration   time.Duration          `json:"durationMs"`
	ServerName string                 `json:"serverName,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Input      string                 `json:"input,omitempty"`
	Output     string                 `json:"output,omitempty"`
	Success    bool                   `json:"success"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Context is one session's conversation state: its message log, the tool
// catalog snapshot taken as of its last request, its execution history,
// and any reasoning preferences configured for it.
type Context struct {
	ID               string               `json:"id"`
	History          []Message            `json:"history"`
	Tools            []mcp.AvailableTool  `json:"tools"`
	ExecutionHistory []ExecutionStep      `json:"executionHistory"`
	Preferences      reasoner.Preferences `json:"preferences"`
	CreatedAt        time.Time            `json:"createdAt"`
	LastActiveAt     time.Time            `json:"lastActiveAt"`
}

// Config bounds a Manager's memory footprint.
type Config struct {
	// MaxSessions is the maximum number of concurrent sessions tracked. The
	// least-recently-active session is evicted once this is exceeded.
	MaxSessions int

	// MaxHistorySize is the maximum number of messages kept per session;
	// older messages are dropped once exceeded.
	MaxHistorySize int

	// SessionTimeout marks a session eligible for cleanup once it has been
	// inactive this long.
	SessionTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a Manager.
func DefaultConfig() Config {
	return Config{
		MaxSessions:    1000,
		MaxHistorySize: 50,
		SessionTimeout: 30 * time.Minute,
	}
}

// Metrics reports Manager-wide counters, exposed via the REST status
// endpoint and Prometheus.
type Metrics struct {
	TotalSessions  int
	ActiveSessions int
	TotalMessages  int
	AverageAge     time.Duration
}

// SessionSummary is the per-session digest spec.md §4.4 documents for
// introspection endpoints: message count, the distinct server/tool names
// drawn from the session's tool snapshot, and whether it's still active.
type SessionSummary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	ServerNames  []string  `json:"serverNames"`
	ToolNames    []string  `json:"toolNames"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Manager owns every session's Context under a single lock. Session count
// stays small enough (bounded by Config.MaxSessions) that a linear scan for
// least-recently-active eviction is simpler than a heap and never shows up
// in practice.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Context
}

// NewManager builds a Manager. A zero Config selects DefaultConfig.
func NewManager(cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultConfig().MaxSessions
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = DefaultConfig().MaxHistorySize
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultConfig().SessionTimeout
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Context),
	}
}

// GetOrCreateContext returns the session's context, creating one if it
// doesn't exist. Creating a new context when the manager is already at
// capacity evicts the least-recently-active session first.
func (m *Manager) GetOrCreateContext(sessionID string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx, ok := m.sessions[sessionID]; ok {
		ctx.LastActiveAt = time.Now()
		return ctx
	}

	if len(m.sessions) >= m.cfg.MaxSessions {
		m.evictLRULocked()
	}

	now := time.Now()
	ctx := &Context{
		ID:           sessionID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	m.sessions[sessionID] = ctx
	return ctx
}

// UpdateContext appends a message to a session's history, truncating from
// the front once MaxHistorySize is exceeded.
func (m *Manager) UpdateContext(sessionID, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	ctx.History = append(ctx.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	ctx.LastActiveAt = time.Now()

	if overflow := len(ctx.History) - m.cfg.MaxHistorySize; overflow > 0 {
		ctx.History = ctx.History[overflow:]
	}
}

// SetTools replaces a session's tool catalog snapshot, taken as of the
// current request per spec.md §4.8 step 4. A no-op for an unknown session.
func (m *Manager) SetTools(sessionID string, tools []mcp.AvailableTool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	ctx.Tools = tools
}

// AppendExecutionStep records one immutable ExecutionStep in a session's
// execution history. A no-op for an unknown session.
func (m *Manager) AppendExecutionStep(sessionID string, step ExecutionStep) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	ctx.ExecutionHistory = append(ctx.ExecutionHistory, step)
}

// SetPreferences stores the reasoning preferences configured for a
// session, applied to future requests that don't specify their own.
func (m *Manager) SetPreferences(sessionID string, prefs reasoner.Preferences) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	ctx.Preferences = prefs
}

// Preferences returns a session's configured reasoning preferences, if
// any. The bool is false when the session doesn't exist.
func (m *Manager) Preferences(sessionID string) (reasoner.Preferences, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctx, ok := m.sessions[sessionID]
	if !ok {
		return reasoner.Preferences{}, false
	}
	return ctx.Preferences, true
}

// ClearContext removes a session entirely.
func (m *Manager) ClearContext(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// CleanupExpiredContexts evicts every session that has been inactive
// longer than SessionTimeout, returning the number removed.
func (m *Manager) CleanupExpiredContexts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.SessionTimeout)
	removed := 0
	for id, ctx := range m.sessions {
		if ctx.LastActiveAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// evictLRULocked drops the least-recently-active session. Callers must
// hold m.mu.
func (m *Manager) evictLRULocked() {
	var oldestID string
	var oldestAt time.Time
	for id, ctx := range m.sessions {
		if oldestID == "" || ctx.LastActiveAt.Before(oldestAt) {
			oldestID = id
			oldestAt = ctx.LastActiveAt
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
	}
}

// Metrics reports current session counters: total sessions tracked,
// sessions active within SessionTimeout, total messages across every
// session, and the average session age.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	cutoff := now.Add(-m.cfg.SessionTimeout)

	var totalMessages int
	var active int
	var totalAge time.Duration
	for _, ctx := range m.sessions {
		totalMessages += len(ctx.History)
		if ctx.LastActiveAt.After(cutoff) {
			active++
		}
		totalAge += now.Sub(ctx.CreatedAt)
	}

	var avgAge time.Duration
	if len(m.sessions) > 0 {
		avgAge = totalAge / time.Duration(len(m.sessions))
	}

	return Metrics{
		TotalSessions:  len(m.sessions),
		ActiveSessions: active,
		TotalMessages:  totalMessages,
		AverageAge:     avgAge,
	}
}

// Summaries returns a per-session digest for every tracked session, for
// the sessions-listing REST endpoint.
func (m *Manager) Summaries() []SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-m.cfg.SessionTimeout)
	out := make([]SessionSummary, 0, len(m.sessions))
	for _, ctx := range m.sessions {
		serverSeen := map[string]struct{}{}
		toolSeen := map[string]struct{}{}
		var servers, tools []string
		for _, t := range ctx.Tools {
			if _, ok := serverSeen[t.ServerName]; !ok {
				serverSeen[t.ServerName] = struct{}{}
				servers = append(servers, t.ServerName)
			}
			if _, ok := toolSeen[t.Tool.Name]; !ok {
				toolSeen[t.Tool.Name] = struct{}{}
				tools = append(tools, t.Tool.Name)
			}
		}
		out = append(out, SessionSummary{
			ID:           ctx.ID,
			MessageCount: len(ctx.History),
			ServerNames:  servers,
			ToolNames:    tools,
			IsActive:     ctx.LastActiveAt.After(cutoff),
			CreatedAt:    ctx.CreatedAt,
			LastActiveAt: ctx.LastActiveAt,
		})
	}
	return out
}

// SessionInfo returns a copy of one session's context, for introspection
// endpoints that shouldn't hold the manager's lock.
func (m *Manager) SessionInfo(sessionID string) (Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.sessions[sessionID]
	if !ok {
		return Context{}, false
	}
	cp := *ctx
	cp.History = append([]Message(nil), ctx.History...)
	cp.Tools = append([]mcp.AvailableTool(nil), ctx.Tools...)
	cp.ExecutionHistory = append([]ExecutionStep(nil), ctx.ExecutionHistory...)
	return cp, true
}
