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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/orchestration"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/reasoner"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/session"
	orcherrors "github.com/ajay-kumar-das/mcp-orchestration/pkg/errors"
)

// orchestrationRequest mirrors spec.md's OrchestrationRequest wire shape.
// MaxSteps is a pointer so a request can explicitly ask for a zero-step
// budget without it being indistinguishable from an absent field.
type orchestrationRequest struct {
	SessionID      string                    `json:"sessionId"`
	Message        string                    `json:"message"`
	MaxSteps       *int                      `json:"maxSteps,omitempty"`
	ResponseFormat string                    `json:"responseFormat,omitempty"`
	Preferences    *orchestrationPreferences `json:"preferences,omitempty"`
}

// orchestrationPreferences mirrors spec.md's OrchestrationPreferences wire
// shape.
type orchestrationPreferences struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	TimeoutMS   int     `json:"timeoutMs,omitempty"`
}

func (p *orchestrationPreferences) toReasoner() reasoner.Preferences {
	if p == nil {
		return reasoner.Preferences{}
	}
	return reasoner.Preferences{
		Provider:    p.Provider,
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Timeout:     p.TimeoutMS,
	}
}

// handleProcess implements POST /api/v1/orchestration/process.
func (r *Router) handleProcess(w http.ResponseWriter, req *http.Request) {
	var body orchestrationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.SessionID == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, "sessionId and message are required")
		return
	}
	if body.ResponseFormat == "" {
		body.ResponseFormat = "detailed"
	}

	prefs := body.Preferences.toReasoner()
	if body.Preferences == nil {
		if stored, ok := r.sessions.Preferences(body.SessionID); ok {
			prefs = stored
		}
	}

	orchReq := orchestration.Request{
		SessionID:      body.SessionID,
		Message:        body.Message,
		MaxSteps:       body.MaxSteps,
		ResponseFormat: body.ResponseFormat,
		Preferences:    prefs,
	}

	resp, err := r.loop.Process(req.Context(), orchReq)
	if err != nil {
		status := statusForOrchestrationError(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusForOrchestrationError maps the orchestration core's error taxonomy
// onto an HTTP status. Tool-call failures never reach here; they are
// recovered inside the loop and reported as failed ExecutionSteps.
func statusForOrchestrationError(err error) int {
	var admissionErr *orcherrors.AdmissionTimeoutError
	if errors.As(err, &admissionErr) {
		return http.StatusServiceUnavailable
	}
	var reasonerErr *orcherrors.ReasonerError
	if errors.As(err, &reasonerErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleListTools implements GET /api/v1/orchestration/tools.
func (r *Router) handleListTools(w http.ResponseWriter, req *http.Request) {
	tools, err := r.coordinator.GetAvailableTools(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toolListResponse(tools))
}

// handleListServerTools implements GET /api/v1/orchestration/tools/{server}.
func (r *Router) handleListServerTools(w http.ResponseWriter, req *http.Request) {
	serverName := req.PathValue("server")
	tools, err := r.coordinator.GetAvailableTools(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var filtered []mcp.AvailableTool
	for _, t := range tools {
		if t.ServerName == serverName {
			filtered = append(filtered, t)
		}
	}
	writeJSON(w, http.StatusOK, toolListResponse(filtered))
}

type toolResponse struct {
	ServerName  string `json:"serverName"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toolListResponse(tools []mcp.AvailableTool) []toolResponse {
	out := make([]toolResponse, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolResponse{
			ServerName:  t.ServerName,
			Name:        t.Tool.Name,
			Description: t.Tool.Description,
		})
	}
	return out
}

// handleConfigure implements POST /api/v1/orchestration/configure?sessionId=…,
// storing per-session reasoning preferences applied by future process calls
// that don't specify their own.
func (r *Router) handleConfigure(w http.ResponseWriter, req *http.Request) {
	sessionID := req.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId query parameter is required")
		return
	}
	var prefs orchestrationPreferences
	if err := json.NewDecoder(req.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	r.sessions.GetOrCreateContext(sessionID)
	r.sessions.SetPreferences(sessionID, prefs.toReasoner())
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID, "status": "configured"})
}

// handleHealth implements GET /api/v1/orchestration/health.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	summary := r.coordinator.Summary()
	healthy := 0
	for _, s := range summary {
		if s.Healthy {
			healthy++
		}
	}
	status := "healthy"
	if healthy == 0 && len(summary) > 0 {
		status = "unhealthy"
	} else if healthy < len(summary) {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"servers": summary,
	})
}

// handleStatus implements GET /api/v1/orchestration/status.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	metrics := r.sessions.Metrics()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":  r.config.Version,
		"servers":  r.coordinator.Summary(),
		"sessions": metrics,
	})
}

// handleDeleteSession implements DELETE /api/v1/orchestration/session/{id}.
func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	r.sessions.ClearContext(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleListSessions implements GET /api/v1/orchestration/sessions.
func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) {
	summaries := r.sessions.Summaries()
	metrics := r.sessions.Metrics()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":       summaries,
		"count":          len(summaries),
		"activeSessions": metrics.ActiveSessions,
	})
}

// handleGetSession implements GET /api/v1/orchestration/session/{id}.
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	ctx, ok := r.sessions.SessionInfo(id)
	if !ok {
		notFound := &orcherrors.NotFoundError{Resource: "session", ID: id}
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ctx))
}

func sessionResponse(ctx session.Context) map[string]interface{} {
	return map[string]interface{}{
		"id":               ctx.ID,
		"history":          ctx.History,
		"tools":            ctx.Tools,
		"executionHistory": ctx.ExecutionHistory,
		"preferences":      ctx.Preferences,
		"createdAt":        ctx.CreatedAt,
		"lastActiveAt":     ctx.LastActiveAt,
	}
}

// handleTestServer implements POST /api/v1/orchestration/servers/{name}/test.
func (r *Router) handleTestServer(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	if err := r.coordinator.TestServerConnection(req.Context(), name); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"serverName": name,
			"ok":         false,
			"error":      err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"serverName": name,
		"ok":         true,
	})
}

// handleInvalidateCache implements POST
// /api/v1/orchestration/cache/invalidate?serverName=….
func (r *Router) handleInvalidateCache(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("serverName")
	r.coordinator.InvalidateToolCache(name)
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": name})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
