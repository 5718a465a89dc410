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

// Package orchestration implements the bounded-step reasoning loop that
// alternates reasoner calls with MCP tool invocations: analyze, extract
// requested tool calls, execute them, and either loop again or synthesize
// a final answer.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	orcherrors "github.com/ajay-kumar-das/mcp-orchestration/pkg/errors"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/extractor"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/prompt"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/reasoner"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/session"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/telemetry"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/tracing"
	"github.com/ajay-kumar-das/mcp-orchestration/pkg/tools"
)

// argRedactor scrubs credential-shaped values out of tool call arguments
// before they reach debug logs.
var argRedactor = tools.NewRedactor()

const (
	// DefaultMaxSteps bounds a request that doesn't specify one.
	DefaultMaxSteps = 10

	// DefaultAdmissionTimeout bounds how long a request waits for a free
	// orchestration slot when Preferences.Timeout is unset.
	DefaultAdmissionTimeout = 30 * time.Second
)

// Status is a Response's terminal outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Request is one turn submitted to the orchestration loop. MaxSteps is a
// pointer so an explicit zero (run no iterations) can be told apart from
// an absent value (use DefaultMaxSteps).
type Request struct {
	SessionID      string
	Message        string
	MaxSteps       *int
	ResponseFormat string
	Preferences    reasoner.Preferences
}

func intPtr(i int) *int {
	return &i
}

// ExecutionStep records one step of the reasoning loop, for the response's
// audit trail.
type ExecutionStep struct {
	Step       int           `json:"step"`
	Type       string        `json:"type"` // "analyze", "tool_call", "synthesize"
	ServerName string        `json:"serverName,omitempty"`
	ToolName   string        `json:"toolName,omitempty"`
	Duration   time.Duration `json:"durationMs"`
	Error      string        `json:"error,omitempty"`
}

// Performance is the loop's per-response performance breakdown.
type Performance struct {
	AIProviderUsed  string `json:"aiProviderUsed"`
	ToolsAvailable  int    `json:"toolsAvailable"`
	MaxStepsReached bool   `json:"maxStepsReached"`
}

// Response is the result of processing one Request.
type Response struct {
	SessionID   string          `json:"sessionId"`
	RequestID   string          `json:"requestId"`
	Status      Status          `json:"status"`
	Answer      string          `json:"answer"`
	Steps       []ExecutionStep `json:"steps"`
	ServersUsed []string        `json:"serversUsed"`
	ToolsUsed   []string        `json:"toolsUsed"`
	Performance Performance     `json:"performance"`
	Duration    time.Duration   `json:"durationMs"`
	Error       string          `json:"error,omitempty"`
}

// Loop wires the reasoner, MCP coordinator, and session manager together
// under an admission-controlled step budget.
type Loop struct {
	reasoner    reasoner.Reasoner
	coordinator *mcp.Coordinator
	sessions    *session.Manager
	logger      *slog.Logger

	sem chan struct{}
}

// Config bounds a Loop's concurrency.
type Config struct {
	// MaxConcurrentRequests bounds how many Process calls run at once; the
	// rest wait on the admission semaphore up to their own timeout.
	MaxConcurrentRequests int
}

// New builds a Loop.
func New(r reasoner.Reasoner, coordinator *mcp.Coordinator, sessions *session.Manager, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 50
	}
	return &Loop{
		reasoner:    r,
		coordinator: coordinator,
		sessions:    sessions,
		logger:      logger,
		sem:         make(chan struct{}, maxConcurrent),
	}
}

// Process runs one full turn: admission control, the bounded reasoning
// loop, and response assembly.
func (l *Loop) Process(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	correlationID := tracing.FromContext(ctx)
	ctx = tracing.ToContext(ctx, correlationID)
	requestID := correlationID.String()
	resp := Response{SessionID: req.SessionID, RequestID: requestID}

	admissionTimeout := DefaultAdmissionTimeout
	if req.Preferences.Timeout > 0 {
		admissionTimeout = time.Duration(req.Preferences.Timeout) * time.Millisecond
	}

	if err := l.acquire(ctx, admissionTimeout); err != nil {
		var admissionErr *orcherrors.AdmissionTimeoutError
		if errors.As(err, &admissionErr) {
			telemetry.RecordAdmissionTimeout()
		}
		resp.Status = StatusError
		resp.Error = err.Error()
		resp.Duration = time.Since(start)
		return resp, err
	}
	defer l.release()

	logger := l.logger.With(slog.String("request_id", requestID), slog.String("session_id", req.SessionID))

	maxSteps := DefaultMaxSteps
	if req.MaxSteps != nil {
		maxSteps = *req.MaxSteps
	}

	sessCtx := l.sessions.GetOrCreateContext(req.SessionID)
	l.sessions.UpdateContext(req.SessionID, "user", req.Message)

	// spec.md §4.8 step 4: fetch the currently available tools once per
	// request and replace the session's tool snapshot; every iteration of
	// this request's loop reasons over that same snapshot.
	availableTools, err := l.coordinator.GetAvailableTools(ctx)
	if err != nil {
		logger.Warn("tool discovery failed", slog.Any("error", err))
	}
	l.sessions.SetTools(req.SessionID, availableTools)
	toolsAvailable := len(availableTools)

	usedServers := map[string]struct{}{}
	usedTools := map[string]struct{}{}
	var lastProviderID string

	systemPrompt := prompt.SystemPrompt(availableTools)

	// spec.md §4.8 step 6: currentResponse starts as the user's message and
	// is reassigned every iteration, either from a terminal analysis reply
	// or from that iteration's synthesis — so the reasoner always analyzes
	// the most recent tool results before deciding whether to keep going.
	currentResponse := req.Message
	remainingSteps := maxSteps
	terminal := false

	for remainingSteps > 0 {
		step := maxSteps - remainingSteps + 1
		historyText := prompt.HistoryText(sessCtx)

		spanCtx, span := telemetry.StartSpan(ctx, "ai_analysis", attribute.Int("orchestrator.step", step))
		analyzeStart := time.Now()
		result, err := l.reasoner.Analyze(spanCtx, systemPrompt, currentResponse, historyText, availableTools, req.Preferences)
		analyzeDuration := time.Since(analyzeStart)
		telemetry.RecordStep("analyze", analyzeDuration, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		analyzeStep := ExecutionStep{Step: step, Type: "analyze", Duration: analyzeDuration}
		sessionStep := session.ExecutionStep{
			ID:        uuid.NewString(),
			Type:      "ai_analysis",
			Timestamp: analyzeStart,
			Duration:  analyzeDuration,
			Input:     currentResponse,
			Success:   err == nil,
			Metadata: map[string]interface{}{
				"tokensUsed": result.InputTokens + result.OutputTokens,
				"providerId": result.ProviderID,
			},
		}
		if err != nil {
			analyzeStep.Error = err.Error()
			resp.Steps = append(resp.Steps, analyzeStep)
			sessionStep.Output = err.Error()
			l.sessions.AppendExecutionStep(req.SessionID, sessionStep)
			wrapped := &orcherrors.ReasonerError{Step: step, Cause: err}
			resp.Status = StatusError
			resp.Error = wrapped.Error()
			resp.Duration = time.Since(start)
			return resp, wrapped
		}
		resp.Steps = append(resp.Steps, analyzeStep)
		sessionStep.Output = result.Reply
		l.sessions.AppendExecutionStep(req.SessionID, sessionStep)
		lastProviderID = result.ProviderID

		calls := extractor.Extract(result.Reply)
		if len(calls) == 0 {
			currentResponse = result.Reply
			terminal = true
			break
		}

		results := l.executeCalls(ctx, req.SessionID, calls, &resp, step, usedServers, usedTools, logger)

		synthesisPrompt := prompt.SynthesisPrompt(req.Message, results, req.ResponseFormat)
		spanCtx, span = telemetry.StartSpan(ctx, "synthesis", attribute.Int("orchestrator.step", step))
		synthStart := time.Now()
		answer, err := l.reasoner.Synthesize(spanCtx, synthesisPrompt, req.Preferences)
		synthDuration := time.Since(synthStart)
		telemetry.RecordStep("synthesize", synthDuration, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		synthStep := ExecutionStep{Step: step, Type: "synthesize", Duration: synthDuration}
		sessionSynthStep := session.ExecutionStep{
			ID:        uuid.NewString(),
			Type:      "synthesis",
			Timestamp: synthStart,
			Duration:  synthDuration,
			Input:     synthesisPrompt,
			Success:   err == nil,
		}
		if err != nil {
			synthStep.Error = err.Error()
			resp.Steps = append(resp.Steps, synthStep)
			sessionSynthStep.Output = err.Error()
			l.sessions.AppendExecutionStep(req.SessionID, sessionSynthStep)
			wrapped := &orcherrors.ReasonerError{Step: step, Cause: err}
			resp.Status = StatusError
			resp.Error = wrapped.Error()
			resp.Duration = time.Since(start)
			return resp, wrapped
		}
		resp.Steps = append(resp.Steps, synthStep)
		sessionSynthStep.Output = answer
		l.sessions.AppendExecutionStep(req.SessionID, sessionSynthStep)

		currentResponse = answer
		remainingSteps--
	}

	if terminal {
		resp.Status = StatusSuccess
	} else {
		resp.Status = StatusPartial
	}
	resp.Answer = currentResponse
	resp.Performance = Performance{AIProviderUsed: lastProviderID, ToolsAvailable: toolsAvailable, MaxStepsReached: !terminal}
	l.sessions.UpdateContext(req.SessionID, "assistant", resp.Answer)
	resp.ServersUsed, resp.ToolsUsed = flattenUsage(usedServers, usedTools)
	resp.Duration = time.Since(start)
	return resp, nil
}

// executeCalls dispatches every tool call requested by one LLM turn
// sequentially, in the order given, so synthesis sees a deterministic
// result list and calls that share a stateful server never race. It
// records one ExecutionStep per call and folds the results into the
// session's history so the next analyze call sees them.
func (l *Loop) executeCalls(
	ctx context.Context,
	sessionID string,
	calls []extractor.ToolCall,
	resp *Response,
	step int,
	usedServers, usedTools map[string]struct{},
	logger *slog.Logger,
) []mcp.ExecuteResult {
	results := make([]mcp.ExecuteResult, len(calls))
	steps := make([]ExecutionStep, len(calls))

	for i, call := range calls {
		argsRendered := argRedactor.Redact(fmt.Sprintf("%v", call.Arguments))
		callStart := time.Now()

		spanCtx, span := telemetry.StartSpan(ctx, "mcp_call",
			attribute.String("mcp.server_name", call.ServerName),
			attribute.String("mcp.tool_name", call.ToolName))
		logger.Debug("dispatching tool call",
			slog.String("server_name", call.ServerName),
			slog.String("tool_name", call.ToolName),
			slog.String("arguments", argsRendered))
		res := l.coordinator.ExecuteTool(spanCtx, call.ServerName, call.ToolName, call.Arguments)
		telemetry.RecordToolCall(call.ServerName, call.ToolName, res.Err)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
		results[i] = res

		steps[i] = ExecutionStep{
			Step:       step,
			Type:       "tool_call",
			ServerName: res.ServerName,
			ToolName:   res.ToolName,
			Duration:   res.Duration,
		}

		output := res.Output
		if output == "" {
			output = "No output"
		}
		sessionStep := session.ExecutionStep{
			ID:         uuid.NewString(),
			Type:       "mcp_call",
			Timestamp:  callStart,
			Duration:   res.Duration,
			ServerName: res.ServerName,
			ToolName:   res.ToolName,
			Input:      argsRendered,
			Output:     output,
			Success:    res.Err == nil,
		}
		if res.Err != nil {
			steps[i].Error = res.Err.Error()
			sessionStep.Output = "Error: " + res.Err.Error()
			logger.Warn("tool call failed",
				slog.String("server_name", res.ServerName),
				slog.String("tool_name", res.ToolName),
				slog.Any("error", res.Err))
		}
		l.sessions.AppendExecutionStep(sessionID, sessionStep)
		usedServers[res.ServerName] = struct{}{}
		usedTools[res.ToolName] = struct{}{}
	}
	resp.Steps = append(resp.Steps, steps...)
	return results
}

func (l *Loop) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return &orcherrors.AdmissionTimeoutError{Waited: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) release() {
	<-l.sem
}

func flattenUsage(servers, tools map[string]struct{}) ([]string, []string) {
	s := make([]string, 0, len(servers))
	for name := range servers {
		s = append(s, name)
	}
	t := make([]string, 0, len(tools))
	for name := range tools {
		t = append(t, name)
	}
	return s, t
}
