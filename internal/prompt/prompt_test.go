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

package prompt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/session"
)

func TestSystemPrompt_NoTools(t *testing.T) {
	out := SystemPrompt(nil)
	if !strings.Contains(out, "No tools are currently available.") {
		t.Fatalf("expected no-tools notice, got %q", out)
	}
}

func TestSystemPrompt_ListsEachTool(t *testing.T) {
	tools := []mcp.AvailableTool{
		{ServerName: "weather", Tool: mcp.ToolDefinition{Name: "forecast", Description: "get forecast"}},
		{ServerName: "search", Tool: mcp.ToolDefinition{Name: "web", Description: "search the web"}},
	}
	out := SystemPrompt(tools)
	if !strings.Contains(out, "Server: weather\n  - forecast: get forecast") {
		t.Fatalf("expected weather server block, got %q", out)
	}
	if !strings.Contains(out, "Server: search\n  - web: search the web") {
		t.Fatalf("expected search server block, got %q", out)
	}
	if !strings.Contains(out, `"action":"tool_call"`) {
		t.Fatalf("expected tool-call envelope directive, got %q", out)
	}
}

func TestSynthesisPrompt_KnownFormats(t *testing.T) {
	results := []mcp.ExecuteResult{{ServerName: "s", ToolName: "t", Output: "42"}}

	summary := SynthesisPrompt("what is it", results, "summary")
	if !strings.Contains(summary, responseFormatTemplates["summary"]) {
		t.Fatalf("expected summary instruction, got %q", summary)
	}

	detailed := SynthesisPrompt("what is it", results, "detailed")
	if !strings.Contains(detailed, responseFormatTemplates["detailed"]) {
		t.Fatalf("expected detailed instruction, got %q", detailed)
	}

	raw := SynthesisPrompt("what is it", results, "raw")
	if !strings.Contains(raw, responseFormatTemplates["raw"]) {
		t.Fatalf("expected raw instruction, got %q", raw)
	}
}

func TestSynthesisPrompt_UnknownFormatFallsBackToDefault(t *testing.T) {
	out := SynthesisPrompt("x", nil, "unknown-format")
	if !strings.Contains(out, responseFormatTemplates["default"]) {
		t.Fatalf("expected default instruction for unknown format, got %q", out)
	}
}

func TestSynthesisPrompt_RendersToolFailures(t *testing.T) {
	results := []mcp.ExecuteResult{{ServerName: "s", ToolName: "t", Err: errors.New("boom")}}
	out := SynthesisPrompt("x", results, "raw")
	if !strings.Contains(out, "s/t failed: boom") {
		t.Fatalf("expected failure line, got %q", out)
	}
}

func TestHistoryText_TruncatesToLastTen(t *testing.T) {
	ctx := &session.Context{}
	for i := 0; i < 15; i++ {
		ctx.History = append(ctx.History, session.Message{Role: "user", Content: "msg", Timestamp: time.Now()})
	}
	out := HistoryText(ctx)
	if got := strings.Count(out, "User: msg"); got != maxHistoryMessages {
		t.Fatalf("expected %d lines, got %d", maxHistoryMessages, got)
	}
}

func TestHistoryText_CapitalizesRole(t *testing.T) {
	ctx := &session.Context{History: []session.Message{
		{Role: "assistant", Content: "hi there"},
	}}
	out := HistoryText(ctx)
	if !strings.Contains(out, "Assistant: hi there") {
		t.Fatalf("expected capitalized role, got %q", out)
	}
}

func TestHistoryText_EmptyContext(t *testing.T) {
	if HistoryText(nil) != "" {
		t.Fatalf("expected empty string for nil context")
	}
	if HistoryText(&session.Context{}) != "" {
		t.Fatalf("expected empty string for empty history")
	}
}
