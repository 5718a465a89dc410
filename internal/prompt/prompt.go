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

// Package prompt builds the text sent to a reasoner: the system prompt
// describing available tools, the synthesis prompt that folds tool results
// back into a final answer, and the trailing-history text fed alongside
// each turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/session"
)

// maxHistoryMessages bounds how much prior conversation is folded into a
// turn's prompt.
const maxHistoryMessages = 10

// responseFormatTemplates maps a requested response format to the
// instruction appended to the synthesis prompt. Unknown values fall back
// to "default".
var responseFormatTemplates = map[string]string{
	"default": "Answer the user's request directly and concisely, in plain prose.",
	"summary": "Write a concise summary of the results below.",
	"detailed": "Write a comprehensive answer covering the numbered results below. " +
		"Include a summary, key insights, recommendations, and technical detail sections.",
	"raw": "Format the raw results below for the user without additional commentary.",
}

// SystemPrompt describes the orchestrator's role and the tools available
// this turn.
func SystemPrompt(tools []mcp.AvailableTool) string {
	var b strings.Builder
	b.WriteString("You are an assistant that can call external tools to answer the user's request.\n")
	b.WriteString("When you need a tool, respond with a JSON object of the form:\n")
	b.WriteString(`{"action":"tool_call","reasoning":"...","tool_calls":[{"server_name":"...","tool_name":"...","arguments":{}}]}`)
	b.WriteString("\nWhen you have enough information to answer, respond in plain text instead.\n\n")

	if len(tools) == 0 {
		b.WriteString("No tools are currently available.\n")
		return b.String()
	}

	b.WriteString("Available tools:\n")
	var order []string
	byServer := map[string][]mcp.AvailableTool{}
	for _, t := range tools {
		if _, seen := byServer[t.ServerName]; !seen {
			order = append(order, t.ServerName)
		}
		byServer[t.ServerName] = append(byServer[t.ServerName], t)
	}
	for _, serverName := range order {
		fmt.Fprintf(&b, "Server: %s\n", serverName)
		for _, t := range byServer[serverName] {
			fmt.Fprintf(&b, "  - %s: %s\n", t.Tool.Name, t.Tool.Description)
		}
	}
	return b.String()
}

// SynthesisPrompt folds tool results back into a request for a final
// natural-language answer, honoring the requested response format. Each
// format renders the results section differently: "detailed" numbers each
// result so the reasoner can address them individually across the summary,
// insights, recommendations and technical detail sections its instruction
// asks for; "raw" drops the bulleted framing in favor of a plain results
// dump; everything else (including unknown formats, which fall back to
// "default") gets a bulleted list.
func SynthesisPrompt(originalMessage string, results []mcp.ExecuteResult, responseFormat string) string {
	instruction, ok := responseFormatTemplates[responseFormat]
	if !ok {
		instruction = responseFormatTemplates["default"]
		responseFormat = "default"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n\n", originalMessage)

	switch responseFormat {
	case "detailed":
		b.WriteString("Numbered results:\n")
		for i, r := range results {
			writeResultLine(&b, fmt.Sprintf("%d.", i+1), r)
		}
	case "raw":
		b.WriteString("Raw results:\n")
		for _, r := range results {
			writeResultLine(&b, "-", r)
		}
	default:
		b.WriteString("Tool results:\n")
		for _, r := range results {
			writeResultLine(&b, "-", r)
		}
	}

	b.WriteString("\n")
	b.WriteString(instruction)
	return b.String()
}

// writeResultLine renders one tool result as "<marker> server/tool: output",
// or "<marker> server/tool failed: err" when the call errored.
func writeResultLine(b *strings.Builder, marker string, r mcp.ExecuteResult) {
	if r.Err != nil {
		fmt.Fprintf(b, "%s %s/%s failed: %v\n", marker, r.ServerName, r.ToolName, r.Err)
		return
	}
	output := r.Output
	if output == "" {
		output = "No output"
	}
	fmt.Fprintf(b, "%s %s/%s: %s\n", marker, r.ServerName, r.ToolName, output)
}

// HistoryText renders the last maxHistoryMessages entries of a session's
// history as plain text, oldest first.
func HistoryText(ctx *session.Context) string {
	if ctx == nil || len(ctx.History) == 0 {
		return ""
	}

	history := ctx.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", capitalize(m.Role), m.Content)
	}
	return b.String()
}

// capitalize upper-cases a role's first rune, leaving the rest as-is, so
// "user" renders as "User" per spec.md §4.6.
func capitalize(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
