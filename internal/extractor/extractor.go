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

// Package extractor pulls a negotiated tool-call envelope out of a
// reasoner's free-text reply. Reasoners are not trusted to emit valid
// JSON, so extraction never panics and degrades to "no tool calls" on any
// malformed input.
package extractor

import (
	"encoding/json"
	"strings"
)

// ToolCall is one requested tool invocation, decoded from a reasoner
// reply's tool_calls array.
type ToolCall struct {
	ServerName string                 `json:"server_name"`
	ToolName   string                 `json:"tool_name"`
	Arguments  map[string]interface{} `json:"arguments"`
}

// envelope is the negotiated JSON contract a reasoner emits when it wants
// to call tools.
type envelope struct {
	Action    string     `json:"action"`
	Reasoning string     `json:"reasoning"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// Extract scans reply for a tool_call envelope. It returns nil (no error)
// when the reply plainly doesn't contain one, or when it looks like one but
// fails to parse — the caller treats both cases as "answer directly, no
// tools needed" rather than failing the turn.
func Extract(reply string) []ToolCall {
	if !strings.Contains(reply, `"action"`) || !strings.Contains(reply, "tool_call") {
		return nil
	}

	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(reply[start:end+1]), &env); err != nil {
		return nil
	}
	if env.Action != "tool_call" {
		return nil
	}

	calls := make([]ToolCall, 0, len(env.ToolCalls))
	for _, c := range env.ToolCalls {
		if c.ServerName == "" || c.ToolName == "" {
			continue
		}
		calls = append(calls, c)
	}
	return calls
}
