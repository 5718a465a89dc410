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

// Package reasoner defines the narrow interface the orchestration loop
// uses to talk to a language model. Concrete provider adapters (Claude,
// OpenAI, Gemini) live outside this module; this package only defines the
// contract and a deterministic stand-in used for wiring and tests.
package reasoner

import (
	"context"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
)

// Preferences carries per-request overrides for a reasoning call. A zero
// value for any field means "use the reasoner's default".
type Preferences struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     int // milliseconds
}

// AnalyzeResult is the model's raw reply, the token accounting, and the
// identity of the provider that produced it, folded into the orchestration
// loop's response metadata.
type AnalyzeResult struct {
	Reply        string
	InputTokens  int
	OutputTokens int
	ProviderID   string
}

// Reasoner is the interface the orchestration loop depends on. It never
// depends on a specific provider's request/response shapes.
type Reasoner interface {
	// Analyze sends the current turn (system prompt, user message, prior
	// history, and available tools) to the model and returns its reply
	// verbatim, for the extractor to parse.
	Analyze(ctx context.Context, systemPrompt, userMessage, historyText string, tools []mcp.AvailableTool, prefs Preferences) (AnalyzeResult, error)

	// Synthesize turns tool results (already folded into prompt) into a
	// final natural-language answer.
	Synthesize(ctx context.Context, prompt string, prefs Preferences) (string, error)
}
