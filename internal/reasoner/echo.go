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

package reasoner

import (
	"context"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
)

// EchoReasoner is a deterministic Reasoner used to wire and exercise the
// orchestration loop without a real LLM provider. It never emits tool
// calls; Analyze always returns a plain-text reply built from the user
// message, and Synthesize returns the prompt it was given verbatim.
//
// This is not a production reasoning strategy. It exists so cmd/orchestrator
// and the orchestration loop's own tests have a concrete Reasoner to run
// against.
type EchoReasoner struct{}

// NewEchoReasoner builds an EchoReasoner.
func NewEchoReasoner() *EchoReasoner {
	return &EchoReasoner{}
}

func (r *EchoReasoner) Analyze(_ context.Context, _, userMessage, _ string, _ []mcp.AvailableTool, _ Preferences) (AnalyzeResult, error) {
	return AnalyzeResult{
		Reply:        "acknowledged: " + userMessage,
		InputTokens:  len(userMessage) / 4,
		OutputTokens: len(userMessage) / 4,
		ProviderID:   "echo",
	}, nil
}

func (r *EchoReasoner) Synthesize(_ context.Context, prompt string, _ Preferences) (string, error) {
	return prompt, nil
}
