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

// Package commands implements the orchestrator CLI's Cobra command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	jsonOut   bool
)

// NewRootCommand builds the orchestrator CLI's root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Inspect a running MCP orchestrator daemon",
		Long: `orchestrator is a command-line client for orchestratord. It queries
the daemon's REST API to report MCP server health, discovered tools, and
session status.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "orchestratord base URL")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newHealthCmd())

	return cmd
}

func defaultServerURL() string {
	if v := envOrDefault("ORCHESTRATOR_SERVER_URL", ""); v != "" {
		return v
	}
	return "http://localhost:8080"
}
