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

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/cli/format"
)

type toolInfo struct {
	ServerName  string `json:"serverName"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools [server]",
		Short: "List tools discovered across MCP servers",
		Long: `List the tools currently discovered by the orchestrator's coordinator.

Without a server argument, shows tools across every enabled, healthy
server. With a server argument, shows only that server's tools.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path := "/api/v1/orchestration/tools"
			if len(args) == 1 {
				path = fmt.Sprintf("/api/v1/orchestration/tools/%s", args[0])
			}

			var tools []toolInfo
			if err := getJSON(path, &tools); err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tools)
			}

			if len(tools) == 0 {
				fmt.Fprintln(out, "No tools discovered.")
				return nil
			}

			tbl := format.NewTable("SERVER", "TOOL", "DESCRIPTION")
			for _, t := range tools {
				tbl.AddRow(t.ServerName, t.Name, t.Description)
			}
			return tbl.Render(out)
		},
	}

	return cmd
}
