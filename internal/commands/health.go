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

type healthResponse struct {
	Status  string       `json:"status"`
	Servers []serverInfo `json:"servers"`
}

type serverInfo struct {
	Name          string `json:"Name"`
	Healthy       bool   `json:"Healthy"`
	Enabled       bool   `json:"Enabled"`
	LastCheckedAt string `json:"LastCheckedAt"`
}

func newHealthCmd() *cobra.Command {
	var testServer string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report MCP server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if testServer != "" {
				var result map[string]interface{}
				if err := postJSON("/api/v1/orchestration/servers/"+testServer+"/test", &result); err != nil {
					return err
				}
				if jsonOut {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}
				fmt.Fprintf(out, "server %s: ok=%v\n", testServer, result["ok"])
				return nil
			}

			var health healthResponse
			if err := getJSON("/api/v1/orchestration/health", &health); err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(health)
			}

			fmt.Fprintf(out, "overall status: %s\n", health.Status)
			tbl := format.NewTable("SERVER", "HEALTHY", "ENABLED")
			for _, s := range health.Servers {
				tbl.AddRow(s.Name, fmt.Sprintf("%v", s.Healthy), fmt.Sprintf("%v", s.Enabled))
			}
			return tbl.Render(out)
		},
	}

	cmd.Flags().StringVar(&testServer, "test", "", "Test connectivity to a single server by name")

	return cmd
}
