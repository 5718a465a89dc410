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

type statusResponse struct {
	Version  string       `json:"version"`
	Servers  []serverInfo `json:"servers"`
	Sessions sessionStats `json:"sessions"`
}

type sessionStats struct {
	ActiveSessions int `json:"ActiveSessions"`
	TotalMessages  int `json:"TotalMessages"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report daemon version, server health, and session counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var status statusResponse
			if err := getJSON("/api/v1/orchestration/status", &status); err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			fmt.Fprintf(out, "orchestratord %s\n", status.Version)
			fmt.Fprintf(out, "sessions: %d active, %d messages\n\n",
				status.Sessions.ActiveSessions, status.Sessions.TotalMessages)

			tbl := format.NewTable("SERVER", "HEALTHY", "ENABLED")
			for _, s := range status.Servers {
				tbl.AddRow(s.Name, fmt.Sprintf("%v", s.Healthy), fmt.Sprintf("%v", s.Enabled))
			}
			return tbl.Render(out)
		},
	}

	return cmd
}
