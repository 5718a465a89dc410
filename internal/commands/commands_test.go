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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newFakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/orchestration/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(healthResponse{
			Status: "healthy",
			Servers: []serverInfo{
				{Name: "weather", Healthy: true, Enabled: true},
			},
		})
	})
	mux.HandleFunc("/api/v1/orchestration/tools", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]toolInfo{
			{ServerName: "weather", Name: "forecast", Description: "gets a forecast"},
		})
	})
	mux.HandleFunc("/api/v1/orchestration/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{
			Version: "test",
			Servers: []serverInfo{{Name: "weather", Healthy: true, Enabled: true}},
			Sessions: sessionStats{ActiveSessions: 2, TotalMessages: 10},
		})
	})
	return httptest.NewServer(mux)
}

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("command failed: %v (output: %s)", err, buf.String())
	}
	return buf.String()
}

func TestHealthCommand_TableOutput(t *testing.T) {
	srv := newFakeDaemon(t)
	defer srv.Close()

	out := runCmd(t, "--server", srv.URL, "health")
	if !strings.Contains(out, "weather") {
		t.Errorf("expected output to mention server, got: %s", out)
	}
}

func TestToolsCommand_JSONOutput(t *testing.T) {
	srv := newFakeDaemon(t)
	defer srv.Close()

	out := runCmd(t, "--server", srv.URL, "--json", "tools")
	var tools []toolInfo
	if err := json.Unmarshal([]byte(out), &tools); err != nil {
		t.Fatalf("expected valid JSON output, got error %v: %s", err, out)
	}
	if len(tools) != 1 || tools[0].Name != "forecast" {
		t.Errorf("unexpected tools: %+v", tools)
	}
}

func TestStatusCommand_TableOutput(t *testing.T) {
	srv := newFakeDaemon(t)
	defer srv.Close()

	out := runCmd(t, "--server", srv.URL, "status")
	if !strings.Contains(out, "active") {
		t.Errorf("expected session summary in output, got: %s", out)
	}
}
