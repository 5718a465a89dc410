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

package format

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_RenderIncludesHeadersAndRows(t *testing.T) {
	tbl := NewTable("SERVER", "TOOL", "STATUS")
	tbl.AddRow("weather", "forecast", "healthy")
	tbl.AddRow("search", "lookup", "unhealthy")

	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"SERVER", "weather", "forecast", "unhealthy"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestTable_PadsShortRows(t *testing.T) {
	tbl := NewTable("A", "B", "C")
	tbl.AddRow("only-a")

	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("expected 2 lines (header + 1 row), got: %q", buf.String())
	}
}

func TestTerminalWidth_NonFileFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	if got := terminalWidth(&buf); got != DefaultWidth {
		t.Errorf("expected DefaultWidth for a non-file writer, got %d", got)
	}
}

func TestTruncateRow_ShortensLongCells(t *testing.T) {
	row := []string{strings.Repeat("x", 50), "short"}
	out := truncateRow(row, 40, 2)
	if len(out[0]) > 20 {
		t.Errorf("expected long cell truncated to budget, got length %d", len(out[0]))
	}
	if out[1] != "short" {
		t.Errorf("expected short cell unchanged, got %q", out[1])
	}
}
