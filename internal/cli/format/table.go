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

// Package format renders tabular output for the orchestrator CLI, sizing
// columns to the attached terminal when one is present.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// DefaultWidth is used when the output isn't a terminal (piped or
// redirected) and no width can be detected.
const DefaultWidth = 100

// Table accumulates rows for tabwriter-aligned output.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable starts a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends one row. Its length should match the header count; short
// rows are padded with empty cells.
func (t *Table) AddRow(cells ...string) {
	if len(cells) < len(t.headers) {
		padded := make([]string, len(t.headers))
		copy(padded, cells)
		cells = padded
	}
	t.rows = append(t.rows, cells)
}

// Render writes the table to w, tab-aligned. Cells are truncated so the
// widest row fits the terminal attached to w, falling back to DefaultWidth
// when w isn't a terminal.
func (t *Table) Render(w io.Writer) error {
	width := terminalWidth(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(truncateRow(row, width, len(t.headers)), "\t"))
	}
	return tw.Flush()
}

// terminalWidth detects the width of the terminal attached to w, or
// DefaultWidth if w isn't a terminal (a file, pipe, or test buffer).
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// truncateRow caps each cell so the row's total width, plus separators,
// fits within width. Every cell shares the overflow evenly; this is a
// cheap approximation, not a real column-width solver.
func truncateRow(row []string, width, columns int) []string {
	if columns == 0 {
		return row
	}
	budget := width / columns
	if budget < 8 {
		return row
	}
	out := make([]string, len(row))
	for i, cell := range row {
		if len(cell) > budget {
			if budget > 3 {
				cell = cell[:budget-3] + "..."
			} else {
				cell = cell[:budget]
			}
		}
		out[i] = cell
	}
	return out
}
