// Copyright 2023 Tobias Klausmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package format renders report rows as aligned columns or as
// tab-separated output, with an ANSI colour policy.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Table is an ordered row collection with a fixed column set.
type Table struct {
	Title   string
	Columns []string
	rows    [][]string
	right   map[int]bool
}

// NewTable returns an empty table with the given column headers.
func NewTable(cols ...string) *Table {
	return &Table{Columns: cols, right: make(map[int]bool)}
}

// AlignRight marks columns (0-based) for right alignment in column
// mode.
func (t *Table) AlignRight(idx ...int) *Table {
	for _, i := range idx {
		t.right[i] = true
	}
	return t
}

// Add appends one row.
func (t *Table) Add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows exposes the raw row data, e.g. for tail trimming and tests.
func (t *Table) Rows() [][]string { return t.rows }

// Renderer writes tables to one output in a fixed mode.
type Renderer struct {
	out    io.Writer
	tab    bool
	header bool
	// Style colours cells; disabled it passes strings through.
	Style Styler
}

// NewRenderer resolves the output and colour modes. "auto" renders
// columns and colour on a terminal and plain tab output otherwise.
func NewRenderer(out io.Writer, output, color string, header bool) (*Renderer, error) {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	r := &Renderer{out: out, header: header}
	switch output {
	case "auto", "":
		r.tab = !tty
	case "columns":
	case "tab":
		r.tab = true
	default:
		return nil, fmt.Errorf("unknown output mode %q", output)
	}
	switch color {
	case "auto", "":
		r.Style = Styler{on: tty && !r.tab}
	case "always", "y":
		r.Style = Styler{on: true}
	case "never", "n":
		r.Style = Styler{on: false}
	default:
		return nil, fmt.Errorf("unknown color mode %q", color)
	}
	if r.Style.on {
		// The text package suppresses ANSI codes off-terminal unless
		// told otherwise.
		text.EnableColors()
	}
	return r, nil
}

// Render writes one table. Empty tables produce no output.
func (r *Renderer) Render(t *Table) {
	if t.Len() == 0 {
		return
	}
	if r.header && t.Title != "" {
		fmt.Fprintf(r.out, "%s:\n", t.Title)
	}
	if r.tab {
		if r.header {
			fmt.Fprintln(r.out, strings.Join(t.Columns, "\t"))
		}
		for _, row := range t.rows {
			fmt.Fprintln(r.out, strings.Join(row, "\t"))
		}
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.SetStyle(table.StyleDefault)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateHeader = r.header
	tw.Style().Format.Header = text.FormatDefault
	if w := terminalWidth(r.out); w > 0 {
		tw.SetAllowedRowLength(w)
	}
	if r.header {
		hdr := make(table.Row, len(t.Columns))
		for i, c := range t.Columns {
			hdr[i] = c
		}
		tw.AppendHeader(hdr)
	}
	var cfgs []table.ColumnConfig
	for i := range t.Columns {
		if t.right[i] {
			cfgs = append(cfgs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	if len(cfgs) > 0 {
		tw.SetColumnConfigs(cfgs)
	}
	for _, row := range t.rows {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		tw.AppendRow(tr)
	}
	tw.Render()
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// Styler colours semantic cell classes.
type Styler struct {
	on bool
}

func (s Styler) paint(str string, c text.Color) string {
	if !s.on {
		return str
	}
	return text.Colors{c}.Sprint(str)
}

// Dur colours a duration cell.
func (s Styler) Dur(str string) string { return s.paint(str, text.FgGreen) }

// Pkg colours a package cell.
func (s Styler) Pkg(str string) string { return s.paint(str, text.FgCyan) }

// Count colours a counter cell.
func (s Styler) Count(str string) string { return s.paint(str, text.FgYellow) }

// Warn colours unknown or overdue cells.
func (s Styler) Warn(str string) string { return s.paint(str, text.FgRed) }
