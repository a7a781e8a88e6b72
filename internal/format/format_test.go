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

package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTab(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "tab", "never", false)
	require.NoError(t, err)
	tbl := NewTable("Date", "Duration", "Package")
	tbl.Add("1700000060", "60", "a/b-1")
	tbl.Add("1700000120", "30", "c/d-2")
	r.Render(tbl)
	assert.Equal(t, "1700000060\t60\ta/b-1\n1700000120\t30\tc/d-2\n", buf.String())
}

func TestRenderTabHeader(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "tab", "never", true)
	require.NoError(t, err)
	tbl := NewTable("Date", "Duration")
	tbl.Title = "Merges"
	tbl.Add("1", "2")
	r.Render(tbl)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Merges:", lines[0])
	assert.Equal(t, "Date\tDuration", lines[1])
}

func TestRenderColumnsAligned(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "columns", "never", false)
	require.NoError(t, err)
	tbl := NewTable("Date", "Duration", "Package").AlignRight(1)
	tbl.Add("1700000060", "60", "a/b-1")
	tbl.Add("1700000120", "3600", "c/d-2")
	r.Render(tbl)
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	// Cells are padded into columns of equal width.
	assert.Equal(t, len(lines[0]), len(lines[1]))
	assert.Contains(t, lines[0], "a/b-1")
	assert.Contains(t, lines[1], "c/d-2")
	assert.NotContains(t, out, "\x1b[", "colour disabled")
}

func TestRenderEmptyTableSilent(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "columns", "never", true)
	require.NoError(t, err)
	r.Render(NewTable("A", "B"))
	assert.Zero(t, buf.Len())
}

func TestRendererBadModes(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewRenderer(&buf, "sideways", "never", false)
	assert.Error(t, err)
	_, err = NewRenderer(&buf, "tab", "sometimes", false)
	assert.Error(t, err)
}

func TestStyler(t *testing.T) {
	off := Styler{}
	assert.Equal(t, "x", off.Dur("x"))

	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "columns", "always", false)
	require.NoError(t, err)
	assert.Contains(t, r.Style.Warn("x"), "x")
	assert.NotEqual(t, "x", r.Style.Warn("x"))
}

func TestNonTTYAutoIsTab(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "auto", "auto", false)
	require.NoError(t, err)
	tbl := NewTable("A")
	tbl.Add("v")
	r.Render(tbl)
	assert.Equal(t, "v\n", buf.String())
}
