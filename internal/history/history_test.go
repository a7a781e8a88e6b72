// Copyright 2021 Tobias Klausmann
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

package history

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klausman/plop/internal/parser"
)

func TestIndexAppendAndTrim(t *testing.T) {
	ix := NewIndex(3)
	for i := int64(1); i <= 20; i++ {
		ix.AddMerge("app-misc/foo", i)
	}
	tail := ix.Merges("app-misc/foo")
	// Trimming may keep a margin beyond the window but never grows
	// without bound, and the most recent entries are last.
	assert.LessOrEqual(t, len(tail), 3+margin)
	assert.GreaterOrEqual(t, len(tail), 3)
	assert.Equal(t, int64(20), tail[len(tail)-1])

	assert.Empty(t, ix.Merges("app-misc/unknown"))
	ix.AddSync("gentoo", 42)
	assert.Equal(t, []int64{42}, ix.Syncs("gentoo"))
	ix.AddUnmerge("app-misc/foo", 7)
	assert.Equal(t, []int64{7}, ix.Unmerges("app-misc/foo"))
	assert.Equal(t, []string{"app-misc/foo"}, ix.Packages())
}

func pkg(s string) parser.PackageKey {
	p, _ := parser.SplitPkgVer(s)
	return p
}

func TestMatcherMergePair(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	_, res := m.Feed(parser.Event{TS: 100, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 1, Total: 1})
	assert.Equal(t, Recorded, res)
	run, res := m.Feed(parser.Event{TS: 160, Kind: parser.MergeStop, Pkg: pkg("a/b-1")})
	require.Equal(t, Completed, res)
	assert.Equal(t, int64(60), run.Duration())
	assert.Equal(t, "a/b-1", run.Pkg.String())
	assert.Zero(t, m.Warnings)
}

func TestMatcherUnmatchedStop(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	run, res := m.Feed(parser.Event{TS: 160, Kind: parser.MergeStop, Pkg: pkg("a/b-1")})
	assert.Equal(t, Unmatched, res)
	assert.Equal(t, int64(160), run.Ended)
	assert.Equal(t, 1, m.Warnings)
}

func TestMatcherNegativeDuration(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	m.Feed(parser.Event{TS: 100, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 1, Total: 1})
	_, res := m.Feed(parser.Event{TS: 50, Kind: parser.MergeStop, Pkg: pkg("a/b-1")})
	assert.Equal(t, Discarded, res)
	assert.Equal(t, 1, m.Warnings)
}

func TestMatcherReplacedStart(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	m.Feed(parser.Event{TS: 100, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 2, Total: 3})
	m.Feed(parser.Event{TS: 200, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 2, Total: 3})
	assert.Equal(t, 1, m.Warnings)
	run, res := m.Feed(parser.Event{TS: 260, Kind: parser.MergeStop, Pkg: pkg("a/b-1")})
	require.Equal(t, Completed, res)
	assert.Equal(t, int64(60), run.Duration())
}

func TestMatcherDriverRestartAbandons(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	m.Feed(parser.Event{TS: 100, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 3, Total: 9})
	// A fresh "(1 of N)" start means the driver restarted; the open
	// merge never completed.
	m.Feed(parser.Event{TS: 200, Kind: parser.MergeStart, Pkg: pkg("c/d-2"), Iter: 1, Total: 4})
	_, res := m.Feed(parser.Event{TS: 300, Kind: parser.MergeStop, Pkg: pkg("a/b-1")})
	assert.Equal(t, Unmatched, res)

	m2 := NewMatcher(zerolog.Nop())
	m2.Feed(parser.Event{TS: 100, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 3, Total: 9})
	m2.Feed(parser.Event{TS: 150, Kind: parser.CommandStart, Argv: "--resume"})
	assert.Empty(t, m2.OpenMerges())
}

// feedLog runs a raw log fixture through the parser into the matcher
// and returns the matcher plus the result of the final event.
func feedLog(t *testing.T, m *Matcher, log string) Result {
	t.Helper()
	p := parser.New(bufio.NewScanner(strings.NewReader(log)), zerolog.Nop())
	res := Ignored
	for {
		ev, err := p.Next()
		if err == io.EOF {
			return res
		}
		require.NoError(t, err)
		_, res = m.Feed(ev)
	}
}

func TestMatcherDriverExitAbandons(t *testing.T) {
	// An interrupted build followed by the driver going away must not
	// pair with a later unrelated completion of the same version, and
	// never enters history. Both exit message forms count, like the
	// "(1 of" restart.
	for _, exitLine := range []string{
		"*** exiting successfully.",
		"*** terminating.",
	} {
		m := NewMatcher(zerolog.Nop())
		feedLog(t, m, "1000: >>> emerge (3 of 9) a/b-1 to /\n"+
			"1100: "+exitLine+"\n")
		assert.Empty(t, m.OpenMerges(), exitLine)

		// A stray completion for the same package-version later on is
		// unmatched, not a bogus multi-hour duration.
		res := feedLog(t, m, "90000: ::: completed emerge (3 of 9) a/b-1 to /\n")
		assert.Equal(t, Unmatched, res, exitLine)
	}
}

func TestMatcherSyncCycleInheritance(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	// Old-style cycle marker with no repo name; the first completion
	// claims it.
	m.Feed(parser.Event{TS: 1000, Kind: parser.SyncStart})
	run, res := m.Feed(parser.Event{TS: 1090, Kind: parser.SyncStop, Repo: "gentoo"})
	require.Equal(t, Completed, res)
	assert.Equal(t, "gentoo", run.Repo)
	assert.Equal(t, int64(90), run.Duration())

	// The second completion in the same cycle has no start at all.
	_, res = m.Feed(parser.Event{TS: 1100, Kind: parser.SyncStop, Repo: "guru"})
	assert.Equal(t, Unmatched, res)
}

func TestMatcherNamedSync(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	m.Feed(parser.Event{TS: 1000, Kind: parser.SyncStart, Repo: "gentoo"})
	m.Feed(parser.Event{TS: 1010, Kind: parser.SyncStart, Repo: "guru"})
	run, res := m.Feed(parser.Event{TS: 1090, Kind: parser.SyncStop, Repo: "guru"})
	require.Equal(t, Completed, res)
	assert.Equal(t, int64(80), run.Duration())
	run, res = m.Feed(parser.Event{TS: 1100, Kind: parser.SyncStop, Repo: "gentoo"})
	require.Equal(t, Completed, res)
	assert.Equal(t, int64(100), run.Duration())
}

func TestMatcherOpenMergesOrdered(t *testing.T) {
	m := NewMatcher(zerolog.Nop())
	m.Feed(parser.Event{TS: 300, Kind: parser.MergeStart, Pkg: pkg("c/d-2"), Iter: 2, Total: 3})
	m.Feed(parser.Event{TS: 200, Kind: parser.MergeStart, Pkg: pkg("a/b-1"), Iter: 3, Total: 3})
	open := m.OpenMerges()
	require.Len(t, open, 2)
	assert.Equal(t, int64(200), open[0].Started)
	assert.Equal(t, int64(300), open[1].Started)
}
