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
	"sort"

	"github.com/rs/zerolog"

	"github.com/klausman/plop/internal/parser"
)

// Result classifies what feeding one event did.
type Result uint8

const (
	// Recorded: a start was noted, nothing to emit.
	Recorded Result = iota
	// Completed: a start/stop pair resolved into the returned Run.
	Completed
	// Unmatched: a stop arrived with no open start.
	Unmatched
	// Discarded: a pair resolved to a non-positive duration.
	Discarded
	// Ignored: the event kind carries no pairing information.
	Ignored
)

// Run is a matched start/stop pair. Ended is zero for builds still
// open at end of stream.
type Run struct {
	Pkg     parser.PackageKey
	Repo    string
	Started int64
	Ended   int64
	Binary  bool
}

// Duration is the run length in seconds.
func (r Run) Duration() int64 { return r.Ended - r.Started }

type open struct {
	ts     int64
	pkg    parser.PackageKey
	binary bool
}

// Matcher pairs starts with stops, keyed by package-version for merges
// and unmerges and by repository for syncs. A new driver invocation, a
// driver exit, or an "(1 of N)" start abandons all open merges,
// mirroring how portage exits and restarts with --keep-going.
type Matcher struct {
	log zerolog.Logger

	merges    map[string]open
	unmerges  map[string]open
	syncs     map[string]int64
	cycleSync int64 // start of an unnamed "=== sync" cycle, 0 if none

	// Warnings counts unmatched stops, discarded durations and
	// replaced starts.
	Warnings int
}

// NewMatcher returns a matcher logging diagnostics to log.
func NewMatcher(log zerolog.Logger) *Matcher {
	return &Matcher{
		log:      log,
		merges:   make(map[string]open),
		unmerges: make(map[string]open),
		syncs:    make(map[string]int64),
	}
}

// Feed advances the pairing state machine by one event.
func (m *Matcher) Feed(ev parser.Event) (Run, Result) {
	switch ev.Kind {
	case parser.CommandStart:
		m.abandonMerges("new driver invocation")
		return Run{}, Ignored
	case parser.DriverExit:
		m.abandonMerges("driver exit")
		return Run{}, Ignored
	case parser.MergeStart:
		if ev.Iter == 1 && len(m.merges) > 0 {
			m.abandonMerges("driver restart")
		}
		key := ev.Pkg.String()
		if prev, ok := m.merges[key]; ok {
			m.Warnings++
			m.log.Warn().Str("pkg", key).Int64("prev", prev.ts).
				Msg("merge started twice, dropping earlier start")
		}
		m.merges[key] = open{ts: ev.TS, pkg: ev.Pkg, binary: ev.Binary}
		return Run{}, Recorded
	case parser.MergeStop:
		return m.stop(m.merges, ev, "merge")
	case parser.UnmergeStart:
		key := ev.Pkg.String()
		if _, ok := m.unmerges[key]; ok {
			m.Warnings++
			m.log.Warn().Str("pkg", key).Msg("unmerge started twice, dropping earlier start")
		}
		m.unmerges[key] = open{ts: ev.TS, pkg: ev.Pkg}
		return Run{}, Recorded
	case parser.UnmergeStop:
		return m.stop(m.unmerges, ev, "unmerge")
	case parser.SyncStart:
		if ev.Repo == "" {
			m.cycleSync = ev.TS
		} else {
			m.syncs[ev.Repo] = ev.TS
		}
		return Run{}, Recorded
	case parser.SyncStop:
		return m.stopSync(ev)
	}
	return Run{}, Ignored
}

func (m *Matcher) stop(tbl map[string]open, ev parser.Event, what string) (Run, Result) {
	key := ev.Pkg.String()
	o, ok := tbl[key]
	if !ok {
		m.Warnings++
		m.log.Warn().Str("pkg", key).Int64("ts", ev.TS).
			Msgf("%s stop without start", what)
		return Run{Pkg: ev.Pkg, Ended: ev.TS}, Unmatched
	}
	delete(tbl, key)
	r := Run{Pkg: o.pkg, Started: o.ts, Ended: ev.TS, Binary: o.binary}
	if r.Duration() <= 0 {
		m.Warnings++
		m.log.Warn().Str("pkg", key).Int64("dur", r.Duration()).
			Msgf("%s with non-positive duration, discarding", what)
		return r, Discarded
	}
	return r, Completed
}

func (m *Matcher) stopSync(ev parser.Event) (Run, Result) {
	start, ok := m.syncs[ev.Repo]
	if ok {
		delete(m.syncs, ev.Repo)
	} else if m.cycleSync != 0 {
		// First repo of a cycle whose start carried no name.
		start, ok = m.cycleSync, true
		m.cycleSync = 0
	}
	if !ok {
		m.Warnings++
		m.log.Warn().Str("repo", ev.Repo).Int64("ts", ev.TS).
			Msg("sync completion without start")
		return Run{Repo: ev.Repo, Ended: ev.TS}, Unmatched
	}
	r := Run{Repo: ev.Repo, Started: start, Ended: ev.TS}
	if r.Duration() <= 0 {
		m.Warnings++
		m.log.Warn().Str("repo", ev.Repo).Int64("dur", r.Duration()).
			Msg("sync with non-positive duration, discarding")
		return r, Discarded
	}
	return r, Completed
}

func (m *Matcher) abandonMerges(why string) {
	for key := range m.merges {
		m.log.Debug().Str("pkg", key).Str("cause", why).Msg("abandoning open merge")
		delete(m.merges, key)
	}
}

// OpenMerges returns builds still open, oldest first. Used at end of
// stream to report interrupted merges.
func (m *Matcher) OpenMerges() []Run {
	runs := make([]Run, 0, len(m.merges))
	for _, o := range m.merges {
		runs = append(runs, Run{Pkg: o.pkg, Started: o.ts, Binary: o.binary})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Started < runs[j].Started })
	return runs
}
