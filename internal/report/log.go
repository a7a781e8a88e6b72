// Copyright 2022 Tobias Klausmann
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

package report

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/format"
	"github.com/klausman/plop/internal/history"
	"github.com/klausman/plop/internal/parser"
	"github.com/klausman/plop/internal/pipeline"
)

// LogOptions parameterises the chronological event listing.
type LogOptions struct {
	Filter filter.Filter
	// Show sections: m merges, u unmerges, s syncs.
	Show      filter.Show
	First     int // stop after this many rows, 0 = all
	Last      int // keep only the trailing rows, 0 = all
	StartTime bool
	Rows      RowStyle
	Log       zerolog.Logger
}

func logTable() *format.Table {
	return format.NewTable("Date", "Duration", "Action", "Package").AlignRight(1)
}

// BuildLog consumes a forward event stream and emits one row per
// matched event. Returns the rows built so far alongside any terminal
// stream error, plus the warning count.
func BuildLog(items <-chan pipeline.Item, stop func(), o LogOptions) (*format.Table, int, error) {
	t := logTable()
	m := history.NewMatcher(o.Log)
	for it := range items {
		if it.Err != nil {
			return t, m.Warnings, it.Err
		}
		if !o.addLogRow(t, m, it.Ev) {
			continue
		}
		if o.First > 0 && t.Len() >= o.First {
			stop()
			// Drain so the producer observes the drop promptly.
			for range items {
			}
			return t, m.Warnings, nil
		}
	}
	// Builds still open at end of log were interrupted.
	if o.Show.Has('m') {
		for _, run := range m.OpenMerges() {
			if o.Filter.MatchPkg(run.Pkg) && o.Filter.InRange(run.Started) {
				t.Add(o.Rows.date(run.Started), o.Rows.unknownDur(), "Merge",
					o.Rows.Style.Pkg(run.Pkg.String()))
			}
		}
	}
	if o.Last > 0 {
		t = trimTable(t, o.Last)
	}
	return t, m.Warnings, nil
}

// addLogRow feeds one event and appends a row if it completes or fails
// to complete something visible. Reports whether a row was added.
func (o *LogOptions) addLogRow(t *format.Table, m *history.Matcher, ev parser.Event) bool {
	run, res := m.Feed(ev)
	if res != history.Completed && res != history.Unmatched {
		return false
	}
	var action string
	var subject string
	switch ev.Kind {
	case parser.MergeStop:
		if !o.Show.Has('m') || !o.Filter.MatchPkg(run.Pkg) {
			return false
		}
		action, subject = "Merge", o.Rows.Style.Pkg(run.Pkg.String())
	case parser.UnmergeStop:
		if !o.Show.Has('u') || !o.Filter.MatchPkg(run.Pkg) {
			return false
		}
		action, subject = "Unmerge", o.Rows.Style.Pkg(run.Pkg.String())
	case parser.SyncStop:
		if !o.Show.Has('s') || !o.Filter.MatchRepo(run.Repo) {
			return false
		}
		action, subject = "Sync", o.Rows.Style.Pkg(run.Repo)
	default:
		return false
	}
	ts := run.Ended
	if o.StartTime && res == history.Completed {
		ts = run.Started
	}
	if !o.Filter.InRange(ts) {
		return false
	}
	dur := o.Rows.unknownDur()
	if res == history.Completed {
		dur = o.Rows.dur(run.Duration())
	}
	t.Add(o.Rows.date(ts), dur, action, subject)
	return true
}

func trimTable(t *format.Table, n int) *format.Table {
	if t.Len() <= n {
		return t
	}
	nt := logTable()
	for _, row := range t.Rows()[t.Len()-n:] {
		nt.Add(row...)
	}
	return nt
}

// tailRow is a row found during reverse iteration, keyed for final
// ordering: seq is the file position of the event that would have
// produced the row in a forward pass (higher = later in file).
type tailRow struct {
	seq   int64
	cells []string
}

// BuildLogTail consumes a reverse (newest line first) event stream and
// reconstructs the trailing `last` rows a forward pass would have
// produced, without reading the whole file.
func BuildLogTail(items <-chan pipeline.Item, stop func(), o LogOptions) (*format.Table, int, error) {
	rt := newReverseTracker(o)
	var seq int64 = 1 << 60
	for it := range items {
		if it.Err != nil {
			return rt.table(o), rt.warnings, it.Err
		}
		seq--
		rt.feed(it.Ev, seq)
		if o.Last > 0 && rt.complete >= o.Last && rt.pendingStops() == 0 {
			stop()
			for range items {
			}
			return rt.table(o), rt.warnings, nil
		}
	}
	rt.flushUnmatched()
	return rt.table(o), rt.warnings, nil
}

type pendingStop struct {
	seq int64
	ts  int64
}

type reverseTracker struct {
	o LogOptions

	mergeStops   map[string]pendingStop
	unmergeStops map[string]pendingStop
	syncStops    []struct {
		repo string
		p    pendingStop
	}
	// boundarySeen: a later driver restart abandons earlier open
	// merges, so starts before it are not "interrupted at EOF".
	boundarySeen bool

	rows     []tailRow
	complete int
	warnings int
}

func newReverseTracker(o LogOptions) *reverseTracker {
	return &reverseTracker{
		o:            o,
		mergeStops:   make(map[string]pendingStop),
		unmergeStops: make(map[string]pendingStop),
	}
}

func (rt *reverseTracker) pendingStops() int {
	return len(rt.mergeStops) + len(rt.unmergeStops) + len(rt.syncStops)
}

func (rt *reverseTracker) feed(ev parser.Event, seq int64) {
	o := &rt.o
	switch ev.Kind {
	case parser.MergeStop:
		rt.mergeStops[ev.Pkg.String()] = pendingStop{seq: seq, ts: ev.TS}
	case parser.UnmergeStop:
		rt.unmergeStops[ev.Pkg.String()] = pendingStop{seq: seq, ts: ev.TS}
	case parser.SyncStop:
		rt.syncStops = append(rt.syncStops, struct {
			repo string
			p    pendingStop
		}{ev.Repo, pendingStop{seq: seq, ts: ev.TS}})
	case parser.MergeStart:
		key := ev.Pkg.String()
		if stopEv, ok := rt.mergeStops[key]; ok {
			delete(rt.mergeStops, key)
			rt.pair(ev, stopEv, "Merge", ev.Pkg.String(), o.Show.Has('m') && o.Filter.MatchPkg(ev.Pkg))
		} else if !rt.boundarySeen && o.Show.Has('m') &&
			o.Filter.MatchPkg(ev.Pkg) && o.Filter.InRange(ev.TS) {
			// No completion later in the file and no restart either:
			// interrupted at end of log. These sort after all real
			// rows, by start time among themselves.
			rt.rows = append(rt.rows, tailRow{seq: 1<<61 + ev.TS, cells: []string{
				o.Rows.date(ev.TS), o.Rows.unknownDur(), "Merge",
				o.Rows.Style.Pkg(ev.Pkg.String()),
			}})
		}
		if ev.Iter == 1 {
			rt.crossBoundary()
		}
	case parser.CommandStart, parser.DriverExit:
		rt.crossBoundary()
	case parser.UnmergeStart:
		key := ev.Pkg.String()
		if stopEv, ok := rt.unmergeStops[key]; ok {
			delete(rt.unmergeStops, key)
			rt.pair(ev, stopEv, "Unmerge", ev.Pkg.String(), o.Show.Has('u') && o.Filter.MatchPkg(ev.Pkg))
		}
	case parser.SyncStart:
		rt.pairSync(ev)
	}
}

// pair emits a completed row for a start meeting its already-seen stop.
func (rt *reverseTracker) pair(start parser.Event, stopEv pendingStop, action, subject string, shown bool) {
	o := &rt.o
	dur := stopEv.ts - start.TS
	if dur <= 0 {
		rt.warnings++
		o.Log.Warn().Str("pkg", subject).Int64("dur", dur).
			Msg("non-positive duration, discarding")
		return
	}
	ts := stopEv.ts
	if o.StartTime {
		ts = start.TS
	}
	if !shown || !o.Filter.InRange(ts) {
		return
	}
	rt.rows = append(rt.rows, tailRow{seq: stopEv.seq, cells: []string{
		o.Rows.date(ts), o.Rows.dur(dur), action, o.Rows.Style.Pkg(subject),
	}})
	rt.complete++
}

func (rt *reverseTracker) pairSync(start parser.Event) {
	// A named start matches its repo's earliest pending completion;
	// an unnamed cycle start is claimed by the earliest pending one.
	idx := -1
	for i, s := range rt.syncStops {
		if start.Repo == "" || s.repo == start.Repo {
			if idx < 0 || s.p.seq < rt.syncStops[idx].p.seq {
				idx = i
			}
		}
	}
	if idx < 0 {
		return
	}
	s := rt.syncStops[idx]
	rt.syncStops = append(rt.syncStops[:idx], rt.syncStops[idx+1:]...)
	o := &rt.o
	dur := s.p.ts - start.TS
	if dur <= 0 {
		rt.warnings++
		o.Log.Warn().Str("repo", s.repo).Int64("dur", dur).
			Msg("non-positive sync duration, discarding")
		return
	}
	ts := s.p.ts
	if o.StartTime {
		ts = start.TS
	}
	if !o.Show.Has('s') || !o.Filter.MatchRepo(s.repo) || !o.Filter.InRange(ts) {
		return
	}
	rt.rows = append(rt.rows, tailRow{seq: s.p.seq, cells: []string{
		o.Rows.date(ts), o.Rows.dur(dur), "Sync", o.Rows.Style.Pkg(s.repo),
	}})
	rt.complete++
}

// crossBoundary handles walking past a driver restart: merge starts on
// the far side were abandoned, so stops still pending will never match
// and resolve as unmatched, exactly as the forward pass sees them.
func (rt *reverseTracker) crossBoundary() {
	rt.boundarySeen = true
	o := &rt.o
	for key, p := range rt.mergeStops {
		delete(rt.mergeStops, key)
		rt.warnings++
		o.Log.Warn().Str("pkg", key).Int64("ts", p.ts).Msg("merge stop without start")
		pkg, _ := parser.SplitPkgVer(key)
		if !o.Show.Has('m') || !o.Filter.MatchPkg(pkg) || !o.Filter.InRange(p.ts) {
			continue
		}
		rt.rows = append(rt.rows, tailRow{seq: p.seq, cells: []string{
			o.Rows.date(p.ts), o.Rows.unknownDur(), "Merge", o.Rows.Style.Pkg(key),
		}})
	}
}

// flushUnmatched turns stops that never met a start into "?" rows.
func (rt *reverseTracker) flushUnmatched() {
	o := &rt.o
	emit := func(p pendingStop, action, subject string, shown bool) {
		rt.warnings++
		o.Log.Warn().Str("subject", subject).Int64("ts", p.ts).
			Msgf("%s stop without start", action)
		if !shown || !o.Filter.InRange(p.ts) {
			return
		}
		rt.rows = append(rt.rows, tailRow{seq: p.seq, cells: []string{
			o.Rows.date(p.ts), o.Rows.unknownDur(), action, o.Rows.Style.Pkg(subject),
		}})
	}
	for key, p := range rt.mergeStops {
		pkg, _ := parser.SplitPkgVer(key)
		emit(p, "Merge", key, o.Show.Has('m') && o.Filter.MatchPkg(pkg))
	}
	for key, p := range rt.unmergeStops {
		pkg, _ := parser.SplitPkgVer(key)
		emit(p, "Unmerge", key, o.Show.Has('u') && o.Filter.MatchPkg(pkg))
	}
	for _, s := range rt.syncStops {
		emit(s.p, "Sync", s.repo, o.Show.Has('s') && o.Filter.MatchRepo(s.repo))
	}
}

// table sorts collected rows back into file order and applies the
// trailing-N limit.
func (rt *reverseTracker) table(o LogOptions) *format.Table {
	sort.Slice(rt.rows, func(i, j int) bool { return rt.rows[i].seq < rt.rows[j].seq })
	rows := rt.rows
	if o.Last > 0 && len(rows) > o.Last {
		rows = rows[len(rows)-o.Last:]
	}
	t := logTable()
	for _, r := range rows {
		t.Add(r.cells...)
	}
	return t
}
