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
	"strconv"

	"github.com/rs/zerolog"

	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/format"
	"github.com/klausman/plop/internal/history"
	"github.com/klausman/plop/internal/parser"
	"github.com/klausman/plop/internal/pipeline"
	"github.com/klausman/plop/internal/predict"
	"github.com/klausman/plop/internal/timeutil"
)

// StatsOptions parameterises the aggregated statistics report.
type StatsOptions struct {
	Filter filter.Filter
	// Show sections: p per-package, t totals, s syncs.
	Show    filter.Show
	GroupBy timeutil.Group
	Predict predict.Config
	Rows    RowStyle
	Log     zerolog.Logger
}

type bucket struct {
	count int
	total int64
}

type statsState struct {
	pkgs   map[string]map[string]bucket // group -> cat/name
	merges map[string]bucket            // group
	unmrgs map[string]bucket
	syncs  map[string]map[string]bucket // group -> repo
}

// BuildStats consumes the stream and aggregates matched runs by
// period. It returns up to three tables (packages, totals, syncs).
func BuildStats(items <-chan pipeline.Item, o StatsOptions) ([]*format.Table, int, error) {
	m := history.NewMatcher(o.Log)
	ix := history.NewIndex(o.Predict.Window)
	st := statsState{
		pkgs:   make(map[string]map[string]bucket),
		merges: make(map[string]bucket),
		unmrgs: make(map[string]bucket),
		syncs:  make(map[string]map[string]bucket),
	}
	loc := o.Rows.loc()
	for it := range items {
		if it.Err != nil {
			return nil, m.Warnings, it.Err
		}
		run, res := m.Feed(it.Ev)
		if res != history.Completed || !o.Filter.InRange(run.Ended) {
			continue
		}
		group := timeutil.GroupKey(run.Ended, o.GroupBy, loc)
		switch it.Ev.Kind {
		case parser.MergeStop:
			if !o.Filter.MatchPkg(run.Pkg) {
				continue
			}
			cn := run.Pkg.CN()
			ix.AddMerge(cn, run.Duration())
			addBucket(st.pkgs, group, cn, run.Duration())
			b := st.merges[group]
			b.count++
			b.total += run.Duration()
			st.merges[group] = b
		case parser.UnmergeStop:
			if !o.Filter.MatchPkg(run.Pkg) {
				continue
			}
			ix.AddUnmerge(run.Pkg.CN(), run.Duration())
			b := st.unmrgs[group]
			b.count++
			b.total += run.Duration()
			st.unmrgs[group] = b
		case parser.SyncStop:
			if !o.Filter.MatchRepo(run.Repo) {
				continue
			}
			ix.AddSync(run.Repo, run.Duration())
			addBucket(st.syncs, group, run.Repo, run.Duration())
		}
	}
	return o.tables(st, ix), m.Warnings, nil
}

func addBucket(m map[string]map[string]bucket, group, key string, dur int64) {
	inner, ok := m[group]
	if !ok {
		inner = make(map[string]bucket)
		m[group] = inner
	}
	b := inner[key]
	b.count++
	b.total += dur
	inner[key] = b
}

func (o *StatsOptions) tables(st statsState, ix *history.Index) []*format.Table {
	grouped := o.GroupBy != timeutil.GroupNone
	var out []*format.Table

	cols := func(rest ...string) []string {
		if grouped {
			return append([]string{"Period"}, rest...)
		}
		return rest
	}
	row := func(group string, rest ...string) []string {
		if grouped {
			return append([]string{group}, rest...)
		}
		return rest
	}
	alignFrom := 0
	if grouped {
		alignFrom = 1
	}

	if o.Show.Has('p') {
		t := format.NewTable(cols("Package", "Merges", "Total", "Predict")...)
		t.Title = "Packages"
		t.AlignRight(alignFrom+1, alignFrom+2, alignFrom+3)
		for _, group := range sortedKeys(st.pkgs) {
			inner := st.pkgs[group]
			for _, cn := range sortedKeys(inner) {
				b := inner[cn]
				p := o.Predict.Predict(ix.Merges(cn), false)
				t.Add(row(group,
					o.Rows.Style.Pkg(cn),
					o.Rows.Style.Count(strconv.Itoa(b.count)),
					o.Rows.dur(b.total),
					o.Rows.prediction(p))...)
			}
		}
		out = append(out, t)
	}
	if o.Show.Has('t') {
		t := format.NewTable(cols("Merges", "Merge time", "Unmerges", "Unmerge time")...)
		t.Title = "Totals"
		t.AlignRight(alignFrom, alignFrom+1, alignFrom+2, alignFrom+3)
		for _, group := range sortedGroups(st.merges, st.unmrgs) {
			mb, ub := st.merges[group], st.unmrgs[group]
			if mb.count == 0 && ub.count == 0 {
				continue
			}
			t.Add(row(group,
				o.Rows.Style.Count(strconv.Itoa(mb.count)),
				o.Rows.dur(mb.total),
				o.Rows.Style.Count(strconv.Itoa(ub.count)),
				o.Rows.dur(ub.total))...)
		}
		out = append(out, t)
	}
	if o.Show.Has('s') {
		t := format.NewTable(cols("Repo", "Syncs", "Total", "Predict")...)
		t.Title = "Syncs"
		t.AlignRight(alignFrom+1, alignFrom+2, alignFrom+3)
		for _, group := range sortedKeys(st.syncs) {
			inner := st.syncs[group]
			for _, repo := range sortedKeys(inner) {
				b := inner[repo]
				p := o.Predict.Predict(ix.Syncs(repo), false)
				t.Add(row(group,
					o.Rows.Style.Pkg(repo),
					o.Rows.Style.Count(strconv.Itoa(b.count)),
					o.Rows.dur(b.total),
					o.Rows.prediction(p))...)
			}
		}
		out = append(out, t)
	}
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedGroups(a, b map[string]bucket) []string {
	set := make(map[string]bool, len(a)+len(b))
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	return sortedKeys(set)
}
