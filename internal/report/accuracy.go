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

// AccuracyOptions parameterises the estimate-quality report.
type AccuracyOptions struct {
	Filter filter.Filter
	// Show sections: m per-merge rows, t summary.
	Show    filter.Show
	Last    int // keep only the trailing per-merge rows, 0 = all
	Predict predict.Config
	Rows    RowStyle
	Log     zerolog.Logger
}

type residual struct {
	ts        int64
	cn        string
	pkg       string
	predicted int64
	actual    int64
}

func (r residual) signed() int64 { return r.actual - r.predicted }

func (r residual) abs() int64 {
	if d := r.signed(); d < 0 {
		return -d
	}
	return r.signed()
}

// BuildAccuracy replays the stream and, for every completed merge,
// compares the estimate the engine would have produced from prior
// history with the observed duration.
func BuildAccuracy(items <-chan pipeline.Item, o AccuracyOptions) ([]*format.Table, int, error) {
	m := history.NewMatcher(o.Log)
	ix := history.NewIndex(o.Predict.Window)
	var recs []residual
	for it := range items {
		if it.Err != nil {
			return nil, m.Warnings, it.Err
		}
		run, res := m.Feed(it.Ev)
		if res != history.Completed || it.Ev.Kind != parser.MergeStop {
			continue
		}
		cn := run.Pkg.CN()
		p := o.Predict.Predict(ix.Merges(cn), run.Binary)
		// History grows regardless of the filter so that estimates
		// reflect everything the engine knew at that point.
		ix.AddMerge(cn, run.Duration())
		if p.State != predict.Known {
			continue
		}
		if !o.Filter.InRange(run.Ended) || !o.Filter.MatchPkg(run.Pkg) {
			continue
		}
		recs = append(recs, residual{
			ts:        run.Ended,
			cn:        cn,
			pkg:       run.Pkg.String(),
			predicted: p.Secs,
			actual:    run.Duration(),
		})
	}
	return o.tables(recs), m.Warnings, nil
}

func (o *AccuracyOptions) tables(recs []residual) []*format.Table {
	var out []*format.Table
	if o.Show.Has('m') {
		t := format.NewTable("Date", "Package", "Predicted", "Actual", "Error").
			AlignRight(2, 3, 4)
		t.Title = "Merges"
		rows := recs
		if o.Last > 0 && len(rows) > o.Last {
			rows = rows[len(rows)-o.Last:]
		}
		for _, r := range rows {
			t.Add(
				o.Rows.date(r.ts),
				o.Rows.Style.Pkg(r.pkg),
				o.Rows.dur(r.predicted),
				o.Rows.dur(r.actual),
				formatSigned(r.signed(), o.Rows),
			)
		}
		out = append(out, t)
	}
	if o.Show.Has('t') {
		t := format.NewTable("Package", "Merges", "Mean abs error", "Median abs error").
			AlignRight(1, 2, 3)
		t.Title = "Summary"
		byPkg := make(map[string][]int64)
		var all []int64
		for _, r := range recs {
			byPkg[r.cn] = append(byPkg[r.cn], r.abs())
			all = append(all, r.abs())
		}
		for _, cn := range sortedKeys(byPkg) {
			errs := byPkg[cn]
			t.Add(
				o.Rows.Style.Pkg(cn),
				o.Rows.Style.Count(strconv.Itoa(len(errs))),
				o.Rows.dur(mean(errs)),
				o.Rows.dur(medianOf(errs)),
			)
		}
		if len(all) > 0 {
			t.Add(
				"(all)",
				o.Rows.Style.Count(strconv.Itoa(len(all))),
				o.Rows.dur(mean(all)),
				o.Rows.dur(medianOf(all)),
			)
		}
		out = append(out, t)
	}
	return out
}

func formatSigned(secs int64, rs RowStyle) string {
	if secs < 0 {
		return rs.Style.Warn("-" + timeutil.FormatDur(-secs, rs.Dur))
	}
	return "+" + timeutil.FormatDur(secs, rs.Dur)
}

func mean(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vals {
		sum += v
	}
	return sum / int64(len(vals))
}

func medianOf(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]int64(nil), vals...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	if len(s)%2 != 0 {
		return s[len(s)/2]
	}
	hi := len(s) / 2
	return (s[hi-1] + s[hi]) / 2
}
