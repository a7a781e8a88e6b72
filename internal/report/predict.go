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
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/klausman/plop/internal/discovery"
	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/format"
	"github.com/klausman/plop/internal/history"
	"github.com/klausman/plop/internal/parser"
	"github.com/klausman/plop/internal/pipeline"
	"github.com/klausman/plop/internal/predict"
	"github.com/klausman/plop/internal/timeutil"
)

// PredictOptions parameterises the remaining-time estimate.
type PredictOptions struct {
	// Show sections: m running merges, e queued estimates, t total.
	Show    filter.Show
	Predict predict.Config
	Rows    RowStyle
	Now     int64
	Log     zerolog.Logger

	Discovery discovery.Result
	Pretend   []discovery.InFlight
}

// BuildPredict joins the history index built from the stream with the
// live-build discovery result and the pretend list. It returns the
// per-item table and a summary line ("" when suppressed).
func BuildPredict(items <-chan pipeline.Item, o PredictOptions) (*format.Table, string, int, error) {
	m := history.NewMatcher(o.Log)
	ix := history.NewIndex(o.Predict.Window)
	for it := range items {
		if it.Err != nil {
			return nil, "", m.Warnings, it.Err
		}
		run, res := m.Feed(it.Ev)
		if res == history.Completed && it.Ev.Kind == parser.MergeStop {
			ix.AddMerge(run.Pkg.CN(), run.Duration())
		}
	}
	// The log knows when an open merge started even when the process
	// table does not.
	openStarts := make(map[string]int64)
	for _, run := range m.OpenMerges() {
		openStarts[run.Pkg.CN()] = run.Started
	}

	list := mergeQueues(o.Discovery, o.Pretend)
	t := format.NewTable("Package", "Phase", "Elapsed", "ETA").AlignRight(2, 3)
	var totalSecs int64
	var running int
	for _, item := range list {
		hist := ix.Merges(item.Pkg.CN())
		p := o.Predict.Predict(hist, item.Binary)
		started := item.StartedAt
		if started == 0 {
			started = openStarts[item.Pkg.CN()]
		}
		elapsed := ""
		active := item.Source == discovery.SourceProcess || item.Source == discovery.SourceTmpdir
		if active {
			running++
			if started > 0 && o.Now > started {
				el := o.Now - started
				elapsed = timeutil.FormatDur(el, o.Rows.Dur)
				p = predict.Remaining(p, el)
			}
		}
		totalSecs += remainingSecs(p)
		show := 'e'
		if active {
			show = 'm'
		}
		if !o.Show.Has(byte(show)) {
			continue
		}
		t.Add(
			o.Rows.Style.Pkg(item.Pkg.String()),
			item.Phase,
			elapsed,
			o.Rows.prediction(p),
		)
	}

	summary := ""
	if o.Show.Has('t') && len(list) > 0 {
		var parts []string
		parts = append(parts, fmt.Sprintf("Estimate for %d package(s) (%d running): %s",
			len(list), running, timeutil.FormatDur(totalSecs, o.Rows.Dur)))
		if o.Discovery.DriverStart > 0 && o.Now > o.Discovery.DriverStart {
			parts = append(parts, fmt.Sprintf("driver running for %s",
				timeutil.FormatDur(o.Now-o.Discovery.DriverStart, o.Rows.Dur)))
		}
		if o.Discovery.Incomplete {
			parts = append(parts, "process list incomplete")
		}
		summary = strings.Join(parts, ", ")
	}
	return t, summary, m.Warnings, nil
}

// remainingSecs is an item's contribution to the queue total.
func remainingSecs(p predict.Prediction) int64 {
	if p.State == predict.Overdue {
		return 1
	}
	return p.Secs
}

// mergeQueues orders work as the driver would get to it: active builds
// first, then the resume queue, then the pretend list, deduplicated by
// category/name.
func mergeQueues(d discovery.Result, pretend []discovery.InFlight) []discovery.InFlight {
	var out []discovery.InFlight
	seen := make(map[string]bool)
	for _, group := range [][]discovery.InFlight{d.Builds, d.Queue, pretend} {
		for _, item := range group {
			if seen[item.Pkg.CN()] {
				continue
			}
			seen[item.Pkg.CN()] = true
			out = append(out, item)
		}
	}
	return out
}
