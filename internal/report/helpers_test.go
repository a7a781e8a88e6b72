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
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/parser"
	"github.com/klausman/plop/internal/pipeline"
	"github.com/klausman/plop/internal/timeutil"
)

// eventsFrom parses a log fixture into events.
func eventsFrom(t *testing.T, log string) []parser.Event {
	t.Helper()
	p := parser.New(bufio.NewScanner(strings.NewReader(log)), zerolog.Nop())
	var evs []parser.Event
	for {
		ev, err := p.Next()
		if err == io.EOF {
			return evs
		}
		require.NoError(t, err)
		evs = append(evs, ev)
	}
}

// streamOf delivers events over a pre-filled, closed channel, the way
// the consumer sees a finished producer.
func streamOf(evs ...parser.Event) <-chan pipeline.Item {
	ch := make(chan pipeline.Item, len(evs)+1)
	for _, ev := range evs {
		ch <- pipeline.Item{Ev: ev}
	}
	close(ch)
	return ch
}

func streamWithError(err error, evs ...parser.Event) <-chan pipeline.Item {
	ch := make(chan pipeline.Item, len(evs)+1)
	for _, ev := range evs {
		ch <- pipeline.Item{Ev: ev}
	}
	ch <- pipeline.Item{Err: err}
	close(ch)
	return ch
}

func reversed(evs []parser.Event) []parser.Event {
	out := make([]parser.Event, len(evs))
	for i, ev := range evs {
		out[len(evs)-1-i] = ev
	}
	return out
}

// testRows renders timestamps and durations as raw numbers, in UTC and
// without colour, so rows assert cleanly.
func testRows() RowStyle {
	return RowStyle{Dur: timeutil.DurSecs, Date: timeutil.DateUnix, Loc: time.UTC}
}

func mustShow(t *testing.T, s, allowed string) filter.Show {
	t.Helper()
	show, err := filter.ParseShow(s, allowed)
	require.NoError(t, err)
	return show
}

func noStop() {}
