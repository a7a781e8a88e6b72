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

// Package report builds the four reports (log, stats, predict,
// accuracy) from the event stream.
package report

import (
	"errors"
	"time"

	"github.com/klausman/plop/internal/format"
	"github.com/klausman/plop/internal/predict"
	"github.com/klausman/plop/internal/timeutil"
)

// ErrEmpty signals a successful run that matched zero rows. The
// front-end maps it to exit code 1.
var ErrEmpty = errors.New("no matching entries")

// RowStyle bundles the display policy every builder needs to turn
// timestamps and durations into cells.
type RowStyle struct {
	Dur   timeutil.DurStyle
	Date  timeutil.DateStyle
	Loc   *time.Location
	Style format.Styler
}

// DefaultRowStyle renders local time, hms durations, no colour.
func DefaultRowStyle() RowStyle {
	return RowStyle{Loc: time.Local}
}

func (rs RowStyle) date(ts int64) string {
	return timeutil.FormatTS(ts, rs.Date, rs.loc())
}

func (rs RowStyle) dur(secs int64) string {
	return rs.Style.Dur(timeutil.FormatDur(secs, rs.Dur))
}

// unknownDur is the cell for a duration that cannot be computed.
func (rs RowStyle) unknownDur() string {
	return rs.Style.Warn("?")
}

// prediction renders a tagged estimate: plain for Known, "~" marks a
// fallback, overdue builds get the traditional phrase.
func (rs RowStyle) prediction(p predict.Prediction) string {
	switch p.State {
	case predict.Unknown:
		return rs.Style.Warn("~" + timeutil.FormatDur(p.Secs, rs.Dur))
	case predict.Overdue:
		return rs.Style.Warn("any time now")
	}
	return rs.dur(p.Secs)
}

func (rs RowStyle) loc() *time.Location {
	if rs.Loc == nil {
		return time.Local
	}
	return rs.Loc
}
