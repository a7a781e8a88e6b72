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

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2023, 11, 15, 12, 0, 0, 0, time.UTC)

func TestParseDateAbsolute(t *testing.T) {
	ts, err := ParseDate("1700000000", testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)

	ts, err = ParseDate("2023-11-14", testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC).Unix(), ts)

	ts, err = ParseDate("2023-11-14 22:13:20", testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)

	ts, err = ParseDate("2023-11-14T22:13:20Z", testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts)
}

func TestParseDateRelative(t *testing.T) {
	tests := []struct {
		in   string
		back int64
	}{
		{"3d", 3 * secsPerDay},
		{"1w3d", secsPerWeek + 3*secsPerDay},
		{"1w 3d", secsPerWeek + 3*secsPerDay},
		{"2 weeks", 2 * secsPerWeek},
		{"1y", secsPerYear},
		{"6h30s", 6*secsPerHour + 30},
		{"1m", secsPerMonth},
	}
	for _, tt := range tests {
		ts, err := ParseDate(tt.in, testNow, time.UTC)
		require.NoError(t, err, tt.in)
		assert.Equal(t, testNow.Unix()-tt.back, ts, tt.in)
	}
}

func TestParseDateErrors(t *testing.T) {
	for _, in := range []string{"", "soon", "3x", "-5d", "2023-13-40"} {
		_, err := ParseDate(in, testNow, time.UTC)
		assert.Error(t, err, in)
	}
}

func TestFormatDur(t *testing.T) {
	tests := []struct {
		secs  int64
		style DurStyle
		want  string
	}{
		{45, DurHMS, "45"},
		{125, DurHMS, "2:05"},
		{3725, DurHMS, "1:02:05"},
		{45, DurHMSFixed, "0:00:45"},
		{3725, DurHMSFixed, "1:02:05"},
		{3725, DurSecs, "3725"},
		{90061, DurHuman, "1d 1h 1m 1s"},
		{3600, DurHuman, "1h"},
		{0, DurHuman, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDur(tt.secs, tt.style))
	}
}

func TestFormatTS(t *testing.T) {
	assert.Equal(t, "2023-11-14 22:13:20", FormatTS(1700000000, DateYMDHMS, time.UTC))
	assert.Equal(t, "2023-11-14", FormatTS(1700000000, DateYMD, time.UTC))
	assert.Equal(t, "1700000000", FormatTS(1700000000, DateUnix, time.UTC))
	assert.Equal(t, "2023-11-14T22:13:20Z", FormatTS(1700000000, DateRFC3339, time.UTC))
}

func TestGroupKey(t *testing.T) {
	ts := int64(1700000000) // Tue 2023-11-14 UTC
	assert.Equal(t, "2023", GroupKey(ts, GroupYear, time.UTC))
	assert.Equal(t, "2023-11", GroupKey(ts, GroupMonth, time.UTC))
	assert.Equal(t, "2023-W46", GroupKey(ts, GroupWeek, time.UTC))
	assert.Equal(t, "2023-11-14", GroupKey(ts, GroupDay, time.UTC))
	assert.Equal(t, "", GroupKey(ts, GroupNone, time.UTC))

	// ISO weeks start on Monday: Sunday 2024-01-07 belongs to week 1,
	// Monday 2024-01-08 opens week 2.
	sun := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC).Unix()
	mon := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, "2024-W01", GroupKey(sun, GroupWeek, time.UTC))
	assert.Equal(t, "2024-W02", GroupKey(mon, GroupWeek, time.UTC))
}
