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

// Package timeutil holds the date-expression grammar and the duration
// and timestamp display styles.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Location returns the display/grouping timezone for the utc flag.
func Location(utc bool) *time.Location {
	if utc {
		return time.UTC
	}
	return time.Local
}

var relTermRegEx = regexp.MustCompile(`^(\d+)\s*([a-z]+)\s*`)

// unit seconds for the relative grammar. Months and years use calendar
// averages, as the usual tools in this family do.
const (
	secsPerHour  = 3600
	secsPerDay   = 24 * secsPerHour
	secsPerWeek  = 7 * secsPerDay
	secsPerMonth = 2629800  // 30.4375 d
	secsPerYear  = 31557600 // 365.25 d
)

// ParseDate turns a date expression into Unix seconds. Accepted forms:
// plain Unix seconds, ISO-8601 dates or date-times interpreted in loc,
// and relative expressions like "1w3d" or "2 weeks" counted back from
// now.
func ParseDate(s string, now time.Time, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty date")
	}
	if isDigits(s) {
		return strconv.ParseInt(s, 10, 64)
	}
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"2006-01-02",
		time.RFC3339,
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), nil
		}
	}
	secs, err := parseRelative(strings.ToLower(s))
	if err != nil {
		return 0, err
	}
	return now.Unix() - secs, nil
}

func parseRelative(s string) (int64, error) {
	orig := s
	var total int64
	for s != "" {
		m := relTermRegEx.FindStringSubmatch(s)
		if m == nil {
			return 0, fmt.Errorf("bad date expression %q", orig)
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad date expression %q: %w", orig, err)
		}
		// Units match on their first letter so "3d", "3 day" and
		// "3 days" all work.
		switch m[2][0] {
		case 'y':
			total += n * secsPerYear
		case 'm':
			total += n * secsPerMonth
		case 'w':
			total += n * secsPerWeek
		case 'd':
			total += n * secsPerDay
		case 'h':
			total += n * secsPerHour
		case 's':
			total += n
		default:
			return 0, fmt.Errorf("bad date unit %q in %q", m[2], orig)
		}
		s = s[len(m[0]):]
	}
	return total, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// DurStyle selects a duration rendering.
type DurStyle uint8

const (
	DurHMS DurStyle = iota
	DurHMSFixed
	DurSecs
	DurHuman
)

// ParseDurStyle maps the CLI/config spelling to a DurStyle.
func ParseDurStyle(s string) (DurStyle, error) {
	switch s {
	case "hms":
		return DurHMS, nil
	case "hmsfixed":
		return DurHMSFixed, nil
	case "secs", "s":
		return DurSecs, nil
	case "human":
		return DurHuman, nil
	}
	return DurHMS, fmt.Errorf("unknown duration style %q", s)
}

// FormatDur renders a non-negative duration in seconds. Callers render
// unknown durations as "?" themselves.
func FormatDur(secs int64, style DurStyle) string {
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs/60%60, secs%60
	switch style {
	case DurHMSFixed:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case DurSecs:
		return strconv.FormatInt(secs, 10)
	case DurHuman:
		return humanDur(secs)
	}
	// hms: only as many leading fields as needed
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%d:%02d", m, s)
	}
	return strconv.FormatInt(s, 10)
}

func humanDur(secs int64) string {
	if secs == 0 {
		return "0s"
	}
	d, h, m, s := secs/secsPerDay, secs/3600%24, secs/60%60, secs%60
	var parts []string
	if d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
	}
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// DateStyle selects a timestamp rendering.
type DateStyle uint8

const (
	DateYMDHMS DateStyle = iota
	DateYMD
	DateRFC3339
	DateUnix
)

// ParseDateStyle maps the CLI/config spelling to a DateStyle.
func ParseDateStyle(s string) (DateStyle, error) {
	switch s {
	case "ymdhms", "":
		return DateYMDHMS, nil
	case "ymd":
		return DateYMD, nil
	case "rfc3339", "3339":
		return DateRFC3339, nil
	case "unix":
		return DateUnix, nil
	}
	return DateYMDHMS, fmt.Errorf("unknown date style %q", s)
}

// FormatTS renders a Unix-seconds timestamp in loc.
func FormatTS(ts int64, style DateStyle, loc *time.Location) string {
	t := time.Unix(ts, 0).In(loc)
	switch style {
	case DateYMD:
		return t.Format("2006-01-02")
	case DateRFC3339:
		return t.Format(time.RFC3339)
	case DateUnix:
		return strconv.FormatInt(ts, 10)
	}
	return t.Format("2006-01-02 15:04:05")
}

// Group is the stats grouping period.
type Group uint8

const (
	GroupNone Group = iota
	GroupYear
	GroupMonth
	GroupWeek
	GroupDay
)

// ParseGroup maps the CLI/config spelling to a Group.
func ParseGroup(s string) (Group, error) {
	switch s {
	case "n", "none", "":
		return GroupNone, nil
	case "y", "year":
		return GroupYear, nil
	case "m", "month":
		return GroupMonth, nil
	case "w", "week":
		return GroupWeek, nil
	case "d", "day":
		return GroupDay, nil
	}
	return GroupNone, fmt.Errorf("unknown grouping %q", s)
}

// GroupKey buckets a timestamp. Weeks are ISO weeks (Monday start);
// all boundaries honour loc.
func GroupKey(ts int64, g Group, loc *time.Location) string {
	t := time.Unix(ts, 0).In(loc)
	switch g {
	case GroupYear:
		return t.Format("2006")
	case GroupMonth:
		return t.Format("2006-01")
	case GroupWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case GroupDay:
		return t.Format("2006-01-02")
	}
	return ""
}
