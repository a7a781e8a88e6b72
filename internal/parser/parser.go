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

package parser

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	mergeStartRegEx    *regexp.Regexp
	mergeCompleteRegEx *regexp.Regexp
	unmergeStartRegEx  *regexp.Regexp
	unmergeStopRegEx   *regexp.Regexp
	syncStartRegEx     *regexp.Regexp
	syncStopRegEx      *regexp.Regexp
)

func init() {
	commonRegEx := `\((?P<ith>\d+) of (?P<total>\d+)\) (?P<pkgver>\S+) to /`
	mergeStartRegEx = regexp.MustCompile(`^>>> emerge ` + commonRegEx)
	mergeCompleteRegEx = regexp.MustCompile(`^::: completed emerge ` + commonRegEx)
	unmergeStartRegEx = regexp.MustCompile(`^=== Unmerging\.\.\.\s+\((?P<pkgver>[^)]+)\)`)
	unmergeStopRegEx = regexp.MustCompile(`^>>> unmerge success: (?P<pkgver>\S+)`)
	syncStartRegEx = regexp.MustCompile(`^>>> [Ss]yncing repository '(?P<repo>[^']+)'`)
	syncStopRegEx = regexp.MustCompile(`^=== Sync completed (?:for (?P<repo>\S+)|with\b.*)`)
}

func reMatches(re *regexp.Regexp, s string) map[string]string {
	ret := make(map[string]string)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ret
	}
	for i, name := range re.SubexpNames() {
		if i != 0 && name != "" {
			ret[name] = m[i]
		}
	}
	return ret
}

// LineSource yields log lines one at a time. Satisfied by the forward
// scanner and by ReverseScanner.
type LineSource interface {
	Scan() bool
	Text() string
	Err() error
}

// Parser consumes a LineSource and produces events. It keeps counters
// for lines it had to skip so callers can report them.
type Parser struct {
	src LineSource
	log zerolog.Logger

	lineno    int
	Skipped   int // recognised as no event
	Malformed int // unparseable timestamp or package
}

// New returns a parser reading lines from src.
func New(src LineSource, log zerolog.Logger) *Parser {
	return &Parser{src: src, log: log}
}

// Next returns the next event. It returns io.EOF once the source is
// exhausted and the source's error, if any, instead.
func (p *Parser) Next() (Event, error) {
	for p.src.Scan() {
		p.lineno++
		ev, ok := p.parseLine(p.src.Text())
		if ok {
			return ev, nil
		}
	}
	if err := p.src.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (p *Parser) parseLine(line string) (Event, bool) {
	// "1234567890: message"
	colon := strings.Index(line, ": ")
	if colon <= 0 {
		p.skip(line)
		return Event{}, false
	}
	ts, err := strconv.ParseInt(line[:colon], 10, 64)
	if err != nil {
		p.Malformed++
		p.log.Warn().Int("line", p.lineno).Str("stamp", line[:colon]).
			Msg("malformed timestamp")
		return Event{}, false
	}
	msg := line[colon+2:]

	switch {
	case strings.HasPrefix(msg, ">>> emerge "):
		if !mergeStartRegEx.MatchString(msg) {
			p.skip(line)
			return Event{}, false
		}
		v := reMatches(mergeStartRegEx, msg)
		pkg, ok := SplitPkgVer(v["pkgver"])
		if !ok {
			return p.badPkg(v["pkgver"])
		}
		ith, _ := strconv.Atoi(v["ith"])
		total, _ := strconv.Atoi(v["total"])
		return Event{
			TS: ts, Kind: MergeStart, Pkg: pkg,
			Iter: ith, Total: total,
			Binary: strings.Contains(msg, "(binary)"),
		}, true
	case strings.HasPrefix(msg, "::: completed emerge "):
		if !mergeCompleteRegEx.MatchString(msg) {
			p.skip(line)
			return Event{}, false
		}
		v := reMatches(mergeCompleteRegEx, msg)
		pkg, ok := SplitPkgVer(v["pkgver"])
		if !ok {
			return p.badPkg(v["pkgver"])
		}
		ith, _ := strconv.Atoi(v["ith"])
		total, _ := strconv.Atoi(v["total"])
		return Event{TS: ts, Kind: MergeStop, Pkg: pkg, Iter: ith, Total: total}, true
	case strings.HasPrefix(msg, "=== Unmerging..."):
		v := reMatches(unmergeStartRegEx, msg)
		if v["pkgver"] == "" {
			p.skip(line)
			return Event{}, false
		}
		pkg, ok := SplitPkgVer(v["pkgver"])
		if !ok {
			return p.badPkg(v["pkgver"])
		}
		return Event{TS: ts, Kind: UnmergeStart, Pkg: pkg}, true
	case strings.HasPrefix(msg, ">>> unmerge success: "):
		v := reMatches(unmergeStopRegEx, msg)
		pkg, ok := SplitPkgVer(v["pkgver"])
		if !ok {
			return p.badPkg(v["pkgver"])
		}
		return Event{TS: ts, Kind: UnmergeStop, Pkg: pkg}, true
	case syncStartRegEx.MatchString(msg):
		v := reMatches(syncStartRegEx, msg)
		return Event{TS: ts, Kind: SyncStart, Repo: v["repo"]}, true
	case msg == "=== sync" || strings.HasPrefix(msg, "=== sync "):
		// Cycle-level marker from older logs; the repo is attached
		// when the matching completion arrives.
		return Event{TS: ts, Kind: SyncStart}, true
	case strings.HasPrefix(msg, "=== Sync completed"):
		v := reMatches(syncStopRegEx, msg)
		return Event{TS: ts, Kind: SyncStop, Repo: v["repo"]}, true
	case strings.HasPrefix(msg, "*** emerge "):
		return Event{TS: ts, Kind: CommandStart, Argv: strings.TrimPrefix(msg, "*** emerge ")}, true
	case strings.HasPrefix(msg, "*** exiting") || msg == "*** terminating.":
		// The driver went away; whatever was still merging never
		// completed.
		return Event{TS: ts, Kind: DriverExit}, true
	}
	p.skip(line)
	return Event{}, false
}

func (p *Parser) skip(line string) {
	p.Skipped++
	p.log.Info().Int("line", p.lineno).Str("text", truncate(line, 120)).
		Msg("skipping unrecognised line")
}

func (p *Parser) badPkg(s string) (Event, bool) {
	p.Malformed++
	p.log.Warn().Int("line", p.lineno).Str("atom", s).Msg("unparseable package atom")
	return Event{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
