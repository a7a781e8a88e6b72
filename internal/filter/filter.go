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

// Package filter holds the shared report filter: date range, section
// mask and package-name matching.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/klausman/plop/internal/parser"
)

// Show is a set of single-letter report sections. 'a' expands to the
// full allowed set.
type Show struct {
	letters map[byte]bool
}

// ParseShow parses a comma- or letter-joined section list, e.g.
// "m,u,s" or "mus", against the letters a command allows.
func ParseShow(s, allowed string) (Show, error) {
	set := make(map[byte]bool)
	for _, part := range strings.Split(s, ",") {
		for i := 0; i < len(part); i++ {
			c := part[i]
			if c == 'a' {
				for j := 0; j < len(allowed); j++ {
					set[allowed[j]] = true
				}
				continue
			}
			if !strings.ContainsRune(allowed, rune(c)) {
				return Show{}, fmt.Errorf("bad section %q, valid: %s,a", string(c), allowed)
			}
			set[c] = true
		}
	}
	if len(set) == 0 {
		return Show{}, fmt.Errorf("empty section list, valid: %s,a", allowed)
	}
	return Show{letters: set}, nil
}

// Has reports whether section c was selected.
func (s Show) Has(c byte) bool { return s.letters[c] }

type term struct {
	exact string
	re    *regexp.Regexp
}

// NameMatcher matches package keys against search terms, OR-combined.
// Terms are regular expressions unless exact matching is selected, in
// which case a term must equal category/name or the bare name, the way
// portage tools compare atoms.
type NameMatcher struct {
	terms []term
}

// NewNameMatcher compiles terms. A nil or empty term list matches
// everything.
func NewNameMatcher(terms []string, exact bool) (*NameMatcher, error) {
	m := &NameMatcher{}
	for _, t := range terms {
		if exact {
			m.terms = append(m.terms, term{exact: t})
			continue
		}
		re, err := regexp.Compile("(?i)" + t)
		if err != nil {
			return nil, fmt.Errorf("bad search pattern %q: %w", t, err)
		}
		m.terms = append(m.terms, term{re: re})
	}
	return m, nil
}

// Empty reports whether the matcher has no terms (matches everything).
func (m *NameMatcher) Empty() bool { return m == nil || len(m.terms) == 0 }

// Match tests a package key.
func (m *NameMatcher) Match(p parser.PackageKey) bool {
	return m.MatchString(p.CN()) || m.matchName(p.Name)
}

// MatchString tests a bare category/name or repository string.
func (m *NameMatcher) MatchString(s string) bool {
	if m.Empty() {
		return true
	}
	for _, t := range m.terms {
		if t.re != nil {
			if t.re.MatchString(s) {
				return true
			}
		} else if t.exact == s {
			return true
		}
	}
	return false
}

func (m *NameMatcher) matchName(name string) bool {
	if m.Empty() {
		return true
	}
	for _, t := range m.terms {
		if t.re == nil && t.exact == name {
			return true
		}
	}
	return false
}

// Filter is the shared row filter of all report builders.
type Filter struct {
	From  int64
	To    int64
	Names *NameMatcher
}

// NewFilter returns a filter with an unbounded date range.
func NewFilter() Filter {
	return Filter{From: math.MinInt64, To: math.MaxInt64}
}

// InRange tests a timestamp against the date range.
func (f Filter) InRange(ts int64) bool {
	return ts >= f.From && ts <= f.To
}

// MatchPkg tests a package against the name terms.
func (f Filter) MatchPkg(p parser.PackageKey) bool {
	return f.Names.Empty() || f.Names.Match(p)
}

// MatchRepo tests a repository name against the name terms.
func (f Filter) MatchRepo(repo string) bool {
	return f.Names.Empty() || f.Names.MatchString(repo)
}
