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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klausman/plop/internal/parser"
)

func TestParseShow(t *testing.T) {
	s, err := ParseShow("m,u", "mus")
	require.NoError(t, err)
	assert.True(t, s.Has('m'))
	assert.True(t, s.Has('u'))
	assert.False(t, s.Has('s'))

	s, err = ParseShow("mus", "mus")
	require.NoError(t, err)
	assert.True(t, s.Has('s'))

	s, err = ParseShow("a", "mus")
	require.NoError(t, err)
	assert.True(t, s.Has('m'))
	assert.True(t, s.Has('u'))
	assert.True(t, s.Has('s'))

	_, err = ParseShow("x", "mus")
	assert.Error(t, err)
	_, err = ParseShow("", "mus")
	assert.Error(t, err)
}

func key(s string) parser.PackageKey {
	p, _ := parser.SplitPkgVer(s)
	return p
}

func TestNameMatcherRegex(t *testing.T) {
	m, err := NewNameMatcher([]string{"gcc", "^sys-"}, false)
	require.NoError(t, err)
	assert.True(t, m.Match(key("sys-devel/gcc-13.2.1")))
	assert.True(t, m.Match(key("sys-apps/coreutils-9.4")))
	assert.True(t, m.Match(key("dev-util/gcc-config-2.10"))) // substring match
	assert.False(t, m.Match(key("app-misc/foo-1.0")))
	// Case-insensitive, like the other tools in this family.
	assert.True(t, m.Match(key("sys-devel/GCC-13.2.1")))
}

func TestNameMatcherExact(t *testing.T) {
	m, err := NewNameMatcher([]string{"gcc"}, true)
	require.NoError(t, err)
	assert.True(t, m.Match(key("sys-devel/gcc-13.2.1")))
	assert.False(t, m.Match(key("dev-util/gcc-config-2.10")))

	m, err = NewNameMatcher([]string{"sys-devel/gcc"}, true)
	require.NoError(t, err)
	assert.True(t, m.Match(key("sys-devel/gcc-13.2.1")))
	assert.False(t, m.Match(key("cross-arm/gcc-13.2.1")))
}

func TestNameMatcherBadPattern(t *testing.T) {
	_, err := NewNameMatcher([]string{"("}, false)
	assert.Error(t, err)
}

func TestFilterRange(t *testing.T) {
	f := NewFilter()
	assert.True(t, f.InRange(0))
	assert.True(t, f.InRange(1<<62))
	f.From = 100
	f.To = 200
	assert.False(t, f.InRange(99))
	assert.True(t, f.InRange(100))
	assert.True(t, f.InRange(200))
	assert.False(t, f.InRange(201))
}

func TestFilterNilMatcherMatchesAll(t *testing.T) {
	f := NewFilter()
	assert.True(t, f.MatchPkg(key("a/b-1")))
	assert.True(t, f.MatchRepo("gentoo"))
}
