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

package discovery

import (
	"bufio"
	"io"
	"regexp"

	"github.com/klausman/plop/internal/parser"
)

var pretendRegEx = regexp.MustCompile(`^\[(ebuild|binary)[^\]]*\]\s+(\S+)`)

// ParsePretend reads "emerge --pretend" output and returns the listed
// packages in order. Lines outside that schema are ignored.
func ParsePretend(r io.Reader) []InFlight {
	var queue []InFlight
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		m := pretendRegEx.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		key, ok := parser.SplitPkgVer(m[2])
		if !ok || seen[key.CN()] {
			continue
		}
		seen[key.CN()] = true
		queue = append(queue, InFlight{
			Pkg:    key,
			Binary: m[1] == "binary",
			Source: SourcePretend,
		})
	}
	return queue
}
