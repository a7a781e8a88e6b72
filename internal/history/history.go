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

// Package history accumulates per-package merge durations and pairs
// start/stop events into completed runs.
package history

import "sort"

// margin: entries kept beyond the prediction window before trimming,
// so a window change within one invocation still has data.
const margin = 8

// Index maps category/name (merges, unmerges) and repo names (syncs)
// to the most recent durations in seconds, oldest first.
type Index struct {
	window   int
	merges   map[string][]int64
	unmerges map[string][]int64
	syncs    map[string][]int64
}

// NewIndex returns an index whose duration tails are cut back to the
// last window entries once they grow beyond window+margin.
func NewIndex(window int) *Index {
	if window < 1 {
		window = 1
	}
	return &Index{
		window:   window,
		merges:   make(map[string][]int64),
		unmerges: make(map[string][]int64),
		syncs:    make(map[string][]int64),
	}
}

func (ix *Index) add(m map[string][]int64, key string, secs int64) {
	tail := append(m[key], secs)
	if len(tail) > ix.window+margin {
		tail = tail[len(tail)-ix.window:]
	}
	m[key] = tail
}

// AddMerge appends a successful merge duration for category/name cn.
func (ix *Index) AddMerge(cn string, secs int64) { ix.add(ix.merges, cn, secs) }

// AddUnmerge appends an unmerge duration for category/name cn.
func (ix *Index) AddUnmerge(cn string, secs int64) { ix.add(ix.unmerges, cn, secs) }

// AddSync appends a sync duration for a repository.
func (ix *Index) AddSync(repo string, secs int64) { ix.add(ix.syncs, repo, secs) }

// Merges returns the stored merge durations for cn, oldest first.
func (ix *Index) Merges(cn string) []int64 { return ix.merges[cn] }

// Unmerges returns the stored unmerge durations for cn, oldest first.
func (ix *Index) Unmerges(cn string) []int64 { return ix.unmerges[cn] }

// Syncs returns the stored sync durations for repo, oldest first.
func (ix *Index) Syncs(repo string) []int64 { return ix.syncs[repo] }

// Packages lists all category/name keys with merge history, sorted.
func (ix *Index) Packages() []string {
	keys := make([]string, 0, len(ix.merges))
	for k := range ix.merges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
