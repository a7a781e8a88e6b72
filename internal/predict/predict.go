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

// Package predict estimates build durations from history tails.
package predict

import (
	"fmt"
	"sort"
)

// Avg selects the averaging function applied to a history window.
type Avg uint8

const (
	Arith Avg = iota
	Median
	WeightedArith
	WeightedMedian
)

// ParseAvg maps the CLI/config spelling to an Avg.
func ParseAvg(s string) (Avg, error) {
	switch s {
	case "arith", "mean":
		return Arith, nil
	case "median":
		return Median, nil
	case "weighted-arith", "warith":
		return WeightedArith, nil
	case "weighted-median", "wmedian":
		return WeightedMedian, nil
	}
	return Arith, fmt.Errorf("unknown averaging function %q", s)
}

func (a Avg) String() string {
	switch a {
	case Arith:
		return "arith"
	case Median:
		return "median"
	case WeightedArith:
		return "weighted-arith"
	case WeightedMedian:
		return "weighted-median"
	}
	return fmt.Sprintf("avg(%d)", uint8(a))
}

// DefaultWindow is the number of most recent durations considered.
const DefaultWindow = 10

// DefaultUnknown is the fallback, in seconds, for packages without
// history.
const DefaultUnknown = 600

// Config parameterises prediction for one invocation.
type Config struct {
	Window     int
	Avg        Avg
	Unknown    int64 // fallback seconds for source merges
	UnknownBin int64 // fallback seconds for binary merges
}

// DefaultConfig returns the stock prediction parameters.
func DefaultConfig() Config {
	return Config{
		Window:     DefaultWindow,
		Avg:        Arith,
		Unknown:    DefaultUnknown,
		UnknownBin: DefaultUnknown,
	}
}

// State tags a Prediction.
type State uint8

const (
	// Known: Secs is an estimate derived from history.
	Known State = iota
	// Unknown: no history; Secs is the configured fallback.
	Unknown
	// Overdue: a running build already exceeded its estimate; Secs is
	// the elapsed time.
	Overdue
)

// Prediction is a tagged duration in seconds.
type Prediction struct {
	State State
	Secs  int64
}

// Predict aggregates the last Window entries of hist (oldest first)
// with the configured averaging function. An empty history yields
// Unknown with the fallback for the merge type.
func (c Config) Predict(hist []int64, binary bool) Prediction {
	w := c.Window
	if w < 1 {
		w = 1
	}
	if len(hist) > w {
		hist = hist[len(hist)-w:]
	}
	if len(hist) == 0 {
		fb := c.Unknown
		if binary && c.UnknownBin > 0 {
			fb = c.UnknownBin
		}
		return Prediction{State: Unknown, Secs: fb}
	}
	return Prediction{State: Known, Secs: aggregate(hist, c.Avg)}
}

func aggregate(hist []int64, avg Avg) int64 {
	switch avg {
	case Median:
		return median(hist)
	case WeightedArith:
		return weightedArith(hist)
	case WeightedMedian:
		return weightedMedian(hist)
	}
	return arith(hist)
}

func arith(hist []int64) int64 {
	var sum int64
	for _, v := range hist {
		sum += v
	}
	return sum / int64(len(hist))
}

func median(hist []int64) int64 {
	s := append([]int64(nil), hist...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	if len(s)%2 != 0 {
		return s[len(s)/2]
	}
	hi := len(s) / 2
	return (s[hi-1] + s[hi]) / 2
}

// weightedArith weights the i-th entry (oldest first) with i+1.
func weightedArith(hist []int64) int64 {
	var sum, wsum int64
	for i, v := range hist {
		w := int64(i + 1)
		sum += w * v
		wsum += w
	}
	return sum / wsum
}

// weightedMedian picks the smallest value whose cumulative weight
// reaches half the total, with the same i+1 weights.
func weightedMedian(hist []int64) int64 {
	type wv struct{ v, w int64 }
	s := make([]wv, len(hist))
	var total int64
	for i, v := range hist {
		s[i] = wv{v: v, w: int64(i + 1)}
		total += s[i].w
	}
	sort.Slice(s, func(i, j int) bool { return s[i].v < s[j].v })
	var cum int64
	for _, e := range s {
		cum += e.w
		if 2*cum >= total {
			return e.v
		}
	}
	return s[len(s)-1].v
}

// Remaining turns a whole-build prediction into a remaining-time one
// for a build running for elapsed seconds. Known estimates clamp at
// one second; a build past its estimate reports Overdue with the
// elapsed time. Unknown passes through untouched.
func Remaining(p Prediction, elapsed int64) Prediction {
	if p.State != Known || elapsed <= 0 {
		return p
	}
	if elapsed > p.Secs {
		return Prediction{State: Overdue, Secs: elapsed}
	}
	rem := p.Secs - elapsed
	if rem < 1 {
		rem = 1
	}
	return Prediction{State: Known, Secs: rem}
}
