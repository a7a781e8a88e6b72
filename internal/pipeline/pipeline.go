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

// Package pipeline hands events from the parser goroutine to the
// consumer over a bounded channel, preserving log order.
package pipeline

import (
	"io"
	"sync"

	"github.com/klausman/plop/internal/parser"
)

// DefaultCapacity is the channel bound. Big enough that the parser
// rarely stalls, small enough to keep memory flat on huge logs.
const DefaultCapacity = 4096

// Item is one element of the stream. A non-nil Err is terminal: the
// channel is closed right after it.
type Item struct {
	Ev  parser.Event
	Err error
}

// Stream connects one producer running next() to one consumer reading
// Events().
type Stream struct {
	items chan Item
	done  chan struct{}
	once  sync.Once
}

// Run starts a goroutine feeding events from next into the stream.
// next must return io.EOF when exhausted; any other error is forwarded
// as a terminal Item.
func Run(next func() (parser.Event, error)) *Stream {
	return RunBuffered(next, DefaultCapacity)
}

// RunBuffered is Run with an explicit channel capacity.
func RunBuffered(next func() (parser.Event, error), capacity int) *Stream {
	s := &Stream{
		items: make(chan Item, capacity),
		done:  make(chan struct{}),
	}
	go s.produce(next)
	return s
}

func (s *Stream) produce(next func() (parser.Event, error)) {
	defer close(s.items)
	for {
		ev, err := next()
		if err == io.EOF {
			return
		}
		if err != nil {
			select {
			case s.items <- Item{Err: err}:
			case <-s.done:
			}
			return
		}
		select {
		case s.items <- Item{Ev: ev}:
		case <-s.done:
			return
		}
	}
}

// Events is the receive side. It is closed when the producer finishes,
// fails, or observes Close.
func (s *Stream) Events() <-chan Item {
	return s.items
}

// Close tells the producer to stop at its next send. Safe to call more
// than once and concurrently with receives.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}
