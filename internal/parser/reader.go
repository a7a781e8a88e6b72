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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// maxLine bounds a single log line. emerge command lines can get long,
// but not this long.
const maxLine = 1 << 20

const reverseChunk = 256 << 10

// Source is a readable log, either raw or gzip-inflated.
type Source struct {
	Lines LineSource
	// Compressed is set when the gzip magic was found; reverse
	// iteration is unavailable then.
	Compressed bool

	closers []io.Closer
}

func (s *Source) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for forward iteration, transparently inflating gzip
// input detected by its magic header.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	br := bufio.NewReaderSize(f, 64<<10)
	magic, _ := br.Peek(2)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("inflate log %s: %w", path, err)
		}
		return &Source{
			Lines:      newForwardScanner(zr),
			Compressed: true,
			closers:    []io.Closer{zr, f},
		}, nil
	}
	return &Source{Lines: newForwardScanner(br), closers: []io.Closer{f}}, nil
}

// OpenTail opens path for reverse (newest line first) iteration.
// Compressed input cannot be read backwards; the returned Source is a
// plain forward one then and Compressed is set so callers can fall
// back to a forward pass and keep only its trailing rows.
func OpenTail(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	var magic [2]byte
	if n, _ := io.ReadFull(f, magic[:]); n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		f.Close()
		return Open(path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	return &Source{
		Lines:   NewReverseScanner(f, st.Size()),
		closers: []io.Closer{f},
	}, nil
}

type forwardScanner struct {
	*bufio.Scanner
}

func newForwardScanner(r io.Reader) forwardScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLine)
	return forwardScanner{sc}
}

// ReverseScanner yields the lines of an io.ReaderAt last to first. It
// reads fixed-size chunks from the end, carrying the partial line at a
// chunk boundary over to the next read.
type ReverseScanner struct {
	r    io.ReaderAt
	off  int64 // lowest file offset not yet read
	part []byte
	buf  [][]byte // lines of the current chunk, consumed from the end
	cur  []byte
	err  error
	done bool
}

// NewReverseScanner scans r, which holds size bytes, backwards.
func NewReverseScanner(r io.ReaderAt, size int64) *ReverseScanner {
	return &ReverseScanner{r: r, off: size}
}

func (s *ReverseScanner) Scan() bool {
	for {
		if n := len(s.buf); n > 0 {
			s.cur = s.buf[n-1]
			s.buf = s.buf[:n-1]
			return true
		}
		if s.done || s.err != nil {
			return false
		}
		if !s.fill() {
			return false
		}
	}
}

func (s *ReverseScanner) fill() bool {
	if s.off == 0 {
		s.done = true
		if len(s.part) > 0 {
			s.buf = [][]byte{s.part}
			s.part = nil
			return true
		}
		return false
	}
	n := int64(reverseChunk)
	if n > s.off {
		n = s.off
	}
	chunk := make([]byte, n, n+int64(len(s.part)))
	if _, err := io.ReadFull(io.NewSectionReader(s.r, s.off-n, n), chunk); err != nil {
		s.err = err
		return false
	}
	s.off -= n
	chunk = append(chunk, s.part...)
	segs := bytes.Split(chunk, []byte{'\n'})
	if s.off > 0 {
		// The first segment may continue a line from the preceding
		// chunk; hold it back.
		s.part = segs[0]
		segs = segs[1:]
	} else {
		s.part = nil
		s.done = true
	}
	// Drop the empty segment a trailing newline produces.
	lines := segs[:0]
	for _, seg := range segs {
		if len(seg) > 0 {
			lines = append(lines, seg)
		}
	}
	s.buf = lines
	return len(s.buf) > 0 || !s.done
}

func (s *ReverseScanner) Text() string { return string(s.cur) }

func (s *ReverseScanner) Err() error { return s.err }
