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

// Package logutil configures the diagnostic logger. Report rows go to
// stdout; everything here goes to stderr.
package logutil

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Setup returns a console logger on w whose level is derived from the
// repeatable verbosity flag: 0 = error, 1 = warn, 2 = info, 3+ = debug.
func Setup(w io.Writer, verbosity int) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level zerolog.Level
	switch {
	case verbosity <= 0:
		level = zerolog.ErrorLevel
	case verbosity == 1:
		level = zerolog.WarnLevel
	case verbosity == 2:
		level = zerolog.InfoLevel
	default:
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, PartsExclude: []string{
		zerolog.TimestampFieldName,
	}}
	return zerolog.New(out).Level(level)
}
