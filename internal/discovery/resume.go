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
	"os"
	"strings"

	"github.com/klausman/plop/internal/parser"
)

// loadResume reads the queued package list per policy. Missing files
// are treated as empty lists.
func loadResume(driverRunning bool, opts Options) []InFlight {
	main, backup := opts.ResumeMain, opts.ResumeBackup
	if main == "" {
		main = DefaultResumeMain
	}
	if backup == "" {
		backup = DefaultResumeBackup
	}
	switch opts.Resume {
	case ResumeNo:
		return nil
	case ResumeAuto:
		// Only trust the list while a driver is actually running;
		// a stale file is no queue.
		if !driverRunning {
			return nil
		}
		return readResumeFile(main, SourceResumeMain)
	case ResumeMain:
		return readResumeFile(main, SourceResumeMain)
	case ResumeBackup:
		return readResumeFile(backup, SourceResumeBackup)
	case ResumeEither:
		if q := readResumeFile(main, SourceResumeMain); len(q) > 0 {
			return q
		}
		return readResumeFile(backup, SourceResumeBackup)
	}
	return nil
}

// readResumeFile parses a plain-text resume list, one package per
// line, in stored order.
func readResumeFile(path string, src Source) []InFlight {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var queue []InFlight
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		binary := false
		if strings.HasPrefix(line, "[binary]") {
			binary = true
			line = strings.TrimSpace(strings.TrimPrefix(line, "[binary]"))
		}
		key, ok := parser.SplitPkgVer(line)
		if !ok || seen[key.CN()] {
			continue
		}
		seen[key.CN()] = true
		queue = append(queue, InFlight{Pkg: key, Binary: binary, Source: src})
	}
	return queue
}
