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

// Package discovery enumerates builds that are running or queued right
// now: portage's sandboxed build processes, its resume lists, and the
// build directories under the temp tree.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/klausman/plop/internal/parser"
)

// Source records where an InFlight item was found.
type Source uint8

const (
	SourceProcess Source = iota
	SourceResumeMain
	SourceResumeBackup
	SourceTmpdir
	SourcePretend
)

func (s Source) String() string {
	switch s {
	case SourceProcess:
		return "process"
	case SourceResumeMain:
		return "resume"
	case SourceResumeBackup:
		return "resume-backup"
	case SourceTmpdir:
		return "tmpdir"
	case SourcePretend:
		return "pretend"
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

// InFlight is one package being built or queued. StartedAt is Unix
// seconds and zero when unknown; Phase is empty for queued items.
type InFlight struct {
	Pkg       parser.PackageKey
	StartedAt int64
	Phase     string
	Binary    bool
	Source    Source
}

// ResumePolicy selects which resume list, if any, feeds the queue.
type ResumePolicy uint8

const (
	ResumeAuto ResumePolicy = iota
	ResumeMain
	ResumeBackup
	ResumeEither
	ResumeNo
)

// ParseResumePolicy maps the CLI/config spelling to a ResumePolicy.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch s {
	case "auto", "":
		return ResumeAuto, nil
	case "main":
		return ResumeMain, nil
	case "backup":
		return ResumeBackup, nil
	case "either":
		return ResumeEither, nil
	case "no":
		return ResumeNo, nil
	}
	return ResumeAuto, fmt.Errorf("unknown resume policy %q", s)
}

// Default locations of portage's persisted state.
const (
	DefaultResumeMain   = "/var/cache/edb/resume"
	DefaultResumeBackup = "/var/cache/edb/resume_backup"
	DefaultTmpDir       = "/var/tmp"
)

// Options parameterises one discovery pass.
type Options struct {
	Resume       ResumePolicy
	ResumeMain   string
	ResumeBackup string
	TmpDirs      []string
	PhaseWidth   int // truncate phase strings, 0 = no limit
	Depth        int // max process-tree hops from sandbox child to driver
	Log          zerolog.Logger
}

// Result is what discovery found. Incomplete is set when the process
// table could not be (fully) read, so the caller can annotate output.
type Result struct {
	Builds        []InFlight // active, driver order
	Queue         []InFlight // resume list, stored order
	Incomplete    bool
	DriverRunning bool
	DriverStart   int64 // Unix secs of the oldest driver, 0 if none
}

// Discover inspects the process table, the resume state and the temp
// tree. It never fails: whatever could not be read is skipped and
// flagged.
func Discover(opts Options) Result {
	var res Result
	res.Builds = scanProcesses(&res, opts)
	if len(res.Builds) == 0 {
		res.Builds = scanTmpDirs(opts)
	}
	res.Queue = loadResume(res.DriverRunning, opts)
	return res
}

type procInfo struct {
	pid   int32
	ppid  int32
	args  []string
	start int64 // unix secs
}

func scanProcesses(res *Result, opts Options) []InFlight {
	procs, err := process.Processes()
	if err != nil {
		res.Incomplete = true
		opts.Log.Warn().Err(err).Msg("process table unavailable, discovery may be incomplete")
		return nil
	}
	infos := make(map[int32]procInfo, len(procs))
	for _, p := range procs {
		args, err := p.CmdlineSlice()
		if err != nil || len(args) == 0 {
			continue
		}
		pi := procInfo{pid: p.Pid, args: args}
		if ppid, err := p.Ppid(); err == nil {
			pi.ppid = ppid
		}
		if ms, err := p.CreateTime(); err == nil {
			pi.start = ms / 1000
		}
		infos[p.Pid] = pi
	}

	drivers := make(map[int32]bool)
	for _, pi := range infos {
		if isDriver(pi.args) {
			drivers[pi.pid] = true
			res.DriverRunning = true
			if res.DriverStart == 0 || pi.start < res.DriverStart {
				res.DriverStart = pi.start
			}
		}
	}

	var builds []InFlight
	seen := make(map[string]bool)
	pids := make([]int32, 0, len(infos))
	for pid := range infos {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	for _, pid := range pids {
		pi := infos[pid]
		pkg, phase, ok := sandboxChild(pi.args)
		if !ok {
			continue
		}
		if len(drivers) > 0 && !underDriver(infos, drivers, pi.ppid, opts.Depth) {
			continue
		}
		key, ok := parser.SplitPkgVer(pkg)
		if !ok || seen[key.CN()] {
			continue
		}
		seen[key.CN()] = true
		builds = append(builds, InFlight{
			Pkg:       key,
			StartedAt: pi.start,
			Phase:     clipPhase(phase, opts.PhaseWidth),
			Source:    SourceProcess,
		})
	}
	return builds
}

// isDriver recognises the emerge driver process: either the script
// itself or an interpreter running it.
func isDriver(args []string) bool {
	n := len(args)
	if n > 2 {
		n = 2
	}
	for _, a := range args[:n] {
		if a == "emerge" || strings.HasSuffix(a, "/emerge") {
			return true
		}
	}
	return false
}

// sandboxChild recognises the per-package build process by its argv[0]
// of the form "[category/name-version] sandbox ..."; the build phase
// is the last token of the final argument.
func sandboxChild(args []string) (pkg, phase string, ok bool) {
	head := args[0]
	if !strings.HasPrefix(head, "[") || !strings.HasSuffix(head, "sandbox") {
		return "", "", false
	}
	end := strings.IndexByte(head, ']')
	if end < 2 {
		return "", "", false
	}
	pkg = head[1:end]
	tok := strings.Fields(args[len(args)-1])
	if len(tok) > 0 {
		phase = tok[len(tok)-1]
	}
	return pkg, phase, true
}

func underDriver(infos map[int32]procInfo, drivers map[int32]bool, ppid int32, depth int) bool {
	if depth < 1 {
		depth = 1
	}
	for i := 0; i < depth; i++ {
		if drivers[ppid] {
			return true
		}
		pi, ok := infos[ppid]
		if !ok || pi.ppid == ppid {
			return false
		}
		ppid = pi.ppid
	}
	return false
}

func clipPhase(phase string, width int) string {
	if width > 0 && len(phase) > width {
		return phase[:width]
	}
	return phase
}

// scanTmpDirs lists <tmpdir>/portage/<category>/<name-version> build
// directories, the fallback when no build process is visible.
func scanTmpDirs(opts Options) []InFlight {
	var builds []InFlight
	seen := make(map[string]bool)
	for _, dir := range opts.TmpDirs {
		root := filepath.Join(dir, "portage")
		cats, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, cat := range cats {
			if !cat.IsDir() || strings.HasPrefix(cat.Name(), ".") {
				continue
			}
			pkgs, err := os.ReadDir(filepath.Join(root, cat.Name()))
			if err != nil {
				continue
			}
			for _, pd := range pkgs {
				if !pd.IsDir() {
					continue
				}
				key, ok := parser.SplitPkgVer(cat.Name() + "/" + pd.Name())
				if !ok || key.Version == "" || seen[key.CN()] {
					continue
				}
				seen[key.CN()] = true
				var started int64
				if fi, err := pd.Info(); err == nil {
					started = fi.ModTime().Unix()
				}
				builds = append(builds, InFlight{Pkg: key, StartedAt: started, Source: SourceTmpdir})
			}
		}
	}
	return builds
}
