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

package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/klausman/plop/internal/discovery"
	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/pipeline"
	"github.com/klausman/plop/internal/report"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate remaining time for running and queued merges",
	Long: `predict inspects running build processes, portage's resume lists and,
when piped in, "emerge --pretend" output, and estimates how long each
package and the whole queue will still take based on past merges.`,
	RunE: runPredict,
}

func init() {
	fl := predictCmd.Flags()
	fl.String("show", "emt", "Sections to show: m running, e queued estimates, t total, a all")
	fl.StringSlice("tmpdir", []string{discovery.DefaultTmpDir}, "Temp tree(s) to scan for build directories")
	fl.String("resume", "auto", "Resume list to consult (auto, main, backup, either, no)")
	fl.Int64("unknown", 600, "Fallback estimate in seconds for packages without history")
	fl.Int64("unknown-bin", 0, "Separate fallback for binary packages (0: use --unknown)")
	fl.String("avg", "median", "Averaging function (arith, median, weighted-arith, weighted-median)")
	fl.Int("limit", 10, "Number of most recent merges the estimate considers")
	fl.Int("pwidth", 16, "Maximum width of the build-phase column")
	fl.Int("pdepth", 5, "Process-tree depth searched between driver and build process")
}

func runPredict(cmd *cobra.Command, args []string) error {
	rc, err := newRunContext(cmd, nil, false)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	showStr, _ := fl.GetString("show")
	show, err := filter.ParseShow(showStr, "emt")
	if err != nil {
		return err
	}
	pcfg, err := predictConfig(cmd)
	if err != nil {
		return err
	}
	resumeStr, _ := fl.GetString("resume")
	resume, err := discovery.ParseResumePolicy(resumeStr)
	if err != nil {
		return err
	}
	tmpdirs, _ := fl.GetStringSlice("tmpdir")
	pwidth, _ := fl.GetInt("pwidth")
	pdepth, _ := fl.GetInt("pdepth")

	disc := discovery.Discover(discovery.Options{
		Resume:     resume,
		TmpDirs:    tmpdirs,
		PhaseWidth: pwidth,
		Depth:      pdepth,
		Log:        diag,
	})

	// A piped stdin carries an "emerge --pretend" package list.
	var pretend []discovery.InFlight
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		pretend = discovery.ParsePretend(os.Stdin)
	}

	src, p, err := openForward(rc.logfile)
	if err != nil {
		return err
	}
	defer src.Close()
	stream := pipeline.Run(p.Next)

	tbl, summary, warnings, berr := report.BuildPredict(stream.Events(), report.PredictOptions{
		Show:      show,
		Predict:   pcfg,
		Rows:      rc.rows,
		Now:       rc.now.Unix(),
		Log:       diag,
		Discovery: disc,
		Pretend:   pretend,
	})
	if tbl != nil {
		rc.ren.Render(tbl)
	}
	if summary != "" {
		fmt.Println(summary)
	}
	reportWarnings(p, warnings)
	if berr != nil {
		return berr
	}
	if (tbl == nil || tbl.Len() == 0) && summary == "" {
		return report.ErrEmpty
	}
	return nil
}
