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
	"github.com/spf13/cobra"

	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/format"
	"github.com/klausman/plop/internal/parser"
	"github.com/klausman/plop/internal/pipeline"
	"github.com/klausman/plop/internal/report"
)

var logCmd = &cobra.Command{
	Use:   "log [search...]",
	Short: "List merges, unmerges and syncs chronologically",
	RunE:  runLog,
}

func init() {
	fl := logCmd.Flags()
	fl.String("show", "m", "Sections to show: m merges, u unmerges, s syncs, a all")
	fl.IntP("first", "N", 0, "Stop after this many matching rows")
	fl.IntP("last", "n", 0, "Only show the last N matching rows")
	fl.Bool("starttime", false, "Show merge start times instead of completion times")
	fl.BoolP("exact", "e", false, "Match search terms exactly instead of as regexps")
}

func runLog(cmd *cobra.Command, args []string) error {
	exact, _ := cmd.Flags().GetBool("exact")
	rc, err := newRunContext(cmd, args, exact)
	if err != nil {
		return err
	}
	showStr, _ := cmd.Flags().GetString("show")
	show, err := filter.ParseShow(showStr, "mus")
	if err != nil {
		return err
	}
	first, _ := cmd.Flags().GetInt("first")
	last, _ := cmd.Flags().GetInt("last")
	starttime, _ := cmd.Flags().GetBool("starttime")

	o := report.LogOptions{
		Filter:    rc.filt,
		Show:      show,
		First:     first,
		Last:      last,
		StartTime: starttime,
		Rows:      rc.rows,
		Log:       diag,
	}

	var src *parser.Source
	reverse := false
	if last > 0 {
		// The tail scan reads the file backwards and stops once the
		// requested rows are complete; gzip input cannot seek, so it
		// falls back to a full forward pass trimmed to the last rows.
		src, err = parser.OpenTail(rc.logfile)
		if err != nil {
			return err
		}
		reverse = !src.Compressed
	} else {
		src, err = parser.Open(rc.logfile)
		if err != nil {
			return err
		}
	}
	defer src.Close()
	p := parser.New(src.Lines, diag)
	stream := pipeline.Run(p.Next)

	var tbl *format.Table
	var warnings int
	var berr error
	if reverse {
		tbl, warnings, berr = report.BuildLogTail(stream.Events(), stream.Close, o)
	} else {
		tbl, warnings, berr = report.BuildLog(stream.Events(), stream.Close, o)
	}
	rc.ren.Render(tbl)
	reportWarnings(p, warnings)
	if berr != nil {
		return berr
	}
	if tbl.Len() == 0 {
		return report.ErrEmpty
	}
	return nil
}
