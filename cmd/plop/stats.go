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
	"github.com/klausman/plop/internal/pipeline"
	"github.com/klausman/plop/internal/report"
	"github.com/klausman/plop/internal/timeutil"
)

var statsCmd = &cobra.Command{
	Use:   "stats [search...]",
	Short: "Aggregate merge, unmerge and sync statistics",
	RunE:  runStats,
}

func init() {
	fl := statsCmd.Flags()
	fl.String("show", "p", "Sections to show: p packages, t totals, s syncs, a all")
	fl.StringP("groupby", "g", "n", "Group by period: y year, m month, w week, d day, n none")
	fl.String("avg", "median", "Averaging function (arith, median, weighted-arith, weighted-median)")
	fl.Int("limit", 10, "Number of most recent merges the estimate considers")
	fl.BoolP("exact", "e", false, "Match search terms exactly instead of as regexps")
}

func runStats(cmd *cobra.Command, args []string) error {
	exact, _ := cmd.Flags().GetBool("exact")
	rc, err := newRunContext(cmd, args, exact)
	if err != nil {
		return err
	}
	showStr, _ := cmd.Flags().GetString("show")
	show, err := filter.ParseShow(showStr, "pts")
	if err != nil {
		return err
	}
	groupStr, _ := cmd.Flags().GetString("groupby")
	group, err := timeutil.ParseGroup(groupStr)
	if err != nil {
		return err
	}
	pcfg, err := predictConfig(cmd)
	if err != nil {
		return err
	}

	src, p, err := openForward(rc.logfile)
	if err != nil {
		return err
	}
	defer src.Close()
	stream := pipeline.Run(p.Next)

	tables, warnings, berr := report.BuildStats(stream.Events(), report.StatsOptions{
		Filter:  rc.filt,
		Show:    show,
		GroupBy: group,
		Predict: pcfg,
		Rows:    rc.rows,
		Log:     diag,
	})
	rows := 0
	for _, t := range tables {
		rc.ren.Render(t)
		rows += t.Len()
	}
	reportWarnings(p, warnings)
	if berr != nil {
		return berr
	}
	if rows == 0 {
		return report.ErrEmpty
	}
	return nil
}
