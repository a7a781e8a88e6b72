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
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy [search...]",
	Short: "Evaluate how close past estimates were to reality",
	RunE:  runAccuracy,
}

func init() {
	fl := accuracyCmd.Flags()
	fl.String("show", "mt", "Sections to show: m merges, t totals, a all")
	fl.Int("last", 0, "Only show the last N per-merge rows")
	fl.String("avg", "median", "Averaging function (arith, median, weighted-arith, weighted-median)")
	fl.Int("limit", 10, "Number of most recent merges the estimate considers")
	fl.BoolP("exact", "e", false, "Match search terms exactly instead of as regexps")
}

func runAccuracy(cmd *cobra.Command, args []string) error {
	exact, _ := cmd.Flags().GetBool("exact")
	rc, err := newRunContext(cmd, args, exact)
	if err != nil {
		return err
	}
	showStr, _ := cmd.Flags().GetString("show")
	show, err := filter.ParseShow(showStr, "mt")
	if err != nil {
		return err
	}
	last, _ := cmd.Flags().GetInt("last")
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

	tables, warnings, berr := report.BuildAccuracy(stream.Events(), report.AccuracyOptions{
		Filter:  rc.filt,
		Show:    show,
		Last:    last,
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
