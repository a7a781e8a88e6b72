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

// plop reads portage's emerge.log and reports merge history,
// statistics, remaining-time estimates and estimate accuracy.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/klausman/plop/internal/config"
	"github.com/klausman/plop/internal/filter"
	"github.com/klausman/plop/internal/format"
	"github.com/klausman/plop/internal/logutil"
	"github.com/klausman/plop/internal/parser"
	"github.com/klausman/plop/internal/predict"
	"github.com/klausman/plop/internal/report"
	"github.com/klausman/plop/internal/timeutil"
)

// Version is set via ldflags during release builds.
var Version = "dev"

const defaultLogfile = "/var/log/emerge.log"

// diag is the process-wide diagnostic logger, configured from the
// verbosity flags before any command runs.
var diag zerolog.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, report.ErrEmpty) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:   "plop",
	Short: "plop - portage log observer and predictor",
	Long: `plop parses /var/log/emerge.log (plain or gzipped) and reports what
portage did and how long it took: a chronological listing, aggregated
statistics, remaining-time estimates for running or planned merges, and
a retrospective accuracy check of those estimates.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if err := cfg.Apply("global", rootCmd.PersistentFlags()); err != nil {
		return err
	}
	if cmd != rootCmd {
		if err := cfg.Apply(cmd.Name(), cmd.Flags()); err != nil {
			return err
		}
	}
	verbosity, _ := cmd.Flags().GetCount("verbosity")
	diag = logutil.Setup(os.Stderr, verbosity)
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = setup
	pf := rootCmd.PersistentFlags()
	pf.StringP("from", "f", "", "Only consider events after this date")
	pf.StringP("to", "t", "", "Only consider events before this date")
	pf.StringP("logfile", "F", defaultLogfile, "Location of the emerge log to parse")
	pf.BoolP("header", "H", false, "Print table headers and titles")
	pf.String("duration", "hms", "Duration style (hms, hmsfixed, secs, human)")
	pf.String("date", "ymdhms", "Date style (ymd, ymdhms, rfc3339, unix)")
	pf.Bool("utc", false, "Use UTC instead of local time")
	pf.String("color", "auto", "Colour output (auto, always, never)")
	pf.String("output", "auto", "Output mode (columns, tab, auto)")
	pf.CountP("verbosity", "v", "Raise diagnostic verbosity (repeatable)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("plop version %s\n", Version))
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(accuracyCmd)
	rootCmd.AddCommand(completeCmd)
}

// runContext bundles everything derived from the shared flags.
type runContext struct {
	logfile string
	filt    filter.Filter
	rows    report.RowStyle
	ren     *format.Renderer
	now     time.Time
}

// newRunContext validates the shared flags. searches and exact come
// from the commands that take search terms.
func newRunContext(cmd *cobra.Command, searches []string, exact bool) (*runContext, error) {
	fl := cmd.Flags()
	utc, _ := fl.GetBool("utc")
	loc := timeutil.Location(utc)
	now := time.Now()

	rc := &runContext{now: now}
	rc.logfile, _ = fl.GetString("logfile")
	rc.filt = filter.NewFilter()
	if s, _ := fl.GetString("from"); s != "" {
		ts, err := timeutil.ParseDate(s, now, loc)
		if err != nil {
			return nil, err
		}
		rc.filt.From = ts
	}
	if s, _ := fl.GetString("to"); s != "" {
		ts, err := timeutil.ParseDate(s, now, loc)
		if err != nil {
			return nil, err
		}
		rc.filt.To = ts
	}
	names, err := filter.NewNameMatcher(searches, exact)
	if err != nil {
		return nil, err
	}
	rc.filt.Names = names

	durStr, _ := fl.GetString("duration")
	durStyle, err := timeutil.ParseDurStyle(durStr)
	if err != nil {
		return nil, err
	}
	dateStr, _ := fl.GetString("date")
	dateStyle, err := timeutil.ParseDateStyle(dateStr)
	if err != nil {
		return nil, err
	}
	output, _ := fl.GetString("output")
	color, _ := fl.GetString("color")
	header, _ := fl.GetBool("header")
	ren, err := format.NewRenderer(os.Stdout, output, color, header)
	if err != nil {
		return nil, err
	}
	rc.ren = ren
	rc.rows = report.RowStyle{Dur: durStyle, Date: dateStyle, Loc: loc, Style: ren.Style}
	return rc, nil
}

// predictConfig reads the estimation flags shared by predict, stats
// and accuracy.
func predictConfig(cmd *cobra.Command) (predict.Config, error) {
	fl := cmd.Flags()
	cfg := predict.DefaultConfig()
	if fl.Lookup("limit") != nil {
		limit, _ := fl.GetInt("limit")
		if limit < 1 {
			return cfg, fmt.Errorf("bad --limit %d, must be at least 1", limit)
		}
		cfg.Window = limit
	}
	if fl.Lookup("avg") != nil {
		avgStr, _ := fl.GetString("avg")
		avg, err := predict.ParseAvg(avgStr)
		if err != nil {
			return cfg, err
		}
		cfg.Avg = avg
	}
	if fl.Lookup("unknown") != nil {
		unknown, _ := fl.GetInt64("unknown")
		if unknown < 1 {
			return cfg, fmt.Errorf("bad --unknown %d, must be at least 1", unknown)
		}
		cfg.Unknown = unknown
		cfg.UnknownBin = unknown
		if ub, _ := fl.GetInt64("unknown-bin"); ub > 0 {
			cfg.UnknownBin = ub
		}
	}
	return cfg, nil
}

// openForward opens the log for a forward pass.
func openForward(logfile string) (*parser.Source, *parser.Parser, error) {
	src, err := parser.Open(logfile)
	if err != nil {
		return nil, nil, err
	}
	return src, parser.New(src.Lines, diag), nil
}

// reportWarnings surfaces the accumulated warning and skip counters.
func reportWarnings(p *parser.Parser, matcherWarnings int) {
	total := matcherWarnings + p.Malformed
	if total > 0 {
		diag.Info().Int("warnings", total).Int("skipped-lines", p.Skipped).
			Msg("finished with warnings")
	}
}
