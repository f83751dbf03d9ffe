/*
pump-report - Summarize the water usage recorded by pump-monitor.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/artifacts"
	"github.com/TheCacophonyProject/pump-monitor/config"
	"github.com/TheCacophonyProject/pump-monitor/internal/logging"
	"github.com/TheCacophonyProject/pump-monitor/ledger"
	arg "github.com/alexflint/go-arg"
)

var version = "No version provided"

var log = logging.NewLogger("info")

type Args struct {
	ConfigFile string `arg:"-c, --config" help:"Path to the TOML config file"`
	DataDir    string `arg:"--data-dir" help:"Directory holding the database, the plot is written here too"`
	Anchor     string `arg:"--anchor" help:"Start of the first billing period, YYYY-MM-DD"`
	Months     int    `arg:"--months" help:"Length of a billing period in months"`
	Series     bool   `arg:"--series" help:"Print every pump run with the running total"`
	NoPlot     bool   `arg:"--no-plot" help:"Don't render the water usage plot"`
	logging.LogArgs
}

var defaultArgs = Args{
	ConfigFile: filepath.Join(config.DefaultConfigDir, config.DefaultConfigFile),
}

func (Args) Version() string {
	return version
}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func (a Args) apply(cfg *config.Config) {
	if a.DataDir != "" {
		cfg.DataDir = a.DataDir
	}
	if a.Anchor != "" {
		cfg.Report.PeriodAnchor = a.Anchor
	}
	if a.Months != 0 {
		cfg.Report.PeriodMonths = a.Months
	}
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}
	log = logging.NewLogger(args.LogLevel)

	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		return err
	}
	args.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := ledger.Open(cfg.Path(cfg.DBFile))
	if err != nil {
		return err
	}
	defer db.Close()

	var plotter *artifacts.Writer
	if !args.NoPlot {
		if plotter, err = artifacts.NewWriter(cfg.DataDir); err != nil {
			return err
		}
	}
	return report(context.Background(), db, cfg, args.Series, plotter, time.Now())
}

// report logs the usage summary. plotter may be nil.
func report(ctx context.Context, db *ledger.Ledger, cfg config.Config, series bool, plotter *artifacts.Writer, now time.Time) error {
	records, err := db.Records(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		log.Info("No pump runs recorded")
		return nil
	}
	points := ledger.Cumulative(records)

	if series {
		for _, p := range points {
			log.Infof("%s  %8.2f gal  %10.2f gal total", p.Time.Local().Format("2006-01-02 15:04:05"), p.Gallons, p.Total)
		}
	}
	last := points[len(points)-1]
	log.Infof("%d pump runs from %s to %s, %.2f gallons total",
		len(points), points[0].Time.Local().Format("2006-01-02"), last.Time.Local().Format("2006-01-02"), last.Total)

	anchor, err := cfg.PeriodAnchor()
	if err != nil {
		return err
	}
	for _, p := range Periods(records, anchor, cfg.Report.PeriodMonths, now) {
		log.Infof("%-20s %4d runs  %9.2f gal  %7.2f gal/day over %d days  %9.2f gal estimated",
			p.Name, p.Runs, p.Gallons, p.DailyAverage, p.Days, p.Estimated)
	}

	weekdays := Weekdays(records, time.Local)
	for d := time.Monday; ; d = (d + 1) % 7 {
		log.Debugf("%-9s %9.2f gal", d, weekdays[d])
		if d == time.Sunday {
			break
		}
	}

	if plotter == nil {
		return nil
	}
	if err := plotter.PlotWaterUsageFile(artifacts.ReportPlot, points); err != nil {
		return err
	}
	log.Info("Wrote ", filepath.Join(plotter.Dir, artifacts.ReportPlot))
	return nil
}
