package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/event-reporter/v3/eventclient"
	"github.com/TheCacophonyProject/pump-monitor/artifacts"
	"github.com/TheCacophonyProject/pump-monitor/calibration"
	"github.com/TheCacophonyProject/pump-monitor/ledger"
	"github.com/sirupsen/logrus"
)

// ArtifactWriter exports the files for one episode.
type ArtifactWriter interface {
	WriteCSV(name string, values []float64) error
	WriteTimesCSV(name string, times []int64) error
	PlotAmperage(stamp string, amps []float64) error
	PlotSampleTimes(stamp string, diffs []float64, target time.Duration) error
	PlotWaterUsage(stamp string, series []ledger.Point) error
}

// Ledger is the durable record of pumped volume.
type Ledger interface {
	Record(ctx context.Context, t time.Time, gallons float64) error
	CumulativeSeries(ctx context.Context) ([]ledger.Point, error)
}

// EventReporter queues an event for upload. nil disables reporting.
type EventReporter func(eventclient.Event) error

type Finalizer struct {
	Converter calibration.Converter
	Pump      calibration.Pump
	Target    time.Duration
	Artifacts ArtifactWriter
	Ledger    Ledger
	Report    EventReporter
	Log       *logrus.Logger
	Now       func() time.Time
}

// Finalize summarizes a finished episode, writes its artifacts and appends it
// to the ledger. Any export or ledger failure is logged and returned; the
// caller is expected to shut down.
func (f *Finalizer) Finalize(ctx context.Context, ep Episode) (Summary, error) {
	now := f.Now
	if now == nil {
		now = time.Now
	}
	computeStart := now()

	s := Summarize(ep, f.Converter, f.Pump, f.Target)
	stamp := artifacts.StartStamp(s.Start)

	f.Log.Infof("%s: Dosing pump ran for %.2f seconds, pumped %.2f gallons with a max amperage of %.2fA, an average amperage of %.2fA, and an average wattage of %.2fW",
		stamp, s.Duration.Seconds(), s.Gallons, s.MaxAmps, s.AverageAmps, s.AverageWatts)

	steps := []struct {
		what string
		fn   func() error
	}{
		{"amperage csv", func() error { return f.Artifacts.WriteCSV(artifacts.AmpsCSV(stamp), s.Amps) }},
		{"raw csv", func() error { return f.Artifacts.WriteCSV(artifacts.RawCSV(stamp), ep.Volts()) }},
		{"sample times csv", func() error { return f.Artifacts.WriteTimesCSV(artifacts.TimesCSV(stamp), ep.Times()) }},
		{"amperage plot", func() error { return f.Artifacts.PlotAmperage(stamp, s.Amps) }},
		{"sample times plot", func() error { return f.Artifacts.PlotSampleTimes(stamp, Diffs(ep.Times()), f.Target) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return s, f.fail("write "+step.what, err)
		}
	}

	f.Log.Infof("The average time between samples is: %.0fns, std dev is: %.0fns, it should be %dns",
		s.Timing.Mean, s.Timing.StdDev, s.Timing.Target.Nanoseconds())

	if err := f.Ledger.Record(ctx, s.Start, s.Gallons); err != nil {
		return s, f.fail("record water usage", err)
	}
	series, err := f.Ledger.CumulativeSeries(ctx)
	if err != nil {
		return s, f.fail("read water usage", err)
	}
	if len(series) > 0 {
		f.Log.Debugf("Water usage: %d runs, %.2f gallons total", len(series), series[len(series)-1].Total)
	}
	if err := f.Artifacts.PlotWaterUsage(stamp, series); err != nil {
		return s, f.fail("write water usage plot", err)
	}

	if f.Report != nil {
		err := f.Report(eventclient.Event{
			Timestamp: s.Start,
			Type:      "pumpRun",
			Details: map[string]interface{}{
				"seconds":     s.Duration.Seconds(),
				"gallons":     s.Gallons,
				"maxAmps":     s.MaxAmps,
				"averageAmps": s.AverageAmps,
			},
		})
		if err != nil {
			f.Log.Warnf("Failed to report pump run event: %v", err)
		}
	}

	f.Log.Infof("Parsing, Logging, Saving, and Graphing took %.3f ms",
		float64(now().Sub(computeStart).Microseconds())/1000)
	return s, nil
}

func (f *Finalizer) fail(what string, err error) error {
	err = fmt.Errorf("%s: %w", what, err)
	f.Log.Error(err)
	return err
}
