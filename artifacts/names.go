// Package artifacts writes the per-episode exports: CSV files of the samples,
// plots of the run and of cumulative water usage, and the shared text log.
package artifacts

import "time"

const stampLayout = "20060102-15:04:05"

// StartStamp formats an episode start time the way every artifact is named.
func StartStamp(t time.Time) string {
	return t.Format(stampLayout)
}

func AmpsCSV(stamp string) string         { return stamp + ".csv" }
func RawCSV(stamp string) string          { return "RAW_" + stamp + ".csv" }
func TimesCSV(stamp string) string        { return "NS_" + stamp + ".csv" }
func AmperagePlot(stamp string) string    { return "Amperage-" + stamp + ".png" }
func WaterUsagePlot(stamp string) string  { return "WaterUsage-" + stamp + ".png" }
func SampleTimesPlot(stamp string) string { return "SampleTimes-" + stamp + ".png" }

// ReportPlot is the cumulative usage plot written by the report command.
var ReportPlot = WaterUsagePlot("report")
