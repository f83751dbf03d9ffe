package report

import (
	"math"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/ledger"
)

// Period is one billing period, [Start, End).
type Period struct {
	Name    string
	Start   time.Time
	End     time.Time
	Gallons float64
	Runs    int
	// Days in the period, or days elapsed so far for the current one.
	Days         int
	DailyAverage float64
	// Gallons projected over the whole period at the daily average.
	Estimated float64
}

// Periods splits records into billing periods of the given number of months
// starting at anchor, up to the period containing now. Records outside every
// period are not counted.
func Periods(records []ledger.Record, anchor time.Time, months int, now time.Time) []Period {
	var periods []Period
	for start := anchor; start.Before(now); {
		end := start.AddDate(0, months, 0)
		periods = append(periods, Period{
			Name:  periodName(start, end),
			Start: start,
			End:   end,
		})
		start = end
	}

	for _, r := range records {
		for i := range periods {
			p := &periods[i]
			if !r.Time.Before(p.Start) && r.Time.Before(p.End) {
				p.Gallons += r.Gallons
				p.Runs++
				break
			}
		}
	}

	for i := range periods {
		p := &periods[i]
		full := daysBetween(p.Start, p.End)
		p.Days = full
		if p.End.After(now) {
			p.Days = daysBetween(p.Start, now)
		}
		if p.Days > 0 {
			p.DailyAverage = p.Gallons / float64(p.Days)
		}
		p.Estimated = p.DailyAverage * float64(full)
	}
	return periods
}

// periodName is "Oct - Jan 2021" or "Oct 2020 - Jan 2021" when the period
// crosses a year. The end month is the last one inside the period.
func periodName(start, end time.Time) string {
	last := end.Add(-time.Minute)
	if start.Year() == last.Year() {
		return start.Format("Jan") + " - " + last.Format("Jan 2006")
	}
	return start.Format("Jan 2006") + " - " + last.Format("Jan 2006")
}

func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// Weekdays totals gallons by the day of the week, in loc, each run started on.
func Weekdays(records []ledger.Record, loc *time.Location) map[time.Weekday]float64 {
	totals := make(map[time.Weekday]float64)
	for _, r := range records {
		totals[r.Time.In(loc).Weekday()] += r.Gallons
	}
	return totals
}
