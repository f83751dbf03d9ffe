package episode

import (
	"math"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/calibration"
)

// Timing describes how evenly the samples of an episode were spaced. It is
// logged to spot pacing degradation and is not persisted.
type Timing struct {
	Intervals int
	Mean      float64 // ns
	StdDev    float64 // ns
	Target    time.Duration
}

// Summary is everything derived from a finished episode.
type Summary struct {
	Start        time.Time
	Samples      int
	Duration     time.Duration
	Amps         []float64
	MaxAmps      float64
	AverageAmps  float64
	AverageWatts float64
	Gallons      float64
	Timing       Timing
}

// Summarize derives the metrics of an episode. A single sample episode has a
// zero duration and no timing intervals.
func Summarize(ep Episode, conv calibration.Converter, pump calibration.Pump, target time.Duration) Summary {
	s := Summary{
		Start:    ep.Start,
		Samples:  len(ep.Samples),
		Duration: ep.Duration(),
		Amps:     conv.AllToAmps(ep.Volts()),
		Timing:   timing(ep.Times(), target),
	}
	if len(s.Amps) > 0 {
		s.MaxAmps = math.Inf(-1)
		sum := 0.0
		for _, a := range s.Amps {
			s.MaxAmps = math.Max(s.MaxAmps, a)
			sum += a
		}
		s.AverageAmps = sum / float64(len(s.Amps))
	}
	s.AverageWatts = pump.Watts(s.AverageAmps)
	s.Gallons = pump.GallonsPumped(s.Duration)
	return s
}

// Diffs returns the successive differences of the sample times.
func Diffs(times []int64) []float64 {
	if len(times) < 2 {
		return nil
	}
	d := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		d[i-1] = float64(times[i] - times[i-1])
	}
	return d
}

func timing(times []int64, target time.Duration) Timing {
	t := Timing{Target: target}
	d := Diffs(times)
	if len(d) == 0 {
		return t
	}
	t.Intervals = len(d)
	for _, v := range d {
		t.Mean += v
	}
	t.Mean /= float64(len(d))
	for _, v := range d {
		t.StdDev += (v - t.Mean) * (v - t.Mean)
	}
	t.StdDev = math.Sqrt(t.StdDev / float64(len(d)))
	return t
}
