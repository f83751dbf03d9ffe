// Package episode segments the sensor signal into pump runs and turns each
// finished run into a summary, exported artifacts and a ledger entry.
package episode

import (
	"time"

	"github.com/TheCacophonyProject/pump-monitor/pacer"
)

// Sample is one reading from the ADC. Time is in pacer.Clock nanoseconds.
type Sample struct {
	Time  int64
	Volts float64
}

// Episode is a contiguous run of samples above the threshold.
type Episode struct {
	// Start is the wall clock time the first sample was seen, used for naming.
	Start      time.Time
	StartNanos int64
	Samples    []Sample
}

func (e Episode) Volts() []float64 {
	v := make([]float64, len(e.Samples))
	for i, s := range e.Samples {
		v[i] = s.Volts
	}
	return v
}

func (e Episode) Times() []int64 {
	t := make([]int64, len(e.Samples))
	for i, s := range e.Samples {
		t[i] = s.Time
	}
	return t
}

// Duration is measured from the first to the last sample of the run so the
// idle gap before the falling edge is not counted.
func (e Episode) Duration() time.Duration {
	if len(e.Samples) == 0 {
		return 0
	}
	return time.Duration(e.Samples[len(e.Samples)-1].Time - e.StartNanos)
}

type State string

const (
	Idle         State = "IDLE"
	Accumulating State = "ACCUMULATING"
)

// Accumulator owns the in-progress episode. It is not safe for concurrent use;
// the sampling loop is its only caller.
type Accumulator struct {
	threshold float64
	clock     pacer.Clock
	state     State
	current   Episode
}

func NewAccumulator(threshold float64, clock pacer.Clock) *Accumulator {
	return &Accumulator{
		threshold: threshold,
		clock:     clock,
		state:     Idle,
	}
}

// Observe feeds one sample through the threshold state machine. When the
// sample ends a run it returns the finished episode and true; by then the
// accumulator has already been reset to Idle.
func (a *Accumulator) Observe(s Sample) (Episode, bool) {
	if s.Volts > a.threshold {
		if a.state == Idle {
			a.state = Accumulating
			a.current = Episode{
				Start:      a.clock.Now(),
				StartNanos: s.Time,
			}
		}
		a.current.Samples = append(a.current.Samples, s)
		return Episode{}, false
	}

	if a.state != Accumulating || len(a.current.Samples) == 0 {
		return Episode{}, false
	}
	done := a.current
	a.reset()
	return done, true
}

// Discard drops an unfinished episode and returns how many samples were lost.
func (a *Accumulator) Discard() int {
	n := len(a.current.Samples)
	a.reset()
	return n
}

func (a *Accumulator) reset() {
	a.current = Episode{}
	a.state = Idle
}

func (a *Accumulator) State() State {
	return a.state
}

func (a *Accumulator) Pending() int {
	return len(a.current.Samples)
}

func (a *Accumulator) Threshold() float64 {
	return a.threshold
}
