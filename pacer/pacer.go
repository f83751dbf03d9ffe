// Package pacer decides when the sampling loop takes its next reading.
//
// Pacing is best effort. Deadlines are always computed from the start of the
// last sample actually taken, so a slow read or a long episode finalization
// makes the next sample late but never causes the loop to try to catch up.
package pacer

import (
	"fmt"
	"time"
)

type Mode string

const (
	// PollAndSkip never blocks; the loop polls Ready and skips until a sample is due.
	PollAndSkip Mode = "poll"
	// ComputeAndWait blocks in Ready until the next sample is due.
	ComputeAndWait Mode = "wait"
)

// ParseMode accepts the names used in the config file.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case PollAndSkip, ComputeAndWait:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown pacing mode %q (want %q or %q)", s, PollAndSkip, ComputeAndWait)
}

// Interval is the time between samples for the target rate.
func Interval(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}

// ShouldSample reports whether more than one interval has passed since last.
func ShouldSample(last, now int64, interval time.Duration) bool {
	return now-last > interval.Nanoseconds()
}

// WaitFor is how long to wait after a sample that started at start and whose
// processing finished at end. It is never negative.
func WaitFor(start, end int64, interval time.Duration) time.Duration {
	wait := interval - time.Duration(end-start)
	if wait < 0 {
		return 0
	}
	return wait
}

type Pacer struct {
	mode     Mode
	interval time.Duration
	clock    Clock
	waiter   Waiter
	last     int64
	marked   bool
}

// New returns a pacer for the target rate. The waiter is only used in
// ComputeAndWait mode and may be nil otherwise.
func New(hz float64, mode Mode, clock Clock, waiter Waiter) (*Pacer, error) {
	if hz <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", hz)
	}
	if mode == ComputeAndWait && waiter == nil {
		return nil, fmt.Errorf("%s pacing needs a waiter", mode)
	}
	return &Pacer{
		mode:     mode,
		interval: Interval(hz),
		clock:    clock,
		waiter:   waiter,
	}, nil
}

func (p *Pacer) Interval() time.Duration {
	return p.interval
}

func (p *Pacer) Mode() Mode {
	return p.mode
}

// Ready reports whether the loop should sample now. Before the first Mark a
// sample is always due.
func (p *Pacer) Ready() bool {
	if !p.marked {
		return true
	}
	if p.mode == PollAndSkip {
		return ShouldSample(p.last, p.clock.Nanos(), p.interval)
	}
	if wait := WaitFor(p.last, p.clock.Nanos(), p.interval); wait > 0 {
		p.waiter.Wait(p.clock, p.last+p.interval.Nanoseconds())
	}
	return true
}

// Mark records the start time of the sample just taken.
func (p *Pacer) Mark(t int64) {
	p.last = t
	p.marked = true
}

func (p *Pacer) Last() int64 {
	return p.last
}
