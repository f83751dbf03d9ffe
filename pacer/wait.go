package pacer

import (
	"fmt"
	"time"
)

// Waiter blocks until the clock reaches deadline (in Clock.Nanos units).
type Waiter interface {
	Wait(clock Clock, deadline int64)
}

// SpinWaiter busy waits on the clock. Tightest pacing, burns a core.
type SpinWaiter struct{}

func (SpinWaiter) Wait(clock Clock, deadline int64) {
	for clock.Nanos() < deadline {
	}
}

var sleepFn = time.Sleep

// SleepWaiter hands the remaining time to the scheduler. Wake-up latency makes
// it looser than spinning at high rates.
type SleepWaiter struct{}

func (SleepWaiter) Wait(clock Clock, deadline int64) {
	if d := time.Duration(deadline - clock.Nanos()); d > 0 {
		sleepFn(d)
	}
}

// NewWaiter maps the config name to a waiter.
func NewWaiter(name string) (Waiter, error) {
	switch name {
	case "spin":
		return SpinWaiter{}, nil
	case "sleep":
		return SleepWaiter{}, nil
	}
	return nil, fmt.Errorf("unknown waiter %q (want \"spin\" or \"sleep\")", name)
}
