package pacer

import "time"

// Clock supplies sample timestamps. Nanos must be monotonic; Now is the wall
// clock used for naming episodes.
type Clock interface {
	Nanos() int64
	Now() time.Time
}

// SystemClock reports monotonic nanoseconds anchored to the Unix epoch at the
// moment it was created, so timestamps are absolute but never jump backwards
// when the system time is adjusted.
type SystemClock struct {
	base     time.Time
	baseUnix int64
}

func NewSystemClock() *SystemClock {
	now := time.Now()
	return &SystemClock{base: now, baseUnix: now.UnixNano()}
}

func (c *SystemClock) Nanos() int64 {
	return c.baseUnix + time.Since(c.base).Nanoseconds()
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}
