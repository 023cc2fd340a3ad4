package session

import "time"

// Clock supplies the current time to sessions and the sweeper.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock returns time.Now, which carries a monotonic reading so
// deadline comparisons are immune to wall-clock steps.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

// Deadline is the authoritative voting window of one poll.
type Deadline struct {
	Start time.Time
	End   time.Time
}

// NewDeadline starts a window of d at start.
func NewDeadline(start time.Time, d time.Duration) Deadline {
	return Deadline{Start: start, End: start.Add(d)}
}

// Expired reports whether now is at or past the end of the window.
func (d Deadline) Expired(now time.Time) bool {
	return !now.Before(d.End)
}

// Remaining is the time left in the window, never negative.
func (d Deadline) Remaining(now time.Time) time.Duration {
	if r := d.End.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Elapsed is the time since the window opened, clamped to [0, window length].
func (d Deadline) Elapsed(now time.Time) time.Duration {
	e := now.Sub(d.Start)
	if e < 0 {
		return 0
	}
	if max := d.End.Sub(d.Start); e > max {
		return max
	}
	return e
}
