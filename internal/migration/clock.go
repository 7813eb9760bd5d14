package migration

import "time"

// Clock abstracts time so the coordination loop can be tested with a fake
// clock instead of real timers.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// systemClock implements Clock using the time package.
type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns a Clock backed by real time.
func SystemClock() Clock {
	return systemClock{}
}
