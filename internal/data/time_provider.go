package data

import "time"

// TimeProvider abstracts the clock so repositories and services can be tested
// with a controllable time source.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider reads the system clock.
type RealTimeProvider struct{}

func (RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider is a clock frozen at a settable instant.
type FixedTimeProvider struct {
	now time.Time
}

func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: t}
}

func (f *FixedTimeProvider) Now() time.Time { return f.now }

// SetTime moves the clock to t.
func (f *FixedTimeProvider) SetTime(t time.Time) { f.now = t }

// AddTime advances the clock by d. Negative values move it backwards.
func (f *FixedTimeProvider) AddTime(d time.Duration) { f.now = f.now.Add(d) }
