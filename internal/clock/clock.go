// Package clock abstracts the current time so timestamp logic can be tested.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// System is the wall clock in UTC.
var System Clock = Func(func() time.Time { return time.Now().UTC() })

// Stamp returns c.Now() in UTC truncated to microseconds, the precision
// Postgres keeps, so values survive a round trip through any store unchanged.
func Stamp(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Microsecond)
}
