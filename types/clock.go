package types

import "time"

// Clock supplies the ledger's notion of "now".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// ElapsedSeconds returns the whole seconds from "from" to "to", or zero when
// "to" is not after "from".
func ElapsedSeconds(from, to time.Time) int64 {
	d := to.Unix() - from.Unix()
	if d < 0 {
		return 0
	}
	return d
}
