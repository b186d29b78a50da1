// Package clock provides the wall-clock implementation of poi.Clock.
package clock

import "time"

// System returns the current wall-clock time.
type System struct{}

func (System) Now() time.Time { return time.Now() }
