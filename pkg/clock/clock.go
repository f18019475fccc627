// Package clock provides an injectable source of time so that session
// lifecycle logic can be tested without sleeping.
package clock

import "time"

// Clock abstracts time.Now so tests can control the passage of time.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock backed by the system clock.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// New returns the default production Clock.
func New() Clock { return Real{} }
