// Package clock abstracts wall time so room lifecycle and token expiry can
// be tested deterministically.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }
