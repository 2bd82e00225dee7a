package application

import "time"

// Clock abstraction supaya timestamps dan durations gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, selalu UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
