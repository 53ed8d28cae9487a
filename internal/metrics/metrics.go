// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Registration outcomes
	IncUserRegistered()
	IncUsernameConflict()
	IncRegistrationInvalid()
	ObserveRegisterDuration(duration time.Duration)

	// Abuse protection
	IncRegistrationRateLimited()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
