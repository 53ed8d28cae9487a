package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserRegistered is a no-op.
func (n *NoopRecorder) IncUserRegistered() {}

// IncUsernameConflict is a no-op.
func (n *NoopRecorder) IncUsernameConflict() {}

// IncRegistrationInvalid is a no-op.
func (n *NoopRecorder) IncRegistrationInvalid() {}

// ObserveRegisterDuration is a no-op.
func (n *NoopRecorder) ObserveRegisterDuration(duration time.Duration) {}

// IncRegistrationRateLimited is a no-op.
func (n *NoopRecorder) IncRegistrationRateLimited() {}
