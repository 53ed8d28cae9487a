package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered         uint64
	UsernameConflicts       uint64
	RegistrationsInvalid    uint64
	RegistrationsLimited    uint64
	RegisterDurationCount   uint64
	RegisterDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint.
type InMemoryRecorder struct {
	usersRegistered         atomic.Uint64
	usernameConflicts       atomic.Uint64
	registrationsInvalid    atomic.Uint64
	registrationsLimited    atomic.Uint64
	registerDurationCount   atomic.Uint64
	registerDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:         m.usersRegistered.Load(),
		UsernameConflicts:       m.usernameConflicts.Load(),
		RegistrationsInvalid:    m.registrationsInvalid.Load(),
		RegistrationsLimited:    m.registrationsLimited.Load(),
		RegisterDurationCount:   m.registerDurationCount.Load(),
		RegisterDurationTotalNs: m.registerDurationTotalNs.Load(),
	}
}

// IncUserRegistered increments the registered users counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	m.usersRegistered.Add(1)
}

// IncUsernameConflict increments the taken-username counter.
func (m *InMemoryRecorder) IncUsernameConflict() {
	m.usernameConflicts.Add(1)
}

// IncRegistrationInvalid increments the rejected-input counter.
func (m *InMemoryRecorder) IncRegistrationInvalid() {
	m.registrationsInvalid.Add(1)
}

// ObserveRegisterDuration records how long a registration took.
func (m *InMemoryRecorder) ObserveRegisterDuration(duration time.Duration) {
	m.registerDurationCount.Add(1)
	m.registerDurationTotalNs.Add(duration.Nanoseconds())
}

// IncRegistrationRateLimited increments the rate limited counter.
func (m *InMemoryRecorder) IncRegistrationRateLimited() {
	m.registrationsLimited.Add(1)
}
