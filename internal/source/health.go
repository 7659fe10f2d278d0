package source

import (
	"sync/atomic"
	"time"
)

const (
	// DefaultGraceWindow is the default cooldown after a fresh failure during
	// which a backend is unavailable regardless of its success rate.
	DefaultGraceWindow = 5 * time.Second

	// DefaultMinSuccessRate is the default minimum success rate for a
	// backend to be available.
	DefaultMinSuccessRate = 0.5
)

// HealthPolicy contains the knobs of the availability predicate. The
// zero value is valid and uses the defaults.
type HealthPolicy struct {
	// GraceWindow is the OPTIONAL cooldown after a fresh failure. When
	// zero, we use [DefaultGraceWindow].
	GraceWindow time.Duration

	// MinSuccessRate is the OPTIONAL minimum success rate. When
	// zero, we use [DefaultMinSuccessRate].
	MinSuccessRate float64

	// TimeNow is the OPTIONAL function returning the current time. When
	// nil, we use [time.Now].
	TimeNow func() time.Time
}

func (p *HealthPolicy) graceWindow() time.Duration {
	if p.GraceWindow > 0 {
		return p.GraceWindow
	}
	return DefaultGraceWindow
}

func (p *HealthPolicy) minSuccessRate() float64 {
	if p.MinSuccessRate > 0 {
		return p.MinSuccessRate
	}
	return DefaultMinSuccessRate
}

func (p *HealthPolicy) now() time.Time {
	if p.TimeNow != nil {
		return p.TimeNow()
	}
	return time.Now()
}

// Health tracks the rolling statistics of a backend.
//
// The zero value is invalid; construct using [NewHealth].
type Health struct {
	executionCount atomic.Int64
	failureCount   atomic.Int64

	// lastSuccessAt and lastFailureAt are unix nanoseconds; zero
	// means that the event never happened.
	lastSuccessAt atomic.Int64
	lastFailureAt atomic.Int64

	policy HealthPolicy
}

// NewHealth creates a new [*Health] using the given policy.
func NewHealth(policy HealthPolicy) *Health {
	return &Health{policy: policy}
}

// RecordSuccess records a successful attempt.
func (h *Health) RecordSuccess() {
	h.executionCount.Add(1)
	h.lastSuccessAt.Store(h.policy.now().UnixNano())
}

// RecordFailure records a failed attempt.
func (h *Health) RecordFailure() {
	// Increment the execution count first: readers load the failure count
	// first, so they never observe more failures than executions.
	h.executionCount.Add(1)
	h.failureCount.Add(1)
	h.lastFailureAt.Store(h.policy.now().UnixNano())
}

// counters returns a consistent enough view of the counters such
// that executions >= failures always holds.
func (h *Health) counters() (executions, failures int64) {
	failures = h.failureCount.Load()
	executions = h.executionCount.Load()
	return
}

// ExecutionCount returns the number of attempts.
func (h *Health) ExecutionCount() int64 {
	return h.executionCount.Load()
}

// FailureCount returns the number of failed attempts.
func (h *Health) FailureCount() int64 {
	return h.failureCount.Load()
}

// SuccessRate returns the fraction of successful attempts. A backend
// that never executed has a success rate of 1.0.
func (h *Health) SuccessRate() float64 {
	executions, failures := h.counters()
	if executions <= 0 {
		return 1.0
	}
	return float64(executions-failures) / float64(executions)
}

// LastSuccessAt returns the time of the last success or the zero value.
func (h *Health) LastSuccessAt() time.Time {
	return unixNanoToTime(h.lastSuccessAt.Load())
}

// LastFailureAt returns the time of the last failure or the zero value.
func (h *Health) LastFailureAt() time.Time {
	return unixNanoToTime(h.lastFailureAt.Load())
}

// IsAvailable returns whether the backend is eligible for selection:
//
// 1. a backend that never executed is available;
//
// 2. a backend whose most recent outcome is a failure that occurred
// less than the grace window ago is unavailable;
//
// 3. otherwise, the backend is available iff its success rate is
// not below the configured minimum.
func (h *Health) IsAvailable() bool {
	if h.executionCount.Load() <= 0 {
		return true
	}
	lastFailure, lastSuccess := h.lastFailureAt.Load(), h.lastSuccessAt.Load()
	if lastFailure > lastSuccess {
		elapsed := h.policy.now().Sub(time.Unix(0, lastFailure))
		if elapsed < h.policy.graceWindow() {
			return false
		}
	}
	return h.SuccessRate() >= h.policy.minSuccessRate()
}

func unixNanoToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}
