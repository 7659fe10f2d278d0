package model

//
// Backend definition
//

import (
	"context"
	"time"
)

// BackendKind classifies a backend by how it produces results.
type BackendKind int

const (
	// BackendKindLocal is a backend resolving entirely in-process (e.g., an
	// embedded database), which is not rate limited and has no network latency.
	BackendKindLocal = BackendKind(iota)

	// BackendKindRemote is a backend performing a network call, which is
	// subject to rate limiting and latency tracking.
	BackendKindRemote
)

// String implements fmt.Stringer.
func (k BackendKind) String() string {
	switch k {
	case BackendKindLocal:
		return "local"
	case BackendKindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Backend is an interchangeable source able to resolve an address
// to geographic and ISP metadata.
//
// The implementation of every method MUST be concurrency safe.
type Backend interface {
	// Name returns the stable name of the backend.
	Name() string

	// Weight returns the priority hint, typically 1-100; higher is preferred.
	Weight() int

	// Kind returns whether this backend is local or remote.
	Kind() BackendKind

	// Query resolves the given address.
	Query(ctx context.Context, address string) (*IPInfo, error)

	// SuccessRate returns the rolling success rate between 0.0 and 1.0.
	SuccessRate() float64

	// ExecutionCount returns the number of queries attempted.
	ExecutionCount() int64

	// FailureCount returns the number of queries that failed.
	FailureCount() int64

	// IsAvailable returns whether the backend is currently eligible for selection.
	IsAvailable() bool
}

// RemoteBackend is a [Backend] whose Kind is [BackendKindRemote] and which
// additionally exposes rate limiting and latency statistics.
type RemoteBackend interface {
	Backend

	// LastAcquireWaitTime returns how long the most recent query waited for
	// the rate limiter.
	LastAcquireWaitTime() time.Duration

	// LastAcquireAt returns when the most recent rate limiter acquisition
	// completed. The zero value means no acquisition happened yet.
	LastAcquireAt() time.Time

	// TotalResponseTime returns the accumulated request latency.
	TotalResponseTime() time.Duration

	// ResponseCount returns the number of requests contributing to TotalResponseTime.
	ResponseCount() int64

	// AverageResponseTime returns TotalResponseTime / ResponseCount or zero.
	AverageResponseTime() time.Duration
}
