package source

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/runtimex"
	"golang.org/x/time/rate"
)

// Requester performs the network request backing a [*Remote].
//
// Request returns the result and true on success, nil and false
// on a soft miss (e.g., the service does not know the address), or
// an error when the request or the parsing failed.
//
// The implementation of this interface MUST be concurrency safe.
type Requester interface {
	Request(ctx context.Context, address string) (*model.IPInfo, bool, error)
}

// RequesterFunc transforms a func into a [Requester].
type RequesterFunc func(ctx context.Context, address string) (*model.IPInfo, bool, error)

var _ Requester = RequesterFunc(nil)

// Request implements Requester.
func (fx RequesterFunc) Request(ctx context.Context, address string) (*model.IPInfo, bool, error) {
	return fx(ctx, address)
}

// RemoteConfig contains the settings of a [*Remote] backend.
type RemoteConfig struct {
	// Name is the MANDATORY unique backend name.
	Name string

	// Weight is the OPTIONAL priority hint.
	Weight int

	// PermitsPerSecond is the OPTIONAL rate limit. When zero or
	// negative, requests are not rate limited.
	PermitsPerSecond float64

	// Burst is the OPTIONAL number of requests that may be issued
	// at once. When zero or negative, we use one.
	Burst int

	// Policy is the OPTIONAL health policy.
	Policy HealthPolicy
}

// Remote is a [model.RemoteBackend] performing network requests.
//
// The zero value is invalid; construct using [NewRemote].
type Remote struct {
	health    *Health
	limiter   *rate.Limiter
	name      string
	requester Requester
	weight    int

	// lastAcquireWait is in nanoseconds; lastAcquireAt is unix nanoseconds.
	lastAcquireWait atomic.Int64
	lastAcquireAt   atomic.Int64

	// totalResponseTime is in nanoseconds.
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
}

var _ model.RemoteBackend = &Remote{}

// NewRemote creates a new [*Remote] backend using the given requester.
func NewRemote(config RemoteConfig, requester Requester) *Remote {
	runtimex.Assert(config.Name != "", "source: passed empty name")
	runtimex.Assert(requester != nil, "source: passed nil requester")
	limit := rate.Inf
	if config.PermitsPerSecond > 0 {
		limit = rate.Limit(config.PermitsPerSecond)
	}
	return &Remote{
		health:    NewHealth(config.Policy),
		limiter:   rate.NewLimiter(limit, max(config.Burst, 1)),
		name:      config.Name,
		requester: requester,
		weight:    config.Weight,
	}
}

// Name implements model.Backend.
func (rb *Remote) Name() string {
	return rb.name
}

// Weight implements model.Backend.
func (rb *Remote) Weight() int {
	return rb.weight
}

// Kind implements model.Backend.
func (rb *Remote) Kind() model.BackendKind {
	return model.BackendKindRemote
}

// Query implements model.Backend.
//
// We block the calling goroutine until the rate limiter grants a permit
// or the context is done. A blank address returns an empty result without
// consuming a permit or touching the statistics. A soft miss from the
// requester counts as a failure but returns an empty result and no error.
func (rb *Remote) Query(ctx context.Context, address string) (*model.IPInfo, error) {
	if strings.TrimSpace(address) == "" {
		return &model.IPInfo{Address: address}, nil
	}

	t0 := time.Now()
	err := rb.limiter.Wait(ctx)
	rb.recordAcquire(time.Since(t0))
	if err != nil {
		rb.health.RecordFailure()
		return nil, err
	}

	t1 := time.Now()
	info, found, err := rb.requester.Request(ctx, address)
	rb.recordResponse(time.Since(t1))

	switch {
	case err != nil:
		rb.health.RecordFailure()
		return nil, err
	case !found || info == nil:
		rb.health.RecordFailure()
		return &model.IPInfo{Address: address}, nil
	default:
		rb.health.RecordSuccess()
		return info, nil
	}
}

func (rb *Remote) recordAcquire(wait time.Duration) {
	rb.lastAcquireWait.Store(int64(wait))
	rb.lastAcquireAt.Store(rb.health.policy.now().UnixNano())
}

func (rb *Remote) recordResponse(elapsed time.Duration) {
	rb.totalResponseTime.Add(int64(elapsed))
	rb.responseCount.Add(1)
}

// SuccessRate implements model.Backend.
func (rb *Remote) SuccessRate() float64 {
	return rb.health.SuccessRate()
}

// ExecutionCount implements model.Backend.
func (rb *Remote) ExecutionCount() int64 {
	return rb.health.ExecutionCount()
}

// FailureCount implements model.Backend.
func (rb *Remote) FailureCount() int64 {
	return rb.health.FailureCount()
}

// IsAvailable implements model.Backend.
func (rb *Remote) IsAvailable() bool {
	return rb.health.IsAvailable()
}

// LastAcquireWaitTime implements model.RemoteBackend.
func (rb *Remote) LastAcquireWaitTime() time.Duration {
	return time.Duration(rb.lastAcquireWait.Load())
}

// LastAcquireAt implements model.RemoteBackend.
func (rb *Remote) LastAcquireAt() time.Time {
	return unixNanoToTime(rb.lastAcquireAt.Load())
}

// TotalResponseTime implements model.RemoteBackend.
func (rb *Remote) TotalResponseTime() time.Duration {
	return time.Duration(rb.totalResponseTime.Load())
}

// ResponseCount implements model.RemoteBackend.
func (rb *Remote) ResponseCount() int64 {
	return rb.responseCount.Load()
}

// AverageResponseTime implements model.RemoteBackend.
func (rb *Remote) AverageResponseTime() time.Duration {
	count := rb.responseCount.Load()
	if count <= 0 {
		return 0
	}
	return time.Duration(rb.totalResponseTime.Load() / count)
}

// Health returns the underlying [*Health].
func (rb *Remote) Health() *Health {
	return rb.health
}
