package mocks

import (
	"context"
	"time"

	"github.com/ooni/geoquery/internal/model"
)

// Backend is a mockable [model.Backend].
type Backend struct {
	MockName           func() string
	MockWeight         func() int
	MockKind           func() model.BackendKind
	MockQuery          func(ctx context.Context, address string) (*model.IPInfo, error)
	MockSuccessRate    func() float64
	MockExecutionCount func() int64
	MockFailureCount   func() int64
	MockIsAvailable    func() bool
}

var _ model.Backend = &Backend{}

// Name calls MockName.
func (b *Backend) Name() string {
	return b.MockName()
}

// Weight calls MockWeight.
func (b *Backend) Weight() int {
	return b.MockWeight()
}

// Kind calls MockKind.
func (b *Backend) Kind() model.BackendKind {
	return b.MockKind()
}

// Query calls MockQuery.
func (b *Backend) Query(ctx context.Context, address string) (*model.IPInfo, error) {
	return b.MockQuery(ctx, address)
}

// SuccessRate calls MockSuccessRate.
func (b *Backend) SuccessRate() float64 {
	return b.MockSuccessRate()
}

// ExecutionCount calls MockExecutionCount.
func (b *Backend) ExecutionCount() int64 {
	return b.MockExecutionCount()
}

// FailureCount calls MockFailureCount.
func (b *Backend) FailureCount() int64 {
	return b.MockFailureCount()
}

// IsAvailable calls MockIsAvailable.
func (b *Backend) IsAvailable() bool {
	return b.MockIsAvailable()
}

// RemoteBackend is a mockable [model.RemoteBackend].
type RemoteBackend struct {
	Backend
	MockLastAcquireWaitTime func() time.Duration
	MockLastAcquireAt       func() time.Time
	MockTotalResponseTime   func() time.Duration
	MockResponseCount       func() int64
	MockAverageResponseTime func() time.Duration
}

var _ model.RemoteBackend = &RemoteBackend{}

// LastAcquireWaitTime calls MockLastAcquireWaitTime.
func (b *RemoteBackend) LastAcquireWaitTime() time.Duration {
	return b.MockLastAcquireWaitTime()
}

// LastAcquireAt calls MockLastAcquireAt.
func (b *RemoteBackend) LastAcquireAt() time.Time {
	return b.MockLastAcquireAt()
}

// TotalResponseTime calls MockTotalResponseTime.
func (b *RemoteBackend) TotalResponseTime() time.Duration {
	return b.MockTotalResponseTime()
}

// ResponseCount calls MockResponseCount.
func (b *RemoteBackend) ResponseCount() int64 {
	return b.MockResponseCount()
}

// AverageResponseTime calls MockAverageResponseTime.
func (b *RemoteBackend) AverageResponseTime() time.Duration {
	return b.MockAverageResponseTime()
}
