package source

import (
	"context"
	"errors"
	"io"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/runtimex"
)

// ErrNoResult indicates that a resolver returned neither a result nor an error.
var ErrNoResult = errors.New("source: resolver returned no result")

// LocalResolver resolves addresses in-process.
//
// The implementation of this interface MUST be concurrency safe.
type LocalResolver interface {
	Resolve(ctx context.Context, address string) (*model.IPInfo, error)
}

// LocalResolverFunc transforms a func into a [LocalResolver].
type LocalResolverFunc func(ctx context.Context, address string) (*model.IPInfo, error)

var _ LocalResolver = LocalResolverFunc(nil)

// Resolve implements LocalResolver.
func (fx LocalResolverFunc) Resolve(ctx context.Context, address string) (*model.IPInfo, error) {
	return fx(ctx, address)
}

// LocalConfig contains the settings of a [*Local] backend.
type LocalConfig struct {
	// Name is the MANDATORY unique backend name.
	Name string

	// Weight is the OPTIONAL priority hint.
	Weight int

	// AlwaysAvailable OPTIONALLY makes IsAvailable always return true, which
	// is what we want for embedded databases that cannot be overloaded.
	AlwaysAvailable bool

	// Policy is the OPTIONAL health policy.
	Policy HealthPolicy
}

// Local is a [model.Backend] resolving addresses in-process.
//
// The zero value is invalid; construct using [NewLocal].
type Local struct {
	alwaysAvailable bool
	health          *Health
	name            string
	resolver        LocalResolver
	weight          int
}

var _ model.Backend = &Local{}

// NewLocal creates a new [*Local] backend using the given resolver. If the
// resolver implements [io.Closer], [*Local.Close] closes it.
func NewLocal(config LocalConfig, resolver LocalResolver) *Local {
	runtimex.Assert(config.Name != "", "source: passed empty name")
	runtimex.Assert(resolver != nil, "source: passed nil resolver")
	return &Local{
		alwaysAvailable: config.AlwaysAvailable,
		health:          NewHealth(config.Policy),
		name:            config.Name,
		resolver:        resolver,
		weight:          config.Weight,
	}
}

// Name implements model.Backend.
func (lb *Local) Name() string {
	return lb.name
}

// Weight implements model.Backend.
func (lb *Local) Weight() int {
	return lb.weight
}

// Kind implements model.Backend.
func (lb *Local) Kind() model.BackendKind {
	return model.BackendKindLocal
}

// Query implements model.Backend.
func (lb *Local) Query(ctx context.Context, address string) (*model.IPInfo, error) {
	info, err := lb.resolver.Resolve(ctx, address)
	if err == nil && info == nil {
		err = ErrNoResult
	}
	if err != nil {
		lb.health.RecordFailure()
		return nil, err
	}
	lb.health.RecordSuccess()
	return info, nil
}

// SuccessRate implements model.Backend.
func (lb *Local) SuccessRate() float64 {
	return lb.health.SuccessRate()
}

// ExecutionCount implements model.Backend.
func (lb *Local) ExecutionCount() int64 {
	return lb.health.ExecutionCount()
}

// FailureCount implements model.Backend.
func (lb *Local) FailureCount() int64 {
	return lb.health.FailureCount()
}

// IsAvailable implements model.Backend.
func (lb *Local) IsAvailable() bool {
	return lb.alwaysAvailable || lb.health.IsAvailable()
}

// Health returns the underlying [*Health].
func (lb *Local) Health() *Health {
	return lb.health
}

// Close closes the underlying resolver, if it is closeable.
func (lb *Local) Close() error {
	if closer, ok := lb.resolver.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
