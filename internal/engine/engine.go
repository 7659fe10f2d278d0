package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ooni/geoquery/internal/fallback"
	"github.com/ooni/geoquery/internal/logx"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/resultcache"
	"github.com/ooni/geoquery/internal/selector"
)

const (
	// DefaultMaxCacheSize is the default maximum number of cached results.
	DefaultMaxCacheSize = 1024

	// DefaultExpireAfterWrite is the default cache write TTL.
	DefaultExpireAfterWrite = 10 * time.Minute

	// DefaultExpireAfterAccess is the default cache access TTL.
	DefaultExpireAfterAccess = 3 * time.Minute
)

// Config contains the [*Engine] settings. The zero value is valid
// and creates an engine without any backend.
type Config struct {
	// Sources contains the OPTIONAL initial backends. Backends with
	// a duplicate name are ignored.
	Sources []model.Backend

	// Selector is the OPTIONAL [selector.Selector]. When nil, we
	// use a [*selector.Weighted] sharing our TimeNow.
	Selector selector.Selector

	// Fallback is the OPTIONAL [fallback.Policy]. When nil, we
	// use a [*fallback.LocalFirst].
	Fallback fallback.Policy

	// MaxCacheSize is the OPTIONAL maximum number of cached results. When
	// zero, we use [DefaultMaxCacheSize]. When negative, the cache is
	// only bounded by expiration.
	MaxCacheSize int

	// ExpireAfterWrite is the OPTIONAL cache write TTL. When zero, we use
	// [DefaultExpireAfterWrite]. When negative, we disable it.
	ExpireAfterWrite time.Duration

	// ExpireAfterAccess is the OPTIONAL cache access TTL. When zero, we use
	// [DefaultExpireAfterAccess]. When negative, we disable it.
	ExpireAfterAccess time.Duration

	// Logger is the OPTIONAL logger. When nil, we do not log.
	Logger model.Logger

	// TimeNow is the OPTIONAL function returning the current time. When
	// nil, we use [time.Now].
	TimeNow func() time.Time
}

// Engine is the query orchestration engine.
//
// The zero value is invalid; construct using [New].
//
// It's safe to use this struct from multiple goroutine contexts.
type Engine struct {
	cache    *resultcache.Cache
	fallback fallback.Policy
	logger   model.Logger
	selector selector.Selector

	// sources is replaced as a whole by AddSource, so readers
	// always observe a fully constructed list.
	sources atomic.Pointer[[]model.Backend]
}

// New creates a new [*Engine] using the given config.
func New(config *Config) *Engine {
	if config == nil {
		config = &Config{}
	}
	engine := &Engine{
		cache: resultcache.New(resultcache.Config{
			MaxEntries:        intOrDefault(config.MaxCacheSize, DefaultMaxCacheSize),
			ExpireAfterWrite:  durationOrDefault(config.ExpireAfterWrite, DefaultExpireAfterWrite),
			ExpireAfterAccess: durationOrDefault(config.ExpireAfterAccess, DefaultExpireAfterAccess),
			TimeNow:           config.TimeNow,
		}),
		fallback: config.Fallback,
		logger: &logx.PrefixLogger{
			Prefix: "engine: ",
			Logger: model.ValidLoggerOrDefault(config.Logger),
		},
		selector: config.Selector,
	}
	if engine.selector == nil {
		engine.selector = &selector.Weighted{TimeNow: config.TimeNow}
	}
	if engine.fallback == nil {
		engine.fallback = &fallback.LocalFirst{}
	}
	empty := []model.Backend{}
	engine.sources.Store(&empty)
	for _, source := range config.Sources {
		engine.AddSource(source)
	}
	return engine
}

func intOrDefault(value, defaultValue int) int {
	switch {
	case value == 0:
		return defaultValue
	case value < 0:
		return 0
	default:
		return value
	}
}

func durationOrDefault(value, defaultValue time.Duration) time.Duration {
	switch {
	case value == 0:
		return defaultValue
	case value < 0:
		return 0
	default:
		return value
	}
}

// AddSource registers a backend unless a backend with the same name is
// already registered, in which case it returns false. It is safe to call
// this method concurrently with [*Engine.Query].
func (e *Engine) AddSource(source model.Backend) bool {
	if source == nil {
		return false
	}
	for {
		current := e.sources.Load()
		for _, existing := range *current {
			if existing.Name() == source.Name() {
				return false
			}
		}
		next := make([]model.Backend, 0, len(*current)+1)
		next = append(next, *current...)
		next = append(next, source)
		if e.sources.CompareAndSwap(current, &next) {
			e.logger.Debugf("added %s source %s with weight %d", source.Kind(), source.Name(), source.Weight())
			return true
		}
	}
}

// Sources returns a copy of the registered backends.
func (e *Engine) Sources() []model.Backend {
	return append([]model.Backend{}, *e.sources.Load()...)
}

// Query resolves the given address.
//
// A blank address returns an empty result without contacting any backend. A
// cached result is returned without touching any backend statistics. When no
// backend is available, we return [ErrNoAvailableSource]. When the selected
// backend fails, we retry once with the fallback backend and, if that also
// fails, we return the selected backend's error as a [*BackendQueryError].
func (e *Engine) Query(ctx context.Context, address string) (*model.IPInfo, error) {
	if strings.TrimSpace(address) == "" {
		return &model.IPInfo{}, nil
	}

	if info, found := e.cache.Get(address); found {
		e.logger.Debugf("cache hit for %s", address)
		return info, nil
	}

	available := e.availableSources()
	if len(available) <= 0 {
		return nil, ErrNoAvailableSource
	}

	primary := e.selector.Select(available)
	if primary == nil {
		return nil, ErrSelectionFailure
	}

	info, err := e.invoke(ctx, primary, address)
	if err == nil {
		return info, nil
	}

	alternate := e.fallback.SelectFallback(available, primary)
	if alternate == nil {
		return nil, err
	}
	e.logger.Infof("%s failed for %s; falling back to %s", primary.Name(), address, alternate.Name())
	info, fallbackErr := e.invoke(ctx, alternate, address)
	if fallbackErr != nil {
		return nil, err
	}
	return info, nil
}

// availableSources returns the backends that are currently available.
func (e *Engine) availableSources() (out []model.Backend) {
	for _, source := range *e.sources.Load() {
		if source.IsAvailable() {
			out = append(out, source)
		}
	}
	return
}

// invoke queries the given backend and caches the result on success.
func (e *Engine) invoke(ctx context.Context, backend model.Backend, address string) (*model.IPInfo, error) {
	ol := logx.NewOperationLogger(e.logger, "query %s using %s", address, backend.Name())
	info, err := backend.Query(ctx, address)
	if err == nil && info == nil {
		err = errNoResult
	}
	ol.Stop(err)
	if err != nil {
		return nil, &BackendQueryError{Backend: backend.Name(), Err: err}
	}
	// we only cache remote results carrying some data
	if backend.Kind() == model.BackendKindRemote && !info.IsEmpty() {
		e.cache.Put(address, info)
	}
	return info, nil
}

// InvalidateCache removes the given address from the cache.
func (e *Engine) InvalidateCache(address string) {
	e.cache.Invalidate(address)
}

// InvalidateAllCache empties the cache.
func (e *Engine) InvalidateAllCache() {
	e.cache.InvalidateAll()
}

// CacheStats returns the cache statistics.
func (e *Engine) CacheStats() resultcache.Stats {
	return e.cache.Stats()
}

// CacheSize returns the number of cached results.
func (e *Engine) CacheSize() int {
	return e.cache.Len()
}

// Close closes all the backends implementing [io.Closer].
func (e *Engine) Close() error {
	var errs []error
	for _, source := range *e.sources.Load() {
		if closer, ok := source.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
