package config

//
// Engine construction
//

import (
	"io"
	"net/http"

	"github.com/ooni/geoquery/internal/backends/mmdb"
	"github.com/ooni/geoquery/internal/backends/regiontxt"
	"github.com/ooni/geoquery/internal/backends/webapi"
	"github.com/ooni/geoquery/internal/engine"
	"github.com/ooni/geoquery/internal/logx"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/source"
	"github.com/pkg/errors"
)

// Options contains the OPTIONAL settings for [*Config.NewEngine].
type Options struct {
	// HTTPClient is the HTTP client for remote backends. When nil,
	// we create a new [*http.Client] shared by all of them.
	HTTPClient model.HTTPClient

	// Logger is the logger. When nil, we do not log.
	Logger model.Logger

	// UserAgent overrides the User-Agent used by remote backends.
	UserAgent string
}

// NewEngine opens all the configured backends and returns the
// engine using them. On failure, we close the backends we
// already opened. The caller owns the engine and must Close it.
func (c *Config) NewEngine(options *Options) (*engine.Engine, error) {
	if options == nil {
		options = &Options{}
	}
	logger := model.ValidLoggerOrDefault(options.Logger)
	client := options.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	policy := source.HealthPolicy{
		GraceWindow:    c.Health.GraceWindow.Std(),
		MinSuccessRate: c.Health.MinSuccessRate,
	}

	var backends []model.Backend
	for idx := range c.Backends {
		entry := &c.Backends[idx]
		backend, err := entry.open(policy, client, logger, options.UserAgent)
		if err != nil {
			closeAll(backends)
			return nil, errors.Wrapf(err, "opening backend %s", entry.Name)
		}
		logger.Debugf("config: opened %s backend %s (weight=%d)", entry.Type, entry.Name, entry.Weight)
		backends = append(backends, backend)
	}

	return engine.New(&engine.Config{
		Sources:           backends,
		MaxCacheSize:      c.Cache.MaxEntries,
		ExpireAfterWrite:  c.Cache.ExpireAfterWrite.Std(),
		ExpireAfterAccess: c.Cache.ExpireAfterAccess.Std(),
		Logger:            logger,
	}), nil
}

func (b *Backend) open(policy source.HealthPolicy,
	client model.HTTPClient, logger model.Logger, userAgent string) (model.Backend, error) {
	switch b.Type {
	case BackendTypeMMDB:
		return mmdb.Open(&mmdb.Config{
			Name:     b.Name,
			Weight:   b.Weight,
			Path:     b.Path,
			Language: b.Language,
			Policy:   policy,
		})
	case BackendTypeRegionTxt:
		return regiontxt.Open(&regiontxt.Config{
			Name:   b.Name,
			Weight: b.Weight,
			Paths:  b.paths(),
			Policy: policy,
		})
	case BackendTypeWebAPI:
		return webapi.New(&webapi.Config{
			Name:             b.Name,
			Provider:         b.Provider,
			Weight:           b.Weight,
			BaseURL:          b.BaseURL,
			Token:            b.Token,
			PermitsPerSecond: b.PermitsPerSecond,
			Burst:            b.Burst,
			Timeout:          b.Timeout.Std(),
			HTTPClient:       client,
			Logger:           &logx.PrefixLogger{Prefix: b.Name + ": ", Logger: logger},
			UserAgent:        userAgent,
			Policy:           policy,
		})
	default:
		return nil, errors.Errorf("unknown type %q", b.Type)
	}
}

// closeAll closes the backends implementing [io.Closer].
func closeAll(backends []model.Backend) {
	for _, backend := range backends {
		if closer, ok := backend.(io.Closer); ok {
			closer.Close()
		}
	}
}
