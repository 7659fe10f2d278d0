// Package config contains the geoquery configuration file model.
//
// We read configuration files written either in JSON with comments
// or in YAML. Use [Load] to read and validate a file and [Default] to
// obtain a configuration using the embedded database and the free web APIs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ooni/geoquery/internal/backends/webapi"
	"github.com/ooni/geoquery/internal/hujsonx"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the current configuration file version.
const CurrentVersion = 1

// ErrUnsupportedVersion indicates that the file version is not [CurrentVersion].
var ErrUnsupportedVersion = errors.New("config: unsupported version")

// ErrInvalidBackend indicates that a backend entry is invalid.
var ErrInvalidBackend = errors.New("config: invalid backend")

// ErrInvalidSetting indicates that a global setting is invalid.
var ErrInvalidSetting = errors.New("config: invalid setting")

// BackendType is the type of a backend entry.
type BackendType string

const (
	// BackendTypeMMDB is a local MaxMind DB backend.
	BackendTypeMMDB = BackendType("mmdb")

	// BackendTypeRegionTxt is a local ip2region source text backend.
	BackendTypeRegionTxt = BackendType("regiontxt")

	// BackendTypeWebAPI is a remote web API backend.
	BackendTypeWebAPI = BackendType("webapi")
)

// Config is the root of the configuration file.
type Config struct {
	// Version is the configuration file version.
	Version int `json:"version" yaml:"version"`

	// Cache contains the result cache settings.
	Cache Cache `json:"cache" yaml:"cache"`

	// Health contains the health policy settings.
	Health Health `json:"health" yaml:"health"`

	// Backends contains the backends to register.
	Backends []Backend `json:"backends" yaml:"backends"`
}

// Cache contains the result cache settings. Zero values mean "use the
// default" and negative values disable the corresponding setting.
type Cache struct {
	MaxEntries        int      `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	ExpireAfterWrite  Duration `json:"expire_after_write,omitempty" yaml:"expire_after_write,omitempty"`
	ExpireAfterAccess Duration `json:"expire_after_access,omitempty" yaml:"expire_after_access,omitempty"`
}

// Health contains the health policy settings. Zero values mean "use the default".
type Health struct {
	GraceWindow    Duration `json:"grace_window,omitempty" yaml:"grace_window,omitempty"`
	MinSuccessRate float64  `json:"min_success_rate,omitempty" yaml:"min_success_rate,omitempty"`
}

// Backend is a backend entry.
type Backend struct {
	Type   BackendType `json:"type" yaml:"type"`
	Name   string      `json:"name" yaml:"name"`
	Weight int         `json:"weight" yaml:"weight"`

	// local backends
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
	Paths    []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`

	// remote backends
	Provider         webapi.Provider `json:"provider,omitempty" yaml:"provider,omitempty"`
	BaseURL          string          `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Token            string          `json:"token,omitempty" yaml:"token,omitempty"`
	PermitsPerSecond float64         `json:"permits_per_second,omitempty" yaml:"permits_per_second,omitempty"`
	Burst            int             `json:"burst,omitempty" yaml:"burst,omitempty"`
	Timeout          Duration        `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// paths returns all the configured paths.
func (b *Backend) paths() (out []string) {
	if b.Path != "" {
		out = append(out, b.Path)
	}
	return append(out, b.Paths...)
}

// freeAPI describes a free web API we use by default.
type freeAPI struct {
	provider      webapi.Provider
	weight        int
	speedPriority int
}

// freeAPIs contains the free web APIs in decreasing weight order. With speed
// priority, we flatten the weights so requests spread more evenly.
var freeAPIs = []freeAPI{
	{provider: webapi.ProviderIPAPICo, weight: 70, speedPriority: 40},
	{provider: webapi.ProviderIPAPI, weight: 60, speedPriority: 25},
	{provider: webapi.ProviderIPInfo, weight: 55, speedPriority: 20},
	{provider: webapi.ProviderIPWhois, weight: 30, speedPriority: 10},
}

// embeddedWeight is the weight of the embedded database in the default
// configuration. It only knows the country and the ASN, so we rank it
// below the web APIs unless we favor speed.
const (
	embeddedWeight              = 50
	embeddedSpeedPriorityWeight = 80
)

// Default returns the default configuration, which uses the embedded
// database along with the free web APIs.
func Default(speedPriority bool) *Config {
	c := &Config{Version: CurrentVersion}
	weight := embeddedWeight
	if speedPriority {
		weight = embeddedSpeedPriorityWeight
	}
	c.Backends = append(c.Backends, Backend{
		Type:   BackendTypeMMDB,
		Name:   "embedded",
		Weight: weight,
	})
	for _, api := range freeAPIs {
		weight := api.weight
		if speedPriority {
			weight = api.speedPriority
		}
		c.Backends = append(c.Backends, Backend{
			Type:     BackendTypeWebAPI,
			Name:     string(api.provider),
			Weight:   weight,
			Provider: api.provider,
		})
	}
	return c
}

// Load reads the configuration from the given path. Files ending
// in .yaml or .yml are YAML, everything else is JSON with comments.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return c, nil
}

// Parse parses and validates the configuration. The ext argument is the
// file extension and selects the format.
func Parse(data []byte, ext string) (*Config, error) {
	var c Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, errors.Wrap(err, "parsing yaml")
		}
	default:
		if err := hujsonx.Unmarshal(data, &c); err != nil {
			return nil, errors.Wrap(err, "parsing json")
		}
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating")
	}
	return &c, nil
}

// Marshal serializes the configuration as indented JSON.
func (c *Config) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// RedactedToken replaces the configured tokens in [*Config.Redacted].
const RedactedToken = "[redacted]"

// Redacted returns a copy of the configuration where the web API
// tokens are replaced by [RedactedToken].
func (c *Config) Redacted() *Config {
	out := *c
	out.Backends = make([]Backend, len(c.Backends))
	for idx, b := range c.Backends {
		if b.Token != "" {
			b.Token = RedactedToken
		}
		out.Backends[idx] = b
	}
	return &out
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version)
	}
	if c.Health.MinSuccessRate < 0 || c.Health.MinSuccessRate > 1 {
		return fmt.Errorf("%w: min_success_rate must be within [0, 1]", ErrInvalidSetting)
	}
	if c.Health.GraceWindow < 0 {
		return fmt.Errorf("%w: negative grace_window", ErrInvalidSetting)
	}
	names := make(map[string]bool)
	for idx := range c.Backends {
		b := &c.Backends[idx]
		if b.Name == "" {
			return fmt.Errorf("%w: #%d: missing name", ErrInvalidBackend, idx)
		}
		if names[b.Name] {
			return fmt.Errorf("%w: %s: duplicate name", ErrInvalidBackend, b.Name)
		}
		names[b.Name] = true
		if err := b.validate(); err != nil {
			return fmt.Errorf("%w: %s: %s", ErrInvalidBackend, b.Name, err.Error())
		}
	}
	return nil
}

func (b *Backend) validate() error {
	if b.Weight < 0 {
		return errors.New("negative weight")
	}
	switch b.Type {
	case BackendTypeMMDB:
		// an empty path selects the embedded database
		if len(b.Paths) > 0 {
			return errors.New("mmdb takes a single path")
		}
	case BackendTypeRegionTxt:
		if len(b.paths()) <= 0 {
			return errors.New("missing paths")
		}
	case BackendTypeWebAPI:
		if _, err := webapi.DefaultPermitsPerSecond(b.Provider); err != nil {
			return fmt.Errorf("unknown provider %q", b.Provider)
		}
		if b.Burst < 0 {
			return errors.New("negative burst")
		}
		if b.Timeout < 0 {
			return errors.New("negative timeout")
		}
	default:
		return fmt.Errorf("unknown type %q", b.Type)
	}
	return nil
}
