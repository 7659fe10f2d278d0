// Package mmdb implements a local backend reading MaxMind DB files, e.g.,
// GeoLite2-City, GeoLite2-ASN, or the db-ip.com lite databases.
//
// When no path is configured, we use the country and ASN database
// embedded into the binary by github.com/ooni/probe-assets.
package mmdb

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/optional"
	"github.com/ooni/geoquery/internal/runtimex"
	"github.com/ooni/geoquery/internal/source"
	"github.com/ooni/probe-assets/assets"
	"github.com/oschwald/maxminddb-golang"
)

// ErrAddressNotFound indicates that the database does not contain the address.
var ErrAddressNotFound = errors.New("mmdb: address not found")

// ErrInvalidAddress indicates that the address is not a valid IP address.
var ErrInvalidAddress = errors.New("mmdb: invalid address")

// DefaultLanguage is the default language for localized names.
const DefaultLanguage = "en"

// Reader is the subset of [*maxminddb.Reader] we use.
type Reader interface {
	LookupNetwork(ip net.IP, result any) (*net.IPNet, bool, error)
	Close() error
}

var _ Reader = &maxminddb.Reader{}

// names maps a language code to a localized name.
type names map[string]string

// record is the union of the City, Country and ASN record formats.
type record struct {
	Continent struct {
		Names names `maxminddb:"names"`
	} `maxminddb:"continent"`

	Country struct {
		IsoCode string `maxminddb:"iso_code"`
		Names   names  `maxminddb:"names"`
	} `maxminddb:"country"`

	Subdivisions []struct {
		IsoCode string `maxminddb:"iso_code"`
		Names   names  `maxminddb:"names"`
	} `maxminddb:"subdivisions"`

	City struct {
		Names names `maxminddb:"names"`
	} `maxminddb:"city"`

	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
		TimeZone  string   `maxminddb:"time_zone"`
	} `maxminddb:"location"`

	AutonomousSystemNumber       *uint  `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
	ISP                          string `maxminddb:"isp"`

	Traits struct {
		IsAnonymousProxy bool `maxminddb:"is_anonymous_proxy"`
	} `maxminddb:"traits"`
}

// Resolver implements [source.LocalResolver] using a MaxMind DB.
//
// The zero value is invalid; construct using [NewResolver].
type Resolver struct {
	language string
	reader   Reader
}

var _ source.LocalResolver = &Resolver{}

// NewResolver creates a new [*Resolver] using the given reader and the
// given language for localized names. An empty language means [DefaultLanguage].
func NewResolver(reader Reader, language string) *Resolver {
	runtimex.Assert(reader != nil, "mmdb: passed nil reader")
	if language == "" {
		language = DefaultLanguage
	}
	return &Resolver{language: language, reader: reader}
}

// Resolve implements source.LocalResolver.
func (r *Resolver) Resolve(ctx context.Context, address string) (*model.IPInfo, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	var rec record
	_, found, err := r.reader.LookupNetwork(ip, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}
	return r.newIPInfo(address, &rec), nil
}

func (r *Resolver) newIPInfo(address string, rec *record) *model.IPInfo {
	info := &model.IPInfo{
		Address: address,
		Country: r.name(rec.Country.Names, rec.Country.IsoCode),
		Region:  r.name(rec.Continent.Names, ""),
		City:    r.name(rec.City.Names, ""),
		ISP:     rec.ISP,
	}
	if len(rec.Subdivisions) > 0 {
		info.Province = r.name(rec.Subdivisions[0].Names, rec.Subdivisions[0].IsoCode)
	}
	if info.ISP == "" {
		info.ISP = rec.AutonomousSystemOrganization
	}
	if rec.AutonomousSystemNumber != nil {
		info.ASN = optional.Some(*rec.AutonomousSystemNumber)
	}
	if rec.AutonomousSystemOrganization != "" {
		info.ASNOwner = optional.Some(rec.AutonomousSystemOrganization)
	}
	if rec.Location.Latitude != nil && rec.Location.Longitude != nil {
		info.Latitude = optional.Some(*rec.Location.Latitude)
		info.Longitude = optional.Some(*rec.Location.Longitude)
	}
	if rec.Location.TimeZone != "" {
		info.Timezone = optional.Some(rec.Location.TimeZone)
	}
	if rec.Traits.IsAnonymousProxy {
		info.IsProxy = optional.Some(true)
	}
	return info
}

// name returns the localized name, the english name, or the fallback.
func (r *Resolver) name(values names, fallback string) string {
	if value := values[r.language]; value != "" {
		return value
	}
	if value := values[DefaultLanguage]; value != "" {
		return value
	}
	return fallback
}

// Close closes the underlying reader.
func (r *Resolver) Close() error {
	return r.reader.Close()
}

// Config contains the settings to open a MaxMind DB backend.
type Config struct {
	// Name is the MANDATORY backend name.
	Name string

	// Weight is the OPTIONAL backend weight.
	Weight int

	// Path is the OPTIONAL path of the database file. When empty,
	// we use the embedded database.
	Path string

	// Language is the OPTIONAL language for localized names.
	Language string

	// Policy is the OPTIONAL health policy.
	Policy source.HealthPolicy
}

// Open opens the database and returns the corresponding always available
// local backend. The caller owns the backend and must Close it.
func Open(config *Config) (*source.Local, error) {
	reader, err := openReader(config.Path)
	if err != nil {
		return nil, err
	}
	return New(config, reader), nil
}

func openReader(path string) (*maxminddb.Reader, error) {
	if path == "" {
		return maxminddb.FromBytes(assets.OOMMDBDatabaseBytes)
	}
	return maxminddb.Open(path)
}

// New is like [Open] but uses an already opened reader.
func New(config *Config, reader Reader) *source.Local {
	return source.NewLocal(source.LocalConfig{
		Name:            config.Name,
		Weight:          config.Weight,
		AlwaysAvailable: true,
		Policy:          config.Policy,
	}, NewResolver(reader, config.Language))
}
