// Package webapi implements remote backends using free web APIs
// mapping an IP address to geographic and ISP information.
package webapi

//
// Code shared by all providers
//

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ooni/geoquery/internal/logx"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/source"
)

// ErrHTTPRequestFailed indicates that the server returned a non-200 status.
var ErrHTTPRequestFailed = errors.New("webapi: http request failed")

// ErrRateLimited indicates that the provider refused to serve us because
// we exceeded its rate limit.
var ErrRateLimited = errors.New("webapi: rate limited")

// ErrNoSuchProvider indicates that you asked for a nonexisting [Provider].
var ErrNoSuchProvider = errors.New("webapi: no such provider")

// DefaultTimeout is the default timeout of each request.
const DefaultTimeout = 5 * time.Second

// maxResponseBodySize is the maximum response body size we read.
const maxResponseBodySize = 1 << 20

// Provider is a web API provider.
type Provider string

// ProviderIPInfo uses https://ipinfo.io/.
const ProviderIPInfo = Provider("ipinfo")

// ProviderIPAPI uses http://ip-api.com/.
const ProviderIPAPI = Provider("ipapi")

// ProviderIPAPICo uses https://ipapi.co/.
const ProviderIPAPICo = Provider("ipapico")

// ProviderIPWhois uses https://ipwho.is/.
const ProviderIPWhois = Provider("ipwhois")

// providerProfile describes how to talk with a provider.
type providerProfile struct {
	// baseURL is the default base URL.
	baseURL string

	// permitsPerSecond is the default rate limit.
	permitsPerSecond float64

	// newURL builds the request URL.
	newURL func(baseURL, address, token string) string

	// parse parses the response body and returns the result, whether
	// the provider knows the address, or an error.
	parse func(address string, data []byte) (*model.IPInfo, bool, error)
}

// providers contains all the known providers.
var providers = map[Provider]*providerProfile{
	ProviderIPInfo:  ipinfoProfile,
	ProviderIPAPI:   ipapiProfile,
	ProviderIPAPICo: ipapicoProfile,
	ProviderIPWhois: ipwhoisProfile,
}

// Providers returns the names of all the known providers.
func Providers() []Provider {
	return []Provider{ProviderIPInfo, ProviderIPAPI, ProviderIPAPICo, ProviderIPWhois}
}

// DefaultPermitsPerSecond returns the default rate limit of the given provider.
func DefaultPermitsPerSecond(provider Provider) (float64, error) {
	profile, found := providers[provider]
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNoSuchProvider, provider)
	}
	return profile.permitsPerSecond, nil
}

// Config contains the settings of a web API backend. The zero value is
// invalid; please, fill all the fields marked as MANDATORY.
type Config struct {
	// Name is the MANDATORY backend name.
	Name string

	// Provider is the MANDATORY provider.
	Provider Provider

	// Weight is the OPTIONAL backend weight.
	Weight int

	// BaseURL OPTIONALLY overrides the provider base URL.
	BaseURL string

	// Token is the OPTIONAL API token, used by providers supporting it.
	Token string

	// PermitsPerSecond OPTIONALLY overrides the provider rate limit. Use
	// a negative value to disable rate limiting.
	PermitsPerSecond float64

	// Burst is the OPTIONAL rate limiter burst.
	Burst int

	// Timeout is the OPTIONAL timeout of each request. When zero,
	// we use [DefaultTimeout].
	Timeout time.Duration

	// HTTPClient is the OPTIONAL HTTP client. When nil, we
	// use [http.DefaultClient].
	HTTPClient model.HTTPClient

	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// UserAgent is the OPTIONAL User-Agent header. When empty,
	// we use [model.HTTPHeaderUserAgent].
	UserAgent string

	// Policy is the OPTIONAL health policy.
	Policy source.HealthPolicy
}

// Requester implements [source.Requester] for a web API provider.
//
// The zero value is invalid; construct using [NewRequester].
type Requester struct {
	baseURL   string
	client    model.HTTPClient
	logger    model.Logger
	provider  Provider
	profile   *providerProfile
	timeout   time.Duration
	token     string
	userAgent string
}

var _ source.Requester = &Requester{}

// NewRequester creates a new [*Requester] for the configured provider.
func NewRequester(config *Config) (*Requester, error) {
	profile, found := providers[config.Provider]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchProvider, config.Provider)
	}
	r := &Requester{
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		client:    config.HTTPClient,
		logger:    model.ValidLoggerOrDefault(config.Logger),
		provider:  config.Provider,
		profile:   profile,
		timeout:   config.Timeout,
		token:     config.Token,
		userAgent: config.UserAgent,
	}
	if r.baseURL == "" {
		r.baseURL = profile.baseURL
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.userAgent == "" {
		r.userAgent = model.HTTPHeaderUserAgent
	}
	return r, nil
}

// Request implements source.Requester.
func (r *Requester) Request(ctx context.Context, address string) (*model.IPInfo, bool, error) {
	// make sure we eventually time out
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// create HTTP request
	URL := r.profile.newURL(r.baseURL, address, r.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	// send request and get response body
	ol := logx.NewOperationLogger(r.logger, "webapi: lookup %s using %s", address, r.provider)
	data, err := r.httpDo(req)
	ol.Stop(err)
	if err != nil {
		return nil, false, err
	}

	// parse the response body
	return r.profile.parse(address, data)
}

// httpDo is the common function to issue an HTTP request and get the response body.
func (r *Requester) httpDo(req *http.Request) ([]byte, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// make sure the request succeded
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: %s", ErrHTTPRequestFailed, resp.Status)
	}

	// read response body
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
}

// New creates a new remote backend for the configured provider.
func New(config *Config) (*source.Remote, error) {
	requester, err := NewRequester(config)
	if err != nil {
		return nil, err
	}
	permits := config.PermitsPerSecond
	if permits == 0 {
		permits = requester.profile.permitsPerSecond
	}
	return source.NewRemote(source.RemoteConfig{
		Name:             config.Name,
		Weight:           config.Weight,
		PermitsPerSecond: permits,
		Burst:            config.Burst,
		Policy:           config.Policy,
	}, requester), nil
}
