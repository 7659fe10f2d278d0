package model

import "net/http"

// HTTPHeaderUserAgent is the User-Agent header used by remote backends
// unless the configuration provides a different one.
const HTTPHeaderUserAgent = "geoquery/0.1"

// HTTPClient is an [*http.Client] like structure.
type HTTPClient interface {
	// Do behaves like [*http.Client.Do].
	Do(req *http.Request) (*http.Response, error)

	// CloseIdleConnections behaves like [*http.Client.CloseIdleConnections].
	CloseIdleConnections()
}
