package mocks

import (
	"net/http"

	"github.com/ooni/geoquery/internal/model"
)

// HTTPClient allows mocking a [model.HTTPClient].
type HTTPClient struct {
	MockDo                   func(req *http.Request) (*http.Response, error)
	MockCloseIdleConnections func()
}

var _ model.HTTPClient = &HTTPClient{}

// Do calls MockDo.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.MockDo(req)
}

// CloseIdleConnections calls MockCloseIdleConnections.
func (c *HTTPClient) CloseIdleConnections() {
	c.MockCloseIdleConnections()
}
