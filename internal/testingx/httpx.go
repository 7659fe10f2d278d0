package testingx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// MustNewHTTPServer is like [httptest.NewServer] but documents that
// the returned server must be closed by the caller.
func MustNewHTTPServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// HTTPHandlerStatus returns a handler replying with the given status code.
func HTTPHandlerStatus(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

// HTTPHandlerBody returns a handler replying 200 with the given body
// and counting the number of requests it served.
func HTTPHandlerBody(body []byte, counter *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if counter != nil {
			counter.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}
