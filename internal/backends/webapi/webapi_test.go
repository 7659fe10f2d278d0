package webapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/geoquery/internal/mocks"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/testingx"
)

func TestNewRequester(t *testing.T) {
	t.Run("with an unknown provider", func(t *testing.T) {
		r, err := NewRequester(&Config{Name: "x", Provider: Provider("nonexistent")})
		if !errors.Is(err, ErrNoSuchProvider) {
			t.Fatal("unexpected error", err)
		}
		if r != nil {
			t.Fatal("expected nil requester")
		}
	})

	t.Run("fills the defaults", func(t *testing.T) {
		r, err := NewRequester(&Config{Name: "x", Provider: ProviderIPWhois})
		if err != nil {
			t.Fatal(err)
		}
		if r.baseURL != "https://ipwho.is" {
			t.Fatal("unexpected base URL", r.baseURL)
		}
		if r.client != http.DefaultClient {
			t.Fatal("unexpected client")
		}
		if r.timeout != DefaultTimeout {
			t.Fatal("unexpected timeout")
		}
		if r.userAgent != model.HTTPHeaderUserAgent {
			t.Fatal("unexpected user agent")
		}
	})

	t.Run("honors the overrides", func(t *testing.T) {
		r, err := NewRequester(&Config{
			Name:      "x",
			Provider:  ProviderIPInfo,
			BaseURL:   "http://127.0.0.1:8080/",
			Timeout:   time.Second,
			UserAgent: "miniooni/0.1",
		})
		if err != nil {
			t.Fatal(err)
		}
		if r.baseURL != "http://127.0.0.1:8080" {
			t.Fatal("unexpected base URL", r.baseURL)
		}
		if r.timeout != time.Second {
			t.Fatal("unexpected timeout")
		}
		if r.userAgent != "miniooni/0.1" {
			t.Fatal("unexpected user agent")
		}
	})
}

func TestDefaultPermitsPerSecond(t *testing.T) {
	expect := map[Provider]float64{
		ProviderIPInfo:  1,
		ProviderIPAPI:   1,
		ProviderIPAPICo: 2,
		ProviderIPWhois: 1,
	}
	for _, provider := range Providers() {
		value, err := DefaultPermitsPerSecond(provider)
		if err != nil {
			t.Fatal(err)
		}
		if value != expect[provider] {
			t.Fatal("unexpected value for", provider, value)
		}
	}
	if _, err := DefaultPermitsPerSecond("nonexistent"); !errors.Is(err, ErrNoSuchProvider) {
		t.Fatal("unexpected error", err)
	}
}

func TestRequesterURLs(t *testing.T) {
	type testcase struct {
		provider Provider
		token    string
		expect   string
	}

	cases := []testcase{{
		provider: ProviderIPInfo,
		expect:   "/8.8.8.8/json",
	}, {
		provider: ProviderIPInfo,
		token:    "deadbeef",
		expect:   "/8.8.8.8/json?token=deadbeef",
	}, {
		provider: ProviderIPAPI,
		expect:   "/json/8.8.8.8?fields=" + strings.ReplaceAll(ipapiFields, ",", "%2C"),
	}, {
		provider: ProviderIPAPICo,
		expect:   "/8.8.8.8/json/",
	}, {
		provider: ProviderIPWhois,
		expect:   "/8.8.8.8",
	}}

	for _, tc := range cases {
		t.Run(string(tc.provider), func(t *testing.T) {
			var (
				gotURI       string
				gotUserAgent string
			)
			srv := testingx.MustNewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotURI = r.URL.RequestURI()
				gotUserAgent = r.Header.Get("User-Agent")
				w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			r, err := NewRequester(&Config{
				Name:     "x",
				Provider: tc.provider,
				BaseURL:  srv.URL,
				Token:    tc.token,
			})
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := r.Request(context.Background(), "8.8.8.8"); err != nil {
				t.Fatal(err)
			}
			if gotURI != tc.expect {
				t.Fatal("expected", tc.expect, "got", gotURI)
			}
			if gotUserAgent != model.HTTPHeaderUserAgent {
				t.Fatal("unexpected user agent", gotUserAgent)
			}
		})
	}
}

func TestRequesterHTTPErrors(t *testing.T) {
	t.Run("with too many requests", func(t *testing.T) {
		srv := testingx.MustNewHTTPServer(testingx.HTTPHandlerStatus(http.StatusTooManyRequests))
		defer srv.Close()
		r, _ := NewRequester(&Config{Name: "x", Provider: ProviderIPWhois, BaseURL: srv.URL})
		info, found, err := r.Request(context.Background(), "8.8.8.8")
		if !errors.Is(err, ErrRateLimited) {
			t.Fatal("unexpected error", err)
		}
		if info != nil || found {
			t.Fatal("expected no result")
		}
	})

	t.Run("with a non-200 status", func(t *testing.T) {
		srv := testingx.MustNewHTTPServer(testingx.HTTPHandlerStatus(http.StatusBadGateway))
		defer srv.Close()
		r, _ := NewRequester(&Config{Name: "x", Provider: ProviderIPWhois, BaseURL: srv.URL})
		_, _, err := r.Request(context.Background(), "8.8.8.8")
		if !errors.Is(err, ErrHTTPRequestFailed) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("when the round trip fails", func(t *testing.T) {
		expected := errors.New("mocked error")
		r, _ := NewRequester(&Config{
			Name:     "x",
			Provider: ProviderIPWhois,
			HTTPClient: &mocks.HTTPClient{
				MockDo: func(req *http.Request) (*http.Response, error) {
					return nil, expected
				},
			},
		})
		_, _, err := r.Request(context.Background(), "8.8.8.8")
		if !errors.Is(err, expected) {
			t.Fatal("unexpected error", err)
		}
	})

	t.Run("we do not read more than the maximum body size", func(t *testing.T) {
		r, _ := NewRequester(&Config{
			Name:     "x",
			Provider: ProviderIPWhois,
			HTTPClient: &mocks.HTTPClient{
				MockDo: func(req *http.Request) (*http.Response, error) {
					body := strings.NewReader(`{"success":true,"city":"` +
						strings.Repeat("x", maxResponseBodySize) + `"}`)
					return &http.Response{
						StatusCode: http.StatusOK,
						Status:     "200 OK",
						Body:       io.NopCloser(body),
					}, nil
				},
			},
		})
		_, _, err := r.Request(context.Background(), "8.8.8.8")
		if err == nil {
			t.Fatal("expected a JSON error caused by the truncated body")
		}
	})

	t.Run("the request times out", func(t *testing.T) {
		done := make(chan any)
		srv := testingx.MustNewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-done:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(done)
		r, _ := NewRequester(&Config{
			Name:     "x",
			Provider: ProviderIPWhois,
			BaseURL:  srv.URL,
			Timeout:  50 * time.Millisecond,
		})
		_, _, err := r.Request(context.Background(), "8.8.8.8")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatal("unexpected error", err)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("with an unknown provider", func(t *testing.T) {
		rb, err := New(&Config{Name: "x", Provider: "nonexistent"})
		if !errors.Is(err, ErrNoSuchProvider) {
			t.Fatal("unexpected error", err)
		}
		if rb != nil {
			t.Fatal("expected nil backend")
		}
	})

	t.Run("end to end", func(t *testing.T) {
		counter := &atomic.Int64{}
		body := []byte(`{"ip":"8.8.8.8","success":true,"country":"United States",
			"connection":{"asn":15169,"org":"Google LLC","isp":"Google LLC"}}`)
		srv := testingx.MustNewHTTPServer(testingx.HTTPHandlerBody(body, counter))
		defer srv.Close()

		rb, err := New(&Config{
			Name:             "ipwhois",
			Provider:         ProviderIPWhois,
			Weight:           30,
			BaseURL:          srv.URL,
			PermitsPerSecond: -1,
		})
		if err != nil {
			t.Fatal(err)
		}
		if rb.Name() != "ipwhois" || rb.Weight() != 30 || rb.Kind() != model.BackendKindRemote {
			t.Fatal("unexpected backend settings")
		}

		info, err := rb.Query(context.Background(), "8.8.8.8")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff("United States", info.Country); diff != "" {
			t.Fatal(diff)
		}
		if counter.Load() != 1 {
			t.Fatal("expected exactly one request")
		}
		if rb.ExecutionCount() != 1 || rb.FailureCount() != 0 || rb.ResponseCount() != 1 {
			t.Fatal("unexpected stats")
		}
	})

	t.Run("a soft miss yields an address-only result", func(t *testing.T) {
		srv := testingx.MustNewHTTPServer(testingx.HTTPHandlerBody(
			[]byte(`{"ip":"10.0.0.1","success":false,"message":"Reserved range"}`), nil))
		defer srv.Close()

		rb, err := New(&Config{
			Name:             "ipwhois",
			Provider:         ProviderIPWhois,
			BaseURL:          srv.URL,
			PermitsPerSecond: -1,
		})
		if err != nil {
			t.Fatal(err)
		}
		info, err := rb.Query(context.Background(), "10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(&model.IPInfo{Address: "10.0.0.1"}, info); diff != "" {
			t.Fatal(diff)
		}
		if rb.FailureCount() != 1 {
			t.Fatal("expected a failure to be recorded")
		}
	})
}
