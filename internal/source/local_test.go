package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/geoquery/internal/model"
	"github.com/ooni/geoquery/internal/testingx"
)

type closeableResolver struct {
	LocalResolverFunc
	closed bool
}

func (cr *closeableResolver) Close() error {
	cr.closed = true
	return nil
}

func TestLocal(t *testing.T) {
	t.Run("basic accessors", func(t *testing.T) {
		lb := NewLocal(LocalConfig{Name: "ip2region", Weight: 80}, LocalResolverFunc(nil))
		if lb.Name() != "ip2region" {
			t.Fatal("unexpected name")
		}
		if lb.Weight() != 80 {
			t.Fatal("unexpected weight")
		}
		if lb.Kind() != model.BackendKindLocal {
			t.Fatal("unexpected kind")
		}
	})

	t.Run("Query records success", func(t *testing.T) {
		expected := &model.IPInfo{Address: "1.2.3.4", Country: "US"}
		lb := NewLocal(LocalConfig{Name: "local"}, LocalResolverFunc(
			func(ctx context.Context, address string) (*model.IPInfo, error) {
				return &model.IPInfo{Address: address, Country: "US"}, nil
			}))
		info, err := lb.Query(context.Background(), "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(expected, info); diff != "" {
			t.Fatal(diff)
		}
		if lb.ExecutionCount() != 1 || lb.FailureCount() != 0 {
			t.Fatal("unexpected counters")
		}
	})

	t.Run("Query records failure", func(t *testing.T) {
		expected := errors.New("mocked error")
		clock := testingx.NewFakeClock(time.Time{})
		lb := NewLocal(LocalConfig{
			Name:   "local",
			Policy: HealthPolicy{TimeNow: clock.Now},
		}, LocalResolverFunc(
			func(ctx context.Context, address string) (*model.IPInfo, error) {
				return nil, expected
			}))
		info, err := lb.Query(context.Background(), "1.2.3.4")
		if !errors.Is(err, expected) {
			t.Fatal("unexpected error", err)
		}
		if info != nil {
			t.Fatal("expected nil info")
		}
		if lb.ExecutionCount() != 1 || lb.FailureCount() != 1 {
			t.Fatal("unexpected counters")
		}
		if lb.IsAvailable() {
			t.Fatal("expected unavailable")
		}
		if !lb.Health().LastFailureAt().Equal(clock.Now()) {
			t.Fatal("unexpected last failure time")
		}
	})

	t.Run("Query treats a nil result as failure", func(t *testing.T) {
		lb := NewLocal(LocalConfig{Name: "local"}, LocalResolverFunc(
			func(ctx context.Context, address string) (*model.IPInfo, error) {
				return nil, nil
			}))
		_, err := lb.Query(context.Background(), "1.2.3.4")
		if !errors.Is(err, ErrNoResult) {
			t.Fatal("unexpected error", err)
		}
		if lb.FailureCount() != 1 {
			t.Fatal("unexpected failure count")
		}
	})

	t.Run("AlwaysAvailable overrides health", func(t *testing.T) {
		lb := NewLocal(LocalConfig{Name: "local", AlwaysAvailable: true}, LocalResolverFunc(
			func(ctx context.Context, address string) (*model.IPInfo, error) {
				return nil, errors.New("mocked error")
			}))
		_, _ = lb.Query(context.Background(), "1.2.3.4")
		if !lb.IsAvailable() {
			t.Fatal("expected available")
		}
	})

	t.Run("Close", func(t *testing.T) {
		t.Run("with a closeable resolver", func(t *testing.T) {
			cr := &closeableResolver{}
			lb := NewLocal(LocalConfig{Name: "local"}, cr)
			if err := lb.Close(); err != nil {
				t.Fatal(err)
			}
			if !cr.closed {
				t.Fatal("expected the resolver to be closed")
			}
		})

		t.Run("with a non-closeable resolver", func(t *testing.T) {
			lb := NewLocal(LocalConfig{Name: "local"}, LocalResolverFunc(nil))
			if err := lb.Close(); err != nil {
				t.Fatal(err)
			}
		})
	})

	t.Run("NewLocal panics with an empty name", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		NewLocal(LocalConfig{}, LocalResolverFunc(nil))
	})
}
