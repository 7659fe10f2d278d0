// Package fallback chooses an alternate backend after the primary fails.
package fallback

import (
	"math/rand"

	"github.com/ooni/geoquery/internal/model"
)

// Policy selects the backend to retry with after the primary failed.
//
// The implementation of this interface MUST be concurrency safe.
type Policy interface {
	// SelectFallback returns an available candidate other than primary
	// or nil when no such candidate exists.
	SelectFallback(candidates []model.Backend, primary model.Backend) model.Backend
}

// LocalFirst is the default [Policy]. It prefers local backends, which
// are not rate limited and do not perform network I/O, choosing at random
// among them to spread the load. Without local backends, it returns the
// first remaining remote backend in list order.
//
// The zero value is ready to use.
type LocalFirst struct {
	// Intn is the OPTIONAL function returning a random integer in [0, n).
	// When nil, we use [rand.Intn].
	Intn func(n int) int
}

var _ Policy = &LocalFirst{}

// SelectFallback implements Policy.
func (p *LocalFirst) SelectFallback(candidates []model.Backend, primary model.Backend) model.Backend {
	var (
		locals    []model.Backend
		remaining []model.Backend
	)
	for _, c := range candidates {
		if c == nil || c == primary || !c.IsAvailable() {
			continue
		}
		remaining = append(remaining, c)
		if c.Kind() == model.BackendKindLocal {
			locals = append(locals, c)
		}
	}
	switch {
	case len(locals) == 1:
		return locals[0]
	case len(locals) > 1:
		return locals[p.intn(len(locals))]
	case len(remaining) > 0:
		return remaining[0]
	default:
		return nil
	}
}

func (p *LocalFirst) intn(n int) int {
	if p.Intn != nil {
		return p.Intn(n)
	}
	return rand.Intn(n)
}
