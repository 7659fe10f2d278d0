// Package selector chooses which backend should serve a query.
package selector

import (
	"math/rand"
	"time"

	"github.com/ooni/geoquery/internal/model"
)

// Selector selects a backend among a list of available candidates.
//
// The implementation of this interface MUST be concurrency safe.
type Selector interface {
	// Select returns the preferred backend or nil when the list is empty.
	Select(candidates []model.Backend) model.Backend
}

// Score weights. Changing them changes which backend we select.
const (
	weightCoefficient       = 0.4
	successRateCoefficient  = 0.25
	executionCoefficient    = 0.2
	availabilityCoefficient = 0.15
)

// recentAcquireWindow is how recently a remote backend must have waited
// for its rate limiter for us to consider it busy.
const recentAcquireWindow = 5 * time.Second

// localAvailabilityScore is the availability score of local backends.
const localAvailabilityScore = 0.9

// Weighted is the default [Selector]. It scores each candidate by combining
// its configured weight, its success rate, how much it has been used relative
// to the others, and how busy it currently looks, then picks the highest
// score. Ties keep the first candidate in input order, except when no
// candidate has executed yet: in such a case we pick at random among the
// candidates sharing the top score to avoid starving the ones at the end.
//
// The zero value is ready to use.
type Weighted struct {
	// Intn is the OPTIONAL function returning a random integer in [0, n).
	// When nil, we use [rand.Intn].
	Intn func(n int) int

	// TimeNow is the OPTIONAL function returning the current time. When
	// nil, we use [time.Now].
	TimeNow func() time.Time
}

var _ Selector = &Weighted{}

// Select implements Selector.
func (w *Weighted) Select(candidates []model.Backend) model.Backend {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}

	var maxExecutions int64
	for _, c := range candidates {
		maxExecutions = max(maxExecutions, c.ExecutionCount())
	}

	now := w.timeNow()
	var (
		best      model.Backend
		bestScore float64
		ties      []model.Backend
	)
	for _, c := range candidates {
		score := Score(c, maxExecutions, now)
		switch {
		case best == nil || score > bestScore:
			best, bestScore = c, score
			ties = []model.Backend{c}
		case score == bestScore:
			ties = append(ties, c)
		}
	}

	if maxExecutions == 0 && len(ties) > 1 {
		return ties[w.intn(len(ties))]
	}
	return best
}

func (w *Weighted) intn(n int) int {
	if w.Intn != nil {
		return w.Intn(n)
	}
	return rand.Intn(n)
}

func (w *Weighted) timeNow() time.Time {
	if w.TimeNow != nil {
		return w.TimeNow()
	}
	return time.Now()
}

// Score computes the score of a backend given the maximum execution count
// among all the candidates and the current time.
func Score(backend model.Backend, maxExecutions int64, now time.Time) float64 {
	return weightCoefficient*normalizedWeight(backend.Weight()) +
		successRateCoefficient*backend.SuccessRate() +
		executionCoefficient*executionScore(backend.ExecutionCount(), maxExecutions) +
		availabilityCoefficient*availabilityScore(backend, now)
}

func normalizedWeight(weight int) float64 {
	return min(max(float64(weight)/100, 0), 1)
}

func executionScore(executions, maxExecutions int64) float64 {
	if executions == 0 || maxExecutions == 0 {
		return 1.0
	}
	return 1.0 - float64(executions)/float64(maxExecutions)
}

func availabilityScore(backend model.Backend, now time.Time) float64 {
	if !backend.IsAvailable() {
		return 0
	}
	remote, ok := backend.(model.RemoteBackend)
	if !ok || backend.Kind() != model.BackendKindRemote {
		return localAvailabilityScore
	}
	lastAcquire := remote.LastAcquireAt()
	if lastAcquire.IsZero() || now.Sub(lastAcquire) > recentAcquireWindow {
		return 1.0
	}
	return 0.6*waitScore(remote.LastAcquireWaitTime()) + 0.4*latencyScore(remote.AverageResponseTime())
}

func waitScore(wait time.Duration) float64 {
	switch {
	case wait < 10*time.Millisecond:
		return 0.9
	case wait < 100*time.Millisecond:
		return 0.7
	case wait < 500*time.Millisecond:
		return 0.5
	default:
		return 0.3
	}
}

func latencyScore(latency time.Duration) float64 {
	switch {
	case latency < 50*time.Millisecond:
		return 1.0
	case latency < 200*time.Millisecond:
		return 0.8
	case latency < 500*time.Millisecond:
		return 0.6
	case latency < time.Second:
		return 0.4
	default:
		return 0.2
	}
}
