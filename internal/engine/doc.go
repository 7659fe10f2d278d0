// Package engine implements the query orchestration engine.
//
// The [*Engine] receives an address, consults the result cache, asks a
// [selector.Selector] to choose among the available backends, invokes the
// chosen backend and, on failure, retries once with the backend chosen by
// a [fallback.Policy]. The engine owns no goroutines: concurrency is driven
// by the callers, and the only shared state is the cache and the per-backend
// counters, both of which are safe for concurrent use.
package engine
