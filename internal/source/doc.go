// Package source wraps geolocation backends into handles tracking their
// health and performance.
//
// A [*Health] owns the rolling execution and failure counters of a backend
// and derives its availability from them. A [*Local] wraps an in-process
// resolver (e.g., an embedded database) and a [*Remote] wraps a network
// requester adding rate limiting and latency accounting. Both implement
// [model.Backend] and the [*Remote] also implements [model.RemoteBackend].
//
// All the counters are atomic: no method of this package takes a lock
// while a query is in progress.
package source
