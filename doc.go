// Package shelfauth provides the sign-in, session and catalog core of a
// personal reading tracker: third-party ID-token login, short-lived JWT access
// tokens, rotating opaque refresh tokens bound in a key-value cache, and a
// cache-aside book catalog client.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// shelfauth is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([Session], [Principal], [SessionResult], [MetricsSnapshot]). Flow orchestration, rate
// limiting and audit dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients or cache key layout in its public API.
//   - Perform I/O outside of Engine methods (Builder only dials the identity provider
//     when OIDC discovery is configured).
//   - Import any sub-package that re-imports shelfauth (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path. It verifies the access token signature and expiry without
// touching the cache. Login, Refresh and Logout are allowed one cache round-trip per
// refresh binding.
package shelfauth
