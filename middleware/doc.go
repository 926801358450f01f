// Package middleware exposes net/http bearer-token guards built on top of
// shelfauth.Engine authentication.
//
// # Guards
//
//   - [Guard] performs stateless access-token verification, no cache call.
//   - [RequireCurrentPrincipal] additionally reloads the principal from the directory,
//     rejecting subjects that were removed after the token was issued.
//
// Each guard reads the Authorization header, calls the engine, and injects the
// authenticated principal into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access the key-value cache (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject.
package middleware
