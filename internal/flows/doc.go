// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunAuthenticate) accepts a
// typed dependency struct and returns a result carrying a failure kind. The root
// package maps failure kinds to outcomes, metrics and audit events, which keeps
// the Engine type thin and the flows testable with stub dependencies.
//
// # Architecture boundaries
//
// Flow functions coordinate the identity verifier, principal directory, session
// manager and rate limiter. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import shelfauth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency interfaces.
package flows
