// Package session issues, rotates and revokes sessions: a short-lived signed access
// token paired with a long-lived opaque refresh token.
//
// # Refresh bindings
//
// A refresh token is 64 random bytes, base64url encoded, bound in the key-value
// store as refresh:<token> → subject id with the refresh lifetime as TTL. The
// token itself is the lookup key; nothing else about the session is stored.
//
// Rotation consumes the binding with an atomic take before the new pair is
// issued, so a refresh token is accepted at most once even under concurrent
// presentation. Logout deletes the binding; access tokens already issued stay
// valid until they expire.
//
// # What this package must NOT do
//
//   - Import shelfauth (no upward imports).
//   - Decide how tokens reach the client (cookies and headers belong to httpapi).
package session
