// Package identity verifies third-party sign-in assertions (Google ID tokens) and turns
// them into a [Principal].
//
// Two verifiers satisfy [Verifier]:
//
//   - [TokenInfoVerifier] asks the provider's token-introspection endpoint.
//   - [OIDCVerifier] checks the ID token locally against the provider's JWKS.
//
// Both enforce the audience: an assertion minted for another client fails with
// [ErrAudienceMismatch], which is also an [ErrInvalidAssertion]. Every other
// failure (transport, status, body, signature, expiry) is reported as
// [ErrInvalidAssertion] without further distinction. Verification has no side
// effects; failures are logged at warn level.
package identity
