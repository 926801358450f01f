// Package jwt manages access-token issuance and verification using configured signing keys
// and strict validation semantics.
//
// Access tokens are self-contained: subject, email, display name and avatar ride
// in the claims, every token gets a fresh uuid jti, and verification needs no
// store lookup. HS256 and Ed25519 are supported; Ed25519 managers may verify
// against a kid-indexed key set during key rotation.
package jwt
