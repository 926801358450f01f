package session

import "errors"

var (
	// ErrInvalidRefreshToken covers every refresh token that cannot be rotated:
	// unknown, expired, already consumed, revoked, or unreadable store.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidAccessToken covers every access token that fails verification.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrSessionIssue is an infrastructure fault while minting a session.
	ErrSessionIssue = errors.New("session issue failed")
	// ErrRefreshBindingNotFound is returned by Store.Consume for an absent binding.
	ErrRefreshBindingNotFound = errors.New("refresh binding not found")
	// ErrInvalidPrincipal is returned when issuing a session for a principal without a subject.
	ErrInvalidPrincipal = errors.New("principal has no subject")
)
