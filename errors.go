package shelfauth

import (
	"errors"

	"github.com/MrEthical07/shelfauth/catalog"
	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/session"
)

var (
	// ErrInvalidAssertion is returned when the identity provider rejects the ID token.
	ErrInvalidAssertion = identity.ErrInvalidAssertion
	// ErrAudienceMismatch is an ErrInvalidAssertion whose token was minted for another client.
	ErrAudienceMismatch = identity.ErrAudienceMismatch
	// ErrInvalidRefreshToken covers unknown, expired, revoked and already-rotated refresh tokens.
	ErrInvalidRefreshToken = session.ErrInvalidRefreshToken
	// ErrInvalidAccessToken is returned for any access token that fails verification.
	ErrInvalidAccessToken = session.ErrInvalidAccessToken
	// ErrSessionIssue is a system fault while minting a session, not an auth failure.
	ErrSessionIssue = session.ErrSessionIssue
	// ErrPrincipalNotFound is returned when an authenticated subject is no longer in the directory.
	ErrPrincipalNotFound = directory.ErrNotFound
	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = catalog.ErrEmptyQuery
	// ErrLoginRateLimited is returned when the caller's IP exhausted its login attempts.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrDirectoryUnavailable is returned when the principal directory could not record a login.
	ErrDirectoryUnavailable = errors.New("principal directory unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
