package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/identity"
)

// AuthenticateFailureKind classifies access-token failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureInvalidToken
	AuthenticateFailureUnknownPrincipal
	AuthenticateFailureDirectory
)

// AuthenticateResult carries the authenticated principal or failure metadata.
type AuthenticateResult struct {
	Failure   AuthenticateFailureKind
	Err       error
	Principal identity.Principal
}

// AuthenticateDeps captures authenticate flow dependencies. Directory is only
// consulted when resolve is requested.
type AuthenticateDeps struct {
	Sessions  AccessAuthenticator
	Directory PrincipalResolver
}

// RunAuthenticate verifies accessToken and, when resolve is set, reloads the
// principal from the directory.
func RunAuthenticate(ctx context.Context, accessToken string, resolve bool, deps AuthenticateDeps) AuthenticateResult {
	p, err := deps.Sessions.Authenticate(accessToken)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInvalidToken, Err: err}
	}
	if !resolve || deps.Directory == nil {
		return AuthenticateResult{Principal: p}
	}

	current, err := deps.Directory.ResolvePrincipal(ctx, p.SubjectID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return AuthenticateResult{Failure: AuthenticateFailureUnknownPrincipal, Err: err, Principal: p}
		}
		return AuthenticateResult{Failure: AuthenticateFailureDirectory, Err: err, Principal: p}
	}
	return AuthenticateResult{Principal: current}
}
