package flows

import (
	"context"

	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/session"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login        LoginDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Authenticate AuthenticateDeps
}

type SessionIssuer interface {
	IssueSession(ctx context.Context, p identity.Principal) (*session.Session, error)
}

type SessionRotator interface {
	RotateSession(ctx context.Context, oldRefresh string) (*session.Session, error)
}

type SessionRevoker interface {
	RevokeSession(ctx context.Context, refresh string) error
}

type AccessAuthenticator interface {
	Authenticate(accessToken string) (identity.Principal, error)
}

type PrincipalUpserter interface {
	Upsert(ctx context.Context, p identity.Principal) (identity.Principal, error)
}

type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, subjectID string) (identity.Principal, error)
}
