package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Sessions SessionRevoker
}

// RunLogout revokes refreshToken. Unknown and empty tokens succeed.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) error {
	return deps.Sessions.RevokeSession(ctx, refreshToken)
}
