package middleware

import "net/http"

// RequireCurrentPrincipal is Guard plus a directory lookup: the context
// carries the subject's current profile, and removed subjects are rejected.
func RequireCurrentPrincipal(auth Authenticator) func(http.Handler) http.Handler {
	if auth == nil {
		return guard(nil)
	}
	return guard(auth.CurrentPrincipal)
}
