package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/shelfauth"
)

// Authenticator is the subset of *shelfauth.Engine the guards need.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (shelfauth.Principal, error)
	CurrentPrincipal(ctx context.Context, accessToken string) (shelfauth.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by a guard.
func PrincipalFromContext(ctx context.Context) (shelfauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(shelfauth.Principal)
	return p, ok
}

// WithPrincipal stores p in ctx the way the guards do.
func WithPrincipal(ctx context.Context, p shelfauth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

type authenticateFunc func(ctx context.Context, token string) (shelfauth.Principal, error)

// Guard rejects requests without a valid bearer access token.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	if auth == nil {
		return guard(nil)
	}
	return guard(auth.Authenticate)
}

func guard(authenticate authenticateFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticate == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			p, err := authenticate(r.Context(), token)
			if err != nil {
				if !shelfauth.IsAuthError(err) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="shelf"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
