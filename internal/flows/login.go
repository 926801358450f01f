package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/internal/rate"
	"github.com/MrEthical07/shelfauth/session"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureAssertion
	LoginFailureAudience
	LoginFailureDirectory
	LoginFailureIssue
)

// LoginResult carries either the issued session or failure metadata.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Principal identity.Principal
	Session   *session.Session
}

type LoginRateLimiter interface {
	AllowLogin(ctx context.Context, ip string) error
	ResetLogin(ctx context.Context, ip string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	ClientIP    func(context.Context) string
	RateLimiter LoginRateLimiter
	Verifier    identity.Verifier
	Directory   PrincipalUpserter
	Sessions    SessionIssuer
	Warn        func(msg string, err error)
}

// RunLogin verifies rawAssertion, records the principal and issues a session.
func RunLogin(ctx context.Context, rawAssertion string, deps LoginDeps) LoginResult {
	ip := ""
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.AllowLogin(ctx, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			// limiter outage does not block sign-in
			warn(deps, "login.rate_limiter_unavailable", err)
		}
	}

	p, err := deps.Verifier.Verify(ctx, rawAssertion)
	if err != nil {
		if errors.Is(err, identity.ErrAudienceMismatch) {
			return LoginResult{Failure: LoginFailureAudience, Err: err}
		}
		return LoginResult{Failure: LoginFailureAssertion, Err: err}
	}

	stored, err := deps.Directory.Upsert(ctx, p)
	if err != nil {
		return LoginResult{Failure: LoginFailureDirectory, Err: err, Principal: p}
	}

	sess, err := deps.Sessions.IssueSession(ctx, stored)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Principal: stored}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, ip); err != nil {
			warn(deps, "login.rate_limiter_reset_failed", err)
		}
	}

	return LoginResult{Principal: stored, Session: sess}
}

func warn(deps LoginDeps, msg string, err error) {
	if deps.Warn != nil {
		deps.Warn(msg, err)
	}
}
