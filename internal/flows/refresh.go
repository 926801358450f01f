package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/shelfauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureInvalid
	RefreshFailureIssue
)

// RefreshResult carries either the rotated session or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Session *session.Session
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Sessions SessionRotator
}

// RunRefresh consumes refreshToken and issues its replacement.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	sess, err := deps.Sessions.RotateSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return RefreshResult{Failure: RefreshFailureInvalid, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureIssue, Err: err}
	}
	return RefreshResult{Session: sess}
}
