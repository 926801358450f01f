package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/internal"
	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/rs/zerolog"
)

// DefaultRefreshTTL is the refresh binding lifetime when none is configured.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// PrincipalResolver maps a subject id back to its current principal during rotation.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, subjectID string) (identity.Principal, error)
}

// ResolverFunc adapts a function to PrincipalResolver.
type ResolverFunc func(ctx context.Context, subjectID string) (identity.Principal, error)

func (f ResolverFunc) ResolvePrincipal(ctx context.Context, subjectID string) (identity.Principal, error) {
	return f(ctx, subjectID)
}

// Config tunes a Manager.
type Config struct {
	RefreshTTL time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Manager owns the refresh-token lifecycle.
type Manager struct {
	tokens     *jwt.Manager
	store      *Store
	resolver   PrincipalResolver
	refreshTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger
	newToken   func() (string, error)
}

func NewManager(tokens *jwt.Manager, store *Store, resolver PrincipalResolver, cfg Config) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("session: jwt manager is required")
	}
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if resolver == nil {
		return nil, errors.New("session: principal resolver is required")
	}
	ttl := cfg.RefreshTTL
	if ttl == 0 {
		ttl = DefaultRefreshTTL
	}
	if ttl < time.Minute {
		return nil, fmt.Errorf("session: refresh ttl %s too short", ttl)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		tokens:     tokens,
		store:      store,
		resolver:   resolver,
		refreshTTL: ttl,
		now:        now,
		logger:     cfg.Logger,
		newToken:   internal.NewRefreshToken,
	}, nil
}

// RefreshTTL returns the refresh binding lifetime.
func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// IssueSession mints a fresh access token and refresh token for p and binds the
// refresh token to p.SubjectID. Other sessions of p are left untouched.
func (m *Manager) IssueSession(ctx context.Context, p identity.Principal) (*Session, error) {
	if !p.Valid() {
		return nil, ErrInvalidPrincipal
	}

	access, expiresAt, err := m.tokens.CreateAccess(jwt.Subject{
		ID:      p.SubjectID,
		Email:   p.Email,
		Name:    p.DisplayName,
		Picture: p.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", ErrSessionIssue, err)
	}

	refresh, err := m.newToken()
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %v", ErrSessionIssue, err)
	}

	issuedAt := m.now()
	if err := m.store.Bind(ctx, refresh, p.SubjectID, m.refreshTTL); err != nil {
		m.logger.Error().Err(err).Str("sub", p.SubjectID).Msg("session.bind_failed")
		return nil, fmt.Errorf("%w: bind refresh token: %w", ErrSessionIssue, err)
	}

	return &Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: issuedAt.Add(m.refreshTTL),
		Principal:        p,
	}, nil
}

// RotateSession consumes oldRefresh and issues a new session for its subject.
// The old binding is gone before the new pair exists; a token is accepted at
// most once.
func (m *Manager) RotateSession(ctx context.Context, oldRefresh string) (*Session, error) {
	if !internal.WellFormedRefreshToken(oldRefresh) {
		return nil, ErrInvalidRefreshToken
	}

	subjectID, err := m.store.Consume(ctx, oldRefresh)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		m.logger.Warn().Err(err).Msg("session.refresh_store_unavailable")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	p, err := m.resolver.ResolvePrincipal(ctx, subjectID)
	if err != nil {
		m.logger.Warn().Err(err).Str("sub", subjectID).Msg("session.subject_unresolved")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if p.SubjectID != subjectID {
		m.logger.Warn().Str("sub", subjectID).Str("resolved", p.SubjectID).Msg("session.subject_mismatch")
		return nil, ErrInvalidRefreshToken
	}

	// The old binding is already consumed, so a failed issue leaves the
	// caller without a usable refresh token.
	next, err := m.IssueSession(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	return next, nil
}

// RevokeSession deletes the binding for refresh. Revoking an unknown, expired
// or empty token succeeds.
func (m *Manager) RevokeSession(ctx context.Context, refresh string) error {
	if strings.TrimSpace(refresh) == "" || len(refresh) > internal.EncodedRefreshTokenLen {
		return nil
	}
	if err := m.store.Revoke(ctx, refresh); err != nil {
		m.logger.Warn().Err(err).Msg("session.revoke_failed")
		return err
	}
	return nil
}

// Authenticate verifies accessToken without touching the store.
func (m *Manager) Authenticate(accessToken string) (identity.Principal, error) {
	if accessToken == "" {
		return identity.Principal{}, ErrInvalidAccessToken
	}
	claims, err := m.tokens.ParseAccess(accessToken)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	return identity.Principal{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}, nil
}

// Ping reports the health of the binding store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
