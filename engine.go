package shelfauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shelfauth/catalog"
	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/internal/audit"
	"github.com/MrEthical07/shelfauth/internal/flows"
	"github.com/MrEthical07/shelfauth/internal/rate"
	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/kv"
	"github.com/MrEthical07/shelfauth/session"
	"github.com/rs/zerolog"
)

// Engine is the sign-in, session and catalog facade. Build it with [Builder].
//
// Engine instances are safe for concurrent use after Build returns.
type Engine struct {
	config      Config
	store       kv.Store
	jwtManager  *jwt.Manager
	sessions    *session.Manager
	verifier    identity.Verifier
	directory   directory.Directory
	catalog     *catalog.Client
	rateLimiter *rate.Limiter
	audit       *audit.Dispatcher
	auditSink   bool
	metrics     *Metrics
	logger      zerolog.Logger
	clock       func() time.Time
	flowDeps    flows.Deps
}

// Close flushes pending audit events. Collaborators passed to the Builder are
// not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// RefreshCookie returns the refresh cookie attributes for this engine's config.
func (e *Engine) RefreshCookie() CookiePolicy {
	if e == nil {
		return defaultConfig().RefreshCookie()
	}
	return e.config.RefreshCookie()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies idToken with the identity provider and issues a session.
func (e *Engine) Login(ctx context.Context, idToken string) (*Session, error) {
	res := e.LoginResult(ctx, idToken)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Session, nil
}

// LoginResult is Login with a classified outcome instead of a bare error.
func (e *Engine) LoginResult(ctx context.Context, idToken string) SessionResult {
	if e == nil || e.sessions == nil {
		return SessionResult{Outcome: OutcomeFailed, Err: ErrEngineNotReady}
	}

	result := flows.RunLogin(ctx, idToken, e.flowDeps.Login)

	switch result.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricSessionCreated)
		e.emitAudit(ctx, auditEventLoginSuccess, true, result.Principal.SubjectID, nil, nil)
		return SessionResult{Outcome: OutcomeOK, Session: result.Session}

	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, nil)
		return SessionResult{Outcome: OutcomeRateLimited, Err: ErrLoginRateLimited}

	case flows.LoginFailureAudience:
		e.metricInc(MetricLoginAudienceMismatch)
		e.metricInc(MetricLoginFailure)
		e.logger.Warn().Err(result.Err).Str("ip", clientIPFromContext(ctx)).Msg("login.audience_mismatch")
		e.emitAudit(ctx, auditEventLoginFailure, false, "", result.Err, func() map[string]string {
			return map[string]string{
				"reason": "audience_mismatch",
			}
		})
		return SessionResult{Outcome: OutcomeAudienceMismatch, Err: result.Err}

	case flows.LoginFailureAssertion:
		e.metricInc(MetricLoginFailure)
		e.logger.Warn().Err(result.Err).Str("ip", clientIPFromContext(ctx)).Msg("login.invalid_assertion")
		e.emitAudit(ctx, auditEventLoginFailure, false, "", result.Err, func() map[string]string {
			return map[string]string{
				"reason": "invalid_assertion",
			}
		})
		return SessionResult{Outcome: OutcomeInvalidAssertion, Err: result.Err}

	case flows.LoginFailureDirectory:
		err := fmt.Errorf("%w: %v", ErrDirectoryUnavailable, result.Err)
		e.metricInc(MetricLoginFailure)
		e.logger.Error().Err(result.Err).Str("sub", result.Principal.SubjectID).Msg("login.directory_failed")
		e.emitAudit(ctx, auditEventLoginFailure, false, result.Principal.SubjectID, err, func() map[string]string {
			return map[string]string{
				"reason": "directory_upsert",
			}
		})
		return SessionResult{Outcome: OutcomeFailed, Err: err}

	default:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricSessionIssueFailure)
		e.logger.Error().Err(result.Err).Str("sub", result.Principal.SubjectID).Msg("login.issue_failed")
		e.emitAudit(ctx, auditEventLoginFailure, false, result.Principal.SubjectID, result.Err, func() map[string]string {
			return map[string]string{
				"reason": "issue_session",
			}
		})
		return SessionResult{Outcome: OutcomeFailed, Err: result.Err}
	}
}

// Refresh rotates refreshToken into a new session. A refresh token is accepted
// at most once.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	res := e.RefreshResult(ctx, refreshToken)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Session, nil
}

// RefreshResult is Refresh with a classified outcome instead of a bare error.
func (e *Engine) RefreshResult(ctx context.Context, refreshToken string) SessionResult {
	if e == nil || e.sessions == nil {
		return SessionResult{Outcome: OutcomeFailed, Err: ErrEngineNotReady}
	}

	result := flows.RunRefresh(ctx, refreshToken, e.flowDeps.Refresh)

	switch result.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.metricInc(MetricSessionCreated)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, result.Session.Principal.SubjectID, nil, nil)
		return SessionResult{Outcome: OutcomeOK, Session: result.Session}

	case flows.RefreshFailureInvalid:
		e.metricInc(MetricRefreshFailure)
		if errors.Is(result.Err, session.ErrSessionIssue) {
			e.metricInc(MetricSessionIssueFailure)
		}
		e.logger.Warn().Err(result.Err).Str("ip", clientIPFromContext(ctx)).Msg("refresh.invalid_token")
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", result.Err, nil)
		return SessionResult{Outcome: OutcomeInvalidRefreshToken, Err: result.Err}

	default:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricSessionIssueFailure)
		e.logger.Error().Err(result.Err).Msg("refresh.issue_failed")
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", result.Err, func() map[string]string {
			return map[string]string{
				"reason": "issue_session",
			}
		})
		return SessionResult{Outcome: OutcomeFailed, Err: result.Err}
	}
}

// Logout revokes refreshToken. Unknown, expired and empty tokens succeed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	err := flows.RunLogout(ctx, refreshToken, e.flowDeps.Logout)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, err == nil, "", err, nil)
	return err
}

// Authenticate verifies a bearer access token. It never touches the cache.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	return e.authenticate(ctx, accessToken, false)
}

// CurrentPrincipal verifies accessToken and returns the directory's current
// record for its subject. ErrPrincipalNotFound means the subject was removed.
func (e *Engine) CurrentPrincipal(ctx context.Context, accessToken string) (Principal, error) {
	return e.authenticate(ctx, accessToken, true)
}

func (e *Engine) authenticate(ctx context.Context, accessToken string, resolve bool) (Principal, error) {
	if e == nil || e.sessions == nil {
		return Principal{}, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	result := flows.RunAuthenticate(ctx, accessToken, resolve, e.flowDeps.Authenticate)

	if !start.IsZero() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}

	switch result.Failure {
	case flows.AuthenticateFailureNone:
		e.metricInc(MetricAuthenticateSuccess)
		return result.Principal, nil

	case flows.AuthenticateFailureInvalidToken:
		e.metricInc(MetricAuthenticateFailure)
		e.logger.Warn().Err(result.Err).Str("ip", clientIPFromContext(ctx)).Msg("authenticate.invalid_token")
		e.emitAudit(ctx, auditEventAuthenticateFailure, false, "", result.Err, nil)
		return Principal{}, result.Err

	case flows.AuthenticateFailureUnknownPrincipal:
		e.metricInc(MetricAuthenticateFailure)
		e.logger.Warn().Str("sub", result.Principal.SubjectID).Msg("authenticate.principal_not_found")
		e.emitAudit(ctx, auditEventAuthenticateFailure, false, result.Principal.SubjectID, result.Err, nil)
		return Principal{}, ErrPrincipalNotFound

	default:
		e.metricInc(MetricAuthenticateFailure)
		e.logger.Error().Err(result.Err).Str("sub", result.Principal.SubjectID).Msg("authenticate.directory_failed")
		return Principal{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, result.Err)
	}
}

// Search returns one page of catalog results for query. Upstream failures
// yield an empty page; ErrEmptyQuery is the only error.
func (e *Engine) Search(ctx context.Context, query string, offset, limit int) (SearchResult, error) {
	if e == nil || e.catalog == nil {
		return SearchResult{}, ErrEngineNotReady
	}
	return e.catalog.Search(ctx, query, offset, limit)
}

// Book returns the catalog record for id. The bool is false when the volume
// does not exist or the upstream is unavailable.
func (e *Engine) Book(ctx context.Context, id string) (BookDetail, bool) {
	if e == nil || e.catalog == nil {
		return BookDetail{}, false
	}
	return e.catalog.Book(ctx, id)
}

// Ping reports whether the key-value store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	return e.sessions.Ping(ctx)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

func (e *Engine) buildFlowDeps() {
	var limiter flows.LoginRateLimiter
	if e.rateLimiter != nil {
		limiter = e.rateLimiter
	}

	e.flowDeps = flows.Deps{
		Login: flows.LoginDeps{
			ClientIP:    clientIPFromContext,
			RateLimiter: limiter,
			Verifier:    e.verifier,
			Directory:   e.directory,
			Sessions:    e.sessions,
			Warn: func(msg string, err error) {
				e.logger.Warn().Err(err).Msg(msg)
			},
		},
		Refresh: flows.RefreshDeps{
			Sessions: e.sessions,
		},
		Logout: flows.LogoutDeps{
			Sessions: e.sessions,
		},
		Authenticate: flows.AuthenticateDeps{
			Sessions:  e.sessions,
			Directory: e.directory,
		},
	}
}

// IsAuthError reports whether err means the caller is not authenticated, as
// opposed to an infrastructure fault or throttling. HTTP layers map it to 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidAssertion) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrInvalidAccessToken) ||
		errors.Is(err, ErrPrincipalNotFound)
}
