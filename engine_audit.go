package shelfauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shelfauth/kv"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventLogout              = "logout"
	auditEventAuthenticateFailure = "authenticate_failure"
)

// AuditErrorCode is the stable error classification written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidAssertion      AuditErrorCode = "invalid_assertion"
	auditErrAudienceMismatch      AuditErrorCode = "audience_mismatch"
	auditErrInvalidRefreshToken   AuditErrorCode = "invalid_refresh_token"
	auditErrInvalidAccessToken    AuditErrorCode = "invalid_access_token"
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrPrincipalNotFound     AuditErrorCode = "principal_not_found"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	// audience mismatch is a subtype of invalid assertion; check it first
	switch {
	case errors.Is(err, ErrAudienceMismatch):
		return auditErrAudienceMismatch
	case errors.Is(err, ErrInvalidAssertion):
		return auditErrInvalidAssertion
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidRefreshToken):
		return auditErrInvalidRefreshToken
	case errors.Is(err, ErrInvalidAccessToken):
		return auditErrInvalidAccessToken
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrPrincipalNotFound
	case errors.Is(err, ErrSessionIssue):
		return auditErrSessionCreationFailed
	case errors.Is(err, kv.ErrUnavailable),
		errors.Is(err, ErrDirectoryUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
