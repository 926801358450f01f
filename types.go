package shelfauth

import (
	"github.com/MrEthical07/shelfauth/catalog"
	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/session"
)

type (
	// Principal is the authenticated end user.
	Principal = identity.Principal
	// Session is an access/refresh token pair plus the principal it was issued for.
	Session = session.Session
	// SearchResult is one page of catalog search results.
	SearchResult = catalog.SearchResult
	// SearchItem is a single catalog search hit.
	SearchItem = catalog.SearchItem
	// BookDetail is the full record for one catalog volume.
	BookDetail = catalog.BookDetail
)

// Outcome classifies the result of Login and Refresh.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalidAssertion
	OutcomeAudienceMismatch
	OutcomeInvalidRefreshToken
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalidAssertion:
		return "invalid_assertion"
	case OutcomeAudienceMismatch:
		return "audience_mismatch"
	case OutcomeInvalidRefreshToken:
		return "invalid_refresh_token"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionResult is returned by LoginResult and RefreshResult. Session is set
// only when Outcome is OutcomeOK; Err is set otherwise.
type SessionResult struct {
	Outcome Outcome
	Session *Session
	Err     error
}

// OK reports whether the operation produced a session.
func (r SessionResult) OK() bool {
	return r.Outcome == OutcomeOK && r.Session != nil
}
