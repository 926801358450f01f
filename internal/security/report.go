package security

import "time"

// Report is a flattened view of the protections an engine has active.
type Report struct {
	ProductionMode      bool
	SigningAlgorithm    string
	IdentityMode        string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RefreshRotation     bool
	LoginThrottleActive bool
	CatalogBudgetActive bool
	AuditActive         bool
	CookieSecure        bool
	CookieSameSite      string
	CacheBackend        string
}

type ReportInput struct {
	ProductionMode     bool
	SigningAlgorithm   string
	IdentityMode       string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	LoginAttemptsPerIP int
	LoginWindow        time.Duration
	CatalogCalls       int
	CatalogWindow      time.Duration
	// RateLimiterWired is false when no redis client backs the limiter.
	RateLimiterWired bool
	AuditEnabled     bool
	AuditSinkWired   bool
	CookieSecure     bool
	CookieSameSite   string
	CacheBackend     string
}

func BuildReport(input ReportInput) Report {
	throttle := input.RateLimiterWired &&
		input.LoginAttemptsPerIP > 0 &&
		input.LoginWindow > 0

	budget := input.RateLimiterWired &&
		input.CatalogCalls > 0 &&
		input.CatalogWindow > 0

	return Report{
		ProductionMode:      input.ProductionMode,
		SigningAlgorithm:    input.SigningAlgorithm,
		IdentityMode:        input.IdentityMode,
		AccessTTL:           input.AccessTTL,
		RefreshTTL:          input.RefreshTTL,
		RefreshRotation:     true,
		LoginThrottleActive: throttle,
		CatalogBudgetActive: budget,
		AuditActive:         input.AuditEnabled && input.AuditSinkWired,
		CookieSecure:        input.CookieSecure,
		CookieSameSite:      input.CookieSameSite,
		CacheBackend:        input.CacheBackend,
	}
}

// Warnings lists posture gaps worth surfacing in logs. Development engines
// only get warnings that would also matter in production.
func (r Report) Warnings() []string {
	var out []string
	if !r.LoginThrottleActive {
		out = append(out, "login throttle inactive")
	}
	if !r.CatalogBudgetActive {
		out = append(out, "catalog call budget inactive")
	}
	if r.ProductionMode {
		if !r.CookieSecure {
			out = append(out, "refresh cookie is not Secure")
		}
		if r.SigningAlgorithm == "hs256" {
			out = append(out, "hs256 shares the signing secret with every verifier")
		}
		if r.CacheBackend == "memory" {
			out = append(out, "memory cache does not survive restarts")
		}
	}
	return out
}
