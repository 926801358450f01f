package shelfauth

import (
	"net/http"

	"github.com/MrEthical07/shelfauth/internal/security"
	"github.com/MrEthical07/shelfauth/kv"
)

// SecurityReport summarizes the protections active on an engine.
type SecurityReport = security.Report

// SecurityReport derives the posture summary from the engine configuration
// and the collaborators wired at Build time.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	cookie := cfg.RefreshCookie()

	var backend string
	switch e.store.(type) {
	case *kv.RedisStore:
		backend = string(CacheBackendRedis)
	case *kv.MemoryStore:
		backend = string(CacheBackendMemory)
	default:
		backend = "custom"
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:     cfg.Environment == EnvProduction,
		SigningAlgorithm:   cfg.JWT.SigningMethod,
		IdentityMode:       string(cfg.Identity.Mode),
		AccessTTL:          cfg.JWT.AccessTTL,
		RefreshTTL:         cfg.Session.RefreshTTL,
		LoginAttemptsPerIP: cfg.RateLimit.LoginAttemptsPerIP,
		LoginWindow:        cfg.RateLimit.LoginWindow,
		CatalogCalls:       cfg.Catalog.CallsPerWindow,
		CatalogWindow:      cfg.Catalog.Window,
		RateLimiterWired:   e.rateLimiter != nil,
		AuditEnabled:       cfg.Audit.Enabled,
		AuditSinkWired:     e.auditSink,
		CookieSecure:       cookie.Secure,
		CookieSameSite:     sameSiteName(cookie.SameSite),
		CacheBackend:       backend,
	})
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "default"
	}
}
