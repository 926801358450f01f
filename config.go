package shelfauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/shelfauth/catalog"
	"github.com/MrEthical07/shelfauth/identity"
)

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT         JWTConfig
	Session     SessionConfig
	Identity    IdentityConfig
	Catalog     CatalogConfig
	Cache       CacheConfig
	Cookie      CookieConfig
	RateLimit   RateLimitConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Environment Environment
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh-token bindings.
type SessionConfig struct {
	RefreshTTL time.Duration
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityMode selects how ID tokens are verified.
type IdentityMode string

const (
	// IdentityModeTokenInfo asks the provider's tokeninfo endpoint on every login.
	IdentityModeTokenInfo IdentityMode = "tokeninfo"
	// IdentityModeOIDC verifies ID tokens locally against the issuer's JWKS.
	IdentityModeOIDC IdentityMode = "oidc"
)

// IdentityConfig configures the identity verifier.
type IdentityConfig struct {
	Mode              IdentityMode
	ClientID          string
	TokenInfoEndpoint string
	IssuerURL         string
	Timeout           time.Duration
}

/*
====================================
CATALOG CONFIG
====================================
*/

// CatalogConfig configures the book catalog client.
type CatalogConfig struct {
	BaseURL   string
	APIKey    string
	SearchTTL time.Duration
	BookTTL   time.Duration
	Timeout   time.Duration
	// CallsPerWindow caps upstream calls per Window. Zero disables the budget.
	CallsPerWindow int
	Window         time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheBackend selects the key-value store implementation.
type CacheBackend string

const (
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendMemory CacheBackend = "memory"
)

// CacheConfig configures the key-value cache shared by sessions and the catalog.
type CacheConfig struct {
	Backend   CacheBackend
	KeyPrefix string
	// SweepInterval is how often the memory backend drops expired entries.
	SweepInterval time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names the refresh-token cookie.
type CookieConfig struct {
	Name string
	Path string
}

// CookiePolicy is the resolved refresh cookie attribute set.
type CookiePolicy struct {
	Name     string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles login attempts per client IP. Zero disables it.
type RateLimitConfig struct {
	LoginAttemptsPerIP int
	LoginWindow        time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Environment switches production-only cookie and lint behavior.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Signing keys and the
// identity client id must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     60 * time.Minute,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Identity: IdentityConfig{
			Mode:              IdentityModeTokenInfo,
			TokenInfoEndpoint: identity.DefaultTokenInfoEndpoint,
			IssuerURL:         identity.DefaultIssuerURL,
			Timeout:           10 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL:        catalog.DefaultBaseURL,
			SearchTTL:      catalog.DefaultSearchTTL,
			BookTTL:        catalog.DefaultBookTTL,
			Timeout:        10 * time.Second,
			CallsPerWindow: 1000,
			Window:         24 * time.Hour,
		},
		Cache: CacheConfig{
			Backend:       CacheBackendRedis,
			KeyPrefix:     "shelf:",
			SweepInterval: time.Minute,
		},
		Cookie: CookieConfig{
			Name: "shelf_refresh",
			Path: "/api/auth",
		},
		RateLimit: RateLimitConfig{
			LoginAttemptsPerIP: 20,
			LoginWindow:        time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Environment: EnvDevelopment,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// RefreshCookie resolves the refresh cookie attributes for the configured
// environment. Max-Age always equals the server-side binding lifetime.
func (c Config) RefreshCookie() CookiePolicy {
	p := CookiePolicy{
		Name:     c.Cookie.Name,
		Path:     c.Cookie.Path,
		MaxAge:   c.Session.RefreshTTL,
		SameSite: http.SameSiteLaxMode,
	}
	if c.Environment == EnvProduction {
		p.Secure = true
		p.SameSite = http.SameSiteStrictMode
	}
	return p
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error, or nil.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.RefreshTTL < time.Minute {
		return errors.New("Session RefreshTTL must be >= 1m")
	}

	// Identity
	if strings.TrimSpace(c.Identity.ClientID) == "" {
		return errors.New("Identity ClientID is required")
	}
	switch c.Identity.Mode {
	case IdentityModeTokenInfo:
		if !validHTTPURL(c.Identity.TokenInfoEndpoint) {
			return errors.New("Identity TokenInfoEndpoint must be an absolute http(s) URL")
		}
	case IdentityModeOIDC:
		if !validHTTPURL(c.Identity.IssuerURL) {
			return errors.New("Identity IssuerURL must be an absolute http(s) URL")
		}
	default:
		return fmt.Errorf("Identity Mode %q is invalid", c.Identity.Mode)
	}
	if c.Identity.Timeout <= 0 {
		return errors.New("Identity Timeout must be > 0")
	}

	// Catalog
	if !validHTTPURL(c.Catalog.BaseURL) {
		return errors.New("Catalog BaseURL must be an absolute http(s) URL")
	}
	if c.Catalog.SearchTTL <= 0 || c.Catalog.BookTTL <= 0 {
		return errors.New("Catalog SearchTTL and BookTTL must be > 0")
	}
	if c.Catalog.Timeout <= 0 {
		return errors.New("Catalog Timeout must be > 0")
	}
	if c.Catalog.CallsPerWindow < 0 {
		return errors.New("Catalog CallsPerWindow must be >= 0")
	}
	if c.Catalog.CallsPerWindow > 0 && c.Catalog.Window <= 0 {
		return errors.New("Catalog Window must be > 0 when CallsPerWindow is set")
	}

	// Cache
	if c.Cache.Backend != CacheBackendRedis && c.Cache.Backend != CacheBackendMemory {
		return fmt.Errorf("Cache Backend %q is invalid", c.Cache.Backend)
	}
	if c.Cache.SweepInterval < 0 {
		return errors.New("Cache SweepInterval must be >= 0")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name is required")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with /")
	}

	// Rate limit
	if c.RateLimit.LoginAttemptsPerIP < 0 {
		return errors.New("RateLimit LoginAttemptsPerIP must be >= 0")
	}
	if c.RateLimit.LoginAttemptsPerIP > 0 && c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit LoginWindow must be > 0 when LoginAttemptsPerIP is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("Environment %q is invalid", c.Environment)
	}

	return nil
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

/*
====================================
LINT
====================================
*/

// LintWarning is a valid but questionable configuration choice.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that pass Validate but are unusual for a deployment.
// The binary logs these at startup.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", "JWT Leeway above 1m widens the replay window of expired access tokens")
	}
	if c.JWT.AccessTTL > 60*time.Minute {
		add("access_ttl_long", "access tokens live longer than 60m and cannot be revoked")
	}
	if c.Session.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", "refresh bindings live longer than 30 days")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("hs256_signing", "hs256 shares the verification secret with every verifier")
	}
	if c.RateLimit.LoginAttemptsPerIP == 0 {
		add("login_rate_limit_disabled", "login attempts are not throttled per IP")
	}
	if c.Catalog.CallsPerWindow == 0 {
		add("catalog_budget_disabled", "upstream catalog calls are unbounded")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "authentication events are not audited")
	}
	if c.Environment == EnvProduction {
		if c.Cache.Backend == CacheBackendMemory {
			add("memory_cache_in_production", "refresh bindings are lost on restart and not shared between instances")
		}
		if c.Cookie.Path == "/" {
			add("cookie_path_broad", "the refresh cookie is sent with every request")
		}
	}
	return ws
}
