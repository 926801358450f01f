package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/MrEthical07/shelfauth"
)

const (
	keyLogLevel   = "log.level"
	keyLogFormat  = "log.format"
	keyLogNoColor = "log.no_color"

	keyServerAddr            = "server.addr"
	keyServerTrustProxy      = "server.trust_proxy"
	keyServerShutdownTimeout = "server.shutdown_timeout"

	keyRedisAddr     = "redis.addr"
	keyRedisPassword = "redis.password"
	keyRedisDB       = "redis.db"

	keyDirectoryDSN = "directory.dsn"
	keyEnvironment  = "environment"

	keyJWTAccessTTL      = "jwt.access_ttl"
	keyJWTSigningMethod  = "jwt.signing_method"
	keyJWTPrivateKeyFile = "jwt.private_key_file"
	keyJWTPublicKeyFile  = "jwt.public_key_file"
	keyJWTSecret         = "jwt.secret"
	keyJWTIssuer         = "jwt.issuer"
	keyJWTAudience       = "jwt.audience"
	keyJWTLeeway         = "jwt.leeway"
	keyJWTKeyID          = "jwt.key_id"

	keySessionRefreshTTL = "session.refresh_ttl"

	keyIdentityMode      = "identity.mode"
	keyIdentityClientID  = "identity.client_id"
	keyIdentityTokenInfo = "identity.tokeninfo_endpoint"
	keyIdentityIssuer    = "identity.issuer_url"
	keyIdentityTimeout   = "identity.timeout"

	keyCatalogBaseURL   = "catalog.base_url"
	keyCatalogAPIKey    = "catalog.api_key"
	keyCatalogSearchTTL = "catalog.search_ttl"
	keyCatalogBookTTL   = "catalog.book_ttl"
	keyCatalogTimeout   = "catalog.timeout"
	keyCatalogCalls     = "catalog.calls_per_window"
	keyCatalogWindow    = "catalog.window"

	keyCacheBackend = "cache.backend"
	keyCachePrefix  = "cache.key_prefix"
	keyCacheSweep   = "cache.sweep_interval"

	keyCookieName = "cookie.name"
	keyCookiePath = "cookie.path"

	keyRateLoginAttempts = "rate_limit.login_attempts_per_ip"
	keyRateLoginWindow   = "rate_limit.login_window"

	keyAuditEnabled    = "audit.enabled"
	keyAuditBufferSize = "audit.buffer_size"
	keyAuditDropIfFull = "audit.drop_if_full"

	keyMetricsEnabled = "metrics.enabled"
	keyMetricsLatency = "metrics.latency_histograms"
)

// settings is everything serve needs: the engine config plus process wiring.
type settings struct {
	Addr            string
	TrustProxy      bool
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DirectoryDSN string

	Engine shelfauth.Config
}

func setDefaults(v *viper.Viper) {
	d := shelfauth.DefaultConfig()

	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "console")
	v.SetDefault(keyLogNoColor, false)

	v.SetDefault(keyServerAddr, ":8080")
	v.SetDefault(keyServerTrustProxy, false)
	v.SetDefault(keyServerShutdownTimeout, 10*time.Second)

	v.SetDefault(keyRedisAddr, "")
	v.SetDefault(keyRedisPassword, "")
	v.SetDefault(keyRedisDB, 0)

	v.SetDefault(keyDirectoryDSN, "shelfauth.db")
	v.SetDefault(keyEnvironment, string(d.Environment))

	v.SetDefault(keyJWTAccessTTL, d.JWT.AccessTTL)
	v.SetDefault(keyJWTSigningMethod, d.JWT.SigningMethod)
	v.SetDefault(keyJWTPrivateKeyFile, "")
	v.SetDefault(keyJWTPublicKeyFile, "")
	v.SetDefault(keyJWTSecret, "")
	v.SetDefault(keyJWTIssuer, "shelfauth")
	v.SetDefault(keyJWTAudience, "")
	v.SetDefault(keyJWTLeeway, d.JWT.Leeway)
	v.SetDefault(keyJWTKeyID, "")

	v.SetDefault(keySessionRefreshTTL, d.Session.RefreshTTL)

	v.SetDefault(keyIdentityMode, string(d.Identity.Mode))
	v.SetDefault(keyIdentityClientID, "")
	v.SetDefault(keyIdentityTokenInfo, d.Identity.TokenInfoEndpoint)
	v.SetDefault(keyIdentityIssuer, d.Identity.IssuerURL)
	v.SetDefault(keyIdentityTimeout, d.Identity.Timeout)

	v.SetDefault(keyCatalogBaseURL, d.Catalog.BaseURL)
	v.SetDefault(keyCatalogAPIKey, "")
	v.SetDefault(keyCatalogSearchTTL, d.Catalog.SearchTTL)
	v.SetDefault(keyCatalogBookTTL, d.Catalog.BookTTL)
	v.SetDefault(keyCatalogTimeout, d.Catalog.Timeout)
	v.SetDefault(keyCatalogCalls, d.Catalog.CallsPerWindow)
	v.SetDefault(keyCatalogWindow, d.Catalog.Window)

	v.SetDefault(keyCacheBackend, string(d.Cache.Backend))
	v.SetDefault(keyCachePrefix, d.Cache.KeyPrefix)
	v.SetDefault(keyCacheSweep, d.Cache.SweepInterval)

	v.SetDefault(keyCookieName, d.Cookie.Name)
	v.SetDefault(keyCookiePath, d.Cookie.Path)

	v.SetDefault(keyRateLoginAttempts, d.RateLimit.LoginAttemptsPerIP)
	v.SetDefault(keyRateLoginWindow, d.RateLimit.LoginWindow)

	v.SetDefault(keyAuditEnabled, d.Audit.Enabled)
	v.SetDefault(keyAuditBufferSize, d.Audit.BufferSize)
	v.SetDefault(keyAuditDropIfFull, d.Audit.DropIfFull)

	v.SetDefault(keyMetricsEnabled, d.Metrics.Enabled)
	v.SetDefault(keyMetricsLatency, d.Metrics.EnableLatencyHistograms)
}

// loadSettings reads v into settings and validates the engine config.
func loadSettings(v *viper.Viper) (settings, error) {
	st := settings{
		Addr:            v.GetString(keyServerAddr),
		TrustProxy:      v.GetBool(keyServerTrustProxy),
		ShutdownTimeout: v.GetDuration(keyServerShutdownTimeout),
		RedisAddr:       strings.TrimSpace(v.GetString(keyRedisAddr)),
		RedisPassword:   v.GetString(keyRedisPassword),
		RedisDB:         v.GetInt(keyRedisDB),
		DirectoryDSN:    strings.TrimSpace(v.GetString(keyDirectoryDSN)),
	}

	cfg := shelfauth.DefaultConfig()
	cfg.Environment = shelfauth.Environment(strings.ToLower(v.GetString(keyEnvironment)))

	cfg.JWT.AccessTTL = v.GetDuration(keyJWTAccessTTL)
	cfg.JWT.SigningMethod = strings.ToLower(v.GetString(keyJWTSigningMethod))
	cfg.JWT.Issuer = v.GetString(keyJWTIssuer)
	cfg.JWT.Audience = v.GetString(keyJWTAudience)
	cfg.JWT.Leeway = v.GetDuration(keyJWTLeeway)
	cfg.JWT.KeyID = v.GetString(keyJWTKeyID)
	if err := loadSigningKeys(v, &cfg); err != nil {
		return settings{}, err
	}

	cfg.Session.RefreshTTL = v.GetDuration(keySessionRefreshTTL)

	cfg.Identity.Mode = shelfauth.IdentityMode(strings.ToLower(v.GetString(keyIdentityMode)))
	cfg.Identity.ClientID = v.GetString(keyIdentityClientID)
	cfg.Identity.TokenInfoEndpoint = v.GetString(keyIdentityTokenInfo)
	cfg.Identity.IssuerURL = v.GetString(keyIdentityIssuer)
	cfg.Identity.Timeout = v.GetDuration(keyIdentityTimeout)

	cfg.Catalog.BaseURL = v.GetString(keyCatalogBaseURL)
	cfg.Catalog.APIKey = v.GetString(keyCatalogAPIKey)
	cfg.Catalog.SearchTTL = v.GetDuration(keyCatalogSearchTTL)
	cfg.Catalog.BookTTL = v.GetDuration(keyCatalogBookTTL)
	cfg.Catalog.Timeout = v.GetDuration(keyCatalogTimeout)
	cfg.Catalog.CallsPerWindow = v.GetInt(keyCatalogCalls)
	cfg.Catalog.Window = v.GetDuration(keyCatalogWindow)

	cfg.Cache.Backend = shelfauth.CacheBackend(strings.ToLower(v.GetString(keyCacheBackend)))
	cfg.Cache.KeyPrefix = v.GetString(keyCachePrefix)
	cfg.Cache.SweepInterval = v.GetDuration(keyCacheSweep)

	cfg.Cookie.Name = v.GetString(keyCookieName)
	cfg.Cookie.Path = v.GetString(keyCookiePath)

	cfg.RateLimit.LoginAttemptsPerIP = v.GetInt(keyRateLoginAttempts)
	cfg.RateLimit.LoginWindow = v.GetDuration(keyRateLoginWindow)

	cfg.Audit.Enabled = v.GetBool(keyAuditEnabled)
	cfg.Audit.BufferSize = v.GetInt(keyAuditBufferSize)
	cfg.Audit.DropIfFull = v.GetBool(keyAuditDropIfFull)

	cfg.Metrics.Enabled = v.GetBool(keyMetricsEnabled)
	cfg.Metrics.EnableLatencyHistograms = v.GetBool(keyMetricsLatency)

	if err := cfg.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	st.Engine = cfg
	return st, nil
}

func loadSigningKeys(v *viper.Viper, cfg *shelfauth.Config) error {
	switch cfg.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(v.GetString(keyJWTSecret))
		return nil
	case "ed25519":
	default:
		// Validate reports the unsupported method
		return nil
	}

	privPath := v.GetString(keyJWTPrivateKeyFile)
	if privPath == "" {
		if cfg.Environment == shelfauth.EnvProduction {
			return errors.New("jwt.private_key_file is required in production")
		}
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		log.Warn().Msg("jwt.ephemeral_key: access tokens will not survive a restart")
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
		return nil
	}

	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return fmt.Errorf("read jwt private key: %w", err)
	}
	cfg.JWT.PrivateKey = privPEM

	if pubPath := v.GetString(keyJWTPublicKeyFile); pubPath != "" {
		pubPEM, err := os.ReadFile(pubPath)
		if err != nil {
			return fmt.Errorf("read jwt public key: %w", err)
		}
		cfg.JWT.PublicKey = pubPEM
		return nil
	}

	parsed, err := gojwt.ParseEdPrivateKeyFromPEM(privPEM)
	if err != nil {
		return fmt.Errorf("parse jwt private key: %w", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return errors.New("jwt private key is not ed25519")
	}
	cfg.JWT.PublicKey = priv.Public().(ed25519.PublicKey)
	return nil
}
