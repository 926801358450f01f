package shelfauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/shelfauth/catalog"
	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/internal/audit"
	"github.com/MrEthical07/shelfauth/internal/rate"
	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/kv"
	"github.com/MrEthical07/shelfauth/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. A Builder can be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  kv.Store

	verifier   identity.Verifier
	directory  directory.Directory
	upstream   catalog.Upstream
	httpClient *http.Client

	auditSink AuditSink
	logger    zerolog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the cache and the rate limiter with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides the key-value store. Rate limiting still needs WithRedis.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithVerifier overrides the identity verifier selected by Config.Identity.
func (b *Builder) WithVerifier(v identity.Verifier) *Builder {
	b.verifier = v
	return b
}

// WithDirectory sets the principal directory. Defaults to an in-memory directory.
func (b *Builder) WithDirectory(d directory.Directory) *Builder {
	b.directory = d
	return b
}

// WithUpstream overrides the catalog upstream. Defaults to Google Books.
func (b *Builder) WithUpstream(u catalog.Upstream) *Builder {
	b.upstream = u
	return b
}

// WithHTTPClient sets the client used for identity and catalog calls.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuance and verification.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build is BuildContext with a background context.
func (b *Builder) Build() (*Engine, error) {
	return b.BuildContext(context.Background())
}

// BuildContext validates the configuration and wires every component. ctx
// bounds OIDC discovery when identity mode is oidc.
func (b *Builder) BuildContext(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		switch {
		case b.redis != nil:
			store = kv.NewRedisStore(b.redis, cfg.Cache.KeyPrefix)
		case cfg.Cache.Backend == CacheBackendMemory:
			store = kv.NewMemoryStore()
		default:
			return nil, errors.New("redis client required")
		}
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		store:  store,
		logger: b.logger,
		clock:  now,
	}

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			LoginAttemptsPerIP: cfg.RateLimit.LoginAttemptsPerIP,
			LoginWindow:        cfg.RateLimit.LoginWindow,
			CatalogCalls:       cfg.Catalog.CallsPerWindow,
			CatalogWindow:      cfg.Catalog.Window,
			KeyPrefix:          cfg.Cache.KeyPrefix,
		})
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     b.logger,
	}, b.auditSink)
	engine.auditSink = b.auditSink != nil
	engine.metrics = NewMetrics(cfg.Metrics)

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.jwtManager = jm

	engine.directory = b.directory
	if engine.directory == nil {
		engine.directory = directory.NewMemory()
	}

	engine.verifier = b.verifier
	if engine.verifier == nil {
		v, err := b.newVerifier(ctx, cfg, now)
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.verifier = v
	}

	sm, err := session.NewManager(jm, session.NewStore(store), engine.directory, session.Config{
		RefreshTTL: cfg.Session.RefreshTTL,
		Now:        now,
		Logger:     b.logger,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.sessions = sm

	upstream := b.upstream
	if upstream == nil {
		upstream = catalog.NewGoogleBooks(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, b.client(cfg.Catalog.Timeout))
	}
	catalogCfg := catalog.Config{
		SearchTTL: cfg.Catalog.SearchTTL,
		BookTTL:   cfg.Catalog.BookTTL,
		Observer:  cacheMetrics{metrics: engine.metrics},
		Logger:    b.logger,
	}
	if engine.rateLimiter != nil {
		catalogCfg.Budget = engine.rateLimiter
	}
	engine.catalog = catalog.NewClient(store, upstream, catalogCfg)

	engine.buildFlowDeps()

	b.built = true
	return engine, nil
}

func (b *Builder) newVerifier(ctx context.Context, cfg Config, now func() time.Time) (identity.Verifier, error) {
	client := b.client(cfg.Identity.Timeout)
	switch cfg.Identity.Mode {
	case IdentityModeOIDC:
		v, err := identity.NewOIDCVerifier(ctx, identity.OIDCConfig{
			IssuerURL:  cfg.Identity.IssuerURL,
			ClientID:   cfg.Identity.ClientID,
			HTTPClient: client,
			Logger:     b.logger,
			Now:        now,
		})
		if err != nil {
			return nil, fmt.Errorf("identity verifier: %w", err)
		}
		return v, nil
	default:
		return identity.NewTokenInfoVerifier(identity.TokenInfoConfig{
			Endpoint:   cfg.Identity.TokenInfoEndpoint,
			ClientID:   cfg.Identity.ClientID,
			HTTPClient: client,
			Logger:     b.logger,
			Now:        now,
		})
	}
}

func (b *Builder) client(timeout time.Duration) *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return &http.Client{Timeout: timeout}
}
