package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/middleware"
)

// Engine is the part of *shelfauth.Engine the handlers call.
type Engine interface {
	LoginResult(ctx context.Context, idToken string) shelfauth.SessionResult
	RefreshResult(ctx context.Context, refreshToken string) shelfauth.SessionResult
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (shelfauth.Principal, error)
	CurrentPrincipal(ctx context.Context, accessToken string) (shelfauth.Principal, error)
	Search(ctx context.Context, query string, offset, limit int) (shelfauth.SearchResult, error)
	Book(ctx context.Context, id string) (shelfauth.BookDetail, bool)
	Ping(ctx context.Context) error
	RefreshCookie() shelfauth.CookiePolicy
}

var _ Engine = (*shelfauth.Engine)(nil)

// Options are optional collaborators for New.
type Options struct {
	Logger zerolog.Logger
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP the client IP
	// used for login throttling. Enable only behind a trusted proxy.
	TrustProxyHeaders bool
}

type Server struct {
	engine  Engine
	cookie  shelfauth.CookiePolicy
	logger  zerolog.Logger
	metrics http.Handler
	proxied bool
}

func New(engine Engine, opts Options) *Server {
	return &Server{
		engine:  engine,
		cookie:  engine.RefreshCookie(),
		logger:  opts.Logger,
		metrics: opts.MetricsHandler,
		proxied: opts.TrustProxyHeaders,
	}
}

// Routes returns the full handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if s.proxied {
		r.Use(chimw.RealIP)
	}
	r.Use(s.loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(clientIPMiddleware)

	r.Get(HealthCheckRoute, s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, MetricsRoute, s.metrics)
	}

	r.Post(LoginRoute, s.handleLogin)
	r.Post(RefreshRoute, s.handleRefresh)
	r.Post(LogoutRoute, s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCurrentPrincipal(s.engine))
		r.Get(MeRoute, s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(s.engine))
		r.Get(SearchRoute, s.handleSearch)
		r.Get(BookRoute, s.handleBook)
	})

	return r
}
