package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/catalog"
	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/kv"
)

type recordingUpstream struct {
	mu     sync.Mutex
	limits []int
}

func (u *recordingUpstream) SearchVolumes(_ context.Context, query string, offset, limit int) (catalog.SearchResult, error) {
	u.mu.Lock()
	u.limits = append(u.limits, limit)
	u.mu.Unlock()
	return catalog.SearchResult{Items: []catalog.SearchItem{{ID: "42", Title: query}}, TotalItems: 1}, nil
}

func (u *recordingUpstream) Volume(_ context.Context, id string) (catalog.BookDetail, error) {
	if id == "missing" {
		return catalog.BookDetail{}, catalog.ErrVolumeNotFound
	}
	return catalog.BookDetail{ID: id, Title: "Book " + id}, nil
}

func (u *recordingUpstream) lastLimit() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.limits) == 0 {
		return 0
	}
	return u.limits[len(u.limits)-1]
}

var fakeGoogle = identity.VerifierFunc(func(_ context.Context, raw string) (identity.Principal, error) {
	if sub, ok := strings.CutPrefix(raw, "id:"); ok {
		return identity.Principal{SubjectID: sub, Email: sub + "@example.com", DisplayName: "User " + sub}, nil
	}
	return identity.Principal{}, identity.ErrInvalidAssertion
})

type apiTest struct {
	handler  http.Handler
	mr       *miniredis.Miniredis
	upstream *recordingUpstream
}

func newAPITest(t *testing.T, mutate func(*shelfauth.Config)) (*apiTest, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := shelfauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Identity.ClientID = "shelf-client"
	if mutate != nil {
		mutate(&cfg)
	}

	up := &recordingUpstream{}
	engine, err := shelfauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithVerifier(fakeGoogle).
		WithUpstream(up).
		Build()
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("shelfauth_login_success_total 0\n"))
	})

	at := &apiTest{
		handler:  New(engine, Options{MetricsHandler: metrics}).Routes(),
		mr:       mr,
		upstream: up,
	}
	return at, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func (at *apiTest) do(method, target string, body any, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mods {
		m(req)
	}
	rec := httptest.NewRecorder()
	at.handler.ServeHTTP(rec, req)
	return rec
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "shelf_refresh" {
			return c
		}
	}
	t.Fatalf("no refresh cookie in response")
	return nil
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLoginSetsCookieAndReturnsAccessToken(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	rec := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeSession(t, rec)
	assert.NotEmpty(t, resp.AccessToken)
	assert.False(t, resp.ExpiresAt.IsZero())
	assert.Empty(t, resp.RefreshToken, "cookie clients never see the refresh token in the body")
	assert.Equal(t, "u1", resp.User.SubjectID)

	c := refreshCookie(t, rec)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/api/auth", c.Path)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestLoginRejections(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	rec := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = at.do(http.MethodPost, LoginRoute, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = at.do(http.MethodPost, LoginRoute, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	at, done := newAPITest(t, func(c *shelfauth.Config) {
		c.RateLimit.LoginAttemptsPerIP = 2
	})
	defer done()

	for i := 0; i < 2; i++ {
		rec := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "forged"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRefreshRotatesCookieAndRejectsReplay(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	login := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	require.Equal(t, http.StatusOK, login.Code)
	first := refreshCookie(t, login)

	rec := at.do(http.MethodPost, RefreshRoute, nil, withCookie(first))
	require.Equal(t, http.StatusOK, rec.Code)
	second := refreshCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, "u1", decodeSession(t, rec).User.SubjectID)

	replay := at.do(http.MethodPost, RefreshRoute, nil, withCookie(first))
	require.Equal(t, http.StatusUnauthorized, replay.Code)
	cleared := refreshCookie(t, replay)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestRefreshWithoutTokenClearsCookie(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	rec := at.do(http.MethodPost, RefreshRoute, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Less(t, refreshCookie(t, rec).MaxAge, 0)
}

func TestRefreshBodyFallback(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	login := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u2"})
	token := refreshCookie(t, login).Value

	rec := at.do(http.MethodPost, RefreshRoute, refreshRequest{RefreshToken: token})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEqual(t, token, resp.RefreshToken)
	assert.Equal(t, resp.RefreshToken, refreshCookie(t, rec).Value)
}

func TestRefreshStoreOutageFailsClosed(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	login := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	c := refreshCookie(t, login)

	at.mr.SetError("LOADING")
	rec := at.do(http.MethodPost, RefreshRoute, nil, withCookie(c))
	at.mr.SetError("")

	// a failed store read means the binding cannot be proven, so the client must sign in again
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type bindFailStore struct {
	*kv.MemoryStore
	failSet atomic.Bool
}

func (s *bindFailStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failSet.Load() {
		return kv.ErrUnavailable
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func TestRefreshBindFailureClearsCookie(t *testing.T) {
	cfg := shelfauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Identity.ClientID = "shelf-client"
	cfg.Cache.Backend = shelfauth.CacheBackendMemory

	store := &bindFailStore{MemoryStore: kv.NewMemoryStore()}
	engine, err := shelfauth.New().
		WithConfig(cfg).
		WithStore(store).
		WithVerifier(fakeGoogle).
		WithUpstream(&recordingUpstream{}).
		Build()
	require.NoError(t, err)
	defer engine.Close()
	at := &apiTest{handler: New(engine, Options{}).Routes()}

	login := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	require.Equal(t, http.StatusOK, login.Code)
	c := refreshCookie(t, login)

	store.failSet.Store(true)
	rec := at.do(http.MethodPost, RefreshRoute, nil, withCookie(c))
	store.failSet.Store(false)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	cleared := refreshCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	retry := at.do(http.MethodPost, RefreshRoute, nil, withCookie(c))
	assert.Equal(t, http.StatusUnauthorized, retry.Code)
}

func TestLogoutRevokesAndClearsCookie(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	login := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	c := refreshCookie(t, login)

	rec := at.do(http.MethodPost, LogoutRoute, nil, withCookie(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Less(t, refreshCookie(t, rec).MaxAge, 0)

	rec = at.do(http.MethodPost, RefreshRoute, nil, withCookie(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logout without any token is still a success
	rec = at.do(http.MethodPost, LogoutRoute, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMeRequiresBearer(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	rec := at.do(http.MethodGet, MeRoute, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := decodeSession(t, at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"}))
	rec = at.do(http.MethodGet, MeRoute, nil, withBearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	var p shelfauth.Principal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "u1", p.SubjectID)
	assert.Equal(t, "u1@example.com", p.Email)

	rec = at.do(http.MethodGet, MeRoute, nil, withBearer(login.AccessToken+"x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchAndBook(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	login := decodeSession(t, at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"}))
	bearer := withBearer(login.AccessToken)

	rec := at.do(http.MethodGet, SearchRoute+"?q=dune", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = at.do(http.MethodGet, SearchRoute+"?q=dune&maxResults=500", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultMaxResults, at.upstream.lastLimit())

	var res shelfauth.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "dune", res.Items[0].Title)

	rec = at.do(http.MethodGet, SearchRoute+"?q=%20", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = at.do(http.MethodGet, "/api/books/42", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	var book shelfauth.BookDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.Equal(t, "42", book.ID)

	rec = at.do(http.MethodGet, "/api/books/missing", nil, bearer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	at, done := newAPITest(t, nil)
	defer done()

	rec := at.do(http.MethodGet, HealthCheckRoute, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	at.mr.SetError("LOADING")
	rec = at.do(http.MethodGet, HealthCheckRoute, nil)
	at.mr.SetError("")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = at.do(http.MethodGet, MetricsRoute, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shelfauth_login_success_total")
}

func TestProductionCookieIsStrict(t *testing.T) {
	at, done := newAPITest(t, func(c *shelfauth.Config) {
		c.Environment = shelfauth.EnvProduction
	})
	defer done()

	rec := at.do(http.MethodPost, LoginRoute, loginRequest{IDToken: "id:u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	c := refreshCookie(t, rec)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
