package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/shelfauth/directory"
	"github.com/MrEthical07/shelfauth/identity"
	"github.com/MrEthical07/shelfauth/internal"
	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/kv"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type managerClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *managerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *managerClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testPrincipal() identity.Principal {
	return identity.Principal{
		SubjectID:   "u1",
		Email:       "u1@example.com",
		DisplayName: "Reader One",
		AvatarURL:   "https://img.example.com/u1.png",
	}
}

func newManagerOn(t *testing.T, store kv.Store, clock *managerClock) (*Manager, *directory.Memory) {
	t.Helper()
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "shelfauth",
		Audience:      "shelf",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	dir := directory.NewMemory()
	if _, err := dir.Upsert(context.Background(), testPrincipal()); err != nil {
		t.Fatalf("seed directory: %v", err)
	}
	m, err := NewManager(tokens, NewStore(store), dir, Config{Now: now})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	return m, dir
}

func newManagerTest(t *testing.T) (*Manager, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m, _ := newManagerOn(t, kv.NewRedisStore(rdb, ""), nil)
	return m, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestIssueSessionBindsRefreshToken(t *testing.T) {
	m, mr, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !internal.WellFormedRefreshToken(sess.RefreshToken) {
		t.Fatalf("refresh token has unexpected shape: %q", sess.RefreshToken)
	}

	got, err := mr.Get(RefreshKey(sess.RefreshToken))
	if err != nil || got != "u1" {
		t.Fatalf("expected binding to subject u1, got %q err=%v", got, err)
	}
	ttl := mr.TTL(RefreshKey(sess.RefreshToken))
	if ttl != DefaultRefreshTTL {
		t.Fatalf("expected binding ttl %s, got %s", DefaultRefreshTTL, ttl)
	}
	if sess.Principal != testPrincipal() {
		t.Fatalf("unexpected principal %+v", sess.Principal)
	}
}

func TestIssueSessionDoesNotInvalidateOtherSessions(t *testing.T) {
	m, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	a, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue a: %v", err)
	}
	b, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue b: %v", err)
	}
	if a.RefreshToken == b.RefreshToken || a.AccessToken == b.AccessToken {
		t.Fatal("sessions must not share tokens")
	}
	if _, err := m.RotateSession(ctx, a.RefreshToken); err != nil {
		t.Fatalf("rotate a: %v", err)
	}
	if _, err := m.RotateSession(ctx, b.RefreshToken); err != nil {
		t.Fatalf("rotate b: %v", err)
	}
}

func TestAuthenticateRoundTripAndExpiry(t *testing.T) {
	clock := &managerClock{now: time.Unix(1_700_000_000, 0)}
	m, _ := newManagerOn(t, kv.NewMemoryStore(kv.WithClock(clock.Now)), clock)

	sess, err := m.IssueSession(context.Background(), testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !sess.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected access expiry %v", sess.ExpiresAt)
	}

	p, err := m.Authenticate(sess.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p != testPrincipal() {
		t.Fatalf("authenticate returned %+v", p)
	}

	clock.Advance(time.Hour + time.Second)
	if _, err := m.Authenticate(sess.AccessToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken after expiry, got %v", err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	m, _ := newManagerOn(t, kv.NewMemoryStore(), nil)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Authenticate(tok); !errors.Is(err, ErrInvalidAccessToken) {
			t.Fatalf("token %q: expected ErrInvalidAccessToken, got %v", tok, err)
		}
	}
}

func TestRotateSessionSucceedsOnce(t *testing.T) {
	m, mr, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	first, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := m.RotateSession(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation returned the consumed refresh token")
	}
	if mr.Exists(RefreshKey(first.RefreshToken)) {
		t.Fatal("consumed binding still present")
	}
	if !mr.Exists(RefreshKey(second.RefreshToken)) {
		t.Fatal("new binding missing")
	}

	if _, err := m.RotateSession(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on reuse, got %v", err)
	}

	p, err := m.Authenticate(second.AccessToken)
	if err != nil || p.SubjectID != "u1" {
		t.Fatalf("rotated access token invalid: %+v %v", p, err)
	}
}

func TestRotateSessionConcurrentSingleWinner(t *testing.T) {
	m, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const workers = 16
	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.RotateSession(ctx, sess.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidRefreshToken):
				losses.Add(1)
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 || losses.Load() != workers-1 {
		t.Fatalf("expected 1 winner and %d losers, got %d/%d", workers-1, wins.Load(), losses.Load())
	}
}

func TestRevokeThenRotateFails(t *testing.T) {
	m, _, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.RevokeSession(ctx, sess.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := m.RevokeSession(ctx, sess.RefreshToken); err != nil {
		t.Fatalf("second revoke must succeed: %v", err)
	}
	if err := m.RevokeSession(ctx, ""); err != nil {
		t.Fatalf("empty revoke must succeed: %v", err)
	}
	if _, err := m.RotateSession(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after revoke, got %v", err)
	}
	// revocation does not reach already-issued access tokens
	if _, err := m.Authenticate(sess.AccessToken); err != nil {
		t.Fatalf("access token should stay valid until expiry: %v", err)
	}
}

func TestRotateSessionExpiredBinding(t *testing.T) {
	m, mr, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mr.FastForward(DefaultRefreshTTL + time.Second)
	if _, err := m.RotateSession(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for expired binding, got %v", err)
	}
}

func TestRotateSessionRejectsMalformedTokens(t *testing.T) {
	m, _ := newManagerOn(t, kv.NewMemoryStore(), nil)
	for _, tok := range []string{"", "short", strings.Repeat("A", 4096)} {
		if _, err := m.RotateSession(context.Background(), tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("token len %d: expected ErrInvalidRefreshToken, got %v", len(tok), err)
		}
	}
}

func TestRotateSessionUnknownSubject(t *testing.T) {
	m, dir := newManagerOn(t, kv.NewMemoryStore(), nil)
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := dir.Remove(ctx, "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.RotateSession(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for unknown subject, got %v", err)
	}
}

func TestRotateSessionPicksUpDirectoryChanges(t *testing.T) {
	m, dir := newManagerOn(t, kv.NewMemoryStore(), nil)
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	updated := testPrincipal()
	updated.DisplayName = "Renamed Reader"
	if _, err := dir.Upsert(ctx, updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	next, err := m.RotateSession(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	p, err := m.Authenticate(next.AccessToken)
	if err != nil || p.DisplayName != "Renamed Reader" {
		t.Fatalf("expected refreshed display name, got %+v %v", p, err)
	}
}

func TestRotateSessionStoreUnavailable(t *testing.T) {
	m, mr, done := newManagerTest(t)
	defer done()
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	mr.Close()

	_, err = m.RotateSession(ctx, sess.RefreshToken)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestIssueSessionStoreUnavailable(t *testing.T) {
	m, mr, done := newManagerTest(t)
	defer done()
	mr.Close()

	_, err := m.IssueSession(context.Background(), testPrincipal())
	if !errors.Is(err, ErrSessionIssue) {
		t.Fatalf("expected ErrSessionIssue, got %v", err)
	}
}

func TestIssueSessionRandomFailure(t *testing.T) {
	m, _ := newManagerOn(t, kv.NewMemoryStore(), nil)
	m.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }

	if _, err := m.IssueSession(context.Background(), testPrincipal()); !errors.Is(err, ErrSessionIssue) {
		t.Fatalf("expected ErrSessionIssue, got %v", err)
	}
}

func TestIssueSessionRejectsEmptyPrincipal(t *testing.T) {
	m, _ := newManagerOn(t, kv.NewMemoryStore(), nil)
	if _, err := m.IssueSession(context.Background(), identity.Principal{}); !errors.Is(err, ErrInvalidPrincipal) {
		t.Fatalf("expected ErrInvalidPrincipal, got %v", err)
	}
}

// bindFailStore lets Take succeed while Set fails once armed.
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

func TestRotateSessionBindFailureIsInvalidRefreshToken(t *testing.T) {
	store := &bindFailStore{MemoryStore: kv.NewMemoryStore()}
	m, _ := newManagerOn(t, store, nil)
	ctx := context.Background()

	sess, err := m.IssueSession(ctx, testPrincipal())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store.failSet.Store(true)
	_, err = m.RotateSession(ctx, sess.RefreshToken)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected store cause to be preserved, got %v", err)
	}

	// the old binding was consumed before the failed write
	store.failSet.Store(false)
	if _, err := m.RotateSession(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected consumed token to stay invalid, got %v", err)
	}
}
