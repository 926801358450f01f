package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "sa:")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeContract runs the behaviour every Store implementation must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}

	if err := store.Set(ctx, "book:42", []byte(`{"id":"42"}`), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, found, err := store.Get(ctx, "book:42")
	if err != nil || !found || string(val) != `{"id":"42"}` {
		t.Fatalf("unexpected get result %q found=%v err=%v", val, found, err)
	}

	if err := store.Set(ctx, "book:42", []byte(`{"id":"42","v":2}`), time.Hour); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	val, _, _ = store.Get(ctx, "book:42")
	if string(val) != `{"id":"42","v":2}` {
		t.Fatalf("overwrite not visible, got %q", val)
	}

	if err := store.Set(ctx, "zero", []byte("x"), 0); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}

	if err := store.Delete(ctx, "book:42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "book:42"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "book:42"); found {
		t.Fatal("deleted key still visible")
	}

	if err := store.Set(ctx, "refresh:abc", []byte("u1"), time.Hour); err != nil {
		t.Fatalf("set binding: %v", err)
	}
	val, found, err = store.Take(ctx, "refresh:abc")
	if err != nil || !found || string(val) != "u1" {
		t.Fatalf("unexpected take result %q found=%v err=%v", val, found, err)
	}
	if _, found, err := store.Take(ctx, "refresh:abc"); err != nil || found {
		t.Fatalf("second take must miss, found=%v err=%v", found, err)
	}
}

func takeRace(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.Set(ctx, "refresh:race", []byte("u1"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	const workers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, found, err := store.Take(ctx, "refresh:race")
			if err != nil {
				t.Errorf("take: %v", err)
				return
			}
			if found {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one take to win, got %d", got)
	}
}

func TestRedisStoreContract(t *testing.T) {
	store, _, done := newRedisStoreTest(t)
	defer done()
	storeContract(t, store)
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStoreTakeIsExclusive(t *testing.T) {
	store, _, done := newRedisStoreTest(t)
	defer done()
	takeRace(t, store)
}

func TestMemoryStoreTakeIsExclusive(t *testing.T) {
	takeRace(t, NewMemoryStore())
}

func TestRedisStorePrefixesKeys(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	if err := store.Set(context.Background(), "search:go:0:20", []byte("{}"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("sa:search:go:0:20") {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Set(ctx, "book:1", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, found, err := store.Get(ctx, "book:1"); err != nil || found {
		t.Fatalf("expired entry must look absent, found=%v err=%v", found, err)
	}
	if _, found, err := store.Take(ctx, "book:1"); err != nil || found {
		t.Fatalf("expired entry must not be taken, found=%v err=%v", found, err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	ctx := context.Background()
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("get: expected ErrUnavailable, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("set: expected ErrUnavailable, got %v", err)
	}
	if _, _, err := store.Take(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("take: expected ErrUnavailable, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ping: expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryStoreExpiryAndSweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	_ = store.Set(ctx, "short", []byte("a"), time.Minute)
	_ = store.Set(ctx, "long", []byte("b"), time.Hour)

	clock.Advance(time.Minute)
	if _, found, _ := store.Get(ctx, "short"); found {
		t.Fatal("entry at its expiry instant must be absent")
	}
	if _, found, _ := store.Get(ctx, "long"); !found {
		t.Fatal("long entry should still be live")
	}

	clock.Advance(2 * time.Hour)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to remove 1 entry, removed %d", removed)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, have %d", store.Len())
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	_ = store.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	val, _, _ := store.Get(ctx, "k")
	if string(val) != "abc" {
		t.Fatalf("store aliased caller buffer, got %q", val)
	}
	val[1] = 'z'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("store aliased returned buffer, got %q", again)
	}
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
