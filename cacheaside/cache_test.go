package cacheaside

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/shelfauth/kv"
)

type book struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	mu            sync.Mutex
	hits, misses  int
	computeFailed int
	storeFailed   int
}

func (o *countingObserver) CacheHit(string) {
	o.mu.Lock()
	o.hits++
	o.mu.Unlock()
}

func (o *countingObserver) CacheMiss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func (o *countingObserver) ComputeFailed(string, error) {
	o.mu.Lock()
	o.computeFailed++
	o.mu.Unlock()
}

func (o *countingObserver) StoreFailed(string, error) {
	o.mu.Lock()
	o.storeFailed++
	o.mu.Unlock()
}

// brokenStore fails every operation, like a cache whose backend is down.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, kv.ErrUnavailable
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return kv.ErrUnavailable
}
func (brokenStore) Delete(context.Context, string) error { return kv.ErrUnavailable }
func (brokenStore) Take(context.Context, string) ([]byte, bool, error) {
	return nil, false, kv.ErrUnavailable
}

func newCacheTest(t *testing.T) (*Cache[book], *kv.MemoryStore, *testClock, *countingObserver) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	store := kv.NewMemoryStore(kv.WithClock(clock.Now))
	obs := &countingObserver{}
	return New[book](store, WithObserver(obs)), store, clock, obs
}

func TestGetOrComputeColdWarmExpired(t *testing.T) {
	cache, _, clock, obs := newCacheTest(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (book, error) {
		calls++
		return book{ID: "42", Title: "Dune"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrCompute(ctx, "book:42", time.Hour, compute)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got.Title != "Dune" {
			t.Fatalf("call %d: unexpected value %+v", i, got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one compute within ttl, got %d", calls)
	}

	clock.Advance(time.Hour)
	if _, err := cache.GetOrCompute(ctx, "book:42", time.Hour, compute); err != nil {
		t.Fatalf("after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected recompute after ttl, got %d computes", calls)
	}
	if obs.hits != 2 || obs.misses != 2 {
		t.Fatalf("unexpected observer counts hits=%d misses=%d", obs.hits, obs.misses)
	}
}

func TestGetOrComputeErrorIsNotCached(t *testing.T) {
	cache, store, _, obs := newCacheTest(t)
	ctx := context.Background()
	boom := errors.New("upstream down")

	calls := 0
	_, err := cache.GetOrCompute(ctx, "book:7", time.Hour, func(context.Context) (book, error) {
		calls++
		return book{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("failed compute must not populate the cache")
	}

	got, err := cache.GetOrCompute(ctx, "book:7", time.Hour, func(context.Context) (book, error) {
		calls++
		return book{ID: "7"}, nil
	})
	if err != nil || got.ID != "7" {
		t.Fatalf("recompute failed: %+v %v", got, err)
	}
	if calls != 2 {
		t.Fatalf("expected two computes, got %d", calls)
	}
	if obs.computeFailed != 1 {
		t.Fatalf("expected one compute failure observed, got %d", obs.computeFailed)
	}
}

func TestGetOrComputeStoreUnavailablePassesThrough(t *testing.T) {
	obs := &countingObserver{}
	cache := New[book](brokenStore{}, WithObserver(obs))

	calls := 0
	for i := 0; i < 2; i++ {
		got, err := cache.GetOrCompute(context.Background(), "book:1", time.Hour, func(context.Context) (book, error) {
			calls++
			return book{ID: "1"}, nil
		})
		if err != nil || got.ID != "1" {
			t.Fatalf("expected pass-through value, got %+v %v", got, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected compute on every call, got %d", calls)
	}
	// one failed read and one failed write per call
	if obs.storeFailed != 4 {
		t.Fatalf("expected 4 store failures observed, got %d", obs.storeFailed)
	}
}

func TestGetOrComputeCorruptEntryIsRecomputed(t *testing.T) {
	cache, store, _, _ := newCacheTest(t)
	ctx := context.Background()
	if err := store.Set(ctx, "book:9", []byte("{not json"), time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := cache.GetOrCompute(ctx, "book:9", time.Hour, func(context.Context) (book, error) {
		return book{ID: "9"}, nil
	})
	if err != nil || got.ID != "9" {
		t.Fatalf("unexpected result %+v %v", got, err)
	}

	raw, found, _ := store.Get(ctx, "book:9")
	if !found || string(raw) != `{"id":"9","title":""}` {
		t.Fatalf("corrupt entry was not overwritten, have %q", raw)
	}
}

func TestGetOrComputeRejectsNonPositiveTTL(t *testing.T) {
	cache, _, _, _ := newCacheTest(t)
	called := false
	_, err := cache.GetOrCompute(context.Background(), "k", 0, func(context.Context) (book, error) {
		called = true
		return book{}, nil
	})
	if !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
	if called {
		t.Fatal("compute must not run for an invalid ttl")
	}
}

func TestGetOrComputeKeysAreIndependent(t *testing.T) {
	cache, _, _, _ := newCacheTest(t)
	ctx := context.Background()

	a, _ := cache.GetOrCompute(ctx, "book:a", time.Hour, func(context.Context) (book, error) {
		return book{ID: "a"}, nil
	})
	b, _ := cache.GetOrCompute(ctx, "book:b", time.Hour, func(context.Context) (book, error) {
		return book{ID: "b"}, nil
	})
	if a.ID != "a" || b.ID != "b" {
		t.Fatalf("keys leaked into each other: %+v %+v", a, b)
	}
}
