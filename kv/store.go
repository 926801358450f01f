package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable wraps every failure to reach the backing store.
	ErrUnavailable = errors.New("kv store unavailable")
	// ErrInvalidTTL is returned by Set when ttl is not positive.
	ErrInvalidTTL = errors.New("kv ttl must be positive")
)

// Store is the key-value cache contract shared by sessions and the catalog.
//
// Implementations must be safe for concurrent use. Take must be atomic: for a
// single key, at most one concurrent caller observes found == true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}
