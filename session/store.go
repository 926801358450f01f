package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shelfauth/kv"
)

const refreshKeyPrefix = "refresh:"

// RefreshKey returns the key a refresh token is bound under.
func RefreshKey(token string) string {
	return refreshKeyPrefix + token
}

// Store keeps refresh-token bindings in a kv.Store.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// Bind records token → subjectID for ttl.
func (s *Store) Bind(ctx context.Context, token, subjectID string, ttl time.Duration) error {
	return s.kv.Set(ctx, RefreshKey(token), []byte(subjectID), ttl)
}

// Consume atomically removes the binding for token and returns its subject.
// A missing or expired binding yields ErrRefreshBindingNotFound.
func (s *Store) Consume(ctx context.Context, token string) (string, error) {
	val, found, err := s.kv.Take(ctx, RefreshKey(token))
	if err != nil {
		return "", err
	}
	if !found || len(val) == 0 {
		return "", ErrRefreshBindingNotFound
	}
	return string(val), nil
}

// Revoke deletes the binding for token. A missing binding is not an error.
func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.kv.Delete(ctx, RefreshKey(token))
}

// Ping reports store health when the backing store supports it.
func (s *Store) Ping(ctx context.Context) error {
	p, ok := s.kv.(kv.Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrRefreshBindingNotFound)
}
