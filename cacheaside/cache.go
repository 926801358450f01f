package cacheaside

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shelfauth/kv"
	"github.com/rs/zerolog"
)

// ErrInvalidTTL is returned when GetOrCompute is called with a non-positive ttl.
var ErrInvalidTTL = errors.New("cacheaside: ttl must be positive")

type settings struct {
	observer Observer
	logger   zerolog.Logger
}

// Option configures a Cache.
type Option func(*settings)

// WithObserver reports hits, misses and failures to o.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger used for degraded-store warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// Cache is a typed cache-aside view over a kv.Store.
type Cache[T any] struct {
	store    kv.Store
	codec    Codec[T]
	observer Observer
	logger   zerolog.Logger
}

// New returns a Cache storing values as JSON.
func New[T any](store kv.Store, opts ...Option) *Cache[T] {
	return NewWithCodec[T](store, JSONCodec[T]{}, opts...)
}

// NewWithCodec returns a Cache using codec for serialisation.
func NewWithCodec[T any](store kv.Store, codec Codec[T], opts ...Option) *Cache[T] {
	s := settings{
		observer: NopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Cache[T]{
		store:    store,
		codec:    codec,
		observer: s.observer,
		logger:   s.logger,
	}
}

// GetOrCompute returns the live value for key, or computes, stores and returns
// a fresh one. compute runs at most once per call.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if ttl <= 0 {
		return zero, ErrInvalidTTL
	}

	if v, ok := c.lookup(ctx, key); ok {
		c.observer.CacheHit(key)
		return v, nil
	}
	c.observer.CacheMiss(key)

	v, err := compute(ctx)
	if err != nil {
		c.observer.ComputeFailed(key, err)
		return zero, err
	}

	c.put(ctx, key, v, ttl)
	return v, nil
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.observer.StoreFailed(key, err)
		c.logger.Warn().Err(err).Str("key", key).Msg("cache.read_failed")
		return zero, false
	}
	if !found {
		return zero, false
	}

	v, err := c.codec.Unmarshal(raw)
	if err != nil {
		// corrupt entry, recompute and overwrite
		c.logger.Warn().Err(err).Str("key", key).Msg("cache.decode_failed")
		return zero, false
	}
	return v, true
}

func (c *Cache[T]) put(ctx context.Context, key string, v T, ttl time.Duration) {
	raw, err := c.codec.Marshal(v)
	if err != nil {
		c.observer.StoreFailed(key, err)
		c.logger.Warn().Err(err).Str("key", key).Msg("cache.encode_failed")
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.observer.StoreFailed(key, err)
		c.logger.Warn().Err(err).Str("key", key).Msg("cache.write_failed")
	}
}
