package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory. The janitor of the underlying
// go-cache instance reaps expired entries every TTL+sweep lag; Get re-checks
// expiry against the store clock so a lagging janitor never serves stale data.
type MemoryStore struct {
	items   *gocache.Cache
	ttl     time.Duration
	cleanup time.Duration
	now     Clock
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCleanupInterval overrides the janitor interval. Zero keeps TTL+sweep lag.
func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanup = interval
		}
	}
}

// WithClock injects the clock used for expiry decisions.
func WithClock(clock Clock) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryStore constructs an in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cleanup <= 0 {
		s.cleanup = s.ttl + DefaultSweepLag
	}
	s.items = gocache.New(s.ttl, s.cleanup)
	return s
}

// TTL reports the default entry lifetime.
func (s *MemoryStore) TTL() time.Duration { return s.ttl }

// CleanupInterval reports the janitor interval.
func (s *MemoryStore) CleanupInterval() time.Duration { return s.cleanup }

// Set stores a copy of value, replacing any previous entry and restarting its expiry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	s.items.Set(key, memoryItem{
		value:     cloneBytes(value),
		expiresAt: s.now().Add(ttl),
	}, ttl)
	return nil
}

// Get returns a copy of the live value for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	item, ok := raw.(memoryItem)
	if !ok {
		s.items.Delete(key)
		return nil, false, nil
	}
	if !s.now().Before(item.expiresAt) {
		s.items.Delete(key)
		return nil, false, nil
	}
	return cloneBytes(item.value), true, nil
}

// Delete removes keys from the store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.items.Delete(key)
	}
	return nil
}

// Len reports how many entries are held, including expired ones not yet reaped.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}
