package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/metrics"
)

// Fixed snapshot keys.
const (
	KeyAllBlogs   = "allBlogs"
	KeyTotalBlogs = "totalBlogs"
	KeyUsers      = "users"
	KeyTotalUsers = "totalUsers"
)

// Keys lists every snapshot key in display order.
var Keys = []string{KeyAllBlogs, KeyTotalBlogs, KeyUsers, KeyTotalUsers}

// Snapshots is the typed view over a Store used by services. Values are
// encoded on Set and decoded on Get, so callers always receive a private copy.
// Every failure is logged and reported as a miss.
type Snapshots struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewSnapshots wraps store. A non-positive ttl selects DefaultTTL.
func NewSnapshots(store Store, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Snapshots{
		store: store,
		ttl:   ttl,
		log:   logger.WithModule("cache"),
	}
}

// Store exposes the underlying backend.
func (s *Snapshots) Store() Store { return s.store }

// TTL reports the lifetime applied to every entry.
func (s *Snapshots) TTL() time.Duration { return s.ttl }

// Set replaces the value stored under key.
func (s *Snapshots) Set(ctx context.Context, key string, value any) error {
	encoded, err := sonic.ConfigStd.Marshal(value)
	if err != nil {
		s.log.Warn("encode snapshot", zap.String("key", key), zap.Error(err))
		return err
	}
	if err := s.store.Set(ctx, key, encoded, s.ttl); err != nil {
		s.log.Warn("store snapshot", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Get decodes the live value under key into dest and reports whether it was found.
func (s *Snapshots) Get(ctx context.Context, key string, dest any) bool {
	encoded, ok, err := s.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(key, "error").Inc()
		s.log.Warn("read snapshot", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(key, "miss").Inc()
		return false
	}
	if err := sonic.ConfigStd.Unmarshal(encoded, dest); err != nil {
		metrics.CacheLookups.WithLabelValues(key, "error").Inc()
		s.log.Warn("decode snapshot, evicting", zap.String("key", key), zap.Error(err))
		_ = s.store.Delete(ctx, key)
		return false
	}
	metrics.CacheLookups.WithLabelValues(key, "hit").Inc()
	return true
}

// Has reports whether a live entry exists under key.
func (s *Snapshots) Has(ctx context.Context, key string) bool {
	_, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("probe snapshot", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

// Delete evicts keys.
func (s *Snapshots) Delete(ctx context.Context, keys ...string) {
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.log.Warn("evict snapshot", zap.Strings("keys", keys), zap.Error(err))
	}
}
