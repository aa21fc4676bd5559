package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/metrics"
)

// Collection names accepted by the cache endpoints.
const (
	CollectionBlogs = "blogs"
	CollectionUsers = "users"
)

// refreshGate serialises reloads of one collection and lets a caller skip
// its own reload when a reload that began after its request already finished.
// A caller takes a ticket before locking; a reload records the highest ticket
// issued before it started reading, and every ticket at or below that value
// has been served.
type refreshGate struct {
	mu        sync.Mutex
	requested atomic.Uint64
	served    uint64
}

// run executes load unless a reload covering this call has already completed.
// It reports whether the call was satisfied by someone else's reload.
func (g *refreshGate) run(load func() error) (bool, error) {
	ticket := g.requested.Add(1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.served >= ticket {
		return true, nil
	}
	covered := g.requested.Load()
	if err := load(); err != nil {
		return false, err
	}
	g.served = covered
	return false, nil
}

// KeyStatus describes one snapshot entry.
type KeyStatus struct {
	Key  string `json:"key"`
	Live bool   `json:"live"`
}

// CacheStatus summarises the snapshot store.
type CacheStatus struct {
	Backend    string      `json:"backend"`
	TTLSeconds int         `json:"ttl_seconds"`
	Keys       []KeyStatus `json:"keys"`
	TotalBlogs *int64      `json:"total_blogs"`
	TotalUsers *int64      `json:"total_users"`
}

// CacheService owns the blog and user snapshots. It is the only writer of
// snapshot keys; every other service reads through it.
type CacheService struct {
	db      *gorm.DB
	snaps   *cache.Snapshots
	backend string
	log     *zap.Logger
	now     func() time.Time

	blogs refreshGate
	users refreshGate
}

// CacheServiceOption customises a CacheService.
type CacheServiceOption func(*CacheService)

// WithCacheClock overrides the clock used by the counting jobs.
func WithCacheClock(now func() time.Time) CacheServiceOption {
	return func(s *CacheService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBackendName labels the store in status reports.
func WithBackendName(name string) CacheServiceOption {
	return func(s *CacheService) {
		if name != "" {
			s.backend = name
		}
	}
}

// NewCacheService constructs a CacheService.
func NewCacheService(db *gorm.DB, snaps *cache.Snapshots, opts ...CacheServiceOption) (*CacheService, error) {
	if db == nil {
		return nil, errors.New("cache service: db is required")
	}
	if snaps == nil {
		return nil, errors.New("cache service: snapshots are required")
	}
	svc := &CacheService{
		db:      db,
		snaps:   snaps,
		backend: "memory",
		log:     logger.WithModule("cache"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RefreshBlogs reloads every blog from storage and replaces the allBlogs and
// totalBlogs snapshots. Concurrent callers are coalesced, but a call always
// observes writes committed before it was made.
func (s *CacheService) RefreshBlogs(ctx context.Context) error {
	ctx = ensureContext(ctx)
	coalesced, err := s.blogs.run(func() error {
		var blogs []models.Blog
		if err := s.db.WithContext(ctx).Order("id ASC").Find(&blogs).Error; err != nil {
			return fmt.Errorf("cache service: load blogs: %w", err)
		}
		return multierr.Combine(
			s.snaps.Set(ctx, cache.KeyAllBlogs, blogs),
			s.snaps.Set(ctx, cache.KeyTotalBlogs, int64(len(blogs))),
		)
	})
	s.recordRefresh(CollectionBlogs, coalesced, err)
	return err
}

// RefreshUsers reloads every user, without avatars, and replaces the users
// and totalUsers snapshots.
func (s *CacheService) RefreshUsers(ctx context.Context) error {
	ctx = ensureContext(ctx)
	coalesced, err := s.users.run(func() error {
		var users []models.User
		if err := s.db.WithContext(ctx).Omit("profile_image", "password").Order("id ASC").Find(&users).Error; err != nil {
			return fmt.Errorf("cache service: load users: %w", err)
		}
		return multierr.Combine(
			s.snaps.Set(ctx, cache.KeyUsers, users),
			s.snaps.Set(ctx, cache.KeyTotalUsers, int64(len(users))),
		)
	})
	s.recordRefresh(CollectionUsers, coalesced, err)
	return err
}

// RefreshAll reloads both collections in parallel.
func (s *CacheService) RefreshAll(ctx context.Context) error {
	ctx = ensureContext(ctx)
	var blogErr, userErr error
	var group errgroup.Group
	group.Go(func() error {
		blogErr = s.RefreshBlogs(ctx)
		return nil
	})
	group.Go(func() error {
		userErr = s.RefreshUsers(ctx)
		return nil
	})
	_ = group.Wait()
	return multierr.Combine(blogErr, userErr)
}

// Refresh reloads the named collection.
func (s *CacheService) Refresh(ctx context.Context, collection string) error {
	switch collection {
	case CollectionBlogs:
		return s.RefreshBlogs(ctx)
	case CollectionUsers:
		return s.RefreshUsers(ctx)
	default:
		return ErrUnknownCollection
	}
}

// afterWrite refreshes the given collections following a committed mutation.
// It runs detached from request cancellation; failures are logged and the
// previous snapshot stays in place.
func (s *CacheService) afterWrite(ctx context.Context, collections ...string) {
	ctx = context.WithoutCancel(ensureContext(ctx))
	for _, collection := range collections {
		if err := s.Refresh(ctx, collection); err != nil {
			s.log.Warn("refresh after write failed", zap.String("collection", collection), zap.Error(err))
		}
	}
}

// populate refreshes a collection after a read miss, logging failures.
func (s *CacheService) populate(ctx context.Context, collection string) {
	if err := s.Refresh(ctx, collection); err != nil {
		s.log.Warn("populate after miss failed", zap.String("collection", collection), zap.Error(err))
	}
}

func (s *CacheService) recordRefresh(collection string, coalesced bool, err error) {
	switch {
	case err != nil:
		metrics.CacheRefreshes.WithLabelValues(collection, "error").Inc()
		s.log.Error("cache refresh failed", zap.String("collection", collection), zap.Error(err))
	case coalesced:
		metrics.CacheRefreshes.WithLabelValues(collection, "coalesced").Inc()
	default:
		metrics.CacheRefreshes.WithLabelValues(collection, "success").Inc()
		s.log.Debug("cache refreshed", zap.String("collection", collection))
	}
}

// Blogs returns the blog snapshot and whether it was live.
func (s *CacheService) Blogs(ctx context.Context) ([]models.Blog, bool) {
	var blogs []models.Blog
	if !s.snaps.Get(ensureContext(ctx), cache.KeyAllBlogs, &blogs) {
		return nil, false
	}
	return blogs, true
}

// Users returns the user snapshot and whether it was live.
func (s *CacheService) Users(ctx context.Context) ([]models.User, bool) {
	var users []models.User
	if !s.snaps.Get(ensureContext(ctx), cache.KeyUsers, &users) {
		return nil, false
	}
	return users, true
}

// TotalBlogs returns the cached blog count.
func (s *CacheService) TotalBlogs(ctx context.Context) (int64, bool) {
	var total int64
	ok := s.snaps.Get(ensureContext(ctx), cache.KeyTotalBlogs, &total)
	return total, ok
}

// TotalUsers returns the cached user count.
func (s *CacheService) TotalUsers(ctx context.Context) (int64, bool) {
	var total int64
	ok := s.snaps.Get(ensureContext(ctx), cache.KeyTotalUsers, &total)
	return total, ok
}

func (s *CacheService) setTotalBlogs(ctx context.Context, total int64) {
	_ = s.snaps.Set(ensureContext(ctx), cache.KeyTotalBlogs, total)
}

func (s *CacheService) setTotalUsers(ctx context.Context, total int64) {
	_ = s.snaps.Set(ensureContext(ctx), cache.KeyTotalUsers, total)
}

// Evict drops the snapshot keys of a collection.
func (s *CacheService) Evict(ctx context.Context, collection string) error {
	ctx = ensureContext(ctx)
	switch collection {
	case CollectionBlogs:
		s.snaps.Delete(ctx, cache.KeyAllBlogs, cache.KeyTotalBlogs)
	case CollectionUsers:
		s.snaps.Delete(ctx, cache.KeyUsers, cache.KeyTotalUsers)
	default:
		return ErrUnknownCollection
	}
	s.log.Info("cache evicted", zap.String("collection", collection))
	return nil
}

// Status reports which snapshot keys are live.
func (s *CacheService) Status(ctx context.Context) CacheStatus {
	ctx = ensureContext(ctx)
	status := CacheStatus{
		Backend:    s.backend,
		TTLSeconds: int(s.snaps.TTL() / time.Second),
		Keys:       make([]KeyStatus, 0, len(cache.Keys)),
	}
	for _, key := range cache.Keys {
		status.Keys = append(status.Keys, KeyStatus{Key: key, Live: s.snaps.Has(ctx, key)})
	}
	if total, ok := s.TotalBlogs(ctx); ok {
		status.TotalBlogs = &total
	}
	if total, ok := s.TotalUsers(ctx); ok {
		status.TotalUsers = &total
	}
	return status
}

// BlogCounts is the result of the blog counting job.
type BlogCounts struct {
	Today int64 `json:"today"`
	Total int64 `json:"total"`
}

// CountBlogs counts blogs created since local midnight and in total, stores
// the total in the totalBlogs snapshot and publishes both as gauges.
func (s *CacheService) CountBlogs(ctx context.Context) (*BlogCounts, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var counts BlogCounts
	if err := s.db.WithContext(ctx).Model(&models.Blog{}).Where("created_at >= ?", midnight).Count(&counts.Today).Error; err != nil {
		return nil, fmt.Errorf("cache service: count today's blogs: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Blog{}).Count(&counts.Total).Error; err != nil {
		return nil, fmt.Errorf("cache service: count blogs: %w", err)
	}
	s.setTotalBlogs(ctx, counts.Total)

	metrics.BlogsCreatedToday.Set(float64(counts.Today))
	metrics.BlogsTotal.Set(float64(counts.Total))
	s.log.Info("blog counts",
		zap.Int64("today", counts.Today),
		zap.Int64("total", counts.Total),
	)
	return &counts, nil
}

// CountUsers counts users, stores the total in the totalUsers snapshot and
// publishes it as a gauge.
func (s *CacheService) CountUsers(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("cache service: count users: %w", err)
	}
	s.setTotalUsers(ctx, total)
	metrics.UsersTotal.Set(float64(total))
	s.log.Info("user count", zap.Int64("total", total))
	return total, nil
}
