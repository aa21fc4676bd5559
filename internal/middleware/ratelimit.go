package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/blogdesk/pkg/errors"
	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// RateStore counts requests per key within a fixed window.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetIn time.Duration, err error)
}

// WindowCounter is a shared counter with expiring windows, such as
// cache.RedisStore.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// SharedRateStore keeps counters in a WindowCounter so every replica of the
// API sees the same totals.
type SharedRateStore struct {
	counter WindowCounter
}

// NewSharedRateStore wraps counter.
func NewSharedRateStore(counter WindowCounter) *SharedRateStore {
	return &SharedRateStore{counter: counter}
}

// Increment implements RateStore.
func (s *SharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	count, resetIn, err := s.counter.IncrWindow(ctx, "ratelimit:"+key, window)
	return int(count), resetIn, err
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// MemoryRateStore is a process-local RateStore.
type MemoryRateStore struct {
	mu    sync.Mutex
	data  map[string]*memoryCounter
	clock func() time.Time
}

// NewMemoryRateStore constructs an in-memory rate store. clock may be nil.
func NewMemoryRateStore(clock func() time.Time) *MemoryRateStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateStore{data: make(map[string]*memoryCounter), clock: clock}
}

// Increment bumps the counter of key, starting a new window when the previous
// one has ended. Ended windows of other keys are dropped on the way.
func (s *MemoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.data[key]
	if !ok || !now.Before(counter.windowEnd) {
		if len(s.data) > 1024 {
			for k, v := range s.data {
				if !now.Before(v.windowEnd) {
					delete(s.data, k)
				}
			}
		}
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++
	return counter.count, counter.windowEnd.Sub(now), nil
}

// RateLimit limits requests per (client IP, route) within a fixed window.
// A non-positive limit or window disables limiting. When the store fails the
// request is let through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		count, resetIn, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(max(1, int(resetIn.Seconds()))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}
