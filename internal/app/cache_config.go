package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/cache"
)

// Cache backends.
const (
	CacheBackendMemory   = "memory"
	CacheBackendRedis    = "redis"
	CacheBackendDatabase = "database"
)

// DefaultCadence is the refresh cadence used when none is configured.
const DefaultCadence = "*/10 * * * *"

// BackendName returns the normalised backend name.
func (c CacheConfig) BackendName() string {
	backend := strings.ToLower(strings.TrimSpace(c.Backend))
	if backend == "" {
		return CacheBackendMemory
	}
	return backend
}

// EntryTTL returns the lifetime of every snapshot entry.
func (c CacheConfig) EntryTTL() time.Duration {
	if c.TTL <= 0 {
		return cache.DefaultTTL
	}
	return c.TTL
}

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
		Prefix:   c.Redis.Prefix,
	}
}

// NewCacheStore builds the configured snapshot store. The database backend
// keeps entries in db.
func NewCacheStore(ctx context.Context, c CacheConfig, db *gorm.DB) (cache.Store, error) {
	switch backend := c.BackendName(); backend {
	case CacheBackendMemory:
		return cache.NewMemoryStore(
			cache.WithTTL(c.EntryTTL()),
			cache.WithCleanupInterval(c.CleanupInterval),
		), nil
	case CacheBackendRedis:
		return cache.NewRedisStore(ctx, c.RedisClientConfig())
	case CacheBackendDatabase:
		return cache.NewDatabaseStore(db, nil)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", backend)
	}
}

// ScheduleDefaults returns the configured cadences with blanks filled in.
func (c ScheduleConfig) ScheduleDefaults() ScheduleConfig {
	return ScheduleConfig{
		UpdateCache:     cadenceOr(c.UpdateCache),
		UpdateCountBlog: cadenceOr(c.UpdateCountBlog),
		UpdateCountUser: cadenceOr(c.UpdateCountUser),
	}
}

func cadenceOr(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultCadence
	}
	return spec
}
