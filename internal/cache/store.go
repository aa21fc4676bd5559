package cache

import (
	"context"
	"time"
)

const (
	// DefaultTTL is the lifetime of every cache entry.
	DefaultTTL = 600 * time.Second
	// DefaultSweepLag is added to the TTL to obtain the background reaper interval.
	DefaultSweepLag = 120 * time.Second
)

// Store is a byte-oriented key/value store with per-entry expiry. Implementations
// must treat an entry read after its expiry as absent, independently of any
// background sweep.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Clock returns the current time. Stores accept one so expiry can be tested.
type Clock func() time.Time

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
