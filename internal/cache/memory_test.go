package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryStoreDefaults(t *testing.T) {
	store := NewMemoryStore()

	require.Equal(t, 600*time.Second, store.TTL())
	require.Equal(t, 720*time.Second, store.CleanupInterval())
}

func TestMemoryStoreExpiresInlineWithoutSweep(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyAllBlogs, []byte("[]"), 0))

	clock.Advance(599 * time.Second)
	_, ok, err := store.Get(ctx, KeyAllBlogs)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok, err = store.Get(ctx, KeyAllBlogs)
	require.NoError(t, err)
	require.False(t, ok, "entry read after its TTL must be absent")
	require.Zero(t, store.Len(), "expired entry is dropped on read")
}

func TestMemoryStoreSetRestartsExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyTotalBlogs, []byte("1"), 0))
	clock.Advance(500 * time.Second)
	require.NoError(t, store.Set(ctx, KeyTotalBlogs, []byte("2"), 0))
	clock.Advance(500 * time.Second)

	value, ok, err := store.Get(ctx, KeyTotalBlogs)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", string(value))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	input := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", input, time.Minute))
	input[0] = 'x'

	out, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", string(out))

	out[1] = 'y'
	again, _, _ := store.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(WithTTL(time.Minute), WithCleanupInterval(time.Hour))
	ctx := context.Background()

	require.Equal(t, time.Hour, store.CleanupInterval())
	require.NoError(t, store.Set(ctx, KeyUsers, []byte("[]"), 0))
	require.NoError(t, store.Set(ctx, KeyTotalUsers, []byte("0"), 0))
	require.NoError(t, store.Delete(ctx, KeyUsers, KeyTotalUsers, "unknown"))

	_, ok, _ := store.Get(ctx, KeyUsers)
	require.False(t, ok)
	_, ok, _ = store.Get(ctx, KeyTotalUsers)
	require.False(t, ok)
}
