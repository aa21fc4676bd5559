package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/models"
)

func TestRefreshBlogsPopulatesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	env.seedBlog(t, author, "first", models.StatePublished)
	env.seedBlog(t, author, "draft", 0)

	_, ok := env.cache.Blogs(ctx)
	require.False(t, ok)

	require.NoError(t, env.cache.RefreshBlogs(ctx))

	blogs, ok := env.cache.Blogs(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"first", "draft"}, blogTitles(blogs))

	total, ok := env.cache.TotalBlogs(ctx)
	require.True(t, ok)
	require.EqualValues(t, 2, total)
}

func TestRefreshUsersOmitsAvatarAndPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice", models.RoleUser)
	require.NoError(t, env.db.Model(user).Update("profile_image", []byte{1, 2, 3}).Error)

	require.NoError(t, env.cache.RefreshUsers(ctx))

	users, ok := env.cache.Users(ctx)
	require.True(t, ok)
	require.Len(t, users, 1)
	require.Empty(t, users[0].ProfileImage)
	require.Empty(t, users[0].Password)

	total, ok := env.cache.TotalUsers(ctx)
	require.True(t, ok)
	require.EqualValues(t, 1, total)
}

func TestSnapshotReadsAreCopies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	env.seedBlog(t, author, "original", models.StatePublished)
	require.NoError(t, env.cache.RefreshBlogs(ctx))

	first, ok := env.cache.Blogs(ctx)
	require.True(t, ok)
	first[0].Title = "mutated"

	second, ok := env.cache.Blogs(ctx)
	require.True(t, ok)
	require.Equal(t, "original", second[0].Title)
}

func TestRefreshAllAndEvict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "alice", models.RoleUser)

	require.NoError(t, env.cache.RefreshAll(ctx))
	status := env.cache.Status(ctx)
	require.Equal(t, 600, status.TTLSeconds)
	for _, key := range status.Keys {
		require.True(t, key.Live, key.Key)
	}

	require.NoError(t, env.cache.Evict(ctx, CollectionBlogs))
	_, ok := env.cache.Blogs(ctx)
	require.False(t, ok)
	_, ok = env.cache.Users(ctx)
	require.True(t, ok)

	require.ErrorIs(t, env.cache.Evict(ctx, "posts"), ErrUnknownCollection)
	require.ErrorIs(t, env.cache.Refresh(ctx, "posts"), ErrUnknownCollection)
}

func TestRefreshSeesWritesCommittedBeforeTheCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.seedUser(t, "alice", models.RoleUser)
	require.NoError(t, env.cache.RefreshBlogs(ctx))

	env.seedBlog(t, author, "late", models.StatePublished)
	require.NoError(t, env.cache.RefreshBlogs(ctx))

	blogs, ok := env.cache.Blogs(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"late"}, blogTitles(blogs))
}

func TestRefreshGateCoalescesWaitingCallers(t *testing.T) {
	var gate refreshGate
	var loads atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = gate.run(func() error {
			loads.Add(1)
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	const waiters = 8
	var wg sync.WaitGroup
	coalesced := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := gate.run(func() error {
				loads.Add(1)
				return nil
			})
			if err == nil {
				coalesced <- ok
			}
		}()
	}

	require.Eventually(t, func() bool { return gate.requested.Load() == waiters+1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(coalesced)

	// The in-flight load began before the waiters asked, so exactly one of
	// them reloads and the rest ride on it.
	require.EqualValues(t, 2, loads.Load())
	var skipped int
	for ok := range coalesced {
		if ok {
			skipped++
		}
	}
	require.Equal(t, waiters-1, skipped)
}

func TestRefreshGateRetriesAfterFailure(t *testing.T) {
	var gate refreshGate
	boom := errors.New("boom")

	_, err := gate.run(func() error { return boom })
	require.ErrorIs(t, err, boom)

	var ran bool
	coalesced, err := gate.run(func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, coalesced)
	require.True(t, ran)
}

func TestCountBlogsSplitsToday(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.Local)
	svc, err := NewCacheService(env.db, cache.NewSnapshots(env.store, 0), WithCacheClock(func() time.Time { return now }))
	require.NoError(t, err)

	author := env.seedUser(t, "alice", models.RoleUser)
	old := env.seedBlog(t, author, "yesterday", models.StatePublished)
	require.NoError(t, env.db.Model(old).UpdateColumn("created_at", now.Add(-20*time.Hour)).Error)
	fresh := env.seedBlog(t, author, "today", models.StatePublished)
	require.NoError(t, env.db.Model(fresh).UpdateColumn("created_at", now.Add(-time.Hour)).Error)

	counts, err := svc.CountBlogs(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts.Today)
	require.EqualValues(t, 2, counts.Total)

	total, ok := svc.TotalBlogs(ctx)
	require.True(t, ok)
	require.EqualValues(t, 2, total)
}

func TestCountUsers(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "root", models.RoleAdmin)

	total, err := env.cache.CountUsers(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}
