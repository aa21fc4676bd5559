package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/models"
)

func TestRegisterJobsUsesStoredSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sched := maintenance.NewScheduler()
	scheduleSvc, err := NewScheduleService(env.db, sched, testDefaults)
	require.NoError(t, err)

	effective, err := RegisterJobs(ctx, sched, JobDependencies{
		DB:       env.db,
		Cache:    env.cache,
		Schedule: scheduleSvc,
		Store:    env.store,
	})
	require.NoError(t, err)
	require.Equal(t, ScheduleDefault, effective.Source)
	require.Len(t, sched.Jobs(), 4, "memory stores need no purge job")

	_, err = scheduleSvc.Replace(ctx, Schedule{
		UpdateCache:     "*/2 * * * *",
		UpdateCountBlog: "@hourly",
		UpdateCountUser: "@daily",
	})
	require.NoError(t, err)
	spec, ok := sched.Spec(maintenance.JobRefreshCache)
	require.True(t, ok)
	require.Equal(t, "*/2 * * * *", spec)
}

func TestRegisterJobsPurgesDatabaseStore(t *testing.T) {
	env := newTestEnv(t)
	sched := maintenance.NewScheduler()
	scheduleSvc, err := NewScheduleService(env.db, sched, testDefaults)
	require.NoError(t, err)
	store, err := cache.NewDatabaseStore(env.db, nil)
	require.NoError(t, err)

	_, err = RegisterJobs(context.Background(), sched, JobDependencies{
		DB:       env.db,
		Cache:    env.cache,
		Schedule: scheduleSvc,
		Store:    store,
	})
	require.NoError(t, err)

	_, ok := sched.Spec(maintenance.JobPurgeCacheEntries)
	require.True(t, ok)
	require.NoError(t, sched.RunNow(context.Background(), maintenance.JobPurgeCacheEntries))
}

func TestRefreshJobReloadsSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sched := maintenance.NewScheduler()
	scheduleSvc, err := NewScheduleService(env.db, sched, testDefaults)
	require.NoError(t, err)
	_, err = RegisterJobs(ctx, sched, JobDependencies{
		DB:       env.db,
		Cache:    env.cache,
		Schedule: scheduleSvc,
		Store:    env.store,
		Now:      time.Now,
	})
	require.NoError(t, err)

	author := env.seedUser(t, "alice", models.RoleUser)
	env.seedBlog(t, author, "scheduled", models.StatePublished)

	require.NoError(t, sched.RunNow(ctx, maintenance.JobRefreshCache))
	blogs, ok := env.cache.Blogs(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"scheduled"}, blogTitles(blogs))

	require.NoError(t, sched.RunNow(ctx, maintenance.JobCountUsers))
	total, ok := env.cache.TotalUsers(ctx)
	require.True(t, ok)
	require.EqualValues(t, 1, total)
}
