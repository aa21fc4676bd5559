package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	"github.com/charlesng35/blogdesk/internal/database/testutil"
	"github.com/charlesng35/blogdesk/internal/models"
)

type recordingScheduler struct {
	calls []map[string]string
	fail  error
}

func (r *recordingScheduler) ReconfigureAll(specs map[string]string) error {
	r.calls = append(r.calls, specs)
	return r.fail
}

var testDefaults = Schedule{
	UpdateCache:     "*/10 * * * *",
	UpdateCountBlog: "*/10 * * * *",
	UpdateCountUser: "*/10 * * * *",
}

func TestScheduleEffectiveFallsBackToDefaults(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewScheduleService(db, &recordingScheduler{}, testDefaults)
	require.NoError(t, err)

	effective, err := svc.Effective(context.Background())
	require.NoError(t, err)
	require.Equal(t, ScheduleDefault, effective.Source)
	require.Equal(t, "*/10 * * * *", effective.UpdateCache)
}

func TestNewScheduleServiceRejectsInvalidDefaults(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, err := NewScheduleService(db, &recordingScheduler{}, Schedule{UpdateCache: "bad"})
	require.Error(t, err)
}

func TestScheduleReplace(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sched := &recordingScheduler{}
	svc, err := NewScheduleService(db, sched, testDefaults)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Replace(ctx, Schedule{UpdateCache: "* * * * *"})
	require.ErrorIs(t, err, ErrScheduleIncomplete)
	require.Equal(t, "Please fill all input !!", err.Error())

	_, err = svc.Replace(ctx, Schedule{
		UpdateCache:     "* * * * *",
		UpdateCountBlog: "61 * * * *",
		UpdateCountUser: "@hourly",
	})
	require.ErrorIs(t, err, ErrInvalidSchedule)
	require.Empty(t, sched.calls, "nothing is rescheduled when any cadence is invalid")

	var stored int64
	require.NoError(t, db.Model(&models.ScheduleConfig{}).Count(&stored).Error)
	require.Zero(t, stored)

	next, err := svc.Replace(ctx, Schedule{
		UpdateCache:     " */5 * * * * ",
		UpdateCountBlog: "0 * * * *",
		UpdateCountUser: "@every 30s",
	})
	require.NoError(t, err)
	require.Equal(t, ScheduleStored, next.Source)
	require.Equal(t, "*/5 * * * *", next.UpdateCache)
	require.Len(t, sched.calls, 1)
	require.Equal(t, "@every 30s", sched.calls[0][maintenance.JobCountUsers])

	_, err = svc.Replace(ctx, Schedule{
		UpdateCache:     "0 0 * * *",
		UpdateCountBlog: "0 0 * * *",
		UpdateCountUser: "0 0 * * *",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.ScheduleConfig{}).Count(&stored).Error)
	require.EqualValues(t, 1, stored, "only one schedule record is kept")

	effective, err := svc.Effective(ctx)
	require.NoError(t, err)
	require.Equal(t, "0 0 * * *", effective.UpdateCountBlog)
}

func TestScheduleReplaceKeepsRecordWhenReschedulingFails(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	// Jobs were never registered, so the scheduler refuses every cadence.
	svc, err := NewScheduleService(db, maintenance.NewScheduler(), testDefaults)
	require.NoError(t, err)
	_, err = svc.Replace(ctx, Schedule{
		UpdateCache:     "*/5 * * * *",
		UpdateCountBlog: "@hourly",
		UpdateCountUser: "@hourly",
	})
	require.ErrorIs(t, err, maintenance.ErrUnknownJob)

	var stored int64
	require.NoError(t, db.Model(&models.ScheduleConfig{}).Count(&stored).Error)
	require.Zero(t, stored)

	sched := &recordingScheduler{}
	svc, err = NewScheduleService(db, sched, testDefaults)
	require.NoError(t, err)
	_, err = svc.Replace(ctx, Schedule{
		UpdateCache:     "0 * * * *",
		UpdateCountBlog: "0 * * * *",
		UpdateCountUser: "0 * * * *",
	})
	require.NoError(t, err)

	sched.fail = errors.New("scheduler stopped")
	_, err = svc.Replace(ctx, Schedule{
		UpdateCache:     "*/1 * * * *",
		UpdateCountBlog: "*/1 * * * *",
		UpdateCountUser: "*/1 * * * *",
	})
	require.Error(t, err)

	effective, err := svc.Effective(ctx)
	require.NoError(t, err)
	require.Equal(t, ScheduleStored, effective.Source)
	require.Equal(t, "0 * * * *", effective.UpdateCache)
	require.NoError(t, db.Model(&models.ScheduleConfig{}).Count(&stored).Error)
	require.EqualValues(t, 1, stored)
}
