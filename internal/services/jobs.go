package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	"github.com/charlesng35/blogdesk/pkg/logger"
)

// Fixed cadences of the housekeeping jobs.
const (
	PurgeVerificationsSpec = "@daily"
	PurgeCacheEntriesSpec  = "@hourly"
)

// cachePurger is implemented by cache stores that keep expired rows around.
type cachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// JobDependencies carries what the periodic jobs operate on.
type JobDependencies struct {
	DB       *gorm.DB
	Cache    *CacheService
	Schedule *ScheduleService
	// Store is the snapshot backend; it is purged periodically when it
	// supports purging.
	Store any
	Now   func() time.Time
}

// RegisterJobs registers the cache refresh and counting jobs at the effective
// schedule, plus the housekeeping jobs, on sched.
func RegisterJobs(ctx context.Context, sched *maintenance.Scheduler, deps JobDependencies) (*Schedule, error) {
	if sched == nil {
		return nil, errors.New("jobs: scheduler is required")
	}
	if deps.DB == nil || deps.Cache == nil || deps.Schedule == nil {
		return nil, errors.New("jobs: db, cache and schedule services are required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := logger.WithModule("jobs")

	schedule, err := deps.Schedule.Effective(ctx)
	if err != nil {
		log.Warn("load stored schedule, using defaults", zap.Error(err))
		defaults := deps.Schedule.Defaults()
		schedule = &defaults
	}
	if err := validateSchedule(*schedule); err != nil {
		log.Warn("stored schedule is invalid, using defaults", zap.Error(err))
		defaults := deps.Schedule.Defaults()
		schedule = &defaults
	}

	tasks := map[string]maintenance.Task{
		maintenance.JobRefreshCache: deps.Cache.RefreshAll,
		maintenance.JobCountBlogs: func(ctx context.Context) error {
			_, err := deps.Cache.CountBlogs(ctx)
			return err
		},
		maintenance.JobCountUsers: func(ctx context.Context) error {
			if err := deps.Cache.RefreshUsers(ctx); err != nil {
				return err
			}
			_, err := deps.Cache.CountUsers(ctx)
			return err
		},
	}
	for id, spec := range schedule.Specs() {
		if err := sched.Register(id, spec, tasks[id]); err != nil {
			return nil, err
		}
	}

	if err := sched.Register(maintenance.JobPurgeVerifications, PurgeVerificationsSpec, func(ctx context.Context) error {
		removed, err := maintenance.PurgeVerificationCodes(ctx, deps.DB, now())
		if err == nil && removed > 0 {
			log.Info("expired verification codes purged", zap.Int64("count", removed))
		}
		return err
	}); err != nil {
		return nil, err
	}

	if purger, ok := deps.Store.(cachePurger); ok {
		if err := sched.Register(maintenance.JobPurgeCacheEntries, PurgeCacheEntriesSpec, func(ctx context.Context) error {
			removed, err := purger.Purge(ctx)
			if err == nil && removed > 0 {
				log.Debug("expired cache entries purged", zap.Int64("count", removed))
			}
			return err
		}); err != nil {
			return nil, err
		}
	}

	return schedule, nil
}

func validateSchedule(schedule Schedule) error {
	var errs []error
	for _, spec := range schedule.Specs() {
		errs = append(errs, maintenance.ValidateSpec(spec))
	}
	return errors.Join(errs...)
}
