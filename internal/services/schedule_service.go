package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	"github.com/charlesng35/blogdesk/internal/database"
	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/pkg/logger"
)

// Schedule sources.
const (
	ScheduleStored  = "stored"
	ScheduleDefault = "default"
)

// Schedule holds the cadence of each configurable job.
type Schedule struct {
	UpdateCache     string `json:"update_cache"`
	UpdateCountBlog string `json:"update_count_blog"`
	UpdateCountUser string `json:"update_count_user"`
	Source          string `json:"source,omitempty"`
}

// Specs maps the schedule onto scheduler job identifiers.
func (s Schedule) Specs() map[string]string {
	return map[string]string{
		maintenance.JobRefreshCache: s.UpdateCache,
		maintenance.JobCountBlogs:   s.UpdateCountBlog,
		maintenance.JobCountUsers:   s.UpdateCountUser,
	}
}

func (s Schedule) trimmed() Schedule {
	return Schedule{
		UpdateCache:     strings.TrimSpace(s.UpdateCache),
		UpdateCountBlog: strings.TrimSpace(s.UpdateCountBlog),
		UpdateCountUser: strings.TrimSpace(s.UpdateCountUser),
		Source:          s.Source,
	}
}

// JobScheduler applies a set of cadences atomically.
type JobScheduler interface {
	ReconfigureAll(specs map[string]string) error
}

// ScheduleService reads and replaces the persisted job schedule.
type ScheduleService struct {
	db        *gorm.DB
	scheduler JobScheduler
	defaults  Schedule
	log       *zap.Logger
}

// NewScheduleService constructs a ScheduleService. defaults applies until an
// admin stores a schedule.
func NewScheduleService(db *gorm.DB, scheduler JobScheduler, defaults Schedule) (*ScheduleService, error) {
	if db == nil {
		return nil, errors.New("schedule service: db is required")
	}
	if scheduler == nil {
		return nil, errors.New("schedule service: scheduler is required")
	}
	defaults = defaults.trimmed()
	defaults.Source = ScheduleDefault
	for job, spec := range defaults.Specs() {
		if err := maintenance.ValidateSpec(spec); err != nil {
			return nil, fmt.Errorf("schedule service: default cadence for %s: %w", job, err)
		}
	}
	return &ScheduleService{
		db:        db,
		scheduler: scheduler,
		defaults:  defaults,
		log:       logger.WithModule("schedule"),
	}, nil
}

// Defaults returns the configured fallback schedule.
func (s *ScheduleService) Defaults() Schedule {
	return s.defaults
}

// Effective returns the stored schedule, or the defaults when none is stored.
func (s *ScheduleService) Effective(ctx context.Context) (*Schedule, error) {
	record, err := database.LoadScheduleConfig(ensureContext(ctx), s.db)
	if err != nil {
		return nil, fmt.Errorf("schedule service: %w", err)
	}
	if record == nil {
		defaults := s.defaults
		return &defaults, nil
	}
	return &Schedule{
		UpdateCache:     record.UpdateCache,
		UpdateCountBlog: record.UpdateCountBlog,
		UpdateCountUser: record.UpdateCountUser,
		Source:          ScheduleStored,
	}, nil
}

// Replace validates every cadence, reschedules the jobs and persists the
// schedule. Nothing changes unless all three cadences are valid and the
// scheduler accepts them.
func (s *ScheduleService) Replace(ctx context.Context, input Schedule) (*Schedule, error) {
	ctx = ensureContext(ctx)
	next := input.trimmed()
	if next.UpdateCache == "" || next.UpdateCountBlog == "" || next.UpdateCountUser == "" {
		return nil, ErrScheduleIncomplete
	}

	var invalid []string
	fields := map[string]string{
		"update_cache":      next.UpdateCache,
		"update_count_blog": next.UpdateCountBlog,
		"update_count_user": next.UpdateCountUser,
	}
	for _, field := range []string{"update_cache", "update_count_blog", "update_count_user"} {
		if err := maintenance.ValidateSpec(fields[field]); err != nil {
			invalid = append(invalid, field)
		}
	}
	if len(invalid) > 0 {
		return nil, ErrInvalidSchedule.WithInternal(fmt.Errorf("invalid cadence for %s", strings.Join(invalid, ", ")))
	}

	record := &models.ScheduleConfig{
		UpdateCache:     next.UpdateCache,
		UpdateCountBlog: next.UpdateCountBlog,
		UpdateCountUser: next.UpdateCountUser,
	}
	previous, err := s.Effective(ctx)
	if err != nil {
		return nil, err
	}

	// The record commits only if the jobs accepted the new cadences.
	rescheduled := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ReplaceScheduleConfig(ctx, tx, record); err != nil {
			return err
		}
		if err := s.scheduler.ReconfigureAll(next.Specs()); err != nil {
			return fmt.Errorf("reschedule: %w", err)
		}
		rescheduled = true
		return nil
	})
	if err != nil {
		if rescheduled {
			if restoreErr := s.scheduler.ReconfigureAll(previous.Specs()); restoreErr != nil {
				s.log.Error("restore previous schedule failed", zap.Error(restoreErr))
			}
		}
		return nil, fmt.Errorf("schedule service: %w", err)
	}

	next.Source = ScheduleStored
	s.log.Info("schedule replaced",
		zap.String("update_cache", next.UpdateCache),
		zap.String("update_count_blog", next.UpdateCountBlog),
		zap.String("update_count_user", next.UpdateCountUser),
	)
	return &next, nil
}
