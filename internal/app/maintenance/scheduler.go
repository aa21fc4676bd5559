package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/metrics"
)

// Job identifiers used by the service.
const (
	JobRefreshCache        = "cache.refresh"
	JobCountBlogs          = "count.blogs"
	JobCountUsers          = "count.users"
	JobPurgeVerifications  = "cleanup.verification_codes"
	JobPurgeCacheEntries   = "cleanup.cache_entries"
	defaultJobTimeout      = 5 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

var (
	// ErrEmptySpec is returned for a blank cadence.
	ErrEmptySpec = errors.New("scheduler: cadence is empty")
	// ErrInvalidSpec is returned for a cadence the parser rejects.
	ErrInvalidSpec = errors.New("scheduler: invalid cadence")
	// ErrUnknownJob is returned when reconfiguring a job that was never registered.
	ErrUnknownJob = errors.New("scheduler: unknown job")
)

// Standard five-field expressions, an optional leading seconds field and
// descriptors such as @hourly or @every 5m are accepted.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec reports whether spec is a usable cadence. It has no side effects.
func ValidateSpec(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ErrEmptySpec
	}
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, spec, err)
	}
	return nil
}

// Task is the unit of work run on every tick.
type Task func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	ID   string    `json:"id"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next,omitempty"`
	Prev time.Time `json:"prev,omitempty"`
}

type job struct {
	id    string
	spec  string
	task  Task
	entry cron.EntryID
}

// Scheduler runs named periodic tasks and lets their cadence be replaced at
// runtime. Task failures and panics are logged and never stop later ticks.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*job
	log     *zap.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance. It must use a parser that
// accepts every cadence ValidateSpec accepts.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithJobTimeout bounds each task run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLocation evaluates cadences in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = newCron(loc)
		}
	}
}

func newCron(loc *time.Location) *cron.Cron {
	return cron.New(
		cron.WithParser(specParser),
		cron.WithLocation(loc),
		cron.WithLogger(cron.DiscardLogger),
	)
}

// NewScheduler constructs an idle scheduler. Call Start to begin ticking.
func NewScheduler(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		jobs:    make(map[string]*job),
		log:     logger.WithModule("scheduler"),
		timeout: defaultJobTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = newCron(time.Local)
	}
	return s
}

// Register adds a job, replacing any job already registered under id.
func (s *Scheduler) Register(id, spec string, task Task) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("scheduler: job id is required")
	}
	if task == nil {
		return errors.New("scheduler: task is required")
	}
	if err := ValidateSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[id]; ok {
		s.cron.Remove(existing.entry)
		delete(s.jobs, id)
	}
	return s.schedule(&job{id: id, spec: strings.TrimSpace(spec), task: task})
}

// Cancel removes the job registered under id and reports whether it existed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[id]
	if !ok {
		return false
	}
	s.cron.Remove(existing.entry)
	delete(s.jobs, id)
	s.log.Info("job cancelled", zap.String("job", id))
	return true
}

// Reconfigure replaces the cadence of a registered job. On error the job keeps
// its previous cadence.
func (s *Scheduler) Reconfigure(id, spec string) error {
	return s.ReconfigureAll(map[string]string{id: spec})
}

// ReconfigureAll replaces several cadences at once. Every cadence and job id is
// checked before any job is touched, so either all change or none do.
func (s *Scheduler) ReconfigureAll(specs map[string]string) error {
	var errs error
	for _, id := range sortedIDs(specs) {
		if err := ValidateSpec(specs[id]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if errs != nil {
		return errs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range sortedIDs(specs) {
		if _, ok := s.jobs[id]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownJob, id)
		}
	}

	for _, id := range sortedIDs(specs) {
		spec := strings.TrimSpace(specs[id])
		current := s.jobs[id]
		if current.spec == spec {
			continue
		}
		s.cron.Remove(current.entry)
		delete(s.jobs, id)
		if err := s.schedule(&job{id: id, spec: spec, task: current.task}); err != nil {
			_ = s.schedule(current)
			return err
		}
	}
	return nil
}

// Spec returns the cadence of id.
func (s *Scheduler) Spec(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[id]
	if !ok {
		return "", false
	}
	return current.spec, true
}

// Jobs lists registered jobs ordered by id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, current := range s.jobs {
		entry := s.cron.Entry(current.entry)
		out = append(out, JobInfo{ID: current.id, Spec: current.spec, Next: entry.Next, Prev: entry.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunNow executes the task of id synchronously with the same safeguards as a tick.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.Lock()
	current, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownJob, id)
	}
	return s.execute(ctx, current.id, current.task)
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.Jobs())))
}

// Stop halts ticking and waits for running tasks, up to ctx or a default
// timeout. Tasks still running afterwards see their context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

func (s *Scheduler) schedule(j *job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		_ = s.execute(s.ctx, j.id, j.task)
	}))
	entry, err := s.cron.AddJob(j.spec, wrapped)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, j.spec, err)
	}
	j.entry = entry
	s.jobs[j.id] = j
	s.log.Info("job scheduled", zap.String("job", j.id), zap.String("spec", j.spec))
	return nil
}

func (s *Scheduler) execute(parent context.Context, id string, task Task) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.ScheduledJobRuns.WithLabelValues(id, "panic").Inc()
			s.log.Error("job panicked", zap.String("job", id), zap.Any("panic", r))
			err = fmt.Errorf("scheduler: job %s panicked: %v", id, r)
		}
	}()

	started := time.Now()
	if err = task(ctx); err != nil {
		metrics.ScheduledJobRuns.WithLabelValues(id, "failure").Inc()
		s.log.Warn("job failed", zap.String("job", id), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return err
	}
	metrics.ScheduledJobRuns.WithLabelValues(id, "success").Inc()
	s.log.Debug("job completed", zap.String("job", id), zap.Duration("elapsed", time.Since(started)))
	return nil
}

func sortedIDs(specs map[string]string) []string {
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
