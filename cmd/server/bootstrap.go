package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/api"
	"github.com/charlesng35/blogdesk/internal/app"
	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	iauth "github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/database"
	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/services"
	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Store     cache.Store
	Cache     *services.CacheService
	Scheduler *maintenance.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, snapshot store, services,
// scheduled jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := ensureSecretsPresent(cfg); err != nil {
		return nil, err
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store, err = app.NewCacheStore(ctx, cfg.Cache, stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise cache store: %w", err)
	}
	log.Info("cache store ready",
		zap.String("backend", cfg.Cache.BackendName()),
		zap.Duration("ttl", cfg.Cache.EntryTTL()),
	)

	stack.Cache, err = services.NewCacheService(stack.DB, cache.NewSnapshots(stack.Store, cfg.Cache.EntryTTL()),
		services.WithBackendName(cfg.Cache.BackendName()),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise cache service: %w", err)
	}

	pageSize := services.WithBlogPageSize(cfg.Listing.PageSize, cfg.Listing.MaxPageSize)
	blogSvc, err := services.NewBlogService(stack.DB, stack.Cache, pageSize)
	if err != nil {
		return nil, fmt.Errorf("initialise blog service: %w", err)
	}
	userSvc, err := services.NewUserService(stack.DB, stack.Cache,
		services.WithUserPageSize(cfg.Listing.PageSize, cfg.Listing.MaxPageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	authOpts := []services.AuthServiceOption{
		services.WithVerificationTTL(cfg.Auth.VerificationCodeTTL()),
		services.WithAppName(cfg.Server.AppName),
	}
	if cfg.Email.SMTP.Enabled {
		mailer, mailErr := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if mailErr != nil {
			return nil, fmt.Errorf("initialise mailer: %w", mailErr)
		}
		authOpts = append(authOpts, services.WithMailer(mailer))
	} else {
		log.Warn("smtp disabled; verification codes will not be mailed")
	}
	authSvc, err := services.NewAuthService(stack.DB, userSvc, jwtSvc, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	stack.Scheduler = maintenance.NewScheduler()
	defaults := cfg.Schedule.ScheduleDefaults()
	scheduleSvc, err := services.NewScheduleService(stack.DB, stack.Scheduler, services.Schedule{
		UpdateCache:     defaults.UpdateCache,
		UpdateCountBlog: defaults.UpdateCountBlog,
		UpdateCountUser: defaults.UpdateCountUser,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise schedule service: %w", err)
	}

	effective, err := services.RegisterJobs(ctx, stack.Scheduler, services.JobDependencies{
		DB:       stack.DB,
		Cache:    stack.Cache,
		Schedule: scheduleSvc,
		Store:    stack.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	log.Info("jobs registered",
		zap.String("source", effective.Source),
		zap.String("update_cache", effective.UpdateCache),
		zap.String("update_count_blog", effective.UpdateCountBlog),
		zap.String("update_count_user", effective.UpdateCountUser),
	)

	if err := stack.Cache.RefreshAll(ctx); err != nil {
		log.Warn("initial cache warm-up failed", zap.Error(err))
	}
	stack.Scheduler.Start()

	stack.Router, err = api.NewRouter(cfg, api.Dependencies{
		DB:        stack.DB,
		JWT:       jwtSvc,
		Store:     stack.Store,
		Cache:     stack.Cache,
		Blogs:     blogSvc,
		Users:     userSvc,
		Auth:      authSvc,
		Schedule:  scheduleSvc,
		Scheduler: stack.Scheduler,
		RateStore: rateStoreFor(stack.Store),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// rateStoreFor shares rate limit counters through Redis when the snapshot
// store is Redis, and keeps them in process otherwise.
func rateStoreFor(store cache.Store) middleware.RateStore {
	if counter, ok := store.(middleware.WindowCounter); ok {
		return middleware.NewSharedRateStore(counter)
	}
	return middleware.NewMemoryRateStore(nil)
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		if err := s.Scheduler.Stop(ctx); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}

	if closer, ok := s.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn("cache store shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}
	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	admin := database.AdminSeed{
		Username: strings.TrimSpace(cfg.Admin.Username),
		Password: cfg.Admin.Password,
		Email:    strings.TrimSpace(cfg.Admin.Email),
	}
	if err := database.AutoMigrateAndSeed(db, admin); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		applyHostConfig(&dbCfg, cfg.Database.Postgres)
	case "mysql":
		applyHostConfig(&dbCfg, cfg.Database.MySQL)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func applyHostConfig(dbCfg *database.Config, host app.DBAuthConfig) {
	dbCfg.Host = strings.TrimSpace(host.Host)
	dbCfg.Port = host.Port
	dbCfg.Name = strings.TrimSpace(host.Database)
	dbCfg.User = strings.TrimSpace(host.Username)
	dbCfg.Password = host.Password
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
