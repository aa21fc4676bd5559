package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/app"
	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	iauth "github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/handlers"
	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/services"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Store     cache.Store
	Cache     *services.CacheService
	Blogs     *services.BlogService
	Users     *services.UserService
	Auth      *services.AuthService
	Schedule  *services.ScheduleService
	Scheduler *maintenance.Scheduler
	RateStore middleware.RateStore
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Cache == nil:
		return fmt.Errorf("cache service must be provided")
	case d.Blogs == nil:
		return fmt.Errorf("blog service must be provided")
	case d.Users == nil:
		return fmt.Errorf("user service must be provided")
	case d.Auth == nil:
		return fmt.Errorf("auth service must be provided")
	case d.Schedule == nil:
		return fmt.Errorf("schedule service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))

	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	r.GET("/health", handlers.Health(deps.DB, deps.Store))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerAuthRoutes(r, api, handlers.NewAuthHandler(deps.Auth))
	registerBlogRoutes(api, handlers.NewBlogHandler(deps.Blogs))
	registerUserRoutes(api, handlers.NewUserHandler(deps.Users))
	registerCacheRoutes(api, handlers.NewCacheHandler(deps.Cache))

	var jobs handlers.JobLister
	if deps.Scheduler != nil {
		jobs = deps.Scheduler
	}
	registerConfigRoutes(api, handlers.NewConfigHandler(deps.Schedule, jobs))

	return r, nil
}
