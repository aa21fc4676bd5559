package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/pkg/response"
)

const healthTimeout = 2 * time.Second

// Health reports database reachability and, when the cache backend supports
// it, cache reachability.
func Health(db *gorm.DB, store cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"database": "ok", "cache": "ok"}

		if err := pingDatabase(ctx, db); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = err.Error()
		}
		if pinger, ok := store.(cache.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks["cache"] = err.Error()
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		checks["status"] = state
		response.Success(c, status, checks)
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
