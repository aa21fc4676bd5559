package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/services"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actorFromContext returns the caller identity placed on the context by the
// auth middleware.
func actorFromContext(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:   c.GetString(middleware.CtxUserIDKey),
		Username: c.GetString(middleware.CtxUsernameKey),
		Role:     c.GetString(middleware.CtxRoleKey),
	}
}
