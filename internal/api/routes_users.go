package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/handlers"
	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/models"
)

func registerUserRoutes(api *gin.RouterGroup, h *handlers.UserHandler) {
	users := api.Group("/users")
	{
		users.GET("", middleware.RequireRole(models.RoleAdmin), h.List)
		users.POST("", middleware.RequireRole(models.RoleAdmin), h.Create)
		users.GET("/:id", h.Get)
		users.GET("/:id/avatar", h.Avatar)
		users.PUT("/:id", h.Update)
		users.DELETE("/:id", h.Delete)
	}
}
