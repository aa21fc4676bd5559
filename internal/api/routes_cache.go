package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/handlers"
	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/models"
)

func registerCacheRoutes(api *gin.RouterGroup, h *handlers.CacheHandler) {
	admin := middleware.RequireRole(models.RoleAdmin)

	caches := api.Group("/cache")
	{
		caches.POST("/blogs", middleware.RequireRole(models.RoleAdmin, models.RoleUser), h.RefreshBlogs)
		caches.POST("/users", admin, h.RefreshUsers)
		caches.GET("/status", admin, h.Status)
		caches.DELETE("/:collection", admin, h.Evict)
	}
}

func registerConfigRoutes(api *gin.RouterGroup, h *handlers.ConfigHandler) {
	config := api.Group("/admin/config")
	config.Use(middleware.RequireRole(models.RoleAdmin))
	{
		config.GET("", h.Get)
		config.POST("", h.Update)
	}
}
