package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/handlers"
	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/models"
)

func registerBlogRoutes(api *gin.RouterGroup, h *handlers.BlogHandler) {
	blogs := api.Group("/blogs")
	{
		blogs.GET("", h.List)
		blogs.POST("", h.Create)
		blogs.DELETE("", middleware.RequireRole(models.RoleAdmin), h.DeleteAll)

		blogs.GET("/export", h.Export)
		blogs.POST("/import", middleware.RequireRole(models.RoleAdmin), h.Import)

		blogs.GET("/:id", h.Get)
		blogs.PUT("/:id", h.Update)
		blogs.DELETE("/:id", h.Delete)
		blogs.POST("/:id/like", h.Like)
		blogs.POST("/:id/dislike", h.Dislike)
	}
}
