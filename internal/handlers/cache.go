package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/services"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// CacheHandler exposes manual snapshot maintenance.
type CacheHandler struct {
	cache *services.CacheService
}

// NewCacheHandler constructs a CacheHandler.
func NewCacheHandler(cache *services.CacheService) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// RefreshBlogs reloads the blog snapshot.
//
// POST /api/cache/blogs
func (h *CacheHandler) RefreshBlogs(c *gin.Context) {
	if err := h.cache.RefreshBlogs(requestContext(c)); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Cache updated successfully.", nil)
}

// RefreshUsers reloads the user snapshot.
//
// POST /api/cache/users
func (h *CacheHandler) RefreshUsers(c *gin.Context) {
	if err := h.cache.RefreshUsers(requestContext(c)); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Cache updated successfully.", nil)
}

// Evict drops a collection's snapshot so the next read repopulates it.
//
// DELETE /api/cache/:collection
func (h *CacheHandler) Evict(c *gin.Context) {
	if err := h.cache.Evict(requestContext(c), c.Param("collection")); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Cache cleared", nil)
}

// Status reports which snapshot keys are live.
//
// GET /api/cache/status
func (h *CacheHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, h.cache.Status(requestContext(c)))
}
