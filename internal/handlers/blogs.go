package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/blogdesk/internal/services"
	appErrors "github.com/charlesng35/blogdesk/pkg/errors"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// BlogHandler exposes blog listing, authoring, voting and transfer.
type BlogHandler struct {
	blogs *services.BlogService
}

// NewBlogHandler constructs a BlogHandler.
func NewBlogHandler(blogs *services.BlogService) *BlogHandler {
	return &BlogHandler{blogs: blogs}
}

type createBlogRequest struct {
	Title   string `json:"title" validate:"max=255"`
	Content string `json:"content"`
	State   *int   `json:"state"`
}

type updateBlogRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=255"`
	Content *string `json:"content"`
	State   *int    `json:"state"`
}

// List returns one page of visible blogs.
//
// GET /api/blogs?page=1&page_size=5&title=go
func (h *BlogHandler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.blogs.List(requestContext(c), actorFromContext(c), services.ListBlogsOptions{
		Page:     page,
		PageSize: parseIntQuery(c, "page_size", 0),
		Title:    c.Query("title"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result, &response.Meta{
		Page:       result.Page,
		PerPage:    result.PageSize,
		Total:      int(result.Matched),
		TotalPages: result.TotalPages,
	})
}

// Get returns one blog.
//
// GET /api/blogs/:id
func (h *BlogHandler) Get(c *gin.Context) {
	blog, err := h.blogs.Get(requestContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, blog)
}

// Create publishes a blog authored by the caller.
//
// POST /api/blogs
func (h *BlogHandler) Create(c *gin.Context) {
	var req createBlogRequest
	if !bindAndValidate(c, &req) {
		return
	}
	blog, err := h.blogs.Create(requestContext(c), actorFromContext(c), services.CreateBlogInput{
		Title:   req.Title,
		Content: req.Content,
		State:   req.State,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, "Blog created", blog)
}

// Update edits a blog owned by the caller, or any blog for admins.
//
// PUT /api/blogs/:id
func (h *BlogHandler) Update(c *gin.Context) {
	var req updateBlogRequest
	if !bindAndValidate(c, &req) {
		return
	}
	blog, err := h.blogs.Update(requestContext(c), actorFromContext(c), c.Param("id"), services.UpdateBlogInput{
		Title:   req.Title,
		Content: req.Content,
		State:   req.State,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Blog updated", blog)
}

// Delete removes a blog.
//
// DELETE /api/blogs/:id
func (h *BlogHandler) Delete(c *gin.Context) {
	if err := h.blogs.Delete(requestContext(c), actorFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Blog deleted", nil)
}

// DeleteAll removes every blog.
//
// DELETE /api/blogs
func (h *BlogHandler) DeleteAll(c *gin.Context) {
	removed, err := h.blogs.DeleteAll(requestContext(c), actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "All blogs deleted", gin.H{"deleted": removed})
}

// Like toggles the caller's like on a blog.
//
// POST /api/blogs/:id/like
func (h *BlogHandler) Like(c *gin.Context) {
	result, err := h.blogs.Like(requestContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, result.Message, result.Blog)
}

// Dislike toggles the caller's dislike on a blog.
//
// POST /api/blogs/:id/dislike
func (h *BlogHandler) Dislike(c *gin.Context) {
	result, err := h.blogs.Dislike(requestContext(c), actorFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, result.Message, result.Blog)
}

// Export downloads the visible blogs as a spreadsheet.
//
// GET /api/blogs/export?format=csv
func (h *BlogHandler) Export(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", services.FormatCSV)))
	file, err := h.blogs.Export(requestContext(c), actorFromContext(c), format)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Import loads blogs from an uploaded csv or xlsx file.
//
// POST /api/blogs/import (multipart field "file")
func (h *BlogHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("unable to read file"))
		return
	}
	defer file.Close()

	summary, err := h.blogs.Import(requestContext(c), actorFromContext(c), header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, fmt.Sprintf("Imported %d blogs", summary.Imported), summary)
}
