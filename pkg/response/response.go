package response

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/blogdesk/pkg/errors"
)

// Response is the envelope every JSON payload is written in. Success is
// false for errors and for soft notices; only errors carry Error.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo is the client visible part of an AppError.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta describes one page of a listing. Totals are always present so a
// client can tell an empty listing from a missing field.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func write(c *gin.Context, status int, body Response) {
	c.JSON(status, body)
}

// Success writes data under a success envelope.
func Success(c *gin.Context, status int, data any) {
	write(c, status, Response{Success: true, Data: data})
}

// SuccessWithMessage writes data with a human readable message.
func SuccessWithMessage(c *gin.Context, status int, message string, data any) {
	write(c, status, Response{Success: true, Message: message, Data: data})
}

// SuccessWithMeta writes one page of a listing.
func SuccessWithMeta(c *gin.Context, status int, data any, meta *Meta) {
	write(c, status, Response{Success: true, Data: data, Meta: meta})
}

// Notice answers 200 with success=false and a message, for requests that
// are well formed but cannot be served, such as a page past the last one.
func Notice(c *gin.Context, message string) {
	write(c, http.StatusOK, Response{Message: message})
}

// Error writes the envelope for err. Errors that are not AppErrors are
// reported as a generic 500 so internals never reach the client.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}
	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	write(c, status, Response{
		Error: &ErrorInfo{Code: appErr.Code, Message: appErr.Message},
	})
}

// Attachment sends raw bytes as a download named filename. Only the base
// name of filename is used.
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(filename)))
	c.Data(http.StatusOK, contentType, data)
}
