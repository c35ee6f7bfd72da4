// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// Page reads limit and offset query parameters.
func (h *BaseHandler) Page(c *gin.Context) domain.Page {
	return domain.Page{
		Limit:  h.ParseIntQuery(c, "limit", domain.DefaultLimit),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
}

// PathID parses the :id path parameter.
func (h *BaseHandler) PathID(c *gin.Context) (id.ID, bool) {
	parsed, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("id", c.Param("id")))
		return id.Nil(), false
	}
	return parsed, true
}

// QueryID parses an optional id query parameter. A malformed value fails
// the request.
func (h *BaseHandler) QueryID(c *gin.Context, key string) (*id.ID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	parsed, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+" format").WithDetail(key, raw))
		return nil, false
	}
	return &parsed, true
}

// QueryTime parses an optional RFC3339 query parameter.
func (h *BaseHandler) QueryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+" format, expected RFC3339").WithDetail(key, raw))
		return nil, false
	}
	return &parsed, true
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// List sends a paginated list.
func List[T any](c *gin.Context, res domain.ListResult[T]) {
	c.JSON(http.StatusOK, dto.ListResponse[T]{
		Items:      res.Items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}
