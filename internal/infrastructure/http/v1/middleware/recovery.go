// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/infrastructure/http/v1/dto"
	"lotledger/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// Logs stack trace but never exposes internal details to client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", r,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", r)))
				// ErrorHandler sits inside this middleware and was unwound by
				// the panic, so the response is written here.
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:    apperror.CodeInternal,
					Message: "Internal server error",
					Details: map[string]any{"request_id": c.GetString("request_id")},
				})
			}
		}()
		c.Next()
	}
}
