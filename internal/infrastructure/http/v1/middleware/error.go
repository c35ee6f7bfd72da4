package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/infrastructure/http/v1/dto"
	"lotledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		if appErr, ok := apperror.AsAppError(err); ok {
			switch {
			case apperror.IsExpected(err):
				logger.Info(ctx, "request rejected",
					"code", appErr.Code,
					"message", appErr.Message,
				)
			case appErr.Err != nil:
				logger.Error(ctx, "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			})
			return
		}

		logger.Error(ctx, "unhandled error",
			"error", err,
		)

		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{
				"request_id": c.GetString("request_id"),
			},
		})
	}
}
