package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "lotledger/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderSessionID = "X-Session-ID"
)

// Actor attaches the acting user to the request context. Authentication
// happens upstream; the gateway forwards the authenticated user id in
// X-Actor-ID. Requests without it act as the system actor.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(HeaderActorID); userID != "" {
			ctx := appctx.WithActor(c.Request.Context(), &appctx.Actor{
				UserID:    userID,
				SessionID: c.GetHeader(HeaderSessionID),
			})
			c.Request = c.Request.WithContext(ctx)
			c.Set("actor_id", userID)
		}
		c.Next()
	}
}
