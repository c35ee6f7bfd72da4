package v1

import (
	"github.com/gin-gonic/gin"
)

// PlannedRouteHandler defines the planned-transaction endpoints.
type PlannedRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Complete(c *gin.Context)
}

// RegisterPlannedRoutes registers CRUD plus workflow transition routes.
//
// Usage:
//
//	handler := handlers.NewPlannedHandler(base, services.Planned)
//	RegisterPlannedRoutes(v1.Group("/planned"), handler)
func RegisterPlannedRoutes(group *gin.RouterGroup, handler PlannedRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/approve", handler.Approve)
	group.POST("/:id/reject", handler.Reject)
	group.POST("/:id/complete", handler.Complete)
}
