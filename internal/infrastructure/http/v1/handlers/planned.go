package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lotledger/internal/domain/planned"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// PlannedHandler exposes the planned-transaction workflow.
type PlannedHandler struct {
	*BaseHandler
	workflow *planned.Workflow
}

// NewPlannedHandler creates a new planned-transaction handler.
func NewPlannedHandler(base *BaseHandler, workflow *planned.Workflow) *PlannedHandler {
	return &PlannedHandler{BaseHandler: base, workflow: workflow}
}

// List handles GET /planned
func (h *PlannedHandler) List(c *gin.Context) {
	filter := planned.ListFilter{
		Page:      h.Page(c),
		OnlyRoots: c.Query("onlyRoots") == "true",
	}

	var ok bool
	if filter.ItemID, ok = h.QueryID(c, "itemId"); !ok {
		return
	}
	if filter.LocationID, ok = h.QueryID(c, "locationId"); !ok {
		return
	}
	if filter.ParentPlannedID, ok = h.QueryID(c, "parentId"); !ok {
		return
	}
	if filter.ScheduledFrom, ok = h.QueryTime(c, "scheduledFrom"); !ok {
		return
	}
	if filter.ScheduledTo, ok = h.QueryTime(c, "scheduledTo"); !ok {
		return
	}
	if v := c.Query("type"); v != "" {
		t := planned.Type(v)
		filter.Type = &t
	}
	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, planned.Status(strings.TrimSpace(s)))
		}
	}

	result, err := h.workflow.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Create handles POST /planned
func (h *PlannedHandler) Create(c *gin.Context) {
	var req dto.CreatePlannedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.workflow.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /planned/:id
func (h *PlannedHandler) Get(c *gin.Context) {
	plannedID, ok := h.PathID(c)
	if !ok {
		return
	}

	p, err := h.workflow.Get(c.Request.Context(), plannedID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Update handles PUT /planned/:id
func (h *PlannedHandler) Update(c *gin.Context) {
	plannedID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.UpdatePlannedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.workflow.Update(c.Request.Context(), plannedID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Delete handles DELETE /planned/:id
func (h *PlannedHandler) Delete(c *gin.Context) {
	plannedID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.workflow.Delete(c.Request.Context(), plannedID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Approve handles POST /planned/:id/approve
func (h *PlannedHandler) Approve(c *gin.Context) {
	plannedID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.ApproveRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	p, err := h.workflow.Approve(c.Request.Context(), plannedID, req.ApproverID, req.Comment)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Reject handles POST /planned/:id/reject
func (h *PlannedHandler) Reject(c *gin.Context) {
	plannedID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.workflow.Reject(c.Request.Context(), plannedID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Complete handles POST /planned/:id/complete
func (h *PlannedHandler) Complete(c *gin.Context) {
	plannedID, ok := h.PathID(c)
	if !ok {
		return
	}
	var req dto.CompletePlannedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.workflow.Complete(c.Request.Context(), plannedID, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
