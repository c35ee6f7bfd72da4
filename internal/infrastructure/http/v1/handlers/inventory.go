package handlers

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/infrastructure/http/v1/dto"
)

// InventoryHandler exposes receive, issue and transfer.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Receive handles POST /inventory/receive
func (h *InventoryHandler) Receive(c *gin.Context) {
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Receive(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// Issue handles POST /inventory/issue
func (h *InventoryHandler) Issue(c *gin.Context) {
	var req dto.IssueRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Issue(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Transfer handles POST /inventory/transfer
func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Transfer(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Available handles GET /inventory/available?itemId=&locationId=
func (h *InventoryHandler) Available(c *gin.Context) {
	itemID, ok := h.QueryID(c, "itemId")
	if !ok {
		return
	}
	locationID, ok := h.QueryID(c, "locationId")
	if !ok {
		return
	}
	if itemID == nil || locationID == nil {
		h.Error(c, apperror.NewValidation("itemId and locationId are required"))
		return
	}

	available, err := h.service.Available(c.Request.Context(), *itemID, *locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AvailableResponse{
		ItemID:     itemID.String(),
		LocationID: locationID.String(),
		Available:  available.String(),
	})
}
