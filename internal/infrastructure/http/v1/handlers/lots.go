package handlers

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/core/apperror"
	"lotledger/internal/domain/lot"
)

// LotHandler exposes lot lookups for history and label reprint screens.
type LotHandler struct {
	*BaseHandler
	store *lot.Store
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, store *lot.Store) *LotHandler {
	return &LotHandler{BaseHandler: base, store: store}
}

// List handles GET /lots
func (h *LotHandler) List(c *gin.Context) {
	filter := lot.ListFilter{
		Page:         h.Page(c),
		IncludeEmpty: c.Query("includeEmpty") == "true",
	}

	var ok bool
	if filter.ItemID, ok = h.QueryID(c, "itemId"); !ok {
		return
	}
	if filter.LocationID, ok = h.QueryID(c, "locationId"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status := lot.Status(raw)
		switch status {
		case lot.StatusNormal, lot.StatusExpiring, lot.StatusExpired:
		default:
			h.Error(c, apperror.NewValidation("invalid status").WithDetail("status", raw))
			return
		}
		filter.Status = &status
	}

	result, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Get handles GET /lots/:id
func (h *LotHandler) Get(c *gin.Context) {
	lotID, ok := h.PathID(c)
	if !ok {
		return
	}

	l, err := h.store.GetByID(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// GetByIdentity handles GET /lots/identity/:identity
func (h *LotHandler) GetByIdentity(c *gin.Context) {
	l, err := h.store.GetByIdentity(c.Request.Context(), c.Param("identity"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}
