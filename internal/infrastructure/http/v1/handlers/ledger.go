package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lotledger/internal/domain/ledger"
)

// LedgerHandler exposes the movement journal.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// Movements handles GET /movements
func (h *LedgerHandler) Movements(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	filter.Page = h.Page(c)

	result, err := h.service.Query(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Totals handles GET /movements/totals
func (h *LedgerHandler) Totals(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	totals, err := h.service.Totals(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	body := make(map[string]string, len(ledger.AllTypes))
	for _, t := range ledger.AllTypes {
		body[string(t)] = totals.Get(t).String()
	}
	h.OK(c, body)
}

// parseFilter reads the shared query parameters. The service validates
// movement types and the time range.
func (h *LedgerHandler) parseFilter(c *gin.Context) (ledger.Filter, bool) {
	var (
		filter ledger.Filter
		ok     bool
	)
	if filter.ItemID, ok = h.QueryID(c, "itemId"); !ok {
		return filter, false
	}
	if filter.LocationID, ok = h.QueryID(c, "locationId"); !ok {
		return filter, false
	}
	if filter.CorrelationID, ok = h.QueryID(c, "correlationId"); !ok {
		return filter, false
	}
	if filter.From, ok = h.QueryTime(c, "from"); !ok {
		return filter, false
	}
	if filter.To, ok = h.QueryTime(c, "to"); !ok {
		return filter, false
	}
	if v := c.Query("actorId"); v != "" {
		filter.ActorID = &v
	}
	if v := c.Query("lotIdentity"); v != "" {
		filter.LotIdentity = &v
	}
	if v := c.Query("types"); v != "" {
		for _, t := range strings.Split(v, ",") {
			filter.Types = append(filter.Types, ledger.MovementType(strings.TrimSpace(t)))
		}
	}
	return filter, true
}
