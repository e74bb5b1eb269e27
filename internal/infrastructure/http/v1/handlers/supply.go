package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/supply"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// SupplyHandler serves supply requests projected from CRM deals.
type SupplyHandler struct {
	*BaseHandler
	processor *supply.Processor
}

// NewSupplyHandler creates a supply handler.
func NewSupplyHandler(base *BaseHandler, processor *supply.Processor) *SupplyHandler {
	return &SupplyHandler{BaseHandler: base, processor: processor}
}

// List handles GET /supply-requests.
func (h *SupplyHandler) List(c *gin.Context) {
	filter := supply.Filter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, supply.Status(s))
	}
	if v := c.Query("integrationId"); v != "" {
		filter.IntegrationID = &v
	}
	if v := c.Query("objectId"); v != "" {
		objectID, err := dto.ParseID("objectId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ObjectID = &objectID
	}
	filter.SyncedFrom = h.ParseTimeQuery(c, "from")
	filter.SyncedTo = h.ParseTimeQuery(c, "to")

	result, err := h.processor.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /supply-requests/:id.
func (h *SupplyHandler) Get(c *gin.Context) {
	requestID, ok := h.PathID(c)
	if !ok {
		return
	}

	req, err := h.processor.GetByID(c.Request.Context(), requestID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, req)
}

// ProcessDeal handles POST /supply-requests/process - pulls one deal
// from the CRM on demand.
func (h *SupplyHandler) ProcessDeal(c *gin.Context) {
	var req dto.ProcessDealRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.processor.ProcessDeal(c.Request.Context(), req.DealID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, result)
}

// Reprocess handles POST /supply-requests/:id/reprocess.
func (h *SupplyHandler) Reprocess(c *gin.Context) {
	requestID, ok := h.PathID(c)
	if !ok {
		return
	}

	result, err := h.processor.Reprocess(c.Request.Context(), requestID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// MarkProcessed handles POST /supply-requests/:id/processed.
func (h *SupplyHandler) MarkProcessed(c *gin.Context) {
	requestID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.processor.MarkProcessed(c.Request.Context(), requestID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "supply request processed")
}
