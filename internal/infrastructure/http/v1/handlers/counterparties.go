package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/catalogs/counterparty"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// CounterpartyHandler serves customers and vendors.
type CounterpartyHandler struct {
	*BaseHandler
	service *counterparty.Service
}

// NewCounterpartyHandler creates a counterparty handler.
func NewCounterpartyHandler(base *BaseHandler, service *counterparty.Service) *CounterpartyHandler {
	return &CounterpartyHandler{BaseHandler: base, service: service}
}

// List handles GET /counterparties.
func (h *CounterpartyHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /counterparties/:id.
func (h *CounterpartyHandler) Get(c *gin.Context) {
	cpID, ok := h.PathID(c)
	if !ok {
		return
	}

	cp, err := h.service.GetByID(c.Request.Context(), cpID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cp)
}

// Create handles POST /counterparties.
func (h *CounterpartyHandler) Create(c *gin.Context) {
	var req dto.CreateCounterpartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cp := req.ToCounterparty()
	if err := h.service.Create(c.Request.Context(), cp); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cp)
}

// Update handles PUT /counterparties/:id.
func (h *CounterpartyHandler) Update(c *gin.Context) {
	cpID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateCounterpartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cp, err := h.service.GetByID(c.Request.Context(), cpID)
	if err != nil {
		h.Error(c, err)
		return
	}

	cp.Name = req.Name
	if req.VendorSubtype != nil {
		sub := counterparty.VendorSubtype(*req.VendorSubtype)
		cp.VendorSubtype = &sub
	} else {
		cp.VendorSubtype = nil
	}
	cp.INN = req.INN
	cp.KPP = req.KPP
	cp.OGRN = req.OGRN
	cp.LegalAddress = req.LegalAddress
	cp.ContactPerson = req.ContactPerson
	cp.Phone = req.Phone
	cp.Comment = req.Comment
	cp.Version = req.Version

	if err := h.service.Update(c.Request.Context(), cp); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cp)
}

// SetDeletionMark handles POST /counterparties/:id/deletion-mark.
func (h *CounterpartyHandler) SetDeletionMark(c *gin.Context) {
	cpID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.SetDeletionMarkRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetDeletionMark(c.Request.Context(), cpID, req.Marked); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "deletion mark updated")
}

// Enrich handles POST /counterparties/:id/enrich - pulls requisites
// from the state registry by INN.
func (h *CounterpartyHandler) Enrich(c *gin.Context) {
	cpID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.EnrichFromRegistry(c.Request.Context(), cpID); err != nil {
		h.Error(c, err)
		return
	}

	cp, err := h.service.GetByID(c.Request.Context(), cpID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cp)
}
