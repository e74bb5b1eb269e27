package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/catalogs/legalentity"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// LegalEntityHandler serves the company's own legal entities.
type LegalEntityHandler struct {
	*BaseHandler
	service *legalentity.Service
}

// NewLegalEntityHandler creates a legal entity handler.
func NewLegalEntityHandler(base *BaseHandler, service *legalentity.Service) *LegalEntityHandler {
	return &LegalEntityHandler{BaseHandler: base, service: service}
}

// List handles GET /legal-entities.
func (h *LegalEntityHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /legal-entities/:id.
func (h *LegalEntityHandler) Get(c *gin.Context) {
	entityID, ok := h.PathID(c)
	if !ok {
		return
	}

	e, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Create handles POST /legal-entities.
func (h *LegalEntityHandler) Create(c *gin.Context) {
	var req dto.CreateLegalEntityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	e := req.ToLegalEntity()
	if err := h.service.Create(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Update handles PUT /legal-entities/:id.
func (h *LegalEntityHandler) Update(c *gin.Context) {
	entityID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateLegalEntityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	e, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	e.Name = req.Name
	e.KPP = req.KPP
	e.TaxSystem = legalentity.TaxSystem(req.TaxSystem)
	e.Director = req.Director
	e.LegalAddress = req.LegalAddress
	e.Version = req.Version

	if err := h.service.Update(c.Request.Context(), e); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}
