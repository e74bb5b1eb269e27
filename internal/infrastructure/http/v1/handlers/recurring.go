package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/recurring"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// RecurringHandler serves recurring templates and untyped income records.
type RecurringHandler struct {
	*BaseHandler
	service *recurring.Service
}

// NewRecurringHandler creates a recurring handler.
func NewRecurringHandler(base *BaseHandler, service *recurring.Service) *RecurringHandler {
	return &RecurringHandler{BaseHandler: base, service: service}
}

// ListTemplates handles GET /recurring-templates.
func (h *RecurringHandler) ListTemplates(c *gin.Context) {
	result, err := h.service.ListTemplates(c.Request.Context(), h.ListFilter(c, "name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// GetTemplate handles GET /recurring-templates/:id.
func (h *RecurringHandler) GetTemplate(c *gin.Context) {
	templateID, ok := h.PathID(c)
	if !ok {
		return
	}

	t, err := h.service.GetTemplate(c.Request.Context(), templateID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// CreateTemplate handles POST /recurring-templates.
func (h *RecurringHandler) CreateTemplate(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := req.ToTemplate()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateTemplate(c.Request.Context(), t); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, t)
}

// UpdateTemplate handles PUT /recurring-templates/:id.
func (h *RecurringHandler) UpdateTemplate(c *gin.Context) {
	templateID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t, err := h.service.GetTemplate(c.Request.Context(), templateID)
	if err != nil {
		h.Error(c, err)
		return
	}

	t.Name = req.Name
	if t.Amount, err = dto.ParseMoney("amount", req.Amount); err != nil {
		h.Error(c, err)
		return
	}
	t.Frequency = recurring.Frequency(req.Frequency)
	t.EndDate = req.EndDate
	t.Version = req.Version

	if err := h.service.UpdateTemplate(c.Request.Context(), t); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// SetActive handles POST /recurring-templates/:id/active.
func (h *RecurringHandler) SetActive(c *gin.Context) {
	templateID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), templateID, req.Active); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "active flag updated")
}

// --- Income records ---

// RecordIncome handles POST /income - income outside the invoice flow,
// posted to the journal immediately.
func (h *RecurringHandler) RecordIncome(c *gin.Context) {
	var req dto.RecordIncomeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := req.ToIncomeRecord()
	if err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.service.RecordIncome(c.Request.Context(), rec, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, gin.H{"record": rec, "entries": entries})
}

// GetIncome handles GET /income/:id.
func (h *RecurringHandler) GetIncome(c *gin.Context) {
	recordID, ok := h.PathID(c)
	if !ok {
		return
	}

	rec, err := h.service.GetIncome(c.Request.Context(), recordID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// ListIncome handles GET /income.
func (h *RecurringHandler) ListIncome(c *gin.Context) {
	filter := recurring.IncomeFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	for _, t := range splitQuery(c.Query("type")) {
		filter.Types = append(filter.Types, recurring.IncomeType(t))
	}
	if v := c.Query("objectId"); v != "" {
		objectID, err := dto.ParseID("objectId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ObjectID = &objectID
	}
	if v := c.Query("contractId"); v != "" {
		contractID, err := dto.ParseID("contractId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ContractID = &contractID
	}
	filter.DateFrom = h.ParseTimeQuery(c, "from")
	filter.DateTo = h.ParseTimeQuery(c, "to")

	result, err := h.service.ListIncome(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
