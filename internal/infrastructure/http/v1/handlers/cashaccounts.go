package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/catalogs/cashaccount"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// CashAccountHandler serves real-world money accounts.
type CashAccountHandler struct {
	*BaseHandler
	service *cashaccount.Service
}

// NewCashAccountHandler creates a cash account handler.
func NewCashAccountHandler(base *BaseHandler, service *cashaccount.Service) *CashAccountHandler {
	return &CashAccountHandler{BaseHandler: base, service: service}
}

// List handles GET /cash-accounts.
func (h *CashAccountHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /cash-accounts/:id.
func (h *CashAccountHandler) Get(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	acc, err := h.service.GetByID(c.Request.Context(), accID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, acc)
}

// Create handles POST /cash-accounts.
func (h *CashAccountHandler) Create(c *gin.Context) {
	var req dto.CreateCashAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc, err := req.ToCashAccount()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), acc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, acc)
}

// Update handles PUT /cash-accounts/:id.
func (h *CashAccountHandler) Update(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateCashAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc, err := h.service.GetByID(c.Request.Context(), accID)
	if err != nil {
		h.Error(c, err)
		return
	}

	acc.Name = req.Name
	acc.AccountNumber = req.AccountNumber
	acc.BIC = req.BIC
	acc.Version = req.Version

	if err := h.service.Update(c.Request.Context(), acc); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, acc)
}

// SetActive handles POST /cash-accounts/:id/active.
func (h *CashAccountHandler) SetActive(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), accID, req.Active); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "active flag updated")
}
