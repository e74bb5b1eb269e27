package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// AccountHandler serves the internal chart of accounts.
type AccountHandler struct {
	*BaseHandler
	service *account.Service
}

// NewAccountHandler creates an account handler.
func NewAccountHandler(base *BaseHandler, service *account.Service) *AccountHandler {
	return &AccountHandler{BaseHandler: base, service: service}
}

// List handles GET /accounts.
func (h *AccountHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "sort_order"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
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

// Children handles GET /accounts/:id/children.
func (h *AccountHandler) Children(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	children, err := h.service.ListChildren(c.Request.Context(), accID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, children)
}

// Create handles POST /accounts - household accounts only.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc := req.ToAccount()
	if err := h.service.CreateHousehold(c.Request.Context(), acc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, acc)
}

// Update handles PUT /accounts/:id.
func (h *AccountHandler) Update(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acc, err := h.service.GetByID(c.Request.Context(), accID)
	if err != nil {
		h.Error(c, err)
		return
	}

	acc.Name = req.Name
	acc.ParentID = req.ParentID
	acc.RequiresContract = req.RequiresContract
	acc.SortOrder = req.SortOrder
	acc.Version = req.Version

	if err := h.service.Update(c.Request.Context(), acc); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, acc)
}

// Deactivate handles POST /accounts/:id/deactivate.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), accID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "account deactivated")
}

// Balance handles GET /accounts/:id/balance?asOf=...&subtree=true.
func (h *AccountHandler) Balance(c *gin.Context) {
	accID, ok := h.PathID(c)
	if !ok {
		return
	}

	asOf := h.ParseTimeQuery(c, "asOf")
	subtree := c.Query("subtree") == "true"

	var balance types.Money
	var err error
	if subtree {
		balance, err = h.service.BalanceSubtree(c.Request.Context(), accID, asOf)
	} else {
		balance, err = h.service.Balance(c.Request.Context(), accID, asOf)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BalanceResponse{
		AccountID: accID.String(),
		Balance:   types.MoneyString(balance),
		Subtree:   subtree,
	})
}
