package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// ContractHandler serves contracts, their acts and financial aggregates.
type ContractHandler struct {
	*BaseHandler
	service *contract.Service
}

// NewContractHandler creates a contract handler.
func NewContractHandler(base *BaseHandler, service *contract.Service) *ContractHandler {
	return &ContractHandler{BaseHandler: base, service: service}
}

// List handles GET /contracts.
func (h *ContractHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "-date"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /contracts/:id.
func (h *ContractHandler) Get(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	contr, err := h.service.GetByID(c.Request.Context(), contractID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, contr)
}

// Create handles POST /contracts.
func (h *ContractHandler) Create(c *gin.Context) {
	var req dto.CreateContractRequest
	if !h.BindJSON(c, &req) {
		return
	}

	contr, err := req.ToContract()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), contr); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, contr)
}

// Update handles PUT /contracts/:id.
func (h *ContractHandler) Update(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateContractRequest
	if !h.BindJSON(c, &req) {
		return
	}

	contr, err := h.service.GetByID(c.Request.Context(), contractID)
	if err != nil {
		h.Error(c, err)
		return
	}

	contr.Name = req.Name
	contr.StartDate = req.StartDate
	contr.EndDate = req.EndDate
	if contr.TotalAmount, err = dto.ParseMoney("totalAmount", req.TotalAmount); err != nil {
		h.Error(c, err)
		return
	}
	if req.VATRate != "" {
		if contr.VATRate, err = dto.ParseMoney("vatRate", req.VATRate); err != nil {
			h.Error(c, err)
			return
		}
	}
	contr.VATIncluded = req.VATIncluded
	contr.Comment = req.Comment
	contr.Version = req.Version

	if err := h.service.Update(c.Request.Context(), contr); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, contr)
}

// Activate handles POST /contracts/:id/activate - runs the proposal gate.
func (h *ContractHandler) Activate(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Activate(c.Request.Context(), contractID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "contract activated")
}

// ChangeStatus handles POST /contracts/:id/status.
func (h *ContractHandler) ChangeStatus(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.ChangeContractStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.ChangeStatus(c.Request.Context(), contractID, contract.Status(req.Status)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "status changed")
}

// Margin handles GET /contracts/:id/margin.
func (h *ContractHandler) Margin(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	margin, err := h.service.ContractMargin(c.Request.Context(), contractID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, margin)
}

// Balance handles GET /contracts/:id/balance - signed acts minus paid.
func (h *ContractHandler) Balance(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	balance, err := h.service.Balance(c.Request.Context(), contractID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BalanceResponse{
		AccountID: contractID.String(),
		Balance:   types.MoneyString(balance),
	})
}

// --- Acts ---

// ListActs handles GET /contracts/:id/acts.
func (h *ContractHandler) ListActs(c *gin.Context) {
	contractID, ok := h.PathID(c)
	if !ok {
		return
	}

	acts, err := h.service.ListActs(c.Request.Context(), contractID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, acts)
}

// CreateAct handles POST /acts.
func (h *ContractHandler) CreateAct(c *gin.Context) {
	var req dto.CreateActRequest
	if !h.BindJSON(c, &req) {
		return
	}

	act, err := req.ToAct()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateAct(c.Request.Context(), act); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, act)
}

// GetAct handles GET /acts/:id.
func (h *ContractHandler) GetAct(c *gin.Context) {
	actID, ok := h.PathID(c)
	if !ok {
		return
	}

	act, err := h.service.GetAct(c.Request.Context(), actID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, act)
}

// SignAct handles POST /acts/:id/sign.
func (h *ContractHandler) SignAct(c *gin.Context) {
	actID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.SignAct(c.Request.Context(), actID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "act signed")
}

// CancelAct handles POST /acts/:id/cancel.
func (h *ContractHandler) CancelAct(c *gin.Context) {
	actID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.CancelAct(c.Request.Context(), actID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "act cancelled")
}

// --- Cash-flow reports ---

// Cashflow handles GET /reports/cashflow.
func (h *ContractHandler) Cashflow(c *gin.Context) {
	filter, err := h.cashflowFilter(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	totals, err := h.service.Cashflow(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, totals)
}

// CashflowSeries handles GET /reports/cashflow/series?granularity=month.
func (h *ContractHandler) CashflowSeries(c *gin.Context) {
	filter, err := h.cashflowFilter(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	granularity := contract.Granularity(c.DefaultQuery("granularity", string(contract.ByMonth)))
	points, err := h.service.CashflowByPeriod(c.Request.Context(), filter, granularity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, points)
}

func (h *ContractHandler) cashflowFilter(c *gin.Context) (contract.CashflowFilter, error) {
	filter := contract.CashflowFilter{
		DateFrom: h.ParseTimeQuery(c, "from"),
		DateTo:   h.ParseTimeQuery(c, "to"),
	}

	if v := c.Query("contractId"); v != "" {
		contractID, err := dto.ParseID("contractId", v)
		if err != nil {
			return filter, err
		}
		filter.Scope.ContractID = &contractID
	}
	if v := c.Query("objectId"); v != "" {
		objectID, err := dto.ParseID("objectId", v)
		if err != nil {
			return filter, err
		}
		filter.Scope.ObjectID = &objectID
	}

	if filter.Scope.ContractID != nil && filter.Scope.ObjectID != nil {
		return filter, apperror.NewValidation("scope is one of contractId or objectId, not both")
	}
	return filter, nil
}
