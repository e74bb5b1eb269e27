package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/documents/payment"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// PaymentHandler runs the payment and registry pipeline.
type PaymentHandler struct {
	*BaseHandler
	service *payment.Service
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(base *BaseHandler, service *payment.Service) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, service: service}
}

// List handles GET /payments.
func (h *PaymentHandler) List(c *gin.Context) {
	filter := payment.Filter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	for _, t := range splitQuery(c.Query("type")) {
		filter.Types = append(filter.Types, payment.Type(t))
	}
	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, payment.Status(s))
	}
	if v := c.Query("contractId"); v != "" {
		contractID, err := dto.ParseID("contractId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ContractID = &contractID
	}
	if v := c.Query("accountId"); v != "" {
		accountID, err := dto.ParseID("accountId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.AccountID = &accountID
	}
	filter.DateFrom = h.ParseTimeQuery(c, "from")
	filter.DateTo = h.ParseTimeQuery(c, "to")

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, ok := h.PathID(c)
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// CreateIncome handles POST /payments/income - paid immediately.
func (h *PaymentHandler) CreateIncome(c *gin.Context) {
	var req dto.CreateIncomePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := req.ToPayment()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateIncome(c.Request.Context(), p, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// CreateExpense handles POST /payments/expense - planned, mirrored into
// the payment registry for approval.
func (h *PaymentHandler) CreateExpense(c *gin.Context) {
	var req dto.CreateExpensePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := req.ToPayment()
	if err != nil {
		h.Error(c, err)
		return
	}

	registry, err := h.service.CreateExpense(c.Request.Context(), p, req.PlannedDate, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, gin.H{"payment": p, "registry": registry})
}

// PayInvoice handles POST /invoices/:id/pay - pays an approved invoice
// and posts it to the journal.
func (h *PaymentHandler) PayInvoice(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.PayInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cashAccountID, err := dto.ParseID("cashAccountId", req.CashAccountID)
	if err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.PayInvoice(c.Request.Context(), invoiceID, cashAccountID, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// MarkPaid handles POST /payments/:id/paid.
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	paymentID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.MarkPaid(c.Request.Context(), paymentID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "payment marked paid")
}

// Cancel handles POST /payments/:id/cancel.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	paymentID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), paymentID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "payment cancelled")
}

// --- Payment registry ---

// GetRegistry handles GET /registry/:id.
func (h *PaymentHandler) GetRegistry(c *gin.Context) {
	registryID, ok := h.PathID(c)
	if !ok {
		return
	}

	reg, err := h.service.GetRegistry(c.Request.Context(), registryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, reg)
}

// ApproveRegistry handles POST /registry/:id/approve.
func (h *PaymentHandler) ApproveRegistry(c *gin.Context) {
	registryID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.ApproveRegistry(c.Request.Context(), registryID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "registry row approved")
}

// PayRegistry handles POST /registry/:id/pay.
func (h *PaymentHandler) PayRegistry(c *gin.Context) {
	registryID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.PayRegistry(c.Request.Context(), registryID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "registry row paid")
}

// CancelRegistry handles POST /registry/:id/cancel.
func (h *PaymentHandler) CancelRegistry(c *gin.Context) {
	registryID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.CancelRegistry(c.Request.Context(), registryID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "registry row cancelled")
}
