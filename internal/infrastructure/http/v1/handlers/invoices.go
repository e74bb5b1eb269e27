package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler drives the invoice lifecycle.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates an invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// List handles GET /invoices with status/type/source filters.
func (h *InvoiceHandler) List(c *gin.Context) {
	filter := invoice.Filter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, invoice.Status(s))
	}
	for _, t := range splitQuery(c.Query("type")) {
		filter.Types = append(filter.Types, invoice.Type(t))
	}
	for _, s := range splitQuery(c.Query("source")) {
		filter.Sources = append(filter.Sources, invoice.Source(s))
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

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	inv, err := h.service.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Create handles POST /invoices - manual entry.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := req.ToInvoice()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), inv, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

// Amend handles PUT /invoices/:id - corrections before approval.
func (h *InvoiceHandler) Amend(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.AmendInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if inv.ObjectID, err = dto.ParseOptionalID("objectId", req.ObjectID); err != nil {
		h.Error(c, err)
		return
	}
	if inv.ContractID, err = dto.ParseOptionalID("contractId", req.ContractID); err != nil {
		h.Error(c, err)
		return
	}
	if inv.CategoryID, err = dto.ParseOptionalID("categoryId", req.CategoryID); err != nil {
		h.Error(c, err)
		return
	}
	if inv.TargetAccountID, err = dto.ParseOptionalID("targetAccountId", req.TargetAccountID); err != nil {
		h.Error(c, err)
		return
	}
	if req.AmountGross != "" {
		if inv.AmountGross, err = dto.ParseMoney("amountGross", req.AmountGross); err != nil {
			h.Error(c, err)
			return
		}
	}
	if req.AmountNet != "" {
		if inv.AmountNet, err = dto.ParseMoney("amountNet", req.AmountNet); err != nil {
			h.Error(c, err)
			return
		}
	}
	if req.VATAmount != "" {
		if inv.VATAmount, err = dto.ParseMoney("vatAmount", req.VATAmount); err != nil {
			h.Error(c, err)
			return
		}
	}
	inv.PlannedDate = req.PlannedDate
	if req.Description != "" {
		inv.Description = req.Description
	}
	inv.Version = req.Version

	if err := h.service.Amend(c.Request.Context(), inv, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Items handles GET /invoices/:id/items.
func (h *InvoiceHandler) Items(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	items, err := h.service.ListItems(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, items)
}

// SetItems handles PUT /invoices/:id/items - replaces the line items.
func (h *InvoiceHandler) SetItems(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.SetInvoiceItemsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	items := make([]*invoice.Item, 0, len(req.Items))
	for _, ir := range req.Items {
		quantity, err := dto.ParseMoneyOrZero("quantity", ir.Quantity)
		if err != nil {
			h.Error(c, err)
			return
		}
		price, err := dto.ParseMoneyOrZero("pricePerUnit", ir.PricePerUnit)
		if err != nil {
			h.Error(c, err)
			return
		}
		amount, err := dto.ParseMoneyOrZero("amount", ir.Amount)
		if err != nil {
			h.Error(c, err)
			return
		}

		item := invoice.NewItem(invoiceID, ir.RawName, quantity, price)
		item.Unit = ir.Unit
		item.Amount = amount
		item.Normalize()
		items = append(items, item)
	}

	if err := h.service.SetItems(c.Request.Context(), invoiceID, items); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, items)
}

// Allocations handles GET /invoices/:id/allocations.
func (h *InvoiceHandler) Allocations(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	allocations, err := h.service.ListActAllocations(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, allocations)
}

// SetAllocations handles PUT /invoices/:id/allocations.
func (h *InvoiceHandler) SetAllocations(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.SetActAllocationsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	allocations, err := req.ToAllocations(invoiceID.String())
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.SetActAllocations(c.Request.Context(), invoiceID, allocations); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, allocations)
}

// Approve handles POST /invoices/:id/approve.
func (h *InvoiceHandler) Approve(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Approve(c.Request.Context(), invoiceID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "invoice approved")
}

// Reject handles POST /invoices/:id/reject.
func (h *InvoiceHandler) Reject(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.RejectInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.Reject(c.Request.Context(), invoiceID, h.Actor(c), req.Reason); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "invoice rejected")
}

// Schedule handles POST /invoices/:id/schedule.
func (h *InvoiceHandler) Schedule(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.ScheduleInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.Schedule(c.Request.Context(), invoiceID, req.PlannedDate, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "invoice scheduled")
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), invoiceID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "invoice cancelled")
}

// Events handles GET /invoices/:id/events - the audit trail.
func (h *InvoiceHandler) Events(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	events, err := h.service.ListEvents(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, events)
}

func splitQuery(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
