package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/journal"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// JournalHandler serves the double-entry ledger.
type JournalHandler struct {
	*BaseHandler
	service *journal.Service
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(base *BaseHandler, service *journal.Service) *JournalHandler {
	return &JournalHandler{BaseHandler: base, service: service}
}

// List handles GET /journal.
func (h *JournalHandler) List(c *gin.Context) {
	filter := journal.EntryFilter{
		AutoOnly: c.Query("autoOnly") == "true",
		Limit:    h.ParseIntQuery(c, "limit", 50),
		Offset:   h.ParseIntQuery(c, "offset", 0),
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

// ListByInvoice handles GET /invoices/:id/entries.
func (h *JournalHandler) ListByInvoice(c *gin.Context) {
	invoiceID, ok := h.PathID(c)
	if !ok {
		return
	}

	entries, err := h.service.ListByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries)
}

// PostManual handles POST /journal - a direct transfer between accounts.
func (h *JournalHandler) PostManual(c *gin.Context) {
	var req dto.ManualEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	fromID, err := dto.ParseID("fromAccountId", req.FromAccountID)
	if err != nil {
		h.Error(c, err)
		return
	}
	toID, err := dto.ParseID("toAccountId", req.ToAccountID)
	if err != nil {
		h.Error(c, err)
		return
	}
	amount, err := dto.ParseMoney("amount", req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}

	entry, err := h.service.PostManual(c.Request.Context(), fromID, toID, amount, req.Description, req.Date, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, entry)
}
