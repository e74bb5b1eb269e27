package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stroyfin/internal/core/entity"
	"stroyfin/internal/domain/banking"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// syncDefaultLookback bounds a manual import when no range is given.
const syncDefaultLookback = 7 * 24 * time.Hour

// BankingHandler serves bank connections, statement import and payment
// orders.
type BankingHandler struct {
	*BaseHandler
	service     *banking.Service
	connections banking.ConnectionRepository
	accounts    banking.AccountRepository
}

// NewBankingHandler creates a banking handler.
func NewBankingHandler(
	base *BaseHandler,
	service *banking.Service,
	connections banking.ConnectionRepository,
	accounts banking.AccountRepository,
) *BankingHandler {
	return &BankingHandler{
		BaseHandler: base,
		service:     service,
		connections: connections,
		accounts:    accounts,
	}
}

// --- Connections ---

// ListConnections handles GET /bank-connections.
func (h *BankingHandler) ListConnections(c *gin.Context) {
	conns, err := h.connections.ListActive(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, conns)
}

// CreateConnection handles POST /bank-connections.
func (h *BankingHandler) CreateConnection(c *gin.Context) {
	var req dto.CreateConnectionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	conn := req.ToConnection()
	if err := h.connections.Create(c.Request.Context(), conn); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, conn)
}

// ListAccounts handles GET /bank-connections/:id/accounts.
func (h *BankingHandler) ListAccounts(c *gin.Context) {
	connectionID, ok := h.PathID(c)
	if !ok {
		return
	}

	accounts, err := h.accounts.ListByConnection(c.Request.Context(), connectionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, accounts)
}

// CreateAccount handles POST /bank-connections/:id/accounts.
func (h *BankingHandler) CreateAccount(c *gin.Context) {
	connectionID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.CreateBankAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cashAccountID, err := dto.ParseOptionalID("cashAccountId", req.CashAccountID)
	if err != nil {
		h.Error(c, err)
		return
	}

	acc := &banking.Account{
		BaseEntity:    entity.NewBaseEntity(),
		ConnectionID:  connectionID,
		ExternalID:    req.ExternalID,
		AccountNumber: req.AccountNumber,
		Currency:      req.Currency,
		CashAccountID: cashAccountID,
	}
	if acc.Currency == "" {
		acc.Currency = "RUB"
	}

	if err := h.accounts.Create(c.Request.Context(), acc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, acc)
}

// Sync handles POST /bank-connections/:id/sync - manual statement import.
func (h *BankingHandler) Sync(c *gin.Context) {
	connectionID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.SyncRequest
	if !h.BindJSON(c, &req) {
		return
	}

	to := time.Now().UTC()
	if req.To != nil {
		to = *req.To
	}
	from := to.Add(-syncDefaultLookback)
	if req.From != nil {
		from = *req.From
	}

	imported, reconciled, err := h.service.ImportTransactions(c.Request.Context(), connectionID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"imported": imported, "reconciled": reconciled})
}

// --- Transactions ---

// ListTransactions handles GET /bank-transactions.
func (h *BankingHandler) ListTransactions(c *gin.Context) {
	filter := banking.TransactionFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, banking.TransactionStatus(s))
	}
	if v := c.Query("connectionId"); v != "" {
		connectionID, err := dto.ParseID("connectionId", v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ConnectionID = &connectionID
	}
	filter.DateFrom = h.ParseTimeQuery(c, "from")
	filter.DateTo = h.ParseTimeQuery(c, "to")

	result, err := h.service.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Reconcile handles POST /bank-transactions/:id/reconcile.
func (h *BankingHandler) Reconcile(c *gin.Context) {
	transactionID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	paymentID, err := dto.ParseID("paymentId", req.PaymentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Reconcile(c.Request.Context(), transactionID, paymentID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "transaction reconciled")
}

// MaterializeIncome handles POST /bank-transactions/:id/materialize -
// turns an unmatched income line into a paid payment.
func (h *BankingHandler) MaterializeIncome(c *gin.Context) {
	transactionID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.MaterializeIncomeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cashAccountID, err := dto.ParseID("cashAccountId", req.CashAccountID)
	if err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.MaterializeIncome(c.Request.Context(), transactionID, cashAccountID, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Ignore handles POST /bank-transactions/:id/ignore.
func (h *BankingHandler) Ignore(c *gin.Context) {
	transactionID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Ignore(c.Request.Context(), transactionID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "transaction ignored")
}

// --- Payment orders ---

// CreateOrder handles POST /bank-orders.
func (h *BankingHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := req.ToOrder()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateOrder(c.Request.Context(), o, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, o)
}

// GetOrder handles GET /bank-orders/:id.
func (h *BankingHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, o)
}

// ApproveOrder handles POST /bank-orders/:id/approve.
func (h *BankingHandler) ApproveOrder(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.ApproveOrder(c.Request.Context(), orderID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order approved")
}

// SendOrder handles POST /bank-orders/:id/send - submits to the bank.
func (h *BankingHandler) SendOrder(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.SendOrder(c.Request.Context(), orderID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order sent")
}

// RejectOrder handles POST /bank-orders/:id/reject.
func (h *BankingHandler) RejectOrder(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.RejectOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.RejectOrder(c.Request.Context(), orderID, req.Reason); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order rejected")
}

// MarkOrderPaid handles POST /bank-orders/:id/paid.
func (h *BankingHandler) MarkOrderPaid(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.MarkOrderPaid(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order paid")
}

// CancelOrder handles POST /bank-orders/:id/cancel.
func (h *BankingHandler) CancelOrder(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.CancelOrder(c.Request.Context(), orderID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order cancelled")
}

// RescheduleOrder handles POST /bank-orders/:id/reschedule.
func (h *BankingHandler) RescheduleOrder(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.RescheduleOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.RescheduleOrder(c.Request.Context(), orderID, req.PlannedDate, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order rescheduled")
}

// OrderHistory handles GET /bank-orders/:id/events.
func (h *BankingHandler) OrderHistory(c *gin.Context) {
	orderID, ok := h.PathID(c)
	if !ok {
		return
	}

	events, err := h.service.OrderHistory(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, events)
}
