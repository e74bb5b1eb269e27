package banking

import (
	"context"
	"encoding/json"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// OrderStatus is the outbound payment order state.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderApproved  OrderStatus = "approved"
	OrderSent      OrderStatus = "sent"
	OrderAccepted  OrderStatus = "accepted"
	OrderRejected  OrderStatus = "rejected"
	OrderCancelled OrderStatus = "cancelled"
	OrderPaid      OrderStatus = "paid"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:     {OrderApproved, OrderCancelled},
	OrderApproved:  {OrderSent, OrderCancelled},
	OrderSent:      {OrderAccepted, OrderRejected},
	OrderAccepted:  {OrderPaid},
	OrderRejected:  {},
	OrderCancelled: {},
	OrderPaid:      {},
}

// Order is an outbound payment order pushed to the bank.
type Order struct {
	entity.Document

	ConnectionID  id.ID `db:"connection_id" json:"connectionId"`
	BankAccountID id.ID `db:"bank_account_id" json:"bankAccountId"`

	CounterpartyName    string `db:"counterparty_name" json:"counterpartyName"`
	CounterpartyINN     string `db:"counterparty_inn" json:"counterpartyInn,omitempty"`
	CounterpartyAccount string `db:"counterparty_account" json:"counterpartyAccount"`
	CounterpartyBIC     string `db:"counterparty_bic" json:"counterpartyBic"`

	Amount  types.Money `db:"amount" json:"amount"`
	Purpose string      `db:"purpose" json:"purpose"`

	PlannedDate time.Time   `db:"planned_date" json:"plannedDate"`
	Status      OrderStatus `db:"status" json:"status"`

	// InvoiceID optionally ties the order to the invoice it settles
	InvoiceID *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`

	// ExternalID is assigned by the bank on a successful send
	ExternalID *string `db:"external_id" json:"externalId,omitempty"`

	// IdempotencyKey is fixed at creation; every send retry reuses it
	IdempotencyKey string `db:"idempotency_key" json:"-"`
}

// NewOrder creates a draft payment order with its idempotency key.
func NewOrder(connectionID, bankAccountID id.ID, amount types.Money, plannedDate time.Time) *Order {
	return &Order{
		Document:       entity.NewDocument(),
		ConnectionID:   connectionID,
		BankAccountID:  bankAccountID,
		Amount:         types.Round2(amount),
		PlannedDate:    plannedDate,
		Status:         OrderDraft,
		IdempotencyKey: id.New().String(),
	}
}

// Validate implements entity.Validatable interface.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if !o.Amount.IsPositive() {
		return apperror.NewValidation("order amount must be positive").
			WithDetail("field", "amount")
	}
	if o.CounterpartyName == "" {
		return apperror.NewValidation("counterparty name is required").
			WithDetail("field", "counterpartyName")
	}
	if o.CounterpartyAccount == "" {
		return apperror.NewValidation("counterparty account is required").
			WithDetail("field", "counterpartyAccount")
	}

	return nil
}

// CanTransition reports whether the order may move to the target status.
func (o *Order) CanTransition(to OrderStatus) bool {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanReschedule reports whether the planned date may still change.
func (o *Order) CanReschedule() bool {
	return o.Status == OrderDraft || o.Status == OrderApproved
}

// OrderEvent is one entry in an order's history.
type OrderEvent struct {
	entity.BaseEntity

	OrderID id.ID           `db:"order_id" json:"orderId"`
	At      time.Time       `db:"at" json:"at"`
	Kind    string          `db:"kind" json:"kind"`
	Actor   *string         `db:"actor" json:"actor,omitempty"`
	Payload json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// NewOrderEvent creates an order history entry.
func NewOrderEvent(orderID id.ID, kind, actor string, payload map[string]any) *OrderEvent {
	e := &OrderEvent{
		BaseEntity: entity.NewBaseEntity(),
		OrderID:    orderID,
		At:         time.Now().UTC(),
		Kind:       kind,
	}
	if actor != "" {
		e.Actor = &actor
	}
	if payload != nil {
		// Payload keys are under our control; marshalling cannot fail
		raw, err := json.Marshal(payload)
		if err == nil {
			e.Payload = raw
		}
	}
	return e
}
