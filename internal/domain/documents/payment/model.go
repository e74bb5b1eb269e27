// Package payment provides realized cash movements, the pending-payment
// registry that mirrors expense payments, and act-payment allocations.
// Payment and registry statuses are kept in lockstep by guarded
// propagation: each side checks the other's state and skips writes that
// would be no-ops, so the two signals never trigger each other forever.
package payment

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Type separates incoming from outgoing money.
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// Status is the payment fact status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// RegistryStatus is the pending-payment request status.
type RegistryStatus string

const (
	RegistryPlanned   RegistryStatus = "planned"
	RegistryApproved  RegistryStatus = "approved"
	RegistryPaid      RegistryStatus = "paid"
	RegistryCancelled RegistryStatus = "cancelled"
)

// Payment is a realized cash movement.
type Payment struct {
	entity.Document

	Type   Type   `db:"payment_type" json:"paymentType"`
	Status Status `db:"status" json:"status"`

	// AccountID is the money account the cash moves through
	AccountID id.ID `db:"account_id" json:"accountId"`

	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	// CategoryID is the chart account of the expense or income
	CategoryID *id.ID `db:"category_id" json:"categoryId,omitempty"`

	// LegalEntityID follows the money account's owning entity
	LegalEntityID *id.ID `db:"legal_entity_id" json:"legalEntityId,omitempty"`

	PaymentDate time.Time `db:"payment_date" json:"paymentDate"`

	Amount      types.Money `db:"amount" json:"amount"`
	AmountGross types.Money `db:"amount_gross" json:"amountGross"`
	AmountNet   types.Money `db:"amount_net" json:"amountNet"`
	VATAmount   types.Money `db:"vat_amount" json:"vatAmount"`

	Description string `db:"description" json:"description,omitempty"`

	// PaymentRegistryID links an expense payment to its registry mirror
	PaymentRegistryID *id.ID `db:"payment_registry_id" json:"paymentRegistryId,omitempty"`

	// InvoiceID ties the payment to the invoice it settles
	InvoiceID *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`

	IsInternalTransfer    bool   `db:"is_internal_transfer" json:"isInternalTransfer"`
	InternalTransferGroup *id.ID `db:"internal_transfer_group" json:"internalTransferGroup,omitempty"`
}

// NewPayment creates a payment fact.
func NewPayment(pType Type, accountID id.ID, amount types.Money, paymentDate time.Time) *Payment {
	amount = types.Round2(amount)
	return &Payment{
		Document:    entity.NewDocument(),
		Type:        pType,
		Status:      StatusPending,
		AccountID:   accountID,
		PaymentDate: paymentDate,
		Amount:      amount,
		AmountGross: amount,
		AmountNet:   amount,
	}
}

// Validate implements entity.Validatable interface.
func (p *Payment) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	switch p.Type {
	case TypeIncome, TypeExpense:
	default:
		return apperror.NewValidation("invalid payment type").
			WithDetail("field", "paymentType").
			WithDetail("value", string(p.Type))
	}

	switch p.Status {
	case StatusPending, StatusPaid, StatusCancelled:
	default:
		return apperror.NewValidation("invalid payment status").
			WithDetail("field", "status").
			WithDetail("value", string(p.Status))
	}

	if id.IsNil(p.AccountID) {
		return apperror.NewValidation("money account is required").
			WithDetail("field", "accountId")
	}

	if !p.Amount.IsPositive() {
		return apperror.NewValidation("payment amount must be positive").
			WithDetail("field", "amount")
	}

	return nil
}

// Registry is a pending-payment request mirroring an expense payment.
type Registry struct {
	entity.BaseEntity

	AccountID  id.ID  `db:"account_id" json:"accountId"`
	CategoryID *id.ID `db:"category_id" json:"categoryId,omitempty"`
	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	// ActID optionally pins the payment to one act for allocation
	ActID *id.ID `db:"act_id" json:"actId,omitempty"`

	PlannedDate time.Time      `db:"planned_date" json:"plannedDate"`
	Amount      types.Money    `db:"amount" json:"amount"`
	Status      RegistryStatus `db:"status" json:"status"`

	Initiator  string     `db:"initiator" json:"initiator"`
	ApprovedBy *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	Comment string `db:"comment" json:"comment,omitempty"`

	// PaymentID back-links to the mirrored payment fact
	PaymentID *id.ID `db:"payment_id" json:"paymentId,omitempty"`
}

// NewRegistry creates a planned registry row mirroring a payment.
func NewRegistry(p *Payment, plannedDate time.Time, initiator string) *Registry {
	paymentID := p.ID
	return &Registry{
		BaseEntity:  entity.NewBaseEntity(),
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		ContractID:  p.ContractID,
		PlannedDate: plannedDate,
		Amount:      p.Amount,
		Status:      RegistryPlanned,
		Initiator:   initiator,
		PaymentID:   &paymentID,
	}
}

// Allocation associates a payment with an act for a partial amount.
type Allocation struct {
	entity.BaseEntity

	ActID     id.ID       `db:"act_id" json:"actId"`
	PaymentID id.ID       `db:"payment_id" json:"paymentId"`
	Amount    types.Money `db:"amount" json:"amount"`
}

// NewAllocation creates an act-payment allocation.
func NewAllocation(actID, paymentID id.ID, amount types.Money) *Allocation {
	return &Allocation{
		BaseEntity: entity.NewBaseEntity(),
		ActID:      actID,
		PaymentID:  paymentID,
		Amount:     types.Round2(amount),
	}
}
