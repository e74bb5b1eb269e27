// Package invoice provides incoming invoices and their lifecycle:
// recognition, approval, scheduling and payment. Every transition is
// recorded in an append-only per-invoice event log.
package invoice

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Source names where the invoice came from.
type Source string

const (
	SourceBitrix    Source = "bitrix"
	SourceManual    Source = "manual"
	SourceBank      Source = "bank"
	SourceRecurring Source = "recurring"
)

// Type selects the posting rules and approval preconditions.
type Type string

const (
	TypeSupplier         Type = "supplier"
	TypeActBased         Type = "act_based"
	TypeHousehold        Type = "household"
	TypeInternalTransfer Type = "internal_transfer"
	TypeWarehouse        Type = "warehouse"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusRecognition Status = "recognition"
	StatusReceived    Status = "received"
	StatusApproved    Status = "approved"
	StatusScheduled   Status = "scheduled"
	StatusPaid        Status = "paid"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

// statusTransitions maps each state to its legal successors.
// Cancellation from any non-terminal state is handled separately.
var statusTransitions = map[Status][]Status{
	StatusRecognition: {StatusReceived},
	StatusReceived:    {StatusApproved, StatusRejected},
	StatusApproved:    {StatusScheduled, StatusRejected},
	StatusScheduled:   {StatusPaid},
}

// Invoice is a claim for payment moving through the approval pipeline.
type Invoice struct {
	entity.Document

	Source Source `db:"source" json:"source"`
	Type   Type   `db:"invoice_type" json:"invoiceType"`
	Status Status `db:"status" json:"status"`

	ObjectID   *id.ID `db:"object_id" json:"objectId,omitempty"`
	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	// CategoryID is the chart account the expense lands on
	CategoryID *id.ID `db:"category_id" json:"categoryId,omitempty"`

	// TargetAccountID is the destination for internal transfers
	TargetAccountID *id.ID `db:"target_account_id" json:"targetAccountId,omitempty"`

	AmountGross types.Money `db:"amount_gross" json:"amountGross"`
	AmountNet   types.Money `db:"amount_net" json:"amountNet"`
	VATAmount   types.Money `db:"vat_amount" json:"vatAmount"`

	// PlannedDate is set by scheduling
	PlannedDate *time.Time `db:"planned_date" json:"plannedDate,omitempty"`

	SupplyRequestID *id.ID `db:"supply_request_id" json:"supplyRequestId,omitempty"`

	// ScanBlobURI points at the stored PDF scan
	ScanBlobURI string `db:"scan_blob_uri" json:"scanBlobUri,omitempty"`

	// RecognizedFields is the raw recognizer output, kept for audit
	RecognizedFields []byte `db:"recognized_fields" json:"recognizedFields,omitempty"`

	Description string `db:"description" json:"description,omitempty"`
}

// NewInvoice creates an invoice. It starts in recognition when the
// amounts are unknown and a scan is attached, otherwise in received.
func NewInvoice(source Source, invType Type) *Invoice {
	inv := &Invoice{
		Document: entity.NewDocument(),
		Source:   source,
		Type:     invType,
		Status:   StatusReceived,
	}
	return inv
}

// NeedsRecognition reports whether the invoice should go through the
// recognizer: a scan is attached and the amounts are still empty.
func (i *Invoice) NeedsRecognition() bool {
	return i.ScanBlobURI != "" &&
		!i.AmountGross.IsPositive() &&
		(i.Source == SourceBitrix || i.Source == SourceManual)
}

// Validate implements entity.Validatable interface.
func (i *Invoice) Validate(ctx context.Context) error {
	if err := i.Document.Validate(ctx); err != nil {
		return err
	}

	switch i.Source {
	case SourceBitrix, SourceManual, SourceBank, SourceRecurring:
	default:
		return apperror.NewValidation("invalid invoice source").
			WithDetail("field", "source").
			WithDetail("value", string(i.Source))
	}

	switch i.Type {
	case TypeSupplier, TypeActBased, TypeHousehold, TypeInternalTransfer, TypeWarehouse:
	default:
		return apperror.NewValidation("invalid invoice type").
			WithDetail("field", "invoiceType").
			WithDetail("value", string(i.Type))
	}

	switch i.Status {
	case StatusRecognition, StatusReceived, StatusApproved, StatusScheduled,
		StatusPaid, StatusRejected, StatusCancelled:
	default:
		return apperror.NewValidation("invalid invoice status").
			WithDetail("field", "status").
			WithDetail("value", string(i.Status))
	}

	if i.Type == TypeInternalTransfer && i.TargetAccountID == nil {
		return apperror.NewValidation("internal transfer requires a target account").
			WithDetail("field", "targetAccountId")
	}
	if i.Type != TypeInternalTransfer && i.TargetAccountID != nil {
		return apperror.NewValidation("target account is only valid for internal transfers").
			WithDetail("field", "targetAccountId")
	}

	if i.AmountGross.IsNegative() || i.AmountNet.IsNegative() || i.VATAmount.IsNegative() {
		return apperror.NewValidation("amounts cannot be negative").
			WithDetail("field", "amountGross")
	}

	return nil
}

// IsTerminal reports whether the invoice reached a final state.
func (i *Invoice) IsTerminal() bool {
	switch i.Status {
	case StatusPaid, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the status change is legal.
func (i *Invoice) CanTransition(to Status) bool {
	if to == StatusCancelled {
		return !i.IsTerminal()
	}
	for _, allowed := range statusTransitions[i.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// HasAmounts reports whether the amount fields are filled in, the
// precondition for leaving recognition.
func (i *Invoice) HasAmounts() bool {
	return i.AmountGross.IsPositive()
}
