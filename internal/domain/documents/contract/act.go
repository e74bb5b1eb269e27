package contract

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// ActStatus is the lifecycle status of a works certificate.
type ActStatus string

const (
	ActDraft     ActStatus = "draft"
	ActSigned    ActStatus = "signed"
	ActCancelled ActStatus = "cancelled"
)

// Act is a signed works certificate (КС-2/КС-3 style) against a contract.
// Only signed acts contribute to contract balance and margin.
type Act struct {
	entity.Document

	ContractID id.ID `db:"contract_id" json:"contractId"`

	PeriodStart *time.Time `db:"period_start" json:"periodStart,omitempty"`
	PeriodEnd   *time.Time `db:"period_end" json:"periodEnd,omitempty"`

	AmountGross types.Money `db:"amount_gross" json:"amountGross"`
	AmountNet   types.Money `db:"amount_net" json:"amountNet"`
	VATAmount   types.Money `db:"vat_amount" json:"vatAmount"`

	Status ActStatus `db:"status" json:"status"`

	DueDate *time.Time `db:"due_date" json:"dueDate,omitempty"`
}

// NewAct creates a draft act for a contract.
func NewAct(contractID id.ID, number string, date time.Time, amountGross types.Money) *Act {
	doc := entity.NewDocument()
	doc.Number = number
	doc.Date = date
	return &Act{
		Document:    doc,
		ContractID:  contractID,
		AmountGross: types.Round2(amountGross),
		Status:      ActDraft,
	}
}

// DeriveVAT fills amount_net and vat_amount from amount_gross and the
// contract's VAT rate when they were not provided.
func (a *Act) DeriveVAT(vatRate types.Money) {
	if !a.AmountNet.IsZero() || !a.VATAmount.IsZero() {
		return
	}
	a.AmountNet, a.VATAmount = types.SplitGross(a.AmountGross, vatRate)
}

// Validate implements entity.Validatable interface.
func (a *Act) Validate(ctx context.Context) error {
	if err := a.Document.Validate(ctx); err != nil {
		return err
	}

	if a.Number == "" {
		return apperror.NewValidation("act number is required").
			WithDetail("field", "number")
	}
	if id.IsNil(a.ContractID) {
		return apperror.NewValidation("contract is required").
			WithDetail("field", "contractId")
	}

	switch a.Status {
	case ActDraft, ActSigned, ActCancelled:
	default:
		return apperror.NewValidation("invalid act status").
			WithDetail("field", "status").
			WithDetail("value", string(a.Status))
	}

	if !a.AmountGross.IsPositive() {
		return apperror.NewValidation("gross amount must be positive").
			WithDetail("field", "amountGross")
	}

	if !a.AmountNet.Add(a.VATAmount).Equal(a.AmountGross) {
		return apperror.NewValidation("net plus VAT must equal gross").
			WithDetail("field", "amountNet").
			WithDetail("gross", types.MoneyString(a.AmountGross)).
			WithDetail("net", types.MoneyString(a.AmountNet)).
			WithDetail("vat", types.MoneyString(a.VATAmount))
	}

	if a.PeriodStart != nil && a.PeriodEnd != nil && a.PeriodEnd.Before(*a.PeriodStart) {
		return apperror.NewValidation("period end is before period start").
			WithDetail("field", "periodEnd")
	}

	return nil
}
