// Package recurring provides scheduled expense generation from templates
// and the income record channel for money that does not arrive through a
// supplier-style invoice.
package recurring

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Frequency is the generation schedule of a template.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Template is a recurring payment template. Each due period produces at
// most one invoice; last_generated_date is the idempotency cursor.
type Template struct {
	entity.Catalog

	// AccountID is the money account the generated expense pays from
	AccountID id.ID `db:"account_id" json:"accountId"`

	// CategoryID is the chart account of the expense
	CategoryID id.ID `db:"category_id" json:"categoryId"`

	ObjectID   *id.ID `db:"object_id" json:"objectId,omitempty"`
	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	Amount    types.Money `db:"amount" json:"amount"`
	Frequency Frequency   `db:"frequency" json:"frequency"`

	StartDate         time.Time  `db:"start_date" json:"startDate"`
	EndDate           *time.Time `db:"end_date" json:"endDate,omitempty"`
	LastGeneratedDate *time.Time `db:"last_generated_date" json:"lastGeneratedDate,omitempty"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// NewTemplate creates an active recurring payment template.
func NewTemplate(code, name string, accountID, categoryID id.ID, amount types.Money, frequency Frequency, startDate time.Time) *Template {
	return &Template{
		Catalog:    entity.NewCatalog(code, name),
		AccountID:  accountID,
		CategoryID: categoryID,
		Amount:     types.Round2(amount),
		Frequency:  frequency,
		StartDate:  startDate,
		IsActive:   true,
	}
}

// Validate implements entity.Validatable interface.
func (t *Template) Validate(ctx context.Context) error {
	if err := t.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch t.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
	default:
		return apperror.NewValidation("invalid frequency").
			WithDetail("field", "frequency").
			WithDetail("value", string(t.Frequency))
	}

	if id.IsNil(t.AccountID) {
		return apperror.NewValidation("money account is required").
			WithDetail("field", "accountId")
	}
	if id.IsNil(t.CategoryID) {
		return apperror.NewValidation("expense category is required").
			WithDetail("field", "categoryId")
	}

	if !t.Amount.IsPositive() {
		return apperror.NewValidation("template amount must be positive").
			WithDetail("field", "amount")
	}

	if t.StartDate.IsZero() {
		return apperror.NewValidation("start date is required").
			WithDetail("field", "startDate")
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return apperror.NewValidation("end date must not precede start date").
			WithDetail("field", "endDate")
	}

	return nil
}

// IncomeType classifies non-invoice income.
type IncomeType string

const (
	IncomeCustomerAct    IncomeType = "customer_act"
	IncomeAdvance        IncomeType = "advance"
	IncomeWarrantyReturn IncomeType = "warranty_return"
	IncomeOther          IncomeType = "other"
)

// IncomeRecord is income that does not originate from a supplier-style
// invoice: customer act settlements, advances, warranty returns.
type IncomeRecord struct {
	entity.Document

	IncomeType IncomeType `db:"income_type" json:"incomeType"`

	ObjectID   *id.ID `db:"object_id" json:"objectId,omitempty"`
	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	// CategoryID is the chart account the income is attributed to
	CategoryID id.ID `db:"category_id" json:"categoryId"`

	Amount      types.Money `db:"amount" json:"amount"`
	PaymentDate time.Time   `db:"payment_date" json:"paymentDate"`
	Description string      `db:"description" json:"description,omitempty"`
}

// NewIncomeRecord creates an income record.
func NewIncomeRecord(incomeType IncomeType, categoryID id.ID, amount types.Money, paymentDate time.Time) *IncomeRecord {
	rec := &IncomeRecord{
		Document:    entity.NewDocument(),
		IncomeType:  incomeType,
		CategoryID:  categoryID,
		Amount:      types.Round2(amount),
		PaymentDate: paymentDate,
	}
	rec.Date = paymentDate
	return rec
}

// Validate implements entity.Validatable interface.
func (r *IncomeRecord) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}

	switch r.IncomeType {
	case IncomeCustomerAct, IncomeAdvance, IncomeWarrantyReturn, IncomeOther:
	default:
		return apperror.NewValidation("invalid income type").
			WithDetail("field", "incomeType").
			WithDetail("value", string(r.IncomeType))
	}

	if id.IsNil(r.CategoryID) {
		return apperror.NewValidation("income category is required").
			WithDetail("field", "categoryId")
	}

	if !r.Amount.IsPositive() {
		return apperror.NewValidation("income amount must be positive").
			WithDetail("field", "amount")
	}

	if r.PaymentDate.IsZero() {
		return apperror.NewValidation("payment date is required").
			WithDetail("field", "paymentDate")
	}

	return nil
}
