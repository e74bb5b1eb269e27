// Package journal provides the append-only double-entry journal.
// Entries move money between chart accounts; they are immutable once
// created, and corrections are new entries.
package journal

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// PostingKind names the structural role of an auto-generated entry.
// Uniqueness of (invoice_id, posting_kind) prevents double-writes.
type PostingKind string

const (
	PostingPrimary  PostingKind = "primary"
	PostingVAT      PostingKind = "vat"
	PostingTransfer PostingKind = "transfer"
	PostingIncome   PostingKind = "income"
)

// Entry is an atomic double-entry record.
type Entry struct {
	entity.BaseEntity

	Date time.Time `db:"date" json:"date"`

	FromAccountID id.ID `db:"from_account_id" json:"fromAccountId"`
	ToAccountID   id.ID `db:"to_account_id" json:"toAccountId"`

	Amount types.Money `db:"amount" json:"amount"`

	Description string `db:"description" json:"description"`

	// InvoiceID links auto entries to their source invoice
	InvoiceID *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`

	// IncomeRecordID links auto entries to their source income record
	IncomeRecordID *id.ID `db:"income_record_id" json:"incomeRecordId,omitempty"`

	// PaymentID links auto entries to their source income payment
	PaymentID *id.ID `db:"payment_id" json:"paymentId,omitempty"`

	// PostingKind is set for auto entries, nil for manual ones
	PostingKind *PostingKind `db:"posting_kind" json:"postingKind,omitempty"`

	CreatedBy *string `db:"created_by" json:"createdBy,omitempty"`

	IsAuto bool `db:"is_auto" json:"isAuto"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewEntry creates a journal entry between two accounts.
func NewEntry(from, to id.ID, amount types.Money, description string, date time.Time) *Entry {
	return &Entry{
		BaseEntity:    entity.NewBaseEntity(),
		Date:          date,
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        types.Round2(amount),
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (e *Entry) Validate(ctx context.Context) error {
	if e.FromAccountID == e.ToAccountID {
		return apperror.NewValidation("entry must move money between two distinct accounts").
			WithDetail("field", "toAccountId")
	}
	if id.IsNil(e.FromAccountID) || id.IsNil(e.ToAccountID) {
		return apperror.NewValidation("both accounts are required").
			WithDetail("field", "fromAccountId")
	}
	if !e.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount").
			WithDetail("value", types.MoneyString(e.Amount))
	}
	if e.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}
