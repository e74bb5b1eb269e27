// Package cashaccount provides the catalog of money accounts
// (Справочник "Счета ДС") payments are made from and received to.
package cashaccount

import (
	"context"
	"regexp"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
)

var accountNumberRE = regexp.MustCompile(`^\d{20}$`)

// Kind defines the kind of money account.
type Kind string

const (
	KindBank Kind = "bank" // Расчётный счёт
	KindCash Kind = "cash" // Касса
	KindCard Kind = "card" // Корпоративная карта
)

// CashAccount represents a source or destination of money.
type CashAccount struct {
	entity.Catalog

	Kind Kind `db:"kind" json:"kind"`

	// LegalEntityID is the owning legal entity (nullable for personal cards)
	LegalEntityID *id.ID `db:"legal_entity_id" json:"legalEntityId,omitempty"`

	// AccountNumber is the 20-digit bank account number (bank kind only)
	AccountNumber *string `db:"account_number" json:"accountNumber,omitempty"`

	// BIC of the servicing bank (bank kind only)
	BIC *string `db:"bic" json:"bic,omitempty"`

	// Active accounts appear in payment forms
	Active bool `db:"active" json:"active"`
}

// NewCashAccount creates a money account with required fields.
func NewCashAccount(code, name string, kind Kind) *CashAccount {
	return &CashAccount{
		Catalog: entity.NewCatalog(code, name),
		Kind:    kind,
		Active:  true,
	}
}

// Validate implements entity.Validatable interface.
func (a *CashAccount) Validate(ctx context.Context) error {
	if err := a.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch a.Kind {
	case KindBank, KindCash, KindCard:
	default:
		return apperror.NewValidation("invalid cash account kind").
			WithDetail("field", "kind").
			WithDetail("value", string(a.Kind))
	}

	if a.Kind == KindBank {
		if a.AccountNumber == nil || !accountNumberRE.MatchString(*a.AccountNumber) {
			return apperror.NewValidation("bank account number must be 20 digits").
				WithDetail("field", "accountNumber")
		}
	}

	return nil
}
