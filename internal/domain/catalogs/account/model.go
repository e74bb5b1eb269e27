// Package account provides the internal chart of accounts
// (Справочник "Статьи учёта"). Accounts are the nodes journal entries
// move money between: seeded system accounts, lazily created per-object
// and per-contract accounts, and user-defined household accounts.
package account

import (
	"context"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
)

// Type classifies a chart account.
type Type string

const (
	TypeSystem    Type = "system"    // seeded once, never downgraded
	TypeObject    Type = "object"    // one per construction object, lazily created
	TypeContract  Type = "contract"  // one per contract, parented to the object account
	TypeHousehold Type = "household" // user-defined leaves (rent, fuel, salaries)
)

// System account codes seeded at startup.
const (
	CodeProfit         = "profit"
	CodeWorkingCapital = "working_capital"
	CodeVAT            = "vat"
)

// SystemCodes lists the accounts SeedSystem guarantees to exist.
var SystemCodes = []string{CodeProfit, CodeWorkingCapital, CodeVAT}

// Account is a node in the internal chart of accounts.
type Account struct {
	entity.Catalog

	Type Type `db:"account_type" json:"accountType"`

	// ObjectID is set for object-typed accounts
	ObjectID *id.ID `db:"object_id" json:"objectId,omitempty"`

	// ContractID is set for contract-typed accounts
	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	// RequiresContract forces postings through this account to carry a contract
	RequiresContract bool `db:"requires_contract" json:"requiresContract"`

	// IsActive is the soft-delete flag; inactive accounts keep their history
	IsActive bool `db:"is_active" json:"isActive"`

	SortOrder int `db:"sort_order" json:"sortOrder"`
}

// NewAccount creates an account of the given type.
func NewAccount(code, name string, accType Type) *Account {
	return &Account{
		Catalog:  entity.NewCatalog(code, name),
		Type:     accType,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (a *Account) Validate(ctx context.Context) error {
	if err := a.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch a.Type {
	case TypeSystem, TypeObject, TypeContract, TypeHousehold:
	default:
		return apperror.NewValidation("invalid account type").
			WithDetail("field", "accountType").
			WithDetail("value", string(a.Type))
	}

	if a.Code == "" {
		return apperror.NewValidation("account code is required").
			WithDetail("field", "code")
	}

	if a.Type == TypeObject && a.ObjectID == nil {
		return apperror.NewValidation("object account requires an object reference").
			WithDetail("field", "objectId")
	}

	if a.Type == TypeContract && a.ContractID == nil {
		return apperror.NewValidation("contract account requires a contract reference").
			WithDetail("field", "contractId")
	}

	return nil
}

// IsSystem returns true for seeded system accounts.
func (a *Account) IsSystem() bool {
	return a.Type == TypeSystem
}
