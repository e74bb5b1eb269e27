package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain/catalogs/cashaccount"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var cashAccountColumns = []string{
	"id", "code", "name", "parent_id", "deletion_mark", "version",
	"kind", "legal_entity_id", "account_number", "bic", "active",
}

// CashAccountRepo is the PostgreSQL repository for money accounts.
type CashAccountRepo struct {
	*BaseCatalogRepo[*cashaccount.CashAccount]
}

// NewCashAccountRepo creates a cash account repository.
func NewCashAccountRepo(txm *postgres.TxManager) *CashAccountRepo {
	return &CashAccountRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			"cash_accounts",
			cashAccountColumns,
			func() *cashaccount.CashAccount { return &cashaccount.CashAccount{} },
		),
	}
}

// GetByAccountNumber finds a bank account by its 20-digit number, nil when absent.
func (r *CashAccountRepo) GetByAccountNumber(ctx context.Context, number string) (*cashaccount.CashAccount, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"account_number": number}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	acc, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return acc, nil
}
