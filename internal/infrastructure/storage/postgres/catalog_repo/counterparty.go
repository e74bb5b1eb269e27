package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain/catalogs/counterparty"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var counterpartyColumns = []string{
	"id", "code", "name", "parent_id", "deletion_mark", "version",
	"type", "vendor_subtype", "legal_form",
	"inn", "kpp", "ogrn", "legal_address",
	"contact_person", "phone", "comment",
}

// CounterpartyRepo is the PostgreSQL repository for counterparties.
type CounterpartyRepo struct {
	*BaseCatalogRepo[*counterparty.Counterparty]
}

// NewCounterpartyRepo creates a counterparty repository.
func NewCounterpartyRepo(txm *postgres.TxManager) *CounterpartyRepo {
	return &CounterpartyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			"counterparties",
			counterpartyColumns,
			func() *counterparty.Counterparty { return &counterparty.Counterparty{} },
		),
	}
}

// GetByINN retrieves a counterparty by tax number, nil when absent.
func (r *CounterpartyRepo) GetByINN(ctx context.Context, inn string) (*counterparty.Counterparty, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"inn": inn}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	cp, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return cp, nil
}
