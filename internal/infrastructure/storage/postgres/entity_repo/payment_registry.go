package entity_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain/documents/payment"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var registryColumns = []string{
	"id", "deletion_mark", "version",
	"account_id", "category_id", "contract_id", "act_id",
	"planned_date", "amount", "status",
	"initiator", "approved_by", "approved_at",
	"comment", "payment_id",
}

// RegistryRepo is the PostgreSQL repository for pending-payment
// registry rows.
type RegistryRepo struct {
	*BaseEntityRepo[*payment.Registry]
}

// NewRegistryRepo creates a registry repository.
func NewRegistryRepo(txm *postgres.TxManager) *RegistryRepo {
	return &RegistryRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"payment_registry",
			registryColumns,
			func() *payment.Registry { return &payment.Registry{} },
		),
	}
}

// ListByStatus returns registry rows in the given status ordered by
// planned date.
func (r *RegistryRepo) ListByStatus(ctx context.Context, status payment.RegistryStatus) ([]*payment.Registry, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": status}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("planned_date")

	return r.SelectMany(ctx, q)
}
