package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain/banking"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var bankOrderColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"connection_id", "bank_account_id",
	"counterparty_name", "counterparty_inn", "counterparty_account", "counterparty_bic",
	"amount", "purpose", "planned_date", "status",
	"invoice_id", "external_id", "idempotency_key",
}

// BankOrderRepo is the PostgreSQL repository for outgoing payment orders.
type BankOrderRepo struct {
	*BaseDocumentRepo[*banking.Order]
}

// NewBankOrderRepo creates a payment order repository.
func NewBankOrderRepo(txm *postgres.TxManager) *BankOrderRepo {
	return &BankOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"bank_orders",
			bankOrderColumns,
			func() *banking.Order { return &banking.Order{} },
		),
	}
}

// ListByStatus returns orders in the given status ordered by planned date.
func (r *BankOrderRepo) ListByStatus(ctx context.Context, status banking.OrderStatus) ([]*banking.Order, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": status}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("planned_date")

	return r.SelectMany(ctx, q)
}
