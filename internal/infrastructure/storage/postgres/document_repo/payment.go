package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain"
	"stroyfin/internal/domain/documents/payment"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var paymentColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"payment_type", "status", "account_id", "contract_id",
	"category_id", "legal_entity_id", "payment_date",
	"amount", "amount_gross", "amount_net", "vat_amount",
	"description", "payment_registry_id", "invoice_id",
	"is_internal_transfer", "internal_transfer_group",
}

// PaymentRepo is the PostgreSQL repository for payment facts.
type PaymentRepo struct {
	*BaseDocumentRepo[*payment.Payment]
}

// NewPaymentRepo creates a payment repository.
func NewPaymentRepo(txm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"payments",
			paymentColumns,
			func() *payment.Payment { return &payment.Payment{} },
		),
	}
}

// List retrieves payments with domain filtering.
func (r *PaymentRepo) List(ctx context.Context, filter payment.Filter) (domain.ListResult[*payment.Payment], error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false})

	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"payment_type": filter.Types})
	}
	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if filter.ContractID != nil {
		q = q.Where(squirrel.Eq{"contract_id": *filter.ContractID})
	}
	if filter.AccountID != nil {
		q = q.Where(squirrel.Eq{"account_id": *filter.AccountID})
	}
	if filter.Amount != nil {
		q = q.Where(squirrel.Eq{"amount": *filter.Amount})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"payment_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"payment_date": *filter.DateTo})
	}

	return r.ListWhere(ctx, q, domain.ListFilter{
		OrderBy: "-payment_date",
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}
