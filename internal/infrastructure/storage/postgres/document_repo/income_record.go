package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain"
	"stroyfin/internal/domain/recurring"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var incomeRecordColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"income_type", "object_id", "contract_id", "category_id",
	"amount", "payment_date", "description",
}

// IncomeRecordRepo is the PostgreSQL repository for income records.
type IncomeRecordRepo struct {
	*BaseDocumentRepo[*recurring.IncomeRecord]
}

// NewIncomeRecordRepo creates an income record repository.
func NewIncomeRecordRepo(txm *postgres.TxManager) *IncomeRecordRepo {
	return &IncomeRecordRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"income_records",
			incomeRecordColumns,
			func() *recurring.IncomeRecord { return &recurring.IncomeRecord{} },
		),
	}
}

// List retrieves income records with domain filtering.
func (r *IncomeRecordRepo) List(ctx context.Context, filter recurring.IncomeFilter) (domain.ListResult[*recurring.IncomeRecord], error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false})

	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"income_type": filter.Types})
	}
	if filter.ObjectID != nil {
		q = q.Where(squirrel.Eq{"object_id": *filter.ObjectID})
	}
	if filter.ContractID != nil {
		q = q.Where(squirrel.Eq{"contract_id": *filter.ContractID})
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
