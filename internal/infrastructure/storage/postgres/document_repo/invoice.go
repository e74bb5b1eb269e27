package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var invoiceColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"source", "invoice_type", "status",
	"object_id", "contract_id", "category_id", "target_account_id",
	"amount_gross", "amount_net", "vat_amount",
	"planned_date", "supply_request_id",
	"scan_blob_uri", "recognized_fields", "description",
}

// InvoiceRepo is the PostgreSQL repository for invoices.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoice.Invoice]
}

// NewInvoiceRepo creates an invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"invoices",
			invoiceColumns,
			func() *invoice.Invoice { return &invoice.Invoice{} },
		),
	}
}

// List retrieves invoices with domain filtering.
func (r *InvoiceRepo) List(ctx context.Context, filter invoice.Filter) (domain.ListResult[*invoice.Invoice], error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false})

	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"invoice_type": filter.Types})
	}
	if len(filter.Sources) > 0 {
		q = q.Where(squirrel.Eq{"source": filter.Sources})
	}
	if filter.ObjectID != nil {
		q = q.Where(squirrel.Eq{"object_id": *filter.ObjectID})
	}
	if filter.ContractID != nil {
		q = q.Where(squirrel.Eq{"contract_id": *filter.ContractID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListWhere(ctx, q, domain.ListFilter{
		OrderBy: "-date",
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// ListPendingRecognition returns invoices stuck in recognition, oldest
// first, for the worker to dispatch.
func (r *InvoiceRepo) ListPendingRecognition(ctx context.Context, limit int) ([]*invoice.Invoice, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": invoice.StatusRecognition}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("created_at ASC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	return r.SelectMany(ctx, q)
}

// ReplaceActAllocations rewrites the invoice's act allocation set.
func (r *InvoiceRepo) ReplaceActAllocations(ctx context.Context, invoiceID id.ID, allocations []invoice.ActAllocation) error {
	querier := r.querier(ctx)

	delSQL, delArgs, err := r.Builder().
		Delete("invoice_act_allocations").
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete act allocations: %w", err)
	}

	if len(allocations) == 0 {
		return nil
	}

	ins := r.Builder().
		Insert("invoice_act_allocations").
		Columns("invoice_id", "act_id", "amount")
	for _, a := range allocations {
		ins = ins.Values(invoiceID, a.ActID, a.Amount)
	}

	insSQL, insArgs, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, insSQL, insArgs...); err != nil {
		return fmt.Errorf("insert act allocations: %w", err)
	}

	return nil
}

// ListActAllocations returns the invoice's act allocations.
func (r *InvoiceRepo) ListActAllocations(ctx context.Context, invoiceID id.ID) ([]invoice.ActAllocation, error) {
	sql, args, err := r.Builder().
		Select("invoice_id", "act_id", "amount").
		From("invoice_act_allocations").
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []invoice.ActAllocation
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list act allocations: %w", err)
	}
	return items, nil
}
