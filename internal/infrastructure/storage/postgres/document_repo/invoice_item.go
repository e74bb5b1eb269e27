package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var invoiceItemColumns = []string{
	"id", "deletion_mark", "version",
	"invoice_id", "raw_name", "matched_product_id",
	"quantity", "unit", "price_per_unit", "amount", "vat_amount",
}

// InvoiceItemRepo is the PostgreSQL repository for invoice lines.
// Lines are replaced wholesale on every amendment.
type InvoiceItemRepo struct {
	txm *postgres.TxManager
}

// NewInvoiceItemRepo creates an invoice line repository.
func NewInvoiceItemRepo(txm *postgres.TxManager) *InvoiceItemRepo {
	return &InvoiceItemRepo{txm: txm}
}

func (r *InvoiceItemRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *InvoiceItemRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// ReplaceForInvoice rewrites the invoice's line set.
func (r *InvoiceItemRepo) ReplaceForInvoice(ctx context.Context, invoiceID id.ID, items []*invoice.Item) error {
	querier := r.querier(ctx)

	delSQL, delArgs, err := r.builder().
		Delete("invoice_items").
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	ins := r.builder().
		Insert("invoice_items").
		Columns(invoiceItemColumns...)
	for _, it := range items {
		ins = ins.Values(
			it.ID, it.DeletionMark, it.Version,
			invoiceID, it.RawName, it.MatchedProductID,
			it.Quantity, it.Unit, it.PricePerUnit, it.Amount, it.VATAmount,
		)
	}

	insSQL, insArgs, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, insSQL, insArgs...); err != nil {
		return fmt.Errorf("insert invoice items: %w", err)
	}

	return nil
}

// ListByInvoice returns the invoice's lines in insertion order.
func (r *InvoiceItemRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*invoice.Item, error) {
	sql, args, err := r.builder().
		Select(invoiceItemColumns...).
		From("invoice_items").
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*invoice.Item
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	return items, nil
}
