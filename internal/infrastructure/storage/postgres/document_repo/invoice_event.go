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

var invoiceEventColumns = []string{
	"id", "deletion_mark", "version",
	"invoice_id", "at", "kind", "actor", "payload",
}

// InvoiceEventRepo is the append-only store for the per-invoice event log.
type InvoiceEventRepo struct {
	txm *postgres.TxManager
}

// NewInvoiceEventRepo creates an invoice event repository.
func NewInvoiceEventRepo(txm *postgres.TxManager) *InvoiceEventRepo {
	return &InvoiceEventRepo{txm: txm}
}

func (r *InvoiceEventRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Append inserts one event. Events are never updated or deleted.
func (r *InvoiceEventRepo) Append(ctx context.Context, e *invoice.Event) error {
	sql, args, err := r.builder().
		Insert("invoice_events").
		Columns(invoiceEventColumns...).
		Values(e.ID, e.DeletionMark, e.Version, e.InvoiceID, e.At, e.Kind, e.Actor, e.Payload).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append invoice event: %w", err)
	}
	return nil
}

// ListByInvoice returns the invoice's events in chronological order.
func (r *InvoiceEventRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*invoice.Event, error) {
	sql, args, err := r.builder().
		Select(invoiceEventColumns...).
		From("invoice_events").
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var events []*invoice.Event
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &events, sql, args...); err != nil {
		return nil, fmt.Errorf("list invoice events: %w", err)
	}
	return events, nil
}
