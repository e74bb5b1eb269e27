package entity_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/journal"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var journalEntryColumns = []string{
	"id", "deletion_mark", "version",
	"date", "from_account_id", "to_account_id",
	"amount", "description",
	"invoice_id", "income_record_id", "payment_id", "posting_kind",
	"created_by", "is_auto", "created_at",
}

// JournalEntryRepo is the PostgreSQL repository for the double-entry
// journal. The journal is append-only; there is no update or delete.
// A unique partial index on (invoice_id, posting_kind) blocks duplicate
// auto postings.
type JournalEntryRepo struct {
	*BaseEntityRepo[*journal.Entry]
}

// NewJournalEntryRepo creates a journal repository.
func NewJournalEntryRepo(txm *postgres.TxManager) *JournalEntryRepo {
	return &JournalEntryRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"journal_entries",
			journalEntryColumns,
			func() *journal.Entry { return &journal.Entry{} },
		),
	}
}

// CreateBatch inserts all entries in one statement. Callers wrap this
// in a transaction together with the source document update.
func (r *JournalEntryRepo) CreateBatch(ctx context.Context, entries []*journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := r.Builder().
		Insert("journal_entries").
		Columns(journalEntryColumns...)
	for _, e := range entries {
		ins = ins.Values(
			e.ID, e.DeletionMark, e.Version,
			e.Date, e.FromAccountID, e.ToAccountID,
			e.Amount, e.Description,
			e.InvoiceID, e.IncomeRecordID, e.PaymentID, e.PostingKind,
			e.CreatedBy, e.IsAuto, e.CreatedAt,
		)
	}

	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("duplicate posting: %w", err)
		}
		return fmt.Errorf("insert journal entries: %w", err)
	}
	return nil
}

// ListByInvoice returns entries produced for an invoice, ordered by kind.
func (r *JournalEntryRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*journal.Entry, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("posting_kind", "created_at")

	return r.SelectMany(ctx, q)
}

// ListByIncomeRecord returns entries produced for an income record.
func (r *JournalEntryRepo) ListByIncomeRecord(ctx context.Context, incomeRecordID id.ID) ([]*journal.Entry, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"income_record_id": incomeRecordID}).
		OrderBy("posting_kind", "created_at")

	return r.SelectMany(ctx, q)
}

// ListByPayment returns entries produced for an income payment.
func (r *JournalEntryRepo) ListByPayment(ctx context.Context, paymentID id.ID) ([]*journal.Entry, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"payment_id": paymentID}).
		OrderBy("posting_kind", "created_at")

	return r.SelectMany(ctx, q)
}

// List retrieves entries with filtering, newest first.
func (r *JournalEntryRepo) List(ctx context.Context, filter journal.EntryFilter) (domain.ListResult[*journal.Entry], error) {
	result := domain.ListResult[*journal.Entry]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.AccountID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_account_id": *filter.AccountID},
			squirrel.Eq{"to_account_id": *filter.AccountID},
		})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}
	if filter.AutoOnly {
		q = q.Where(squirrel.Eq{"is_auto": true})
	}

	total, err := r.Count(ctx, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	q = q.OrderBy("date DESC", "created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	items, err := r.SelectMany(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}
