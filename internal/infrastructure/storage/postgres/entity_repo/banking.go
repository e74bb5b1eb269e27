package entity_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/banking"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var bankConnectionColumns = []string{
	"id", "deletion_mark", "version",
	"name", "provider", "client_id",
	"access_token", "refresh_token", "token_expires_at",
	"last_sync_at", "is_active",
}

// BankConnectionRepo is the PostgreSQL repository for bank API connections.
type BankConnectionRepo struct {
	*BaseEntityRepo[*banking.Connection]
}

// NewBankConnectionRepo creates a bank connection repository.
func NewBankConnectionRepo(txm *postgres.TxManager) *BankConnectionRepo {
	return &BankConnectionRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"bank_connections",
			bankConnectionColumns,
			func() *banking.Connection { return &banking.Connection{} },
		),
	}
}

// ListActive returns connections eligible for sync.
func (r *BankConnectionRepo) ListActive(ctx context.Context) ([]*banking.Connection, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("name")

	return r.SelectMany(ctx, q)
}

var bankAccountColumns = []string{
	"id", "deletion_mark", "version",
	"connection_id", "external_id",
	"account_number", "currency", "cash_account_id",
}

// BankAccountRepo is the PostgreSQL repository for accounts discovered
// through a bank connection.
type BankAccountRepo struct {
	*BaseEntityRepo[*banking.Account]
}

// NewBankAccountRepo creates a bank account repository.
func NewBankAccountRepo(txm *postgres.TxManager) *BankAccountRepo {
	return &BankAccountRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"bank_accounts",
			bankAccountColumns,
			func() *banking.Account { return &banking.Account{} },
		),
	}
}

// ListByConnection returns the connection's accounts.
func (r *BankAccountRepo) ListByConnection(ctx context.Context, connectionID id.ID) ([]*banking.Account, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"connection_id": connectionID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("account_number")

	return r.SelectMany(ctx, q)
}

var bankTransactionColumns = []string{
	"id", "deletion_mark", "version",
	"connection_id", "bank_account_id", "external_id",
	"direction", "amount", "payment_date",
	"counterparty_name", "counterparty_inn", "description",
	"status", "payment_id",
}

// BankTransactionRepo is the PostgreSQL repository for imported
// statement lines. The unique (connection_id, external_id) index makes
// imports idempotent.
type BankTransactionRepo struct {
	*BaseEntityRepo[*banking.Transaction]
}

// NewBankTransactionRepo creates a bank transaction repository.
func NewBankTransactionRepo(txm *postgres.TxManager) *BankTransactionRepo {
	return &BankTransactionRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"bank_transactions",
			bankTransactionColumns,
			func() *banking.Transaction { return &banking.Transaction{} },
		),
	}
}

// GetByExternalID returns nil without error when the line is unknown.
func (r *BankTransactionRepo) GetByExternalID(ctx context.Context, connectionID id.ID, externalID string) (*banking.Transaction, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"connection_id": connectionID}).
		Where(squirrel.Eq{"external_id": externalID}).
		Limit(1)

	t, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return t, nil
}

// List retrieves statement lines with filtering, newest first.
func (r *BankTransactionRepo) List(ctx context.Context, filter banking.TransactionFilter) (domain.ListResult[*banking.Transaction], error) {
	result := domain.ListResult[*banking.Transaction]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false})

	if filter.ConnectionID != nil {
		q = q.Where(squirrel.Eq{"connection_id": *filter.ConnectionID})
	}
	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"payment_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"payment_date": *filter.DateTo})
	}

	total, err := r.Count(ctx, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	q = q.OrderBy("payment_date DESC")
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

var bankOrderEventColumns = []string{
	"id", "deletion_mark", "version",
	"order_id", "at", "kind", "actor", "payload",
}

// BankOrderEventRepo is the append-only store for payment order history.
type BankOrderEventRepo struct {
	txm *postgres.TxManager
}

// NewBankOrderEventRepo creates an order event repository.
func NewBankOrderEventRepo(txm *postgres.TxManager) *BankOrderEventRepo {
	return &BankOrderEventRepo{txm: txm}
}

func (r *BankOrderEventRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Append inserts one event. Events are never updated or deleted.
func (r *BankOrderEventRepo) Append(ctx context.Context, e *banking.OrderEvent) error {
	sql, args, err := r.builder().
		Insert("bank_order_events").
		Columns(bankOrderEventColumns...).
		Values(e.ID, e.DeletionMark, e.Version, e.OrderID, e.At, e.Kind, e.Actor, e.Payload).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append order event: %w", err)
	}
	return nil
}

// ListByOrder returns the order's events in chronological order.
func (r *BankOrderEventRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*banking.OrderEvent, error) {
	sql, args, err := r.builder().
		Select(bankOrderEventColumns...).
		From("bank_order_events").
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var events []*banking.OrderEvent
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &events, sql, args...); err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	return events, nil
}
