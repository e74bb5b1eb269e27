package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var accountColumns = []string{
	"id", "code", "name", "parent_id", "deletion_mark", "version",
	"account_type", "object_id", "contract_id",
	"requires_contract", "is_active", "sort_order",
}

// AccountRepo is the PostgreSQL repository for the chart of accounts.
type AccountRepo struct {
	*BaseCatalogRepo[*account.Account]
}

// NewAccountRepo creates an account repository.
func NewAccountRepo(txm *postgres.TxManager) *AccountRepo {
	return &AccountRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			"accounts",
			accountColumns,
			func() *account.Account { return &account.Account{} },
		),
	}
}

// GetByObjectID finds the account bound to an object, nil when absent.
func (r *AccountRepo) GetByObjectID(ctx context.Context, objectID id.ID) (*account.Account, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"object_id": objectID}).
		Where(squirrel.Eq{"account_type": account.TypeObject}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	acc, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return acc, nil
}

// GetByContractID finds the account bound to a contract, nil when absent.
func (r *AccountRepo) GetByContractID(ctx context.Context, contractID id.ID) (*account.Account, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"contract_id": contractID}).
		Where(squirrel.Eq{"account_type": account.TypeContract}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	acc, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return acc, nil
}

// ListChildren returns direct children of the account ordered by sort order.
func (r *AccountRepo) ListChildren(ctx context.Context, parentID id.ID) ([]*account.Account, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"parent_id": parentID.String()}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("sort_order", "name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*account.Account
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return items, nil
}

// Balance computes the account balance from journal entries: incoming
// amounts minus outgoing, up to asOf inclusive (nil asOf means all time).
func (r *AccountRepo) Balance(ctx context.Context, accountID id.ID, asOf *time.Time) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(
			CASE WHEN to_account_id = $1 THEN amount ELSE -amount END
		), 0)
		FROM journal_entries
		WHERE (to_account_id = $1 OR from_account_id = $1)
		  AND ($2::timestamptz IS NULL OR date <= $2)`

	var balance types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, accountID, asOf).Scan(&balance); err != nil {
		return types.Zero(), fmt.Errorf("account balance: %w", err)
	}
	return balance, nil
}

// BalanceSubtree computes the balance of the account together with all
// its descendants. Entries inside the subtree cancel out, so the result
// is the net flow across the subtree boundary.
func (r *AccountRepo) BalanceSubtree(ctx context.Context, accountID id.ID, asOf *time.Time) (types.Money, error) {
	sql := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM accounts WHERE id = $1
			UNION ALL
			SELECT a.id FROM accounts a
			JOIN subtree s ON a.parent_id = s.id::text
		)
		SELECT COALESCE(SUM(
			CASE WHEN e.to_account_id IN (SELECT id FROM subtree) THEN e.amount ELSE 0 END
		), 0) - COALESCE(SUM(
			CASE WHEN e.from_account_id IN (SELECT id FROM subtree) THEN e.amount ELSE 0 END
		), 0)
		FROM journal_entries e
		WHERE (e.to_account_id IN (SELECT id FROM subtree)
		    OR e.from_account_id IN (SELECT id FROM subtree))
		  AND ($2::timestamptz IS NULL OR e.date <= $2)`

	var balance types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, accountID, asOf).Scan(&balance); err != nil {
		return types.Zero(), fmt.Errorf("subtree balance: %w", err)
	}
	return balance, nil
}
