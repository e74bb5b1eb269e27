package account

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
)

// Repository defines the interface for chart account persistence.
type Repository interface {
	domain.CatalogRepository[*Account]

	// GetByObjectID finds the account bound to an object, nil when absent.
	GetByObjectID(ctx context.Context, objectID id.ID) (*Account, error)

	// GetByContractID finds the account bound to a contract, nil when absent.
	GetByContractID(ctx context.Context, contractID id.ID) (*Account, error)

	// ListChildren returns direct children of the account.
	ListChildren(ctx context.Context, parentID id.ID) ([]*Account, error)

	// Balance computes the account balance from committed journal entries
	// with date <= asOf (nil asOf means all entries).
	Balance(ctx context.Context, accountID id.ID, asOf *time.Time) (types.Money, error)

	// BalanceSubtree computes balance(account) plus the balances of all
	// descendants via a recursive walk of the parent chain.
	BalanceSubtree(ctx context.Context, accountID id.ID, asOf *time.Time) (types.Money, error)
}
