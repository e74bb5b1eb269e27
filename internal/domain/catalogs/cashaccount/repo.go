package cashaccount

import (
	"context"

	"stroyfin/internal/domain"
)

// Repository defines the interface for CashAccount persistence.
type Repository interface {
	domain.CatalogRepository[*CashAccount]

	// GetByAccountNumber finds a bank account by its 20-digit number, nil when absent.
	GetByAccountNumber(ctx context.Context, number string) (*CashAccount, error)
}
