package counterparty

import (
	"context"

	"stroyfin/internal/domain"
)

// Repository defines the interface for Counterparty persistence.
type Repository interface {
	domain.CatalogRepository[*Counterparty]

	// GetByINN retrieves a counterparty by tax number, nil when absent.
	GetByINN(ctx context.Context, inn string) (*Counterparty, error)
}
