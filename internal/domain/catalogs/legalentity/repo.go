package legalentity

import (
	"stroyfin/internal/domain"
)

// Repository defines the interface for LegalEntity persistence.
type Repository interface {
	domain.CatalogRepository[*LegalEntity]
}
