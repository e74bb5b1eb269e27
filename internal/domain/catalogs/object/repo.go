package object

import (
	"stroyfin/internal/domain"
)

// Repository defines the interface for Object persistence.
type Repository interface {
	domain.CatalogRepository[*Object]
}
