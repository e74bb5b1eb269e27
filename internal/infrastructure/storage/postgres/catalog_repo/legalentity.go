package catalog_repo

import (
	"stroyfin/internal/domain/catalogs/legalentity"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var legalEntityColumns = []string{
	"id", "code", "name", "parent_id", "deletion_mark", "version",
	"inn", "kpp", "tax_system", "director", "legal_address",
}

// LegalEntityRepo is the PostgreSQL repository for own legal entities.
type LegalEntityRepo struct {
	*BaseCatalogRepo[*legalentity.LegalEntity]
}

// NewLegalEntityRepo creates a legal entity repository.
func NewLegalEntityRepo(txm *postgres.TxManager) *LegalEntityRepo {
	return &LegalEntityRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			"legal_entities",
			legalEntityColumns,
			func() *legalentity.LegalEntity { return &legalentity.LegalEntity{} },
		),
	}
}
