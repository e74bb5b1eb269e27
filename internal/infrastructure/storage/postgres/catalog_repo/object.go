package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var objectColumns = []string{
	"id", "code", "name", "parent_id", "deletion_mark", "version",
	"address", "status", "cipher", "start_date", "end_date",
}

// ObjectRepo is the PostgreSQL repository for construction objects.
type ObjectRepo struct {
	*BaseCatalogRepo[*object.Object]
}

// NewObjectRepo creates an object repository.
func NewObjectRepo(txm *postgres.TxManager) *ObjectRepo {
	return &ObjectRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			"objects",
			objectColumns,
			func() *object.Object { return &object.Object{} },
		),
	}
}

// GetByCipher finds an object by its project cipher, nil when absent.
// Ciphers are matched case-insensitively.
func (r *ObjectRepo) GetByCipher(ctx context.Context, cipher string) (*object.Object, error) {
	q := r.baseSelect().
		Where(squirrel.Expr("LOWER(cipher) = LOWER(?)", cipher)).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	obj, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return obj, nil
}
