package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stroyfin/internal/domain/recurring"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var recurringTemplateColumns = []string{
	"id", "code", "name", "parent_id", "deletion_mark", "version",
	"account_id", "category_id", "object_id", "contract_id",
	"amount", "frequency", "start_date", "end_date",
	"last_generated_date", "is_active",
}

// RecurringTemplateRepo is the PostgreSQL repository for recurring
// payment templates.
type RecurringTemplateRepo struct {
	*BaseCatalogRepo[*recurring.Template]
}

// NewRecurringTemplateRepo creates a recurring template repository.
func NewRecurringTemplateRepo(txm *postgres.TxManager) *RecurringTemplateRepo {
	return &RecurringTemplateRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			"recurring_templates",
			recurringTemplateColumns,
			func() *recurring.Template { return &recurring.Template{} },
		),
	}
}

// ListActive returns templates eligible for generation at the given
// moment: active, not deleted, already started.
func (r *RecurringTemplateRepo) ListActive(ctx context.Context, now time.Time) ([]*recurring.Template, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.LtOrEq{"start_date": now}).
		OrderBy("name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*recurring.Template
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	return items, nil
}
