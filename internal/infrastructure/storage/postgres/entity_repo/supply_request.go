package entity_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/domain"
	"stroyfin/internal/domain/supply"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var supplyRequestColumns = []string{
	"id", "deletion_mark", "version",
	"integration_id", "bitrix_deal_id", "bitrix_deal_title",
	"object_id", "contract_id",
	"request_text", "request_file_uri", "amount",
	"status", "mapping_errors",
	"raw_deal_data", "raw_comments_data",
	"synced_at",
}

// SupplyRequestRepo is the PostgreSQL repository for supply requests.
// The unique (integration_id, bitrix_deal_id) index makes ingest
// idempotent: a lost insert race comes back as a conflict.
type SupplyRequestRepo struct {
	*BaseEntityRepo[*supply.Request]
}

// NewSupplyRequestRepo creates a supply request repository.
func NewSupplyRequestRepo(txm *postgres.TxManager) *SupplyRequestRepo {
	return &SupplyRequestRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"supply_requests",
			supplyRequestColumns,
			func() *supply.Request { return &supply.Request{} },
		),
	}
}

// GetByDealID returns nil without error when the deal is unknown.
func (r *SupplyRequestRepo) GetByDealID(ctx context.Context, integrationID, dealID string) (*supply.Request, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"integration_id": integrationID}).
		Where(squirrel.Eq{"bitrix_deal_id": dealID}).
		Limit(1)

	req, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return req, nil
}

// List retrieves supply requests with domain filtering, newest first.
func (r *SupplyRequestRepo) List(ctx context.Context, filter supply.Filter) (domain.ListResult[*supply.Request], error) {
	result := domain.ListResult[*supply.Request]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false})

	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}
	if filter.IntegrationID != nil {
		q = q.Where(squirrel.Eq{"integration_id": *filter.IntegrationID})
	}
	if filter.ObjectID != nil {
		q = q.Where(squirrel.Eq{"object_id": *filter.ObjectID})
	}
	if filter.SyncedFrom != nil {
		q = q.Where(squirrel.GtOrEq{"synced_at": *filter.SyncedFrom})
	}
	if filter.SyncedTo != nil {
		q = q.Where(squirrel.LtOrEq{"synced_at": *filter.SyncedTo})
	}

	total, err := r.Count(ctx, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	q = q.OrderBy("synced_at DESC")
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
