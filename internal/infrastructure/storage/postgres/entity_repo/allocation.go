package entity_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/documents/payment"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var allocationColumns = []string{
	"id", "deletion_mark", "version",
	"act_id", "payment_id", "amount",
}

// AllocationRepo is the PostgreSQL repository for act-payment
// allocations. Allocations are append-only.
type AllocationRepo struct {
	*BaseEntityRepo[*payment.Allocation]
}

// NewAllocationRepo creates an allocation repository.
func NewAllocationRepo(txm *postgres.TxManager) *AllocationRepo {
	return &AllocationRepo{
		BaseEntityRepo: NewBaseEntityRepo(
			txm,
			"act_payment_allocations",
			allocationColumns,
			func() *payment.Allocation { return &payment.Allocation{} },
		),
	}
}

// SumByAct totals allocated amounts for an act.
func (r *AllocationRepo) SumByAct(ctx context.Context, actID id.ID) (types.Money, error) {
	return r.sum(ctx, "act_id", actID)
}

// SumByPayment totals allocated amounts for a payment.
func (r *AllocationRepo) SumByPayment(ctx context.Context, paymentID id.ID) (types.Money, error) {
	return r.sum(ctx, "payment_id", paymentID)
}

func (r *AllocationRepo) sum(ctx context.Context, column string, entityID id.ID) (types.Money, error) {
	sql, args, err := r.Builder().
		Select("COALESCE(SUM(amount), 0)").
		From("act_payment_allocations").
		Where(squirrel.Eq{column: entityID}).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build query: %w", err)
	}

	var total types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum allocations: %w", err)
	}
	return total, nil
}

// ListByAct returns allocations attached to an act.
func (r *AllocationRepo) ListByAct(ctx context.Context, actID id.ID) ([]*payment.Allocation, error) {
	return r.SelectMany(ctx, r.baseSelect().Where(squirrel.Eq{"act_id": actID}))
}

// ListByPayment returns allocations attached to a payment.
func (r *AllocationRepo) ListByPayment(ctx context.Context, paymentID id.ID) ([]*payment.Allocation, error) {
	return r.SelectMany(ctx, r.baseSelect().Where(squirrel.Eq{"payment_id": paymentID}))
}
