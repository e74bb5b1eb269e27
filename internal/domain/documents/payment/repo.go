package payment

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
)

// Filter narrows payment queries.
type Filter struct {
	Types      []Type
	Statuses   []Status
	ContractID *id.ID
	AccountID  *id.ID
	Amount     *types.Money
	DateFrom   *time.Time
	DateTo     *time.Time

	Limit  int
	Offset int
}

// Repository defines the interface for Payment persistence.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	List(ctx context.Context, filter Filter) (domain.ListResult[*Payment], error)
}

// RegistryRepository defines the interface for Registry persistence.
type RegistryRepository interface {
	Create(ctx context.Context, r *Registry) error
	GetByID(ctx context.Context, registryID id.ID) (*Registry, error)
	Update(ctx context.Context, r *Registry) error
	ListByStatus(ctx context.Context, status RegistryStatus) ([]*Registry, error)
}

// AllocationRepository defines the interface for act-payment allocations.
type AllocationRepository interface {
	Create(ctx context.Context, a *Allocation) error

	// SumByAct totals allocated amounts for an act.
	SumByAct(ctx context.Context, actID id.ID) (types.Money, error)

	// SumByPayment totals allocated amounts for a payment.
	SumByPayment(ctx context.Context, paymentID id.ID) (types.Money, error)

	ListByAct(ctx context.Context, actID id.ID) ([]*Allocation, error)
	ListByPayment(ctx context.Context, paymentID id.ID) ([]*Allocation, error)
}
