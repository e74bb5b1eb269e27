package supply

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
)

// Filter narrows supply request queries.
type Filter struct {
	Statuses      []Status
	IntegrationID *string
	ObjectID      *id.ID
	SyncedFrom    *time.Time
	SyncedTo      *time.Time

	Limit  int
	Offset int
}

// Repository defines the interface for supply request persistence.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, requestID id.ID) (*Request, error)

	// GetByDealID returns nil without error when the deal is unknown.
	GetByDealID(ctx context.Context, integrationID, dealID string) (*Request, error)

	Update(ctx context.Context, r *Request) error
	List(ctx context.Context, filter Filter) (domain.ListResult[*Request], error)
}
