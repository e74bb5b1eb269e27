package recurring

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
)

// TemplateRepository defines the interface for Template persistence.
type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, templateID id.ID) (*Template, error)
	Update(ctx context.Context, t *Template) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Template], error)

	// ListActive returns active templates whose start date is not after now.
	ListActive(ctx context.Context, now time.Time) ([]*Template, error)
}

// IncomeFilter narrows income record queries.
type IncomeFilter struct {
	Types      []IncomeType
	ObjectID   *id.ID
	ContractID *id.ID
	DateFrom   *time.Time
	DateTo     *time.Time

	Limit  int
	Offset int
}

// IncomeRepository defines the interface for IncomeRecord persistence.
type IncomeRepository interface {
	Create(ctx context.Context, r *IncomeRecord) error
	GetByID(ctx context.Context, recordID id.ID) (*IncomeRecord, error)
	List(ctx context.Context, filter IncomeFilter) (domain.ListResult[*IncomeRecord], error)
}
