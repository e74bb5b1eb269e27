package proposal

import (
	"context"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
)

// Repository defines the interface for Proposal persistence.
type Repository interface {
	Create(ctx context.Context, p *Proposal) error
	GetByID(ctx context.Context, proposalID id.ID) (*Proposal, error)
	Update(ctx context.Context, p *Proposal) error

	// ListVersions returns all versions of the chain the proposal belongs
	// to, ordered by version number.
	ListVersions(ctx context.Context, proposalID id.ID) ([]*Proposal, error)

	// CountMountingForTechnical counts mounting proposals attached to a ТКП.
	CountMountingForTechnical(ctx context.Context, technicalID id.ID) (int, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Proposal], error)
}
