package proposal

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/pkg/numerator"
)

// Service provides business logic for proposals.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator *numerator.Service
}

// NewService creates a new proposal service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
	}
}

// Create persists a new first-version proposal and assigns its number.
// Technical proposals are numbered {seq}_{DD.MM.YY}; mounting proposals
// attached to a ТКП get the ТКП number with a -NN suffix, detached ones
// get МП-{YYYY}-{NNN}.
func (s *Service) Create(ctx context.Context, p *Proposal) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if p.Number == "" {
			number, err := s.assignNumber(ctx, p)
			if err != nil {
				return err
			}
			p.Number = number
		}
		return s.repo.Create(ctx, p)
	})
}

// GetByID retrieves a proposal by ID.
func (s *Service) GetByID(ctx context.Context, proposalID id.ID) (*Proposal, error) {
	return s.repo.GetByID(ctx, proposalID)
}

// NewVersion copies the current version into a new draft and makes it
// current. The source version is frozen, not mutated.
func (s *Service) NewVersion(ctx context.Context, proposalID id.ID) (*Proposal, error) {
	var next *Proposal

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, proposalID)
		if err != nil {
			return err
		}
		if !current.IsCurrent {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only the current version can be branched").
				WithDetail("proposalId", proposalID)
		}

		copied := *current
		copied.Document = current.Document
		copied.BaseDocument.ID = id.New()
		copied.CreatedAt = time.Now().UTC()
		copied.UpdatedAt = copied.CreatedAt
		copied.Version = 1
		copied.Status = StatusDraft
		copied.ApprovedBy = nil
		copied.ApprovedAt = nil
		copied.VersionNumber = current.VersionNumber + 1
		parentID := current.ID
		copied.ParentVersionID = &parentID
		copied.IsCurrent = true

		current.IsCurrent = false
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &copied); err != nil {
			return err
		}
		next = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Approve marks the current version approved.
func (s *Service) Approve(ctx context.Context, proposalID id.ID, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return apperror.NewInvalidTransition("proposal", string(p.Status), string(StatusApproved))
		}

		now := time.Now().UTC()
		p.Status = StatusApproved
		p.ApprovedBy = &actor
		p.ApprovedAt = &now
		return s.repo.Update(ctx, p)
	})
}

// Decline marks the current version declined.
func (s *Service) Decline(ctx context.Context, proposalID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return apperror.NewInvalidTransition("proposal", string(p.Status), string(StatusDeclined))
		}
		p.Status = StatusDeclined
		return s.repo.Update(ctx, p)
	})
}

// ListVersions returns the full version chain of a proposal.
func (s *Service) ListVersions(ctx context.Context, proposalID id.ID) ([]*Proposal, error) {
	return s.repo.ListVersions(ctx, proposalID)
}

// List retrieves proposals with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Proposal], error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) assignNumber(ctx context.Context, p *Proposal) (string, error) {
	switch {
	case p.Kind == KindTechnical:
		return s.numerator.GetNextNumber(ctx, numerator.TechnicalProposalConfig(), p.Date)

	case p.TechnicalProposalID != nil:
		tkp, err := s.repo.GetByID(ctx, *p.TechnicalProposalID)
		if err != nil {
			return "", fmt.Errorf("resolve technical proposal: %w", err)
		}
		return s.numerator.NextSuffix(ctx, tkp.Number)

	default:
		return s.numerator.GetNextNumber(ctx, numerator.MountingProposalConfig(), p.Date)
	}
}
