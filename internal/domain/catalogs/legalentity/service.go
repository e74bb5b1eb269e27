package legalentity

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/pkg/numerator"
)

// Service provides business logic for the LegalEntity catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator *numerator.Service
}

// NewService creates a new LegalEntity service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
	}
}

// Create creates a new legal entity, generating a code when absent.
func (s *Service) Create(ctx context.Context, e *LegalEntity) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}

	if e.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ОРГ"), time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		e.Code = code
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, e)
	})
}

// GetByID retrieves a legal entity by ID.
func (s *Service) GetByID(ctx context.Context, entityID id.ID) (*LegalEntity, error) {
	return s.repo.GetByID(ctx, entityID)
}

// Update updates an existing legal entity.
func (s *Service) Update(ctx context.Context, e *LegalEntity) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, e)
	})
}

// List retrieves legal entities with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*LegalEntity], error) {
	return s.repo.List(ctx, filter)
}
