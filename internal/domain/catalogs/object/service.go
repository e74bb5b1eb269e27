package object

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

// Service provides business logic for the Object catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator *numerator.Service
}

// NewService creates a new Object service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
	}
}

// Create creates a new object, generating a code when absent.
func (s *Service) Create(ctx context.Context, obj *Object) error {
	if err := obj.Validate(ctx); err != nil {
		return err
	}

	if obj.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ОБ"), time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		obj.Code = code
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, obj)
	})
}

// GetByID retrieves an object by ID.
func (s *Service) GetByID(ctx context.Context, objID id.ID) (*Object, error) {
	return s.repo.GetByID(ctx, objID)
}

// Update updates an existing object.
func (s *Service) Update(ctx context.Context, obj *Object) error {
	if err := obj.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, obj)
	})
}

// ChangeStatus moves the object to a new lifecycle status.
func (s *Service) ChangeStatus(ctx context.Context, objID id.ID, status Status) error {
	if !isValidStatus(status) {
		return apperror.NewValidation("invalid object status").
			WithDetail("field", "status").
			WithDetail("value", string(status))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		obj, err := s.repo.GetByID(ctx, objID)
		if err != nil {
			return err
		}
		obj.Status = status
		return s.repo.Update(ctx, obj)
	})
}

// List retrieves objects with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Object], error) {
	return s.repo.List(ctx, filter)
}
