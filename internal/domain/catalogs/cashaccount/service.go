package cashaccount

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/pkg/numerator"
)

// Service provides business logic for the CashAccount catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator *numerator.Service
}

// NewService creates a new CashAccount service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
	}
}

// Create creates a new money account, generating a code when absent.
func (s *Service) Create(ctx context.Context, acc *CashAccount) error {
	if err := acc.Validate(ctx); err != nil {
		return err
	}

	if acc.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ДС"), time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		acc.Code = code
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, acc)
	})
}

// GetByID retrieves a money account by ID.
func (s *Service) GetByID(ctx context.Context, accID id.ID) (*CashAccount, error) {
	return s.repo.GetByID(ctx, accID)
}

// GetByAccountNumber finds a bank money account by number.
func (s *Service) GetByAccountNumber(ctx context.Context, number string) (*CashAccount, error) {
	return s.repo.GetByAccountNumber(ctx, number)
}

// Update updates an existing money account.
func (s *Service) Update(ctx context.Context, acc *CashAccount) error {
	if err := acc.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, acc)
	})
}

// SetActive toggles the account's availability in payment forms.
func (s *Service) SetActive(ctx context.Context, accID id.ID, active bool) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetByID(ctx, accID)
		if err != nil {
			return err
		}
		acc.Active = active
		return s.repo.Update(ctx, acc)
	})
}

// List retrieves money accounts with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*CashAccount], error) {
	return s.repo.List(ctx, filter)
}
