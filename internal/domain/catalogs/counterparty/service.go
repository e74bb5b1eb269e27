package counterparty

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/pkg/logger"
	"stroyfin/pkg/numerator"
)

// Enricher fills counterparty requisites from an external registry by INN.
// Implemented by the FNS client.
type Enricher interface {
	LookupByINN(ctx context.Context, inn string) (*RegistryInfo, error)
}

// RegistryInfo is what an external registry knows about a counterparty.
type RegistryInfo struct {
	Name         string
	KPP          string
	OGRN         string
	LegalAddress string
	Active       bool
}

// Service provides business logic for the Counterparty catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator *numerator.Service
	enricher  Enricher // optional
	hooks     *domain.HookRegistry[*Counterparty]
}

// NewService creates a new Counterparty service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service, enricher Enricher) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
		enricher:  enricher,
		hooks:     domain.NewHookRegistry[*Counterparty](),
	}
}

// Hooks exposes the lifecycle hook registry.
func (s *Service) Hooks() *domain.HookRegistry[*Counterparty] {
	return s.hooks
}

// Create creates a new counterparty, generating a code when absent.
// A non-empty INN must be unique among non-deleted counterparties.
func (s *Service) Create(ctx context.Context, cp *Counterparty) error {
	if err := cp.Validate(ctx); err != nil {
		return err
	}

	if cp.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("КА"), time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		cp.Code = code
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if cp.INN != nil && *cp.INN != "" {
			existing, err := s.repo.GetByINN(ctx, *cp.INN)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperror.NewDuplicate("counterparty", "inn", *cp.INN)
			}
		}

		if err := s.hooks.RunBeforeCreate(ctx, cp); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, cp); err != nil {
			return err
		}
		return s.hooks.RunAfterCreate(ctx, cp)
	})
}

// GetByID retrieves a counterparty by ID.
func (s *Service) GetByID(ctx context.Context, cpID id.ID) (*Counterparty, error) {
	return s.repo.GetByID(ctx, cpID)
}

// GetByINN retrieves a counterparty by tax number.
func (s *Service) GetByINN(ctx context.Context, inn string) (*Counterparty, error) {
	return s.repo.GetByINN(ctx, inn)
}

// GetOrCreateByINN finds a counterparty by INN or creates a minimal one.
// Used by the bank reconciliation and deal import flows.
func (s *Service) GetOrCreateByINN(ctx context.Context, inn, name string, cpType CounterpartyType) (*Counterparty, error) {
	existing, err := s.repo.GetByINN(ctx, inn)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	form := LegalCompany
	if len(inn) == 12 {
		form = LegalSoleTrader
	}

	cp := NewCounterparty("", name, cpType, form)
	cp.INN = &inn
	if err := s.Create(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Update updates an existing counterparty.
func (s *Service) Update(ctx context.Context, cp *Counterparty) error {
	if err := cp.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if cp.INN != nil && *cp.INN != "" {
			existing, err := s.repo.GetByINN(ctx, *cp.INN)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != cp.ID {
				return apperror.NewDuplicate("counterparty", "inn", *cp.INN)
			}
		}

		if err := s.hooks.RunBeforeUpdate(ctx, cp); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, cp); err != nil {
			return err
		}
		return s.hooks.RunAfterUpdate(ctx, cp)
	})
}

// SetDeletionMark marks or unmarks a counterparty for deletion.
func (s *Service) SetDeletionMark(ctx context.Context, cpID id.ID, marked bool) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetDeletionMark(ctx, cpID, marked)
	})
}

// List retrieves counterparties with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Counterparty], error) {
	return s.repo.List(ctx, filter)
}

// EnrichFromRegistry fills missing requisites from the external registry by INN.
// Registry failures are logged and do not fail the caller.
func (s *Service) EnrichFromRegistry(ctx context.Context, cpID id.ID) error {
	if s.enricher == nil {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		cp, err := s.repo.GetByID(ctx, cpID)
		if err != nil {
			return err
		}
		if cp.INN == nil || *cp.INN == "" {
			return apperror.NewValidation("counterparty has no INN to enrich from").
				WithDetail("field", "inn")
		}

		info, err := s.enricher.LookupByINN(ctx, *cp.INN)
		if err != nil {
			logger.Warn(ctx, "registry lookup failed",
				"counterparty_id", cp.ID,
				"inn", *cp.INN,
				"error", err)
			return nil
		}

		changed := false
		if cp.Name == "" && info.Name != "" {
			cp.Name = info.Name
			changed = true
		}
		if (cp.KPP == nil || *cp.KPP == "") && info.KPP != "" {
			cp.KPP = &info.KPP
			changed = true
		}
		if (cp.OGRN == nil || *cp.OGRN == "") && info.OGRN != "" {
			cp.OGRN = &info.OGRN
			changed = true
		}
		if (cp.LegalAddress == nil || *cp.LegalAddress == "") && info.LegalAddress != "" {
			cp.LegalAddress = &info.LegalAddress
			changed = true
		}

		if !changed {
			return nil
		}
		return s.repo.Update(ctx, cp)
	})
}
