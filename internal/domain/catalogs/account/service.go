package account

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/pkg/logger"
)

// ObjectRef carries the object attributes needed to materialize its account.
type ObjectRef struct {
	ID   id.ID
	Code string
	Name string
}

// ContractRef carries the contract attributes needed to materialize its account.
type ContractRef struct {
	ID     id.ID
	Number string
	Name   string
	Object ObjectRef
}

// Service provides business logic for the chart of accounts.
// Ensure operations are idempotent: concurrent first callers race on the
// unique constraint and the loser retrieves the winner's row.
type Service struct {
	repo      Repository
	txManager tx.SerializableManager
}

// NewService creates a new chart of accounts service.
func NewService(repo Repository, txManager tx.SerializableManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// SeedSystem ensures all well-known system accounts exist.
// Called once at startup; safe to repeat.
func (s *Service) SeedSystem(ctx context.Context) error {
	names := map[string]string{
		CodeProfit:         "Прибыль",
		CodeWorkingCapital: "Оборотные средства",
		CodeVAT:            "НДС",
	}
	for _, code := range SystemCodes {
		if _, err := s.EnsureSystem(ctx, code, names[code]); err != nil {
			return fmt.Errorf("seed system account %s: %w", code, err)
		}
	}
	return nil
}

// EnsureSystem gets or creates a system account by code.
// An existing account is never downgraded from system to another type.
func (s *Service) EnsureSystem(ctx context.Context, code, name string) (*Account, error) {
	existing, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Type != TypeSystem {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"account code is taken by a non-system account").
				WithDetail("code", code).
				WithDetail("accountType", string(existing.Type))
		}
		return existing, nil
	}

	acc := NewAccount(code, name, TypeSystem)
	return s.getOrCreate(ctx, acc, func(ctx context.Context) (*Account, error) {
		return s.findByCode(ctx, code)
	})
}

// EnsureObject gets or creates the account bound to a construction object.
func (s *Service) EnsureObject(ctx context.Context, ref ObjectRef) (*Account, error) {
	existing, err := s.repo.GetByObjectID(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	acc := NewAccount("obj-"+ref.Code, ref.Name, TypeObject)
	objID := ref.ID
	acc.ObjectID = &objID

	return s.getOrCreate(ctx, acc, func(ctx context.Context) (*Account, error) {
		return s.repo.GetByObjectID(ctx, ref.ID)
	})
}

// EnsureContract gets or creates the account bound to a contract.
// The account is parented to the object account, which is ensured first.
func (s *Service) EnsureContract(ctx context.Context, ref ContractRef) (*Account, error) {
	existing, err := s.repo.GetByContractID(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	parent, err := s.EnsureObject(ctx, ref.Object)
	if err != nil {
		return nil, err
	}

	acc := NewAccount("contract-"+ref.Number, ref.Name, TypeContract)
	contractID := ref.ID
	acc.ContractID = &contractID
	acc.SetParent(parent.ID.String())

	return s.getOrCreate(ctx, acc, func(ctx context.Context) (*Account, error) {
		return s.repo.GetByContractID(ctx, ref.ID)
	})
}

// CreateHousehold creates a user-defined household account.
func (s *Service) CreateHousehold(ctx context.Context, acc *Account) error {
	acc.Type = TypeHousehold
	if err := acc.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkParentCycle(ctx, acc); err != nil {
			return err
		}
		return s.repo.Create(ctx, acc)
	})
}

// GetByID retrieves an account by ID.
func (s *Service) GetByID(ctx context.Context, accID id.ID) (*Account, error) {
	return s.repo.GetByID(ctx, accID)
}

// GetByCode retrieves an account by code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// Update updates an account. System accounts keep their type.
func (s *Service) Update(ctx context.Context, acc *Account) error {
	if err := acc.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, acc.ID)
		if err != nil {
			return err
		}
		if current.Type == TypeSystem && acc.Type != TypeSystem {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"system account cannot change type").
				WithDetail("code", current.Code)
		}
		if err := s.checkParentCycle(ctx, acc); err != nil {
			return err
		}
		return s.repo.Update(ctx, acc)
	})
}

// Deactivate soft-deletes the account, preserving historical balances.
func (s *Service) Deactivate(ctx context.Context, accID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetByID(ctx, accID)
		if err != nil {
			return err
		}
		acc.IsActive = false
		return s.repo.Update(ctx, acc)
	})
}

// Balance returns the account's own balance as of the given moment.
// Child balances are not aggregated; use BalanceSubtree for that.
func (s *Service) Balance(ctx context.Context, accID id.ID, asOf *time.Time) (types.Money, error) {
	return s.repo.Balance(ctx, accID, asOf)
}

// BalanceSubtree returns balance(account) plus all descendant balances.
func (s *Service) BalanceSubtree(ctx context.Context, accID id.ID, asOf *time.Time) (types.Money, error) {
	return s.repo.BalanceSubtree(ctx, accID, asOf)
}

// List retrieves accounts with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Account], error) {
	return s.repo.List(ctx, filter)
}

// ListChildren returns the direct children of an account.
func (s *Service) ListChildren(ctx context.Context, parentID id.ID) ([]*Account, error) {
	return s.repo.ListChildren(ctx, parentID)
}

// getOrCreate inserts acc; on a unique-constraint loss it re-reads the
// winner's row with refetch.
func (s *Service) getOrCreate(ctx context.Context, acc *Account, refetch func(ctx context.Context) (*Account, error)) (*Account, error) {
	if err := acc.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.Serializable(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, acc)
	})
	if err == nil {
		return acc, nil
	}
	if !apperror.IsConflict(err) {
		return nil, err
	}

	logger.Debug(ctx, "account ensure lost insert race, refetching",
		"code", acc.Code)

	winner, ferr := refetch(ctx)
	if ferr != nil {
		return nil, ferr
	}
	if winner == nil {
		return nil, err
	}
	return winner, nil
}

// findByCode is GetByCode with not-found mapped to nil.
func (s *Service) findByCode(ctx context.Context, code string) (*Account, error) {
	acc, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return acc, nil
}

// checkParentCycle walks the parent chain and rejects cycles.
func (s *Service) checkParentCycle(ctx context.Context, acc *Account) error {
	seen := map[string]bool{acc.ID.String(): true}

	parentID := acc.ParentID
	for parentID != nil && *parentID != "" {
		if seen[*parentID] {
			return apperror.NewParentCycle("account", acc.ID)
		}
		seen[*parentID] = true

		pid, err := id.Parse(*parentID)
		if err != nil {
			return apperror.NewValidation("invalid parent reference").
				WithDetail("field", "parentId")
		}
		parent, err := s.repo.GetByID(ctx, pid)
		if err != nil {
			return err
		}
		parentID = parent.ParentID
	}

	return nil
}
