package contract

import (
	"context"
	"fmt"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/counterparty"
	"stroyfin/internal/domain/documents/proposal"
	"stroyfin/pkg/logger"
	"stroyfin/pkg/numerator"
)

// ProposalReader resolves gating proposals. Satisfied by proposal.Service.
type ProposalReader interface {
	GetByID(ctx context.Context, proposalID id.ID) (*proposal.Proposal, error)
}

// CounterpartyReader resolves counterparties. Satisfied by counterparty.Service.
type CounterpartyReader interface {
	GetByID(ctx context.Context, cpID id.ID) (*counterparty.Counterparty, error)
}

// Service provides business logic for contracts and their acts.
type Service struct {
	repo           Repository
	actRepo        ActRepository
	finance        FinanceRepository
	txManager      tx.Manager
	numerator      *numerator.Service
	proposals      ProposalReader
	counterparties CounterpartyReader
}

// NewService creates a new contract service.
func NewService(
	repo Repository,
	actRepo ActRepository,
	finance FinanceRepository,
	txManager tx.Manager,
	num *numerator.Service,
	proposals ProposalReader,
	counterparties CounterpartyReader,
) *Service {
	return &Service{
		repo:           repo,
		actRepo:        actRepo,
		finance:        finance,
		txManager:      txManager,
		numerator:      num,
		proposals:      proposals,
		counterparties: counterparties,
	}
}

// Create persists a planned contract. Framework agreements get a
// РД-{YYYY}-{NNN} number when none is provided; other contracts carry
// the number from the paper original.
func (s *Service) Create(ctx context.Context, c *Contract) error {
	if c.Number == "" && c.IsFramework {
		number, err := s.numerator.GetNextNumber(ctx, numerator.FrameworkContractConfig(), c.ContractDate)
		if err != nil {
			return fmt.Errorf("generate contract number: %w", err)
		}
		c.Number = number
	}
	if c.Number == "" {
		return apperror.NewValidation("contract number is required").
			WithDetail("field", "number")
	}

	if err := c.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByObjectAndNumber(ctx, c.ObjectID, c.Number)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.NewDuplicate("contract", "number", c.Number).
				WithDetail("objectId", c.ObjectID)
		}

		if err := s.validateLinks(ctx, c); err != nil {
			return err
		}
		return s.repo.Create(ctx, c)
	})
}

// GetByID retrieves a contract by ID.
func (s *Service) GetByID(ctx context.Context, contractID id.ID) (*Contract, error) {
	return s.repo.GetByID(ctx, contractID)
}

// Update updates a contract, revalidating its links.
func (s *Service) Update(ctx context.Context, c *Contract) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.validateLinks(ctx, c); err != nil {
			return err
		}
		return s.repo.Update(ctx, c)
	})
}

// Activate moves the contract to active after checking the proposal gate
// and the counterparty type.
func (s *Service) Activate(ctx context.Context, contractID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		if !c.CanTransition(StatusActive) {
			return apperror.NewInvalidTransition("contract", string(c.Status), string(StatusActive))
		}

		if err := s.checkProposalGate(ctx, c); err != nil {
			return err
		}

		if c.Type == TypeExpense {
			cp, err := s.counterparties.GetByID(ctx, c.CounterpartyID)
			if err != nil {
				return err
			}
			if !cp.IsVendor() {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule,
					"expense contract requires a vendor-typed counterparty").
					WithDetail("counterpartyId", c.CounterpartyID)
			}
		}

		if err := s.validateLinks(ctx, c); err != nil {
			return err
		}

		c.Status = StatusActive
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}

		logger.Info(ctx, "contract activated",
			"contract_id", c.ID,
			"number", c.Number,
			"contract_type", string(c.Type))
		return nil
	})
}

// ChangeStatus applies a non-activation status transition.
// Activation goes through Activate, which enforces its gates.
func (s *Service) ChangeStatus(ctx context.Context, contractID id.ID, to Status) error {
	if to == StatusActive {
		return s.Activate(ctx, contractID)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		if !c.CanTransition(to) {
			return apperror.NewInvalidTransition("contract", string(c.Status), string(to))
		}
		c.Status = to
		return s.repo.Update(ctx, c)
	})
}

// List retrieves contracts with filtering.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Contract], error) {
	return s.repo.List(ctx, filter)
}

// --- Acts ---

// CreateAct persists a draft act, deriving net and VAT amounts from the
// contract's rate when absent.
func (s *Service) CreateAct(ctx context.Context, a *Act) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, a.ContractID)
		if err != nil {
			return err
		}

		a.DeriveVAT(c.VATRate)
		if err := a.Validate(ctx); err != nil {
			return err
		}

		existing, err := s.actRepo.GetByContractAndNumber(ctx, a.ContractID, a.Number)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.NewDuplicate("act", "number", a.Number).
				WithDetail("contractId", a.ContractID)
		}

		return s.actRepo.Create(ctx, a)
	})
}

// GetAct retrieves an act by ID.
func (s *Service) GetAct(ctx context.Context, actID id.ID) (*Act, error) {
	return s.actRepo.GetByID(ctx, actID)
}

// SignAct moves a draft act to signed; signed acts start contributing
// to balance and margin.
func (s *Service) SignAct(ctx context.Context, actID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.actRepo.GetByID(ctx, actID)
		if err != nil {
			return err
		}
		if a.Status != ActDraft {
			return apperror.NewInvalidTransition("act", string(a.Status), string(ActSigned))
		}
		a.Status = ActSigned
		return s.actRepo.Update(ctx, a)
	})
}

// CancelAct cancels a draft or signed act.
func (s *Service) CancelAct(ctx context.Context, actID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		a, err := s.actRepo.GetByID(ctx, actID)
		if err != nil {
			return err
		}
		if a.Status == ActCancelled {
			return apperror.NewInvalidTransition("act", string(a.Status), string(ActCancelled))
		}
		a.Status = ActCancelled
		return s.actRepo.Update(ctx, a)
	})
}

// ListActs returns the acts of a contract.
func (s *Service) ListActs(ctx context.Context, contractID id.ID) ([]*Act, error) {
	return s.actRepo.ListByContract(ctx, contractID)
}

// --- Link validation ---

func (s *Service) checkProposalGate(ctx context.Context, c *Contract) error {
	gateID := c.ProposalID()
	if gateID == nil {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"contract cannot go active without an attached proposal").
			WithDetail("contractType", string(c.Type))
	}

	p, err := s.proposals.GetByID(ctx, *gateID)
	if err != nil {
		return err
	}
	if !p.IsApproved() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"gating proposal is not approved").
			WithDetail("proposalId", p.ID).
			WithDetail("proposalStatus", string(p.Status))
	}
	return nil
}

func (s *Service) validateLinks(ctx context.Context, c *Contract) error {
	if c.FrameworkContractID != nil {
		fw, err := s.repo.GetByID(ctx, *c.FrameworkContractID)
		if err != nil {
			return err
		}
		if !fw.IsFramework {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"linked contract is not a framework agreement").
				WithDetail("frameworkContractId", fw.ID)
		}
		if fw.CounterpartyID != c.CounterpartyID {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"framework agreement belongs to a different counterparty").
				WithDetail("frameworkContractId", fw.ID)
		}
		if fw.Status != StatusActive {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"framework agreement is not active").
				WithDetail("frameworkContractId", fw.ID).
				WithDetail("status", string(fw.Status))
		}
	}

	if c.ParentContractID != nil {
		parent, err := s.repo.GetByID(ctx, *c.ParentContractID)
		if err != nil {
			return err
		}
		if parent.Type != TypeIncome {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"parent contract must be an income contract").
				WithDetail("parentContractId", parent.ID)
		}
	}

	return nil
}
