package payment

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/catalogs/cashaccount"
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/domain/journal"
	"stroyfin/pkg/logger"
)

// InvoiceOps is the slice of the invoice service the pipeline needs.
type InvoiceOps interface {
	GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error)
	MarkPaid(ctx context.Context, invoiceID id.ID, actor string) (*invoice.Invoice, error)
	ListActAllocations(ctx context.Context, invoiceID id.ID) ([]invoice.ActAllocation, error)
	RecordPosted(ctx context.Context, invoiceID id.ID, entryCount int) error
	RecordEvent(ctx context.Context, invoiceID id.ID, kind invoice.EventKind, actor string, payload map[string]any) error
}

// Journal is the posting slice of the journal service.
type Journal interface {
	PostForInvoice(ctx context.Context, p journal.InvoicePosting, actor string) ([]*journal.Entry, error)
	PostForPayment(ctx context.Context, p journal.PaymentPosting, actor string) ([]*journal.Entry, error)
}

// Accounts ensures chart accounts for posting resolution.
type Accounts interface {
	EnsureObject(ctx context.Context, ref account.ObjectRef) (*account.Account, error)
	EnsureContract(ctx context.Context, ref account.ContractRef) (*account.Account, error)
}

// ContractReader resolves contracts and acts.
type ContractReader interface {
	GetByID(ctx context.Context, contractID id.ID) (*contract.Contract, error)
	GetAct(ctx context.Context, actID id.ID) (*contract.Act, error)
}

// ObjectReader resolves construction objects.
type ObjectReader interface {
	GetByID(ctx context.Context, objectID id.ID) (*object.Object, error)
}

// CashAccountReader resolves money accounts.
type CashAccountReader interface {
	GetByID(ctx context.Context, accID id.ID) (*cashaccount.CashAccount, error)
}

// Service runs the payment and registry pipeline.
type Service struct {
	repo         Repository
	registryRepo RegistryRepository
	allocRepo    AllocationRepository
	txManager    tx.Manager
	invoices     InvoiceOps
	journal      Journal
	accounts     Accounts
	contracts    ContractReader
	objects      ObjectReader
	cashAccounts CashAccountReader
}

// NewService creates a new payment service.
func NewService(
	repo Repository,
	registryRepo RegistryRepository,
	allocRepo AllocationRepository,
	txManager tx.Manager,
	invoices InvoiceOps,
	jrnl Journal,
	accounts Accounts,
	contracts ContractReader,
	objects ObjectReader,
	cashAccounts CashAccountReader,
) *Service {
	return &Service{
		repo:         repo,
		registryRepo: registryRepo,
		allocRepo:    allocRepo,
		txManager:    txManager,
		invoices:     invoices,
		journal:      jrnl,
		accounts:     accounts,
		contracts:    contracts,
		objects:      objects,
		cashAccounts: cashAccounts,
	}
}

// CreateIncome persists an income payment, paid immediately, and emits
// its journal posting in the same transaction. Income payments have no
// registry mirror.
func (s *Service) CreateIncome(ctx context.Context, p *Payment, actor string) error {
	p.Type = TypeIncome
	p.Status = StatusPaid

	if err := s.fillLegalEntity(ctx, p); err != nil {
		return err
	}
	if err := p.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.postIncomePayment(ctx, p, actor)
	})
}

// postIncomePayment resolves the contract and object accounts and posts
// the income from the payment's category. A payment bound to no contract
// has no project destination; the journal skips it as degenerate.
func (s *Service) postIncomePayment(ctx context.Context, p *Payment, actor string) error {
	posting := journal.PaymentPosting{
		PaymentID:   p.ID,
		Date:        p.PaymentDate,
		Amount:      p.Amount,
		CategoryID:  p.CategoryID,
		Description: p.Description,
	}

	if p.ContractID != nil {
		c, err := s.contracts.GetByID(ctx, *p.ContractID)
		if err != nil {
			return err
		}
		obj, err := s.objects.GetByID(ctx, c.ObjectID)
		if err != nil {
			return err
		}
		contractAcc, err := s.accounts.EnsureContract(ctx, account.ContractRef{
			ID:     c.ID,
			Number: c.Number,
			Name:   c.Name,
			Object: account.ObjectRef{ID: obj.ID, Code: obj.Code, Name: obj.Name},
		})
		if err != nil {
			return err
		}
		accID := contractAcc.ID
		posting.ContractAccountID = &accID

		objectAcc, err := s.accounts.EnsureObject(ctx, account.ObjectRef{
			ID: obj.ID, Code: obj.Code, Name: obj.Name,
		})
		if err != nil {
			return err
		}
		objAccID := objectAcc.ID
		posting.ObjectAccountID = &objAccID
	}

	_, err := s.journal.PostForPayment(ctx, posting, actor)
	return err
}

// CreateExpense persists a pending expense payment together with its
// planned registry mirror, linked in both directions.
func (s *Service) CreateExpense(ctx context.Context, p *Payment, plannedDate time.Time, initiator string) (*Registry, error) {
	p.Type = TypeExpense
	p.Status = StatusPending

	if err := s.fillLegalEntity(ctx, p); err != nil {
		return nil, err
	}
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	reg := NewRegistry(p, plannedDate, initiator)
	regID := reg.ID
	p.PaymentRegistryID = &regID

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.registryRepo.Create(ctx, reg)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// GetByID retrieves a payment by ID.
func (s *Service) GetByID(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.repo.GetByID(ctx, paymentID)
}

// GetRegistry retrieves a registry row by ID.
func (s *Service) GetRegistry(ctx context.Context, registryID id.ID) (*Registry, error) {
	return s.registryRepo.GetByID(ctx, registryID)
}

// List retrieves payments with filtering.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Payment], error) {
	return s.repo.List(ctx, filter)
}

// FindPending returns pending payments of the exact amount whose payment
// date falls inside the window. Used by bank statement reconciliation.
func (s *Service) FindPending(ctx context.Context, amount types.Money, from, to time.Time) ([]*Payment, error) {
	result, err := s.repo.List(ctx, Filter{
		Statuses: []Status{StatusPending},
		Amount:   &amount,
		DateFrom: &from,
		DateTo:   &to,
	})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// --- Registry transitions ---

// ApproveRegistry moves a planned registry row to approved.
func (s *Service) ApproveRegistry(ctx context.Context, registryID id.ID, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		reg, err := s.registryRepo.GetByID(ctx, registryID)
		if err != nil {
			return err
		}
		if reg.Status != RegistryPlanned {
			return apperror.NewInvalidTransition("payment registry", string(reg.Status), string(RegistryApproved))
		}
		now := time.Now().UTC()
		reg.Status = RegistryApproved
		reg.ApprovedBy = &actor
		reg.ApprovedAt = &now
		return s.registryRepo.Update(ctx, reg)
	})
}

// PayRegistry moves an approved registry row to paid: the linked payment
// fact becomes paid, journal postings fire for the settled invoice, and
// the attached act receives an allocation for the payment amount.
func (s *Service) PayRegistry(ctx context.Context, registryID id.ID, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		reg, err := s.registryRepo.GetByID(ctx, registryID)
		if err != nil {
			return err
		}
		if reg.Status != RegistryApproved {
			return apperror.NewInvalidTransition("payment registry", string(reg.Status), string(RegistryPaid))
		}

		reg.Status = RegistryPaid
		if err := s.registryRepo.Update(ctx, reg); err != nil {
			return err
		}
		return s.propagateRegistryToPayment(ctx, reg, actor)
	})
}

// CancelRegistry cancels a planned or approved registry row and its payment.
func (s *Service) CancelRegistry(ctx context.Context, registryID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		reg, err := s.registryRepo.GetByID(ctx, registryID)
		if err != nil {
			return err
		}
		if reg.Status != RegistryPlanned && reg.Status != RegistryApproved {
			return apperror.NewInvalidTransition("payment registry", string(reg.Status), string(RegistryCancelled))
		}

		reg.Status = RegistryCancelled
		if err := s.registryRepo.Update(ctx, reg); err != nil {
			return err
		}
		return s.propagateRegistryToPayment(ctx, reg, "")
	})
}

// --- Payment transitions ---

// MarkPaid moves a pending payment to paid and propagates to its registry.
func (s *Service) MarkPaid(ctx context.Context, paymentID id.ID, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return apperror.NewInvalidTransition("payment", string(p.Status), string(StatusPaid))
		}

		p.Status = StatusPaid
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.propagatePaymentToRegistry(ctx, p, actor)
	})
}

// Cancel cancels a pending payment and propagates to its registry.
func (s *Service) Cancel(ctx context.Context, paymentID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return apperror.NewInvalidTransition("payment", string(p.Status), string(StatusCancelled))
		}

		p.Status = StatusCancelled
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.propagatePaymentToRegistry(ctx, p, "")
	})
}

// --- Invoice settlement ---

// PayInvoice is the pipeline that settles a scheduled invoice: mark the
// invoice paid, create the payment fact (with a paid registry mirror for
// expenses), emit journal postings, and allocate to acts. The whole
// operation is one transaction.
func (s *Service) PayInvoice(ctx context.Context, invoiceID, cashAccountID id.ID, actor string) (*Payment, error) {
	var result *Payment

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.MarkPaid(ctx, invoiceID, actor)
		if err != nil {
			return err
		}

		p := NewPayment(TypeExpense, cashAccountID, inv.AmountGross, time.Now().UTC())
		p.Status = StatusPaid
		p.AmountGross = inv.AmountGross
		p.AmountNet = inv.AmountNet
		p.VATAmount = inv.VATAmount
		p.ContractID = inv.ContractID
		p.CategoryID = inv.CategoryID
		p.Description = inv.Description
		invID := inv.ID
		p.InvoiceID = &invID
		p.IsInternalTransfer = inv.Type == invoice.TypeInternalTransfer

		if err := s.fillLegalEntity(ctx, p); err != nil {
			return err
		}
		if err := p.Validate(ctx); err != nil {
			return err
		}

		reg := NewRegistry(p, time.Now().UTC(), actor)
		reg.Status = RegistryPaid
		regID := reg.ID
		p.PaymentRegistryID = &regID

		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		if err := s.registryRepo.Create(ctx, reg); err != nil {
			return err
		}

		if err := s.postInvoice(ctx, inv, actor); err != nil {
			return err
		}

		if err := s.allocateInvoiceActs(ctx, inv, p, actor); err != nil {
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// postInvoice resolves the posting accounts and emits journal entries.
func (s *Service) postInvoice(ctx context.Context, inv *invoice.Invoice, actor string) error {
	posting := journal.InvoicePosting{
		InvoiceID:       inv.ID,
		Kind:            journal.InvoiceKind(inv.Type),
		Date:            inv.Date,
		AmountGross:     inv.AmountGross,
		VATAmount:       inv.VATAmount,
		CategoryID:      inv.CategoryID,
		TargetAccountID: inv.TargetAccountID,
		Description:     inv.Description,
	}

	objectID := inv.ObjectID

	if inv.ContractID != nil {
		c, err := s.contracts.GetByID(ctx, *inv.ContractID)
		if err != nil {
			return err
		}
		if objectID == nil {
			oid := c.ObjectID
			objectID = &oid
		}

		obj, err := s.objects.GetByID(ctx, c.ObjectID)
		if err != nil {
			return err
		}
		contractAcc, err := s.accounts.EnsureContract(ctx, account.ContractRef{
			ID:     c.ID,
			Number: c.Number,
			Name:   c.Name,
			Object: account.ObjectRef{ID: obj.ID, Code: obj.Code, Name: obj.Name},
		})
		if err != nil {
			return err
		}
		accID := contractAcc.ID
		posting.ContractAccountID = &accID
	}

	if objectID != nil {
		obj, err := s.objects.GetByID(ctx, *objectID)
		if err != nil {
			return err
		}
		objectAcc, err := s.accounts.EnsureObject(ctx, account.ObjectRef{
			ID: obj.ID, Code: obj.Code, Name: obj.Name,
		})
		if err != nil {
			return err
		}
		accID := objectAcc.ID
		posting.ObjectAccountID = &accID
	}

	entries, err := s.journal.PostForInvoice(ctx, posting, actor)
	if err != nil {
		return err
	}
	return s.invoices.RecordPosted(ctx, inv.ID, len(entries))
}

// allocateInvoiceActs converts the invoice's act allocations into
// act-payment allocations, clamping to each act's remaining capacity.
func (s *Service) allocateInvoiceActs(ctx context.Context, inv *invoice.Invoice, p *Payment, actor string) error {
	allocations, err := s.invoices.ListActAllocations(ctx, inv.ID)
	if err != nil {
		return err
	}

	for _, a := range allocations {
		if _, err := s.allocate(ctx, a.ActID, p, a.Amount, &inv.ID, actor); err != nil {
			return err
		}
	}
	return nil
}

// allocate writes one clamped allocation. Returns nil without error when
// the act has no remaining capacity.
func (s *Service) allocate(ctx context.Context, actID id.ID, p *Payment, desired types.Money, invoiceID *id.ID, actor string) (*Allocation, error) {
	act, err := s.contracts.GetAct(ctx, actID)
	if err != nil {
		return nil, err
	}

	allocated, err := s.allocRepo.SumByAct(ctx, actID)
	if err != nil {
		return nil, err
	}
	remaining := act.AmountGross.Sub(allocated)

	paymentAllocated, err := s.allocRepo.SumByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	paymentRemaining := p.Amount.Sub(paymentAllocated)
	if paymentRemaining.LessThan(remaining) {
		remaining = paymentRemaining
	}

	amount := desired
	clamped := false
	if remaining.LessThan(desired) {
		amount = remaining
		clamped = true
	}

	if !amount.IsPositive() {
		logger.Warn(ctx, "act has no remaining allocation capacity, skipping",
			"act_id", actID,
			"payment_id", p.ID)
		if invoiceID != nil {
			return nil, s.invoices.RecordEvent(ctx, *invoiceID, invoice.EventAmended, actor, map[string]any{
				"allocation_skipped": true,
				"act_id":             actID.String(),
			})
		}
		return nil, nil
	}

	alloc := NewAllocation(actID, p.ID, amount)
	if err := s.allocRepo.Create(ctx, alloc); err != nil {
		return nil, err
	}

	if clamped && invoiceID != nil {
		if err := s.invoices.RecordEvent(ctx, *invoiceID, invoice.EventAmended, actor, map[string]any{
			"allocation_clamped": true,
			"act_id":             actID.String(),
			"requested":          types.MoneyString(desired),
			"allocated":          types.MoneyString(amount),
		}); err != nil {
			return nil, err
		}
	}

	return alloc, nil
}

// --- Guarded propagation ---

// propagateRegistryToPayment pushes a terminal registry status onto the
// linked payment. A payment already in the target state is left alone,
// which breaks the mutual-trigger loop.
func (s *Service) propagateRegistryToPayment(ctx context.Context, reg *Registry, actor string) error {
	if reg.PaymentID == nil {
		return nil
	}

	p, err := s.repo.GetByID(ctx, *reg.PaymentID)
	if err != nil {
		return err
	}

	var target Status
	switch reg.Status {
	case RegistryPaid:
		target = StatusPaid
	case RegistryCancelled:
		target = StatusCancelled
	default:
		return nil
	}

	if p.Status == target {
		return nil
	}

	p.Status = target
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	// A payment going paid through the registry settles its invoice too
	if target == StatusPaid && p.InvoiceID != nil {
		inv, err := s.invoices.MarkPaid(ctx, *p.InvoiceID, actor)
		if err != nil {
			if apperror.IsInvalidTransition(err) {
				return nil
			}
			return err
		}
		if err := s.postInvoice(ctx, inv, actor); err != nil {
			return err
		}
	}

	if target == StatusPaid && reg.ActID != nil {
		if _, err := s.allocate(ctx, *reg.ActID, p, p.Amount, p.InvoiceID, actor); err != nil {
			return err
		}
	}

	return nil
}

// propagatePaymentToRegistry pushes a terminal payment status onto the
// linked registry, skipping when already consistent.
func (s *Service) propagatePaymentToRegistry(ctx context.Context, p *Payment, actor string) error {
	if p.PaymentRegistryID == nil {
		return nil
	}

	reg, err := s.registryRepo.GetByID(ctx, *p.PaymentRegistryID)
	if err != nil {
		return err
	}

	var target RegistryStatus
	switch p.Status {
	case StatusPaid:
		target = RegistryPaid
	case StatusCancelled:
		target = RegistryCancelled
	default:
		return nil
	}

	if reg.Status == target {
		return nil
	}

	reg.Status = target
	if err := s.registryRepo.Update(ctx, reg); err != nil {
		return err
	}

	if target == RegistryPaid && reg.ActID != nil {
		if _, err := s.allocate(ctx, *reg.ActID, p, p.Amount, p.InvoiceID, actor); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) fillLegalEntity(ctx context.Context, p *Payment) error {
	acc, err := s.cashAccounts.GetByID(ctx, p.AccountID)
	if err != nil {
		return err
	}
	if acc.LegalEntityID != nil {
		p.LegalEntityID = acc.LegalEntityID
	}
	return nil
}
