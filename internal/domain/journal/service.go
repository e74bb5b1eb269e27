package journal

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/pkg/logger"
)

// InvoiceKind mirrors the invoice type for posting rule selection.
type InvoiceKind string

const (
	KindSupplier         InvoiceKind = "supplier"
	KindActBased         InvoiceKind = "act_based"
	KindHousehold        InvoiceKind = "household"
	KindInternalTransfer InvoiceKind = "internal_transfer"
	KindWarehouse        InvoiceKind = "warehouse"
)

// IncomeType mirrors the income record type for posting rule selection.
type IncomeType string

const (
	IncomeCustomerAct    IncomeType = "customer_act"
	IncomeAdvance        IncomeType = "advance"
	IncomeWarrantyReturn IncomeType = "warranty_return"
	IncomeOther          IncomeType = "other"
)

// InvoicePosting carries the resolved posting inputs for one invoice.
// Callers resolve contract and object accounts before calling; the
// journal only applies the rules.
type InvoicePosting struct {
	InvoiceID   id.ID
	Kind        InvoiceKind
	Date        time.Time
	AmountGross types.Money
	VATAmount   types.Money

	CategoryID        *id.ID
	TargetAccountID   *id.ID // internal_transfer destination
	ContractAccountID *id.ID
	ObjectAccountID   *id.ID

	Description string
}

// PaymentPosting carries the resolved posting inputs for one income
// payment created outside the invoice pipeline.
type PaymentPosting struct {
	PaymentID id.ID
	Date      time.Time
	Amount    types.Money

	CategoryID        *id.ID
	ContractAccountID *id.ID
	ObjectAccountID   *id.ID

	Description string
}

// IncomePosting carries the resolved posting inputs for one income record.
type IncomePosting struct {
	IncomeRecordID id.ID
	Type           IncomeType
	Date           time.Time
	Amount         types.Money

	CategoryID        *id.ID
	ContractAccountID *id.ID
	ObjectAccountID   *id.ID

	Description string
}

// SystemAccounts resolves system chart accounts by code.
// Satisfied by the account catalog service.
type SystemAccounts interface {
	GetByCode(ctx context.Context, code string) (*account.Account, error)
}

// Service applies posting rules and appends journal entries.
type Service struct {
	repo      Repository
	accounts  SystemAccounts
	txManager tx.Manager
}

// NewService creates a new journal service.
func NewService(repo Repository, accounts SystemAccounts, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		accounts:  accounts,
		txManager: txManager,
	}
}

// PostManual creates a single user-authored entry.
func (s *Service) PostManual(ctx context.Context, from, to id.ID, amount types.Money, description string, date *time.Time, actor string) (*Entry, error) {
	entryDate := time.Now().UTC()
	if date != nil {
		entryDate = *date
	}

	entry := NewEntry(from, to, amount, description, entryDate)
	entry.CreatedBy = &actor
	entry.IsAuto = false

	if err := entry.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.CreateBatch(ctx, []*Entry{entry})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostForInvoice generates entries for a paid invoice per the posting
// rules. Idempotent: when entries for the invoice already exist they are
// returned unchanged.
func (s *Service) PostForInvoice(ctx context.Context, p InvoicePosting, actor string) ([]*Entry, error) {
	var result []*Entry

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ListByInvoice(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing
			return nil
		}

		entries, err := s.buildInvoiceEntries(ctx, p, actor)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			logger.Debug(ctx, "all invoice postings degenerate, nothing persisted",
				"invoice_id", p.InvoiceID,
				"invoice_kind", string(p.Kind))
			return nil
		}

		if err := s.repo.CreateBatch(ctx, entries); err != nil {
			return err
		}
		result = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostForIncome generates entries for an income record. Same idempotence
// rule as PostForInvoice.
func (s *Service) PostForIncome(ctx context.Context, p IncomePosting, actor string) ([]*Entry, error) {
	var result []*Entry

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ListByIncomeRecord(ctx, p.IncomeRecordID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing
			return nil
		}

		var to *id.ID
		switch p.Type {
		case IncomeCustomerAct, IncomeAdvance, IncomeWarrantyReturn:
			to = coalesce(p.ContractAccountID, p.ObjectAccountID)
		case IncomeOther:
			profitID, err := s.systemAccountID(ctx, account.CodeProfit)
			if err != nil {
				return err
			}
			to = &profitID
		default:
			return apperror.NewValidation("unknown income type").
				WithDetail("field", "incomeType").
				WithDetail("value", string(p.Type))
		}

		entry := s.buildAuto(p.CategoryID, to, p.Amount, p.Description, p.Date, actor, PostingIncome)
		if entry == nil {
			return nil
		}
		incomeID := p.IncomeRecordID
		entry.IncomeRecordID = &incomeID

		if err := s.repo.CreateBatch(ctx, []*Entry{entry}); err != nil {
			return err
		}
		result = []*Entry{entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostForPayment generates the income entry for a paid income payment:
// category to the contract account, falling back to the object account.
// Same idempotence rule as PostForInvoice. A payment with no project
// destination is degenerate and produces nothing.
func (s *Service) PostForPayment(ctx context.Context, p PaymentPosting, actor string) ([]*Entry, error) {
	var result []*Entry

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ListByPayment(ctx, p.PaymentID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing
			return nil
		}

		to := coalesce(p.ContractAccountID, p.ObjectAccountID)
		entry := s.buildAuto(p.CategoryID, to, p.Amount, p.Description, p.Date, actor, PostingIncome)
		if entry == nil {
			logger.Debug(ctx, "income payment posting degenerate, nothing persisted",
				"payment_id", p.PaymentID)
			return nil
		}
		paymentID := p.PaymentID
		entry.PaymentID = &paymentID

		if err := s.repo.CreateBatch(ctx, []*Entry{entry}); err != nil {
			return err
		}
		result = []*Entry{entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByInvoice returns the entries tagged with an invoice.
func (s *Service) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*Entry, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

// List retrieves entries with filtering.
func (s *Service) List(ctx context.Context, filter EntryFilter) (domain.ListResult[*Entry], error) {
	return s.repo.List(ctx, filter)
}

// buildInvoiceEntries applies the per-type posting rules. Degenerate
// postings (same account on both sides, a missing side, zero amount)
// are skipped without failing the operation.
func (s *Service) buildInvoiceEntries(ctx context.Context, p InvoicePosting, actor string) ([]*Entry, error) {
	var entries []*Entry

	appendEntry := func(e *Entry) {
		if e == nil {
			return
		}
		invoiceID := p.InvoiceID
		e.InvoiceID = &invoiceID
		entries = append(entries, e)
	}

	switch p.Kind {
	case KindSupplier, KindActBased, KindWarehouse:
		from := coalesce(p.ContractAccountID, p.ObjectAccountID)
		appendEntry(s.buildAuto(from, p.CategoryID, p.AmountGross, p.Description, p.Date, actor, PostingPrimary))

		if p.VATAmount.IsPositive() {
			vatID, err := s.systemAccountID(ctx, account.CodeVAT)
			if err != nil {
				return nil, err
			}
			vatFrom := coalesce(p.CategoryID, p.ObjectAccountID)
			appendEntry(s.buildAuto(vatFrom, &vatID, p.VATAmount, p.Description, p.Date, actor, PostingVAT))
		}

	case KindHousehold:
		profitID, err := s.systemAccountID(ctx, account.CodeProfit)
		if err != nil {
			return nil, err
		}
		appendEntry(s.buildAuto(&profitID, p.CategoryID, p.AmountGross, p.Description, p.Date, actor, PostingPrimary))

		if p.VATAmount.IsPositive() {
			vatID, err := s.systemAccountID(ctx, account.CodeVAT)
			if err != nil {
				return nil, err
			}
			vatFrom := coalesce(p.CategoryID, p.ObjectAccountID)
			appendEntry(s.buildAuto(vatFrom, &vatID, p.VATAmount, p.Description, p.Date, actor, PostingVAT))
		}

	case KindInternalTransfer:
		appendEntry(s.buildAuto(p.CategoryID, p.TargetAccountID, p.AmountGross, p.Description, p.Date, actor, PostingTransfer))

	default:
		return nil, apperror.NewValidation("unknown invoice kind").
			WithDetail("field", "invoiceKind").
			WithDetail("value", string(p.Kind))
	}

	return entries, nil
}

// buildAuto returns an auto entry or nil when the posting is degenerate.
func (s *Service) buildAuto(from, to *id.ID, amount types.Money, description string, date time.Time, actor string, kind PostingKind) *Entry {
	if from == nil || to == nil {
		return nil
	}
	if *from == *to {
		return nil
	}
	if !amount.IsPositive() {
		return nil
	}

	entry := NewEntry(*from, *to, amount, description, date)
	entry.IsAuto = true
	entry.CreatedBy = &actor
	k := kind
	entry.PostingKind = &k
	return entry
}

func (s *Service) systemAccountID(ctx context.Context, code string) (id.ID, error) {
	acc, err := s.accounts.GetByCode(ctx, code)
	if err != nil {
		return id.Nil(), err
	}
	return acc.ID, nil
}

func coalesce(ids ...*id.ID) *id.ID {
	for _, v := range ids {
		if v != nil && !id.IsNil(*v) {
			return v
		}
	}
	return nil
}
