package recurring

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/domain/journal"
	"stroyfin/pkg/logger"
	"stroyfin/pkg/numerator"
)

// InvoiceCreator is the slice of the invoice service generation needs.
type InvoiceCreator interface {
	Create(ctx context.Context, inv *invoice.Invoice, actor string) error
}

// IncomeJournal is the posting slice of the journal service.
type IncomeJournal interface {
	PostForIncome(ctx context.Context, p journal.IncomePosting, actor string) ([]*journal.Entry, error)
}

// Accounts ensures chart accounts for income posting resolution.
type Accounts interface {
	EnsureObject(ctx context.Context, ref account.ObjectRef) (*account.Account, error)
	EnsureContract(ctx context.Context, ref account.ContractRef) (*account.Account, error)
}

// ContractReader resolves contracts.
type ContractReader interface {
	GetByID(ctx context.Context, contractID id.ID) (*contract.Contract, error)
}

// ObjectReader resolves construction objects.
type ObjectReader interface {
	GetByID(ctx context.Context, objectID id.ID) (*object.Object, error)
}

// Service generates invoices from templates and records income.
type Service struct {
	templates TemplateRepository
	incomes   IncomeRepository
	txManager tx.Manager
	numerator *numerator.Service
	invoices  InvoiceCreator
	journal   IncomeJournal
	accounts  Accounts
	contracts ContractReader
	objects   ObjectReader
}

// NewService creates a new recurring service.
func NewService(
	templates TemplateRepository,
	incomes IncomeRepository,
	txManager tx.Manager,
	num *numerator.Service,
	invoices InvoiceCreator,
	jrnl IncomeJournal,
	accounts Accounts,
	contracts ContractReader,
	objects ObjectReader,
) *Service {
	return &Service{
		templates: templates,
		incomes:   incomes,
		txManager: txManager,
		numerator: num,
		invoices:  invoices,
		journal:   jrnl,
		accounts:  accounts,
		contracts: contracts,
		objects:   objects,
	}
}

// CreateTemplate persists a new recurring payment template.
func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if t.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("РП"), time.Now())
		if err != nil {
			return fmt.Errorf("generate template code: %w", err)
		}
		t.Code = code
	}

	if err := t.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.templates.Create(ctx, t)
	})
}

// GetTemplate retrieves a template by ID.
func (s *Service) GetTemplate(ctx context.Context, templateID id.ID) (*Template, error) {
	return s.templates.GetByID(ctx, templateID)
}

// UpdateTemplate updates template fields. The idempotency cursor is
// preserved from the stored row.
func (s *Service) UpdateTemplate(ctx context.Context, t *Template) error {
	if err := t.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.templates.GetByID(ctx, t.ID)
		if err != nil {
			return err
		}
		t.LastGeneratedDate = current.LastGeneratedDate
		return s.templates.Update(ctx, t)
	})
}

// SetActive switches generation on or off for a template.
func (s *Service) SetActive(ctx context.Context, templateID id.ID, active bool) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.templates.GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		t.IsActive = active
		return s.templates.Update(ctx, t)
	})
}

// ListTemplates retrieves templates with filtering.
func (s *Service) ListTemplates(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Template], error) {
	return s.templates.List(ctx, filter)
}

// GenerateDue walks the active templates and emits one invoice per due
// period. Each template is processed in its own transaction, so one
// failing template does not block the rest. Returns the number of
// invoices created.
func (s *Service) GenerateDue(ctx context.Context, now time.Time, actor string) (int, error) {
	templates, err := s.templates.ListActive(ctx, now)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, t := range templates {
		n, err := s.generateForTemplate(ctx, t.ID, now, actor)
		if err != nil {
			logger.Error(ctx, "recurring generation failed for template",
				"template_id", t.ID,
				"template_code", t.Code,
				"error", err)
			continue
		}
		created += n
	}
	return created, nil
}

// generateForTemplate reloads the template inside the transaction so the
// cursor check and advance are atomic. A concurrent run sees the updated
// cursor and generates nothing.
func (s *Service) generateForTemplate(ctx context.Context, templateID id.ID, now time.Time, actor string) (int, error) {
	created := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.templates.GetByID(ctx, templateID)
		if err != nil {
			return err
		}
		if !t.IsActive {
			return nil
		}

		due := t.DueOccurrences(now)
		if len(due) == 0 {
			return nil
		}

		for _, occ := range due {
			inv := s.buildInvoice(t, occ)
			if err := s.invoices.Create(ctx, inv, actor); err != nil {
				return err
			}
			cursor := occ
			t.LastGeneratedDate = &cursor
			created++
		}
		return s.templates.Update(ctx, t)
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// buildInvoice materializes one scheduled expense. Templates bound to a
// contract produce supplier invoices; free-standing ones are household.
func (s *Service) buildInvoice(t *Template, occ time.Time) *invoice.Invoice {
	invType := invoice.TypeHousehold
	if t.ContractID != nil {
		invType = invoice.TypeSupplier
	}

	inv := invoice.NewInvoice(invoice.SourceRecurring, invType)
	inv.Date = occ
	inv.Status = invoice.StatusReceived
	inv.AmountGross = t.Amount
	inv.AmountNet = t.Amount
	categoryID := t.CategoryID
	inv.CategoryID = &categoryID
	inv.ObjectID = t.ObjectID
	inv.ContractID = t.ContractID
	planned := occ
	inv.PlannedDate = &planned
	inv.Description = fmt.Sprintf("%s за %s", t.Name, occ.Format("02.01.2006"))
	return inv
}

// RecordIncome persists an income record and emits its journal posting.
func (s *Service) RecordIncome(ctx context.Context, rec *IncomeRecord, actor string) ([]*journal.Entry, error) {
	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}

	if rec.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ПД"), rec.PaymentDate)
		if err != nil {
			return nil, fmt.Errorf("generate income number: %w", err)
		}
		rec.Number = number
	}

	var entries []*journal.Entry
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.incomes.Create(ctx, rec); err != nil {
			return err
		}
		var err error
		entries, err = s.postIncome(ctx, rec, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetIncome retrieves an income record by ID.
func (s *Service) GetIncome(ctx context.Context, recordID id.ID) (*IncomeRecord, error) {
	return s.incomes.GetByID(ctx, recordID)
}

// ListIncome retrieves income records with filtering.
func (s *Service) ListIncome(ctx context.Context, filter IncomeFilter) (domain.ListResult[*IncomeRecord], error) {
	return s.incomes.List(ctx, filter)
}

// postIncome resolves the posting accounts and delegates to the journal.
func (s *Service) postIncome(ctx context.Context, rec *IncomeRecord, actor string) ([]*journal.Entry, error) {
	categoryID := rec.CategoryID
	posting := journal.IncomePosting{
		IncomeRecordID: rec.ID,
		Type:           journal.IncomeType(rec.IncomeType),
		Date:           rec.PaymentDate,
		Amount:         rec.Amount,
		CategoryID:     &categoryID,
		Description:    rec.Description,
	}

	objectID := rec.ObjectID

	if rec.ContractID != nil {
		c, err := s.contracts.GetByID(ctx, *rec.ContractID)
		if err != nil {
			return nil, err
		}
		if objectID == nil {
			oid := c.ObjectID
			objectID = &oid
		}

		obj, err := s.objects.GetByID(ctx, c.ObjectID)
		if err != nil {
			return nil, err
		}
		contractAcc, err := s.accounts.EnsureContract(ctx, account.ContractRef{
			ID:     c.ID,
			Number: c.Number,
			Name:   c.Name,
			Object: account.ObjectRef{ID: obj.ID, Code: obj.Code, Name: obj.Name},
		})
		if err != nil {
			return nil, err
		}
		accID := contractAcc.ID
		posting.ContractAccountID = &accID
	}

	if objectID != nil {
		obj, err := s.objects.GetByID(ctx, *objectID)
		if err != nil {
			return nil, err
		}
		objectAcc, err := s.accounts.EnsureObject(ctx, account.ObjectRef{
			ID: obj.ID, Code: obj.Code, Name: obj.Name,
		})
		if err != nil {
			return nil, err
		}
		accID := objectAcc.ID
		posting.ObjectAccountID = &accID
	}

	entries, err := s.journal.PostForIncome(ctx, posting, actor)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"income posting resolved to no entries").
			WithDetail("incomeRecordId", rec.ID)
	}
	return entries, nil
}
