package invoice

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/pkg/logger"
	"stroyfin/pkg/numerator"
)

// ActReader resolves acts for allocation checks. Satisfied by contract.Service.
type ActReader interface {
	GetAct(ctx context.Context, actID id.ID) (*contract.Act, error)
}

// AccountReader resolves chart accounts. Satisfied by account.Service.
type AccountReader interface {
	GetByID(ctx context.Context, accID id.ID) (*account.Account, error)
}

// Service drives the invoice state machine.
type Service struct {
	repo      Repository
	itemRepo  ItemRepository
	eventRepo EventRepository
	txManager tx.Manager
	numerator *numerator.Service
	acts      ActReader
	accounts  AccountReader
}

// NewService creates a new invoice service.
func NewService(
	repo Repository,
	itemRepo ItemRepository,
	eventRepo EventRepository,
	txManager tx.Manager,
	num *numerator.Service,
	acts ActReader,
	accounts AccountReader,
) *Service {
	return &Service{
		repo:      repo,
		itemRepo:  itemRepo,
		eventRepo: eventRepo,
		txManager: txManager,
		numerator: num,
		acts:      acts,
		accounts:  accounts,
	}
}

// Create persists a new invoice. Invoices with a scan and no amounts
// start in recognition; everything else starts in received.
func (s *Service) Create(ctx context.Context, inv *Invoice, actor string) error {
	if inv.NeedsRecognition() {
		inv.Status = StatusRecognition
	} else if inv.Status == "" {
		inv.Status = StatusReceived
	}

	if err := inv.Validate(ctx); err != nil {
		return err
	}

	if inv.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("СЧ"), inv.Date)
		if err != nil {
			return fmt.Errorf("generate invoice number: %w", err)
		}
		inv.Number = number
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, inv); err != nil {
			return err
		}
		return s.eventRepo.Append(ctx, NewEvent(inv.ID, EventAmended, actor, map[string]any{
			"created": true,
			"source":  string(inv.Source),
			"status":  string(inv.Status),
		}))
	})
}

// GetByID retrieves an invoice by ID.
func (s *Service) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, invoiceID)
}

// Amend updates a non-terminal invoice's editable fields and records the
// delta. Paid invoices are frozen.
func (s *Service) Amend(ctx context.Context, inv *Invoice, actor string) error {
	if err := inv.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, inv.ID)
		if err != nil {
			return err
		}
		if current.IsTerminal() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"terminal invoice cannot be amended").
				WithDetail("invoiceId", inv.ID).
				WithDetail("status", string(current.Status))
		}
		inv.Status = current.Status

		// A manual amendment that fills the amounts completes recognition
		if current.Status == StatusRecognition && inv.HasAmounts() {
			inv.Status = StatusReceived
		}

		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		return s.eventRepo.Append(ctx, NewEvent(inv.ID, EventAmended, actor, map[string]any{
			"amount_gross": types.MoneyString(inv.AmountGross),
			"status":       string(inv.Status),
		}))
	})
}

// SetItems replaces the invoice lines, normalizing amounts.
func (s *Service) SetItems(ctx context.Context, invoiceID id.ID, items []*Item) error {
	for _, it := range items {
		it.InvoiceID = invoiceID
		it.Normalize()
		if err := it.Validate(ctx); err != nil {
			return err
		}
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.itemRepo.ReplaceForInvoice(ctx, invoiceID, items)
	})
}

// ListItems returns the invoice lines.
func (s *Service) ListItems(ctx context.Context, invoiceID id.ID) ([]*Item, error) {
	return s.itemRepo.ListByInvoice(ctx, invoiceID)
}

// SetActAllocations attaches act allocations to an act-based invoice.
// Each act must belong to the invoice's contract; the sum must not
// exceed the invoice gross amount.
func (s *Service) SetActAllocations(ctx context.Context, invoiceID id.ID, allocations []ActAllocation) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := s.validateActAllocations(ctx, inv, allocations); err != nil {
			return err
		}
		return s.repo.ReplaceActAllocations(ctx, invoiceID, allocations)
	})
}

// ListActAllocations returns the invoice's act allocations.
func (s *Service) ListActAllocations(ctx context.Context, invoiceID id.ID) ([]ActAllocation, error) {
	return s.repo.ListActAllocations(ctx, invoiceID)
}

// Approve moves a received invoice to approved after checking the
// per-type preconditions.
func (s *Service) Approve(ctx context.Context, invoiceID id.ID, actor string) error {
	return s.transition(ctx, invoiceID, StatusApproved, EventApproved, actor, nil,
		func(ctx context.Context, inv *Invoice) error {
			if !inv.HasAmounts() {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule,
					"invoice amounts must be filled before approval").
					WithDetail("invoiceId", inv.ID)
			}

			if inv.Type != TypeInternalTransfer {
				if inv.CategoryID == nil {
					return apperror.NewBusinessRule(apperror.CodeBusinessRule,
						"invoice category is required for approval").
						WithDetail("invoiceId", inv.ID)
				}
				if _, err := s.accounts.GetByID(ctx, *inv.CategoryID); err != nil {
					return err
				}
			}

			if inv.Type == TypeActBased {
				allocations, err := s.repo.ListActAllocations(ctx, inv.ID)
				if err != nil {
					return err
				}
				if len(allocations) == 0 {
					return apperror.NewBusinessRule(apperror.CodeBusinessRule,
						"act-based invoice requires at least one act allocation").
						WithDetail("invoiceId", inv.ID)
				}
				if err := s.validateActAllocations(ctx, inv, allocations); err != nil {
					return err
				}
			}

			return nil
		})
}

// Reject moves a received or approved invoice to rejected.
func (s *Service) Reject(ctx context.Context, invoiceID id.ID, actor, reason string) error {
	return s.transition(ctx, invoiceID, StatusRejected, EventRejected, actor,
		map[string]any{"reason": reason}, nil)
}

// Schedule moves an approved invoice to scheduled with a planned payment
// date. A past date is accepted with a warning, never a failure.
func (s *Service) Schedule(ctx context.Context, invoiceID id.ID, plannedDate time.Time, actor string) error {
	return s.transition(ctx, invoiceID, StatusScheduled, EventScheduled, actor,
		map[string]any{"planned_date": plannedDate.Format("2006-01-02")},
		func(ctx context.Context, inv *Invoice) error {
			today := time.Now().UTC().Truncate(24 * time.Hour)
			if plannedDate.Before(today) {
				logger.Warn(ctx, "invoice scheduled for a past date",
					"invoice_id", inv.ID,
					"planned_date", plannedDate.Format("2006-01-02"))
			}
			inv.PlannedDate = &plannedDate
			return nil
		})
}

// Cancel moves any non-terminal invoice to cancelled. Cancelled invoices
// never emit journal postings; in-flight recognition results for them
// are discarded on arrival.
func (s *Service) Cancel(ctx context.Context, invoiceID id.ID, actor string) error {
	return s.transition(ctx, invoiceID, StatusCancelled, EventCancelled, actor, nil, nil)
}

// MarkPaid moves a scheduled invoice to paid. Called from the payment
// pipeline inside its transaction; amounts and type freeze here.
func (s *Service) MarkPaid(ctx context.Context, invoiceID id.ID, actor string) (*Invoice, error) {
	var result *Invoice
	err := s.transition(ctx, invoiceID, StatusPaid, EventPaid, actor, nil,
		func(ctx context.Context, inv *Invoice) error {
			result = inv
			return nil
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordPosted appends a posted event after journal entries are written.
func (s *Service) RecordPosted(ctx context.Context, invoiceID id.ID, entryCount int) error {
	return s.eventRepo.Append(ctx, NewEvent(invoiceID, EventPosted, "", map[string]any{
		"entries": entryCount,
	}))
}

// RecordEvent appends an arbitrary event to the invoice log. Used by the
// payment pipeline to surface allocation clamping.
func (s *Service) RecordEvent(ctx context.Context, invoiceID id.ID, kind EventKind, actor string, payload map[string]any) error {
	return s.eventRepo.Append(ctx, NewEvent(invoiceID, kind, actor, payload))
}

// ListEvents returns the invoice's event log.
func (s *Service) ListEvents(ctx context.Context, invoiceID id.ID) ([]*Event, error) {
	return s.eventRepo.ListByInvoice(ctx, invoiceID)
}

// List retrieves invoices with filtering.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Invoice], error) {
	return s.repo.List(ctx, filter)
}

// transition applies one state machine step: check legality, run the
// precondition, persist, append the event.
func (s *Service) transition(
	ctx context.Context,
	invoiceID id.ID,
	to Status,
	eventKind EventKind,
	actor string,
	payload map[string]any,
	precondition func(ctx context.Context, inv *Invoice) error,
) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.CanTransition(to) {
			return apperror.NewInvalidTransition("invoice", string(inv.Status), string(to))
		}

		if precondition != nil {
			if err := precondition(ctx, inv); err != nil {
				return err
			}
		}

		from := inv.Status
		inv.Status = to
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}

		if payload == nil {
			payload = map[string]any{}
		}
		payload["from"] = string(from)
		payload["to"] = string(to)
		return s.eventRepo.Append(ctx, NewEvent(inv.ID, eventKind, actor, payload))
	})
}

func (s *Service) validateActAllocations(ctx context.Context, inv *Invoice, allocations []ActAllocation) error {
	if inv.ContractID == nil {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"act allocations require an invoice contract").
			WithDetail("invoiceId", inv.ID)
	}

	total := types.Zero()
	for _, a := range allocations {
		if !a.Amount.IsPositive() {
			return apperror.NewValidation("allocation amount must be positive").
				WithDetail("actId", a.ActID)
		}
		act, err := s.acts.GetAct(ctx, a.ActID)
		if err != nil {
			return err
		}
		if act.ContractID != *inv.ContractID {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"allocated act belongs to a different contract").
				WithDetail("actId", a.ActID).
				WithDetail("invoiceId", inv.ID)
		}
		total = total.Add(a.Amount)
	}

	if total.GreaterThan(inv.AmountGross) {
		return apperror.NewBusinessRule(apperror.CodeAllocationExceeds,
			"allocations exceed the invoice gross amount").
			WithDetail("invoiceId", inv.ID).
			WithDetail("allocated", types.MoneyString(total)).
			WithDetail("amountGross", types.MoneyString(inv.AmountGross))
	}

	return nil
}
