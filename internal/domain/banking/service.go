package banking

import (
	"context"
	"strings"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/documents/payment"
	"stroyfin/pkg/logger"
	"stroyfin/pkg/numerator"
)

// reconcileWindowDays bounds the date distance between a statement line
// and a candidate payment.
const reconcileWindowDays = 3

// Token is a refreshed access token pair.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// BankClient talks to the bank API. Satisfied by the tochka
// infrastructure client.
type BankClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	ListTransactions(ctx context.Context, accessToken, accountExternalID string, from, to time.Time) ([]StatementLine, error)

	// SendOrder pushes one order using its idempotency key; retries with
	// the same order reuse the key and never double-send.
	SendOrder(ctx context.Context, accessToken string, o *Order) (externalID string, err error)
}

// Payments is the slice of the payment service reconciliation needs.
type Payments interface {
	FindPending(ctx context.Context, amount types.Money, from, to time.Time) ([]*payment.Payment, error)
	MarkPaid(ctx context.Context, paymentID id.ID, actor string) error
	CreateIncome(ctx context.Context, p *payment.Payment, actor string) error
}

// Service imports statements, reconciles them, and drives payment orders.
type Service struct {
	connections  ConnectionRepository
	accounts     AccountRepository
	transactions TransactionRepository
	orders       OrderRepository
	orderEvents  OrderEventRepository
	txManager    tx.Manager
	numerator    *numerator.Service
	client       BankClient
	payments     Payments
}

// NewService creates a new banking service.
func NewService(
	connections ConnectionRepository,
	accounts AccountRepository,
	transactions TransactionRepository,
	orders OrderRepository,
	orderEvents OrderEventRepository,
	txManager tx.Manager,
	num *numerator.Service,
	client BankClient,
	payments Payments,
) *Service {
	return &Service{
		connections:  connections,
		accounts:     accounts,
		transactions: transactions,
		orders:       orders,
		orderEvents:  orderEvents,
		txManager:    txManager,
		numerator:    num,
		client:       client,
		payments:     payments,
	}
}

// ImportTransactions pulls statement lines for every account of the
// connection and materializes them as transactions, auto-reconciling
// where the heuristic finds exactly one matching payment. Per-line
// failures are logged and skipped. Returns imported and reconciled counts.
func (s *Service) ImportTransactions(ctx context.Context, connectionID id.ID, from, to time.Time) (int, int, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return 0, 0, err
	}
	if err := s.ensureFreshToken(ctx, conn); err != nil {
		return 0, 0, err
	}

	accounts, err := s.accounts.ListByConnection(ctx, connectionID)
	if err != nil {
		return 0, 0, err
	}

	imported, reconciled := 0, 0
	for _, acc := range accounts {
		lines, err := s.client.ListTransactions(ctx, conn.AccessToken, acc.ExternalID, from, to)
		if err != nil {
			return imported, reconciled, apperror.NewIntegration(conn.Provider, "list transactions failed").
				WithDetail("bankAccountId", acc.ID).
				WithDetail("error", err.Error())
		}

		for _, line := range lines {
			created, matched, err := s.importLine(ctx, conn, acc, line)
			if err != nil {
				logger.Warn(ctx, "statement line import failed, skipping",
					"connection_id", connectionID,
					"external_id", line.ExternalID,
					"error", err)
				continue
			}
			if created {
				imported++
			}
			if matched {
				reconciled++
			}
		}
	}

	now := time.Now().UTC()
	conn.LastSyncAt = &now
	if err := s.connections.Update(ctx, conn); err != nil {
		return imported, reconciled, err
	}
	return imported, reconciled, nil
}

// importLine persists one statement line unless it is already known,
// then tries the reconciliation heuristic.
func (s *Service) importLine(ctx context.Context, conn *Connection, acc *Account, line StatementLine) (created, matched bool, err error) {
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.transactions.GetByExternalID(ctx, conn.ID, line.ExternalID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		t := &Transaction{
			BaseEntity:       entity.NewBaseEntity(),
			ConnectionID:     conn.ID,
			BankAccountID:    acc.ID,
			ExternalID:       line.ExternalID,
			Direction:        line.Direction,
			Amount:           types.Round2(line.Amount),
			PaymentDate:      line.PaymentDate,
			CounterpartyName: line.CounterpartyName,
			CounterpartyINN:  line.CounterpartyINN,
			Description:      line.Description,
			Status:           TransactionNew,
		}
		if err := t.Validate(ctx); err != nil {
			return err
		}
		if err := s.transactions.Create(ctx, t); err != nil {
			return err
		}
		created = true

		match, err := s.findMatch(ctx, t)
		if err != nil {
			return err
		}
		if match == nil {
			return nil
		}

		if err := s.payments.MarkPaid(ctx, match.ID, "bank-sync"); err != nil {
			// A concurrent path settled it first; the line stays new
			// for manual review
			if apperror.IsInvalidTransition(err) {
				logger.Warn(ctx, "matched payment already settled, leaving line unreconciled",
					"transaction_id", t.ID,
					"payment_id", match.ID)
				return nil
			}
			return err
		}

		matchID := match.ID
		t.PaymentID = &matchID
		t.Status = TransactionReconciled
		matched = true
		return s.transactions.Update(ctx, t)
	})
	return created, matched, err
}

// findMatch applies the heuristic: same amount, payment date within the
// window, and when the line carries an INN it must appear in the
// candidate's description. Anything but exactly one survivor means no
// automatic match.
func (s *Service) findMatch(ctx context.Context, t *Transaction) (*payment.Payment, error) {
	from := t.PaymentDate.AddDate(0, 0, -reconcileWindowDays)
	to := t.PaymentDate.AddDate(0, 0, reconcileWindowDays)

	candidates, err := s.payments.FindPending(ctx, t.Amount, from, to)
	if err != nil {
		return nil, err
	}

	if t.CounterpartyINN != "" {
		var narrowed []*payment.Payment
		for _, p := range candidates {
			if strings.Contains(p.Description, t.CounterpartyINN) {
				narrowed = append(narrowed, p)
			}
		}
		if len(narrowed) > 0 {
			candidates = narrowed
		}
	}

	if len(candidates) != 1 {
		return nil, nil
	}
	return candidates[0], nil
}

// Reconcile manually matches a new transaction to an existing payment.
func (s *Service) Reconcile(ctx context.Context, transactionID, paymentID id.ID, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != TransactionNew {
			return apperror.NewInvalidTransition("bank transaction", string(t.Status), string(TransactionReconciled))
		}

		if err := s.payments.MarkPaid(ctx, paymentID, actor); err != nil {
			if !apperror.IsInvalidTransition(err) {
				return err
			}
			// Already paid is acceptable for a manual match
		}

		t.PaymentID = &paymentID
		t.Status = TransactionReconciled
		return s.transactions.Update(ctx, t)
	})
}

// MaterializeIncome turns an unmatched income line into a paid income
// payment and reconciles the line against it.
func (s *Service) MaterializeIncome(ctx context.Context, transactionID, cashAccountID id.ID, actor string) (*payment.Payment, error) {
	var result *payment.Payment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != TransactionNew {
			return apperror.NewInvalidTransition("bank transaction", string(t.Status), string(TransactionReconciled))
		}
		if t.Direction != DirectionIncome {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only income lines can be materialized as income payments").
				WithDetail("transactionId", t.ID).
				WithDetail("direction", string(t.Direction))
		}

		p := payment.NewPayment(payment.TypeIncome, cashAccountID, t.Amount, t.PaymentDate)
		p.Description = t.Description
		if err := s.payments.CreateIncome(ctx, p, actor); err != nil {
			return err
		}

		pid := p.ID
		t.PaymentID = &pid
		t.Status = TransactionReconciled
		if err := s.transactions.Update(ctx, t); err != nil {
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

// Ignore marks a new transaction as not relevant for reconciliation.
func (s *Service) Ignore(ctx context.Context, transactionID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if t.Status != TransactionNew {
			return apperror.NewInvalidTransition("bank transaction", string(t.Status), string(TransactionIgnored))
		}
		t.Status = TransactionIgnored
		return s.transactions.Update(ctx, t)
	})
}

// ListTransactions retrieves imported lines with filtering.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) (domain.ListResult[*Transaction], error) {
	return s.transactions.List(ctx, filter)
}

// ensureFreshToken refreshes the connection's access token when expired.
func (s *Service) ensureFreshToken(ctx context.Context, conn *Connection) error {
	if !conn.TokenExpired(time.Now().UTC()) {
		return nil
	}

	token, err := s.client.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		return apperror.NewIntegration(conn.Provider, "token refresh failed").
			WithDetail("connectionId", conn.ID).
			WithDetail("error", err.Error())
	}

	conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.RefreshToken = token.RefreshToken
	}
	expires := token.ExpiresAt
	conn.TokenExpiresAt = &expires
	return s.connections.Update(ctx, conn)
}
