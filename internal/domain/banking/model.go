// Package banking imports bank statements, reconciles them against
// payments, and pushes outbound payment orders.
package banking

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Connection is one bank API binding with its token state.
type Connection struct {
	entity.BaseEntity

	Name     string `db:"name" json:"name"`
	Provider string `db:"provider" json:"provider"`

	ClientID       string     `db:"client_id" json:"clientId"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"tokenExpiresAt,omitempty"`

	LastSyncAt *time.Time `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	IsActive   bool       `db:"is_active" json:"isActive"`
}

// NewConnection creates an active bank connection.
func NewConnection(name, provider, clientID string) *Connection {
	return &Connection{
		BaseEntity: entity.NewBaseEntity(),
		Name:       name,
		Provider:   provider,
		ClientID:   clientID,
		IsActive:   true,
	}
}

// TokenExpired reports whether the access token needs a refresh.
func (c *Connection) TokenExpired(now time.Time) bool {
	return c.AccessToken == "" ||
		(c.TokenExpiresAt != nil && !now.Before(*c.TokenExpiresAt))
}

// Account maps a bank-side account to an internal money account.
type Account struct {
	entity.BaseEntity

	ConnectionID id.ID  `db:"connection_id" json:"connectionId"`
	ExternalID   string `db:"external_id" json:"externalId"`

	AccountNumber string `db:"account_number" json:"accountNumber"`
	Currency      string `db:"currency" json:"currency"`

	// CashAccountID is the internal money account statements import into
	CashAccountID *id.ID `db:"cash_account_id" json:"cashAccountId,omitempty"`
}

// Direction of a statement line.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// TransactionStatus is the reconciliation state of an imported line.
type TransactionStatus string

const (
	TransactionNew        TransactionStatus = "new"
	TransactionReconciled TransactionStatus = "reconciled"
	TransactionIgnored    TransactionStatus = "ignored"
)

// Transaction is an imported statement line. (connection, external_id)
// is unique; re-imports are no-ops.
type Transaction struct {
	entity.BaseEntity

	ConnectionID  id.ID  `db:"connection_id" json:"connectionId"`
	BankAccountID id.ID  `db:"bank_account_id" json:"bankAccountId"`
	ExternalID    string `db:"external_id" json:"externalId"`

	Direction   Direction   `db:"direction" json:"direction"`
	Amount      types.Money `db:"amount" json:"amount"`
	PaymentDate time.Time   `db:"payment_date" json:"paymentDate"`

	CounterpartyName string `db:"counterparty_name" json:"counterpartyName,omitempty"`
	CounterpartyINN  string `db:"counterparty_inn" json:"counterpartyInn,omitempty"`
	Description      string `db:"description" json:"description,omitempty"`

	Status TransactionStatus `db:"status" json:"status"`

	// PaymentID is set when the line is reconciled
	PaymentID *id.ID `db:"payment_id" json:"paymentId,omitempty"`
}

// Validate implements entity.Validatable interface.
func (t *Transaction) Validate(ctx context.Context) error {
	if t.ExternalID == "" {
		return apperror.NewValidation("transaction external id is required").
			WithDetail("field", "externalId")
	}

	switch t.Direction {
	case DirectionIncome, DirectionExpense:
	default:
		return apperror.NewValidation("invalid transaction direction").
			WithDetail("field", "direction").
			WithDetail("value", string(t.Direction))
	}

	if !t.Amount.IsPositive() {
		return apperror.NewValidation("transaction amount must be positive").
			WithDetail("field", "amount")
	}

	return nil
}

// StatementLine is one raw line from the bank API.
type StatementLine struct {
	ExternalID       string
	Direction        Direction
	Amount           types.Money
	PaymentDate      time.Time
	CounterpartyName string
	CounterpartyINN  string
	Description      string
}
