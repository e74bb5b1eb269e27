package banking

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
)

// ConnectionRepository defines the interface for Connection persistence.
type ConnectionRepository interface {
	Create(ctx context.Context, c *Connection) error
	GetByID(ctx context.Context, connectionID id.ID) (*Connection, error)
	Update(ctx context.Context, c *Connection) error
	ListActive(ctx context.Context) ([]*Connection, error)
}

// AccountRepository defines the interface for bank account persistence.
type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, accountID id.ID) (*Account, error)
	Update(ctx context.Context, a *Account) error
	ListByConnection(ctx context.Context, connectionID id.ID) ([]*Account, error)
}

// TransactionFilter narrows imported transaction queries.
type TransactionFilter struct {
	ConnectionID *id.ID
	Statuses     []TransactionStatus
	DateFrom     *time.Time
	DateTo       *time.Time

	Limit  int
	Offset int
}

// TransactionRepository defines the interface for statement line persistence.
type TransactionRepository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, transactionID id.ID) (*Transaction, error)

	// GetByExternalID returns nil without error when the line is unknown.
	GetByExternalID(ctx context.Context, connectionID id.ID, externalID string) (*Transaction, error)

	Update(ctx context.Context, t *Transaction) error
	List(ctx context.Context, filter TransactionFilter) (domain.ListResult[*Transaction], error)
}

// OrderRepository defines the interface for payment order persistence.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByStatus(ctx context.Context, status OrderStatus) ([]*Order, error)
}

// OrderEventRepository defines the interface for order history persistence.
type OrderEventRepository interface {
	Append(ctx context.Context, e *OrderEvent) error
	ListByOrder(ctx context.Context, orderID id.ID) ([]*OrderEvent, error)
}
