package contract

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
)

// Repository defines the interface for Contract persistence.
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, contractID id.ID) (*Contract, error)

	// GetByObjectAndNumber enforces (object, number) uniqueness, nil when absent.
	GetByObjectAndNumber(ctx context.Context, objectID id.ID, number string) (*Contract, error)

	Update(ctx context.Context, c *Contract) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Contract], error)

	// ListByParent returns expense contracts whose parent_contract is the
	// given income contract.
	ListByParent(ctx context.Context, parentID id.ID) ([]*Contract, error)
}

// ActRepository defines the interface for Act persistence.
type ActRepository interface {
	Create(ctx context.Context, a *Act) error
	GetByID(ctx context.Context, actID id.ID) (*Act, error)

	// GetByContractAndNumber enforces (contract, number) uniqueness, nil when absent.
	GetByContractAndNumber(ctx context.Context, contractID id.ID, number string) (*Act, error)

	Update(ctx context.Context, a *Act) error
	ListByContract(ctx context.Context, contractID id.ID) ([]*Act, error)
}

// Granularity truncates payment dates for periodized cash-flow.
type Granularity string

const (
	ByMonth Granularity = "month"
	ByWeek  Granularity = "week"
	ByDay   Granularity = "day"
)

// CashflowScope narrows cash-flow to one contract, one object (all its
// contracts), or the whole firm when both are nil.
type CashflowScope struct {
	ContractID *id.ID
	ObjectID   *id.ID
}

// CashflowFilter is the query input for cash-flow aggregates.
type CashflowFilter struct {
	Scope    CashflowScope
	DateFrom *time.Time
	DateTo   *time.Time
}

// CashflowTotals is the aggregate over paid payments in scope.
type CashflowTotals struct {
	Income   types.Money `json:"income"`
	Expense  types.Money `json:"expense"`
	CashFlow types.Money `json:"cashFlow"`
}

// CashflowPoint is one period of a periodized cash-flow series.
type CashflowPoint struct {
	Period time.Time `json:"period"`
	CashflowTotals
}

// FinanceRepository computes contract financial aggregates.
// Each metric is a single datastore query; no per-row iteration.
type FinanceRepository interface {
	// SumSignedActsGross totals amount_gross over signed acts of the contract.
	SumSignedActsGross(ctx context.Context, contractID id.ID) (types.Money, error)

	// SumSignedActsNet totals amount_net over signed acts of the contract.
	SumSignedActsNet(ctx context.Context, contractID id.ID) (types.Money, error)

	// SumChildSignedActsNet totals amount_net over signed acts of all
	// contracts whose parent_contract is the given contract.
	SumChildSignedActsNet(ctx context.Context, parentContractID id.ID) (types.Money, error)

	// SumPaidPayments totals paid payment amounts for the contract.
	SumPaidPayments(ctx context.Context, contractID id.ID) (types.Money, error)

	// Cashflow returns income/expense totals over paid payments in scope.
	Cashflow(ctx context.Context, filter CashflowFilter) (CashflowTotals, error)

	// CashflowSeries returns the periodized form in ascending period order.
	CashflowSeries(ctx context.Context, filter CashflowFilter, granularity Granularity) ([]CashflowPoint, error)
}
