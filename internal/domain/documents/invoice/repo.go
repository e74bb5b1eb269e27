package invoice

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
)

// Filter narrows invoice queries.
type Filter struct {
	Statuses   []Status
	Types      []Type
	Sources    []Source
	ObjectID   *id.ID
	ContractID *id.ID
	DateFrom   *time.Time
	DateTo     *time.Time

	Limit  int
	Offset int
}

// ActAllocation ties an act-based invoice to the acts it covers.
// Checked at approval; converted into payment allocations when paid.
type ActAllocation struct {
	InvoiceID id.ID       `db:"invoice_id" json:"invoiceId"`
	ActID     id.ID       `db:"act_id" json:"actId"`
	Amount    types.Money `db:"amount" json:"amount"`
}

// Repository defines the interface for Invoice persistence.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter Filter) (domain.ListResult[*Invoice], error)

	// ListPendingRecognition returns invoices stuck in recognition,
	// oldest first, for the worker to dispatch.
	ListPendingRecognition(ctx context.Context, limit int) ([]*Invoice, error)

	// Act allocations
	ReplaceActAllocations(ctx context.Context, invoiceID id.ID, allocations []ActAllocation) error
	ListActAllocations(ctx context.Context, invoiceID id.ID) ([]ActAllocation, error)
}

// ItemRepository defines the interface for invoice line persistence.
type ItemRepository interface {
	ReplaceForInvoice(ctx context.Context, invoiceID id.ID, items []*Item) error
	ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*Item, error)
}

// EventRepository appends and reads the per-invoice event log.
type EventRepository interface {
	Append(ctx context.Context, e *Event) error
	ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*Event, error)
}
