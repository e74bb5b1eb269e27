package journal

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
)

// EntryFilter narrows journal queries.
type EntryFilter struct {
	AccountID *id.ID // matches either side
	DateFrom  *time.Time
	DateTo    *time.Time
	AutoOnly  bool

	Limit  int
	Offset int
}

// Repository defines the interface for journal persistence.
// The journal is append-only; there is no update or delete.
type Repository interface {
	// CreateBatch inserts all entries atomically.
	CreateBatch(ctx context.Context, entries []*Entry) error

	// GetByID retrieves a single entry.
	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	// ListByInvoice returns entries produced for an invoice, ordered by kind.
	ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*Entry, error)

	// ListByIncomeRecord returns entries produced for an income record.
	ListByIncomeRecord(ctx context.Context, incomeRecordID id.ID) ([]*Entry, error)

	// ListByPayment returns entries produced for an income payment.
	ListByPayment(ctx context.Context, paymentID id.ID) ([]*Entry, error)

	// List retrieves entries with filtering.
	List(ctx context.Context, filter EntryFilter) (domain.ListResult[*Entry], error)
}
