package worker

import (
	"context"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/banking"
	"stroyfin/pkg/logger"
)

const (
	// syncOverlap re-reads a margin before the last sync so lines the
	// bank booked late are not missed. Duplicates are absorbed by the
	// external id check.
	syncOverlap = 48 * time.Hour

	// initialLookback bounds the first sync of a fresh connection.
	initialLookback = 30 * 24 * time.Hour
)

// ConnectionLister returns bank connections due for sync.
type ConnectionLister interface {
	ListActive(ctx context.Context) ([]*banking.Connection, error)
}

// StatementImporter pulls transactions for one connection.
type StatementImporter interface {
	ImportTransactions(ctx context.Context, connectionID id.ID, from, to time.Time) (int, int, error)
}

// BankSyncJob imports statements for every active bank connection.
type BankSyncJob struct {
	connections ConnectionLister
	importer    StatementImporter
	interval    time.Duration
}

// NewBankSyncJob creates the statement sync job.
func NewBankSyncJob(connections ConnectionLister, importer StatementImporter, interval time.Duration) *BankSyncJob {
	return &BankSyncJob{
		connections: connections,
		importer:    importer,
		interval:    interval,
	}
}

func (j *BankSyncJob) Name() string            { return "bank-sync" }
func (j *BankSyncJob) Interval() time.Duration { return j.interval }

// Run syncs each connection independently; a failing bank does not
// block the others.
func (j *BankSyncJob) Run(ctx context.Context) error {
	connections, err := j.connections.ListActive(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, conn := range connections {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		from := now.Add(-initialLookback)
		if conn.LastSyncAt != nil {
			from = conn.LastSyncAt.Add(-syncOverlap)
		}

		imported, reconciled, err := j.importer.ImportTransactions(ctx, conn.ID, from, now)
		if err != nil {
			logger.Warn(ctx, "bank sync failed",
				"connection_id", conn.ID,
				"provider", conn.Provider,
				"error", err)
			continue
		}
		if imported > 0 || reconciled > 0 {
			logger.Info(ctx, "bank statements synced",
				"connection_id", conn.ID,
				"imported", imported,
				"reconciled", reconciled)
		}
	}
	return nil
}
