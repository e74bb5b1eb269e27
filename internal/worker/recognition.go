package worker

import (
	"context"
	"path/filepath"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/pkg/logger"
)

const recognitionBatch = 10

// InvoiceRecognizer extracts structured fields from a scan. Satisfied
// by the OpenAI recognition client.
type InvoiceRecognizer interface {
	Recognize(ctx context.Context, fileName string, pdf []byte) (*invoice.RecognizedFields, error)
}

// BlobReader fetches stored scans back by URI.
type BlobReader interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// InvoiceQueue is the slice of the invoice service the job drives.
type InvoiceQueue interface {
	ListPendingRecognition(ctx context.Context, limit int) ([]*invoice.Invoice, error)
	ApplyRecognition(ctx context.Context, invoiceID id.ID, fields *invoice.RecognizedFields) error
	RecordRecognitionFailure(ctx context.Context, invoiceID id.ID, cause error) error
}

// RecognitionJob feeds invoices waiting in recognition through the
// document recognizer.
type RecognitionJob struct {
	invoices   InvoiceQueue
	blobs      BlobReader
	recognizer InvoiceRecognizer
	interval   time.Duration
}

// NewRecognitionJob creates the recognition dispatch job.
func NewRecognitionJob(invoices InvoiceQueue, blobs BlobReader, recognizer InvoiceRecognizer, interval time.Duration) *RecognitionJob {
	return &RecognitionJob{
		invoices:   invoices,
		blobs:      blobs,
		recognizer: recognizer,
		interval:   interval,
	}
}

func (j *RecognitionJob) Name() string            { return "recognition" }
func (j *RecognitionJob) Interval() time.Duration { return j.interval }

// Run processes one batch. A failed invoice gets a failure event and
// the batch moves on; the invoice stays in recognition for manual
// amendment, so nothing is lost.
func (j *RecognitionJob) Run(ctx context.Context) error {
	pending, err := j.invoices.ListPendingRecognition(ctx, recognitionBatch)
	if err != nil {
		return err
	}

	for _, inv := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := j.processOne(ctx, inv); err != nil {
			logger.Warn(ctx, "invoice recognition failed",
				"invoice_id", inv.ID,
				"number", inv.Number,
				"error", err)
			if recErr := j.invoices.RecordRecognitionFailure(ctx, inv.ID, err); recErr != nil {
				logger.Error(ctx, "failed to record recognition failure",
					"invoice_id", inv.ID,
					"error", recErr)
			}
		}
	}
	return nil
}

func (j *RecognitionJob) processOne(ctx context.Context, inv *invoice.Invoice) error {
	scan, err := j.blobs.Get(ctx, inv.ScanBlobURI)
	if err != nil {
		return err
	}

	fields, err := j.recognizer.Recognize(ctx, filepath.Base(inv.ScanBlobURI), scan)
	if err != nil {
		return err
	}

	return j.invoices.ApplyRecognition(ctx, inv.ID, fields)
}
