package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/banking"
	"stroyfin/internal/domain/documents/invoice"
)

// --- Recognition job fakes ---

type fakeQueue struct {
	pending  []*invoice.Invoice
	applied  map[id.ID]*invoice.RecognizedFields
	failures map[id.ID]error
}

func newFakeQueue(pending ...*invoice.Invoice) *fakeQueue {
	return &fakeQueue{
		pending:  pending,
		applied:  map[id.ID]*invoice.RecognizedFields{},
		failures: map[id.ID]error{},
	}
}

func (q *fakeQueue) ListPendingRecognition(ctx context.Context, limit int) ([]*invoice.Invoice, error) {
	if len(q.pending) > limit {
		return q.pending[:limit], nil
	}
	return q.pending, nil
}

func (q *fakeQueue) ApplyRecognition(ctx context.Context, invoiceID id.ID, fields *invoice.RecognizedFields) error {
	q.applied[invoiceID] = fields
	return nil
}

func (q *fakeQueue) RecordRecognitionFailure(ctx context.Context, invoiceID id.ID, cause error) error {
	q.failures[invoiceID] = cause
	return nil
}

type fakeBlobs struct {
	data map[string][]byte
}

func (b *fakeBlobs) Get(ctx context.Context, uri string) ([]byte, error) {
	data, ok := b.data[uri]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return data, nil
}

type fakeRecognizer struct {
	fields *invoice.RecognizedFields
	err    error
	calls  int
}

func (r *fakeRecognizer) Recognize(ctx context.Context, fileName string, pdf []byte) (*invoice.RecognizedFields, error) {
	r.calls++
	return r.fields, r.err
}

func pendingInvoice(uri string) *invoice.Invoice {
	inv := invoice.NewInvoice(invoice.SourceBitrix, invoice.TypeSupplier)
	inv.ScanBlobURI = uri
	return inv
}

func TestRecognitionJob_AppliesRecognizedFields(t *testing.T) {
	inv := pendingInvoice("file:///blobs/scan-1.pdf")
	queue := newFakeQueue(inv)
	blobs := &fakeBlobs{data: map[string][]byte{inv.ScanBlobURI: []byte("%PDF-1.4")}}
	rec := &fakeRecognizer{fields: &invoice.RecognizedFields{
		InvoiceNumber: "15",
		VendorName:    "ООО Поставщик",
		AmountGross:   "120000.00",
	}}

	job := NewRecognitionJob(queue, blobs, rec, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, rec.calls)
	require.Contains(t, queue.applied, inv.ID)
	assert.Equal(t, "15", queue.applied[inv.ID].InvoiceNumber)
	assert.Empty(t, queue.failures)
}

func TestRecognitionJob_FailureDoesNotStopBatch(t *testing.T) {
	broken := pendingInvoice("file:///blobs/missing.pdf")
	healthy := pendingInvoice("file:///blobs/scan-2.pdf")
	queue := newFakeQueue(broken, healthy)
	blobs := &fakeBlobs{data: map[string][]byte{healthy.ScanBlobURI: []byte("%PDF-1.4")}}
	rec := &fakeRecognizer{fields: &invoice.RecognizedFields{InvoiceNumber: "16"}}

	job := NewRecognitionJob(queue, blobs, rec, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	assert.Contains(t, queue.failures, broken.ID)
	assert.Contains(t, queue.applied, healthy.ID)
}

func TestRecognitionJob_RecognizerErrorRecorded(t *testing.T) {
	inv := pendingInvoice("file:///blobs/scan-3.pdf")
	queue := newFakeQueue(inv)
	blobs := &fakeBlobs{data: map[string][]byte{inv.ScanBlobURI: []byte("%PDF-1.4")}}
	rec := &fakeRecognizer{err: errors.New("model overloaded")}

	job := NewRecognitionJob(queue, blobs, rec, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	require.Contains(t, queue.failures, inv.ID)
	assert.Empty(t, queue.applied)
}

// --- Bank sync job fakes ---

type fakeConnections struct {
	conns []*banking.Connection
}

func (f *fakeConnections) ListActive(ctx context.Context) ([]*banking.Connection, error) {
	return f.conns, nil
}

type fakeImporter struct {
	ranges map[id.ID][2]time.Time
	errFor map[id.ID]error
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{ranges: map[id.ID][2]time.Time{}, errFor: map[id.ID]error{}}
}

func (f *fakeImporter) ImportTransactions(ctx context.Context, connectionID id.ID, from, to time.Time) (int, int, error) {
	if err := f.errFor[connectionID]; err != nil {
		return 0, 0, err
	}
	f.ranges[connectionID] = [2]time.Time{from, to}
	return 2, 1, nil
}

func TestBankSyncJob_FreshConnectionUsesLookback(t *testing.T) {
	conn := banking.NewConnection("Точка основная", "tochka", "client-1")
	importer := newFakeImporter()

	job := NewBankSyncJob(&fakeConnections{conns: []*banking.Connection{conn}}, importer, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	window, ok := importer.ranges[conn.ID]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC().Add(-initialLookback), window[0], time.Minute)
}

func TestBankSyncJob_ResumesWithOverlap(t *testing.T) {
	conn := banking.NewConnection("Точка основная", "tochka", "client-1")
	lastSync := time.Now().UTC().Add(-3 * time.Hour)
	conn.LastSyncAt = &lastSync
	importer := newFakeImporter()

	job := NewBankSyncJob(&fakeConnections{conns: []*banking.Connection{conn}}, importer, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	window := importer.ranges[conn.ID]
	assert.WithinDuration(t, lastSync.Add(-syncOverlap), window[0], time.Second)
}

func TestBankSyncJob_OneBankFailingDoesNotBlockOthers(t *testing.T) {
	broken := banking.NewConnection("Сломанный банк", "tochka", "client-1")
	healthy := banking.NewConnection("Точка основная", "tochka", "client-2")
	importer := newFakeImporter()
	importer.errFor[broken.ID] = errors.New("bank api down")

	job := NewBankSyncJob(&fakeConnections{conns: []*banking.Connection{broken, healthy}}, importer, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	assert.NotContains(t, importer.ranges, broken.ID)
	assert.Contains(t, importer.ranges, healthy.ID)
}
