package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/documents/contract"
)

// --- Test doubles ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRepo struct {
	byID        map[id.ID]*Invoice
	allocations map[id.ID][]ActAllocation
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:        make(map[id.ID]*Invoice),
		allocations: make(map[id.ID][]ActAllocation),
	}
}

func (r *memRepo) Create(ctx context.Context, inv *Invoice) error {
	r.byID[inv.ID] = inv
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	inv, ok := r.byID[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}
	return inv, nil
}

func (r *memRepo) Update(ctx context.Context, inv *Invoice) error {
	r.byID[inv.ID] = inv
	return nil
}

func (r *memRepo) List(ctx context.Context, filter Filter) (domain.ListResult[*Invoice], error) {
	return domain.ListResult[*Invoice]{}, nil
}

func (r *memRepo) ListPendingRecognition(ctx context.Context, limit int) ([]*Invoice, error) {
	var out []*Invoice
	for _, inv := range r.byID {
		if inv.Status == StatusRecognition {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memRepo) ReplaceActAllocations(ctx context.Context, invoiceID id.ID, allocations []ActAllocation) error {
	r.allocations[invoiceID] = allocations
	return nil
}

func (r *memRepo) ListActAllocations(ctx context.Context, invoiceID id.ID) ([]ActAllocation, error) {
	return r.allocations[invoiceID], nil
}

type memItemRepo struct {
	byInvoice map[id.ID][]*Item
}

func (r *memItemRepo) ReplaceForInvoice(ctx context.Context, invoiceID id.ID, items []*Item) error {
	r.byInvoice[invoiceID] = items
	return nil
}

func (r *memItemRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*Item, error) {
	return r.byInvoice[invoiceID], nil
}

type memEventRepo struct {
	events []*Event
}

func (r *memEventRepo) Append(ctx context.Context, e *Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *memEventRepo) ListByInvoice(ctx context.Context, invoiceID id.ID) ([]*Event, error) {
	var out []*Event
	for _, e := range r.events {
		if e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEventRepo) kinds(invoiceID id.ID) []EventKind {
	var out []EventKind
	for _, e := range r.events {
		if e.InvoiceID == invoiceID {
			out = append(out, e.Kind)
		}
	}
	return out
}

type fakeActs struct {
	byID map[id.ID]*contract.Act
}

func (f *fakeActs) GetAct(ctx context.Context, actID id.ID) (*contract.Act, error) {
	a, ok := f.byID[actID]
	if !ok {
		return nil, apperror.NewNotFound("act", actID)
	}
	return a, nil
}

type fakeAccounts struct {
	byID map[id.ID]*account.Account
}

func (f *fakeAccounts) GetByID(ctx context.Context, accID id.ID) (*account.Account, error) {
	a, ok := f.byID[accID]
	if !ok {
		return nil, apperror.NewNotFound("account", accID)
	}
	return a, nil
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	items    *memItemRepo
	events   *memEventRepo
	acts     *fakeActs
	accounts *fakeAccounts
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		items:    &memItemRepo{byInvoice: make(map[id.ID][]*Item)},
		events:   &memEventRepo{},
		acts:     &fakeActs{byID: make(map[id.ID]*contract.Act)},
		accounts: &fakeAccounts{byID: make(map[id.ID]*account.Account)},
	}
	f.svc = NewService(f.repo, f.items, f.events, noopTxManager{}, nil, f.acts, f.accounts)
	return f
}

func (f *fixture) addCategory() id.ID {
	acc := account.NewAccount("materials", "Материалы", account.TypeHousehold)
	f.accounts.byID[acc.ID] = acc
	return acc.ID
}

func (f *fixture) newReceived(t *testing.T, invType Type) *Invoice {
	t.Helper()
	inv := NewInvoice(SourceManual, invType)
	inv.Number = "СЧ-" + id.New().String()[:8]
	inv.AmountGross = types.MustMoney("120000.00")
	inv.AmountNet = types.MustMoney("100000.00")
	inv.VATAmount = types.MustMoney("20000.00")
	cat := f.addCategory()
	inv.CategoryID = &cat
	require.NoError(t, f.svc.Create(context.Background(), inv, "tester"))
	return inv
}

// --- Tests ---

func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := f.newReceived(t, TypeSupplier)
	assert.Equal(t, StatusReceived, inv.Status)

	require.NoError(t, f.svc.Approve(ctx, inv.ID, "director"))
	assert.Equal(t, StatusApproved, inv.Status)

	planned := time.Now().UTC().AddDate(0, 0, 3)
	require.NoError(t, f.svc.Schedule(ctx, inv.ID, planned, "accountant"))
	assert.Equal(t, StatusScheduled, inv.Status)
	require.NotNil(t, inv.PlannedDate)

	paid, err := f.svc.MarkPaid(ctx, inv.ID, "accountant")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)

	kinds := f.events.kinds(inv.ID)
	assert.Equal(t, []EventKind{EventAmended, EventApproved, EventScheduled, EventPaid}, kinds)
}

func TestTransitions_IllegalMovesRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := f.newReceived(t, TypeSupplier)

	// received cannot jump to paid or scheduled
	_, err := f.svc.MarkPaid(ctx, inv.ID, "tester")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	err = f.svc.Schedule(ctx, inv.ID, time.Now().UTC(), "tester")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestCancel_FromAnyNonTerminalOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := f.newReceived(t, TypeSupplier)
	require.NoError(t, f.svc.Approve(ctx, inv.ID, "tester"))
	require.NoError(t, f.svc.Cancel(ctx, inv.ID, "tester"))
	assert.Equal(t, StatusCancelled, inv.Status)

	// Terminal states reject cancellation
	err := f.svc.Cancel(ctx, inv.ID, "tester")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	inv2 := f.newReceived(t, TypeSupplier)
	require.NoError(t, f.svc.Reject(ctx, inv2.ID, "director", "цена завышена"))
	err = f.svc.Cancel(ctx, inv2.ID, "tester")
	require.Error(t, err)
}

func TestApprove_RequiresCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := NewInvoice(SourceManual, TypeSupplier)
	inv.Number = "СЧ-100"
	inv.AmountGross = types.MustMoney("1000.00")
	require.NoError(t, f.svc.Create(ctx, inv, "tester"))

	err := f.svc.Approve(ctx, inv.ID, "tester")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestApprove_ActBasedNeedsAllocations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	contractID := id.New()
	inv := f.newReceived(t, TypeActBased)
	inv.ContractID = &contractID

	// No allocations attached
	err := f.svc.Approve(ctx, inv.ID, "tester")
	require.Error(t, err)

	// Act from another contract
	foreignAct := contract.NewAct(id.New(), "АКТ-1", time.Now().UTC(), types.MustMoney("50000.00"))
	f.acts.byID[foreignAct.ID] = foreignAct
	err = f.svc.SetActAllocations(ctx, inv.ID, []ActAllocation{
		{InvoiceID: inv.ID, ActID: foreignAct.ID, Amount: types.MustMoney("50000.00")},
	})
	require.Error(t, err)

	// Proper act, allocation over gross
	act := contract.NewAct(contractID, "АКТ-2", time.Now().UTC(), types.MustMoney("200000.00"))
	f.acts.byID[act.ID] = act
	err = f.svc.SetActAllocations(ctx, inv.ID, []ActAllocation{
		{InvoiceID: inv.ID, ActID: act.ID, Amount: types.MustMoney("130000.00")},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAllocationExceeds, appErr.Code)

	// Within gross: approval passes
	require.NoError(t, f.svc.SetActAllocations(ctx, inv.ID, []ActAllocation{
		{InvoiceID: inv.ID, ActID: act.ID, Amount: types.MustMoney("120000.00")},
	}))
	require.NoError(t, f.svc.Approve(ctx, inv.ID, "tester"))
}

func TestValidate_InternalTransferTarget(t *testing.T) {
	ctx := context.Background()

	inv := NewInvoice(SourceManual, TypeInternalTransfer)
	inv.Number = "СЧ-200"
	inv.AmountGross = types.MustMoney("5000.00")

	err := inv.Validate(ctx)
	require.Error(t, err)

	target := id.New()
	inv.TargetAccountID = &target
	require.NoError(t, inv.Validate(ctx))

	// Target on a supplier invoice is invalid the other way around
	sup := NewInvoice(SourceManual, TypeSupplier)
	sup.Number = "СЧ-201"
	sup.TargetAccountID = &target
	require.Error(t, sup.Validate(ctx))
}

func TestCreate_ScanWithoutAmountsStartsRecognition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := NewInvoice(SourceBitrix, TypeSupplier)
	inv.Number = "СЧ-300"
	inv.ScanBlobURI = "blobs/2026/03/scan.pdf"
	require.NoError(t, f.svc.Create(ctx, inv, ""))
	assert.Equal(t, StatusRecognition, inv.Status)

	pending, err := f.svc.ListPendingRecognition(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApplyRecognition_AdvancesToReceived(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := NewInvoice(SourceBitrix, TypeSupplier)
	inv.Number = "СЧ-301"
	inv.ScanBlobURI = "blobs/scan.pdf"
	require.NoError(t, f.svc.Create(ctx, inv, ""))

	fields := &RecognizedFields{
		InvoiceNumber: "1542",
		AmountGross:   "120000.00",
		AmountNet:     "100000.00",
		VATAmount:     "20000.00",
		VendorINN:     "7701234567",
		Items: []RecognizedItem{
			{Name: "Профлист С21", Quantity: "100", Unit: "м2", PricePerUnit: "1200.00"},
		},
	}
	require.NoError(t, f.svc.ApplyRecognition(ctx, inv.ID, fields))

	assert.Equal(t, StatusReceived, inv.Status)
	assert.True(t, inv.AmountGross.Equal(types.MustMoney("120000.00")))
	assert.NotEmpty(t, inv.RecognizedFields)

	items, err := f.svc.ListItems(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Amount.Equal(types.MustMoney("120000.00")), "line amount derived from qty*price")

	kinds := f.events.kinds(inv.ID)
	assert.Contains(t, kinds, EventRecognized)
}

func TestApplyRecognition_DiscardedAfterCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := NewInvoice(SourceBitrix, TypeSupplier)
	inv.Number = "СЧ-302"
	inv.ScanBlobURI = "blobs/scan.pdf"
	require.NoError(t, f.svc.Create(ctx, inv, ""))
	require.NoError(t, f.svc.Cancel(ctx, inv.ID, "tester"))

	fields := &RecognizedFields{AmountGross: "99000.00"}
	require.NoError(t, f.svc.ApplyRecognition(ctx, inv.ID, fields))

	// Result discarded: still cancelled, amounts untouched
	assert.Equal(t, StatusCancelled, inv.Status)
	assert.False(t, inv.AmountGross.IsPositive())
}

func TestRecordRecognitionFailure_KeepsRecognitionState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := NewInvoice(SourceManual, TypeSupplier)
	inv.Number = "СЧ-303"
	inv.ScanBlobURI = "blobs/scan.pdf"
	require.NoError(t, f.svc.Create(ctx, inv, ""))

	require.NoError(t, f.svc.RecordRecognitionFailure(ctx, inv.ID, errors.New("upstream timeout")))
	assert.Equal(t, StatusRecognition, inv.Status)
	assert.Contains(t, f.events.kinds(inv.ID), EventRecognitionFailed)
}

func TestSchedule_PastDateWarnsButSucceeds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := f.newReceived(t, TypeSupplier)
	require.NoError(t, f.svc.Approve(ctx, inv.ID, "tester"))

	past := time.Now().UTC().AddDate(0, 0, -10)
	require.NoError(t, f.svc.Schedule(ctx, inv.ID, past, "tester"))
	assert.Equal(t, StatusScheduled, inv.Status)
}

func TestAmend_FillingAmountsCompletesRecognition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv := NewInvoice(SourceManual, TypeSupplier)
	inv.Number = "СЧ-304"
	inv.ScanBlobURI = "blobs/scan.pdf"
	require.NoError(t, f.svc.Create(ctx, inv, ""))
	require.Equal(t, StatusRecognition, inv.Status)

	inv.AmountGross = types.MustMoney("42000.00")
	inv.AmountNet = types.MustMoney("35000.00")
	inv.VATAmount = types.MustMoney("7000.00")
	require.NoError(t, f.svc.Amend(ctx, inv, "tester"))
	assert.Equal(t, StatusReceived, inv.Status)
}
