package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/catalogs/cashaccount"
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/domain/journal"
)

// --- Test doubles ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memPaymentRepo struct {
	byID    map[id.ID]*Payment
	updates int
}

func (r *memPaymentRepo) Create(ctx context.Context, p *Payment) error {
	r.byID[p.ID] = p
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*Payment, error) {
	p, ok := r.byID[paymentID]
	if !ok {
		return nil, apperror.NewNotFound("payment", paymentID)
	}
	return p, nil
}

func (r *memPaymentRepo) Update(ctx context.Context, p *Payment) error {
	r.updates++
	r.byID[p.ID] = p
	return nil
}

func (r *memPaymentRepo) List(ctx context.Context, filter Filter) (domain.ListResult[*Payment], error) {
	return domain.ListResult[*Payment]{}, nil
}

type memRegistryRepo struct {
	byID    map[id.ID]*Registry
	updates int
}

func (r *memRegistryRepo) Create(ctx context.Context, reg *Registry) error {
	r.byID[reg.ID] = reg
	return nil
}

func (r *memRegistryRepo) GetByID(ctx context.Context, registryID id.ID) (*Registry, error) {
	reg, ok := r.byID[registryID]
	if !ok {
		return nil, apperror.NewNotFound("payment registry", registryID)
	}
	return reg, nil
}

func (r *memRegistryRepo) Update(ctx context.Context, reg *Registry) error {
	r.updates++
	r.byID[reg.ID] = reg
	return nil
}

func (r *memRegistryRepo) ListByStatus(ctx context.Context, status RegistryStatus) ([]*Registry, error) {
	var out []*Registry
	for _, reg := range r.byID {
		if reg.Status == status {
			out = append(out, reg)
		}
	}
	return out, nil
}

type memAllocRepo struct {
	allocations []*Allocation
}

func (r *memAllocRepo) Create(ctx context.Context, a *Allocation) error {
	r.allocations = append(r.allocations, a)
	return nil
}

func (r *memAllocRepo) SumByAct(ctx context.Context, actID id.ID) (types.Money, error) {
	sum := types.Zero()
	for _, a := range r.allocations {
		if a.ActID == actID {
			sum = sum.Add(a.Amount)
		}
	}
	return sum, nil
}

func (r *memAllocRepo) SumByPayment(ctx context.Context, paymentID id.ID) (types.Money, error) {
	sum := types.Zero()
	for _, a := range r.allocations {
		if a.PaymentID == paymentID {
			sum = sum.Add(a.Amount)
		}
	}
	return sum, nil
}

func (r *memAllocRepo) ListByAct(ctx context.Context, actID id.ID) ([]*Allocation, error) {
	var out []*Allocation
	for _, a := range r.allocations {
		if a.ActID == actID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocRepo) ListByPayment(ctx context.Context, paymentID id.ID) ([]*Allocation, error) {
	var out []*Allocation
	for _, a := range r.allocations {
		if a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeInvoices struct {
	byID        map[id.ID]*invoice.Invoice
	allocations map[id.ID][]invoice.ActAllocation
	events      []invoice.EventKind
	posted      int
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{
		byID:        make(map[id.ID]*invoice.Invoice),
		allocations: make(map[id.ID][]invoice.ActAllocation),
	}
}

func (f *fakeInvoices) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	inv, ok := f.byID[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}
	return inv, nil
}

func (f *fakeInvoices) MarkPaid(ctx context.Context, invoiceID id.ID, actor string) (*invoice.Invoice, error) {
	inv, err := f.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusScheduled {
		return nil, apperror.NewInvalidTransition("invoice", string(inv.Status), string(invoice.StatusPaid))
	}
	inv.Status = invoice.StatusPaid
	f.events = append(f.events, invoice.EventPaid)
	return inv, nil
}

func (f *fakeInvoices) ListActAllocations(ctx context.Context, invoiceID id.ID) ([]invoice.ActAllocation, error) {
	return f.allocations[invoiceID], nil
}

func (f *fakeInvoices) RecordPosted(ctx context.Context, invoiceID id.ID, entryCount int) error {
	f.posted++
	f.events = append(f.events, invoice.EventPosted)
	return nil
}

func (f *fakeInvoices) RecordEvent(ctx context.Context, invoiceID id.ID, kind invoice.EventKind, actor string, payload map[string]any) error {
	f.events = append(f.events, kind)
	return nil
}

type fakeJournal struct {
	postings        []journal.InvoicePosting
	paymentPostings []journal.PaymentPosting
}

func (f *fakeJournal) PostForInvoice(ctx context.Context, p journal.InvoicePosting, actor string) ([]*journal.Entry, error) {
	f.postings = append(f.postings, p)
	return []*journal.Entry{{}, {}}, nil
}

func (f *fakeJournal) PostForPayment(ctx context.Context, p journal.PaymentPosting, actor string) ([]*journal.Entry, error) {
	f.paymentPostings = append(f.paymentPostings, p)
	if p.CategoryID == nil || (p.ContractAccountID == nil && p.ObjectAccountID == nil) {
		return nil, nil
	}
	return []*journal.Entry{{}}, nil
}

type fakeAccounts struct {
	objectAccounts   map[id.ID]*account.Account
	contractAccounts map[id.ID]*account.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		objectAccounts:   make(map[id.ID]*account.Account),
		contractAccounts: make(map[id.ID]*account.Account),
	}
}

func (f *fakeAccounts) EnsureObject(ctx context.Context, ref account.ObjectRef) (*account.Account, error) {
	if acc, ok := f.objectAccounts[ref.ID]; ok {
		return acc, nil
	}
	acc := account.NewAccount("obj-"+ref.Code, ref.Name, account.TypeObject)
	f.objectAccounts[ref.ID] = acc
	return acc, nil
}

func (f *fakeAccounts) EnsureContract(ctx context.Context, ref account.ContractRef) (*account.Account, error) {
	if acc, ok := f.contractAccounts[ref.ID]; ok {
		return acc, nil
	}
	acc := account.NewAccount("contract-"+ref.Number, ref.Name, account.TypeContract)
	f.contractAccounts[ref.ID] = acc
	return acc, nil
}

type fakeContracts struct {
	contracts map[id.ID]*contract.Contract
	acts      map[id.ID]*contract.Act
}

func (f *fakeContracts) GetByID(ctx context.Context, contractID id.ID) (*contract.Contract, error) {
	c, ok := f.contracts[contractID]
	if !ok {
		return nil, apperror.NewNotFound("contract", contractID)
	}
	return c, nil
}

func (f *fakeContracts) GetAct(ctx context.Context, actID id.ID) (*contract.Act, error) {
	a, ok := f.acts[actID]
	if !ok {
		return nil, apperror.NewNotFound("act", actID)
	}
	return a, nil
}

type fakeObjects struct {
	byID map[id.ID]*object.Object
}

func (f *fakeObjects) GetByID(ctx context.Context, objectID id.ID) (*object.Object, error) {
	o, ok := f.byID[objectID]
	if !ok {
		return nil, apperror.NewNotFound("object", objectID)
	}
	return o, nil
}

type fakeCashAccounts struct {
	byID map[id.ID]*cashaccount.CashAccount
}

func (f *fakeCashAccounts) GetByID(ctx context.Context, accID id.ID) (*cashaccount.CashAccount, error) {
	a, ok := f.byID[accID]
	if !ok {
		return nil, apperror.NewNotFound("cash account", accID)
	}
	return a, nil
}

type fixture struct {
	svc          *Service
	payments     *memPaymentRepo
	registries   *memRegistryRepo
	allocs       *memAllocRepo
	invoices     *fakeInvoices
	journal      *fakeJournal
	accounts     *fakeAccounts
	contracts    *fakeContracts
	objects      *fakeObjects
	cashAccounts *fakeCashAccounts
}

func newFixture() *fixture {
	f := &fixture{
		payments:     &memPaymentRepo{byID: make(map[id.ID]*Payment)},
		registries:   &memRegistryRepo{byID: make(map[id.ID]*Registry)},
		allocs:       &memAllocRepo{},
		invoices:     newFakeInvoices(),
		journal:      &fakeJournal{},
		accounts:     newFakeAccounts(),
		contracts:    &fakeContracts{contracts: make(map[id.ID]*contract.Contract), acts: make(map[id.ID]*contract.Act)},
		objects:      &fakeObjects{byID: make(map[id.ID]*object.Object)},
		cashAccounts: &fakeCashAccounts{byID: make(map[id.ID]*cashaccount.CashAccount)},
	}
	f.svc = NewService(f.payments, f.registries, f.allocs, noopTxManager{},
		f.invoices, f.journal, f.accounts, f.contracts, f.objects, f.cashAccounts)
	return f
}

func (f *fixture) addCashAccount() id.ID {
	acc := cashaccount.NewCashAccount("ДС-1", "Расчётный счёт", cashaccount.KindBank)
	num := "40702810900000012345"
	acc.AccountNumber = &num
	entityID := id.New()
	acc.LegalEntityID = &entityID
	f.cashAccounts.byID[acc.ID] = acc
	return acc.ID
}

func (f *fixture) addObjectContract() (*object.Object, *contract.Contract) {
	obj := object.NewObject("001", "ЖК Северный", "Москва")
	f.objects.byID[obj.ID] = obj

	c := contract.NewContract("С-1", "Субподряд", obj.ID, id.New(), id.New(), contract.TypeExpense)
	f.contracts.contracts[c.ID] = c
	return obj, c
}

func (f *fixture) addScheduledInvoice(c *contract.Contract) *invoice.Invoice {
	inv := invoice.NewInvoice(invoice.SourceManual, invoice.TypeSupplier)
	inv.Number = "СЧ-1"
	inv.Status = invoice.StatusScheduled
	inv.AmountGross = types.MustMoney("120000.00")
	inv.AmountNet = types.MustMoney("100000.00")
	inv.VATAmount = types.MustMoney("20000.00")
	if c != nil {
		inv.ContractID = &c.ID
	}
	cat := id.New()
	inv.CategoryID = &cat
	f.invoices.byID[inv.ID] = inv
	return inv
}

// --- Tests ---

func TestCreateExpense_CreatesLinkedRegistry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := NewPayment(TypeExpense, f.addCashAccount(), types.MustMoney("50000.00"), time.Now().UTC())
	reg, err := f.svc.CreateExpense(ctx, p, time.Now().UTC().AddDate(0, 0, 5), "supply")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, RegistryPlanned, reg.Status)
	require.NotNil(t, p.PaymentRegistryID)
	require.NotNil(t, reg.PaymentID)
	assert.Equal(t, reg.ID, *p.PaymentRegistryID)
	assert.Equal(t, p.ID, *reg.PaymentID)
	assert.NotNil(t, p.LegalEntityID, "legal entity follows the money account")
}

func TestCreateIncome_PaidImmediatelyNoRegistry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := NewPayment(TypeIncome, f.addCashAccount(), types.MustMoney("200000.00"), time.Now().UTC())
	require.NoError(t, f.svc.CreateIncome(ctx, p, "бухгалтер"))

	assert.Equal(t, StatusPaid, p.Status)
	assert.Nil(t, p.PaymentRegistryID)
	assert.Empty(t, f.registries.byID)
}

func TestCreateIncome_PostsFromCategoryToContractAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj, c := f.addObjectContract()

	p := NewPayment(TypeIncome, f.addCashAccount(), types.MustMoney("3000.00"), time.Now().UTC())
	p.ContractID = &c.ID
	cat := id.New()
	p.CategoryID = &cat

	require.NoError(t, f.svc.CreateIncome(ctx, p, "бухгалтер"))

	require.Len(t, f.journal.paymentPostings, 1)
	posting := f.journal.paymentPostings[0]
	assert.Equal(t, p.ID, posting.PaymentID)
	assert.True(t, posting.Amount.Equal(types.MustMoney("3000.00")))
	require.NotNil(t, posting.CategoryID)
	assert.Equal(t, cat, *posting.CategoryID)
	require.NotNil(t, posting.ContractAccountID)
	assert.Equal(t, f.accounts.contractAccounts[c.ID].ID, *posting.ContractAccountID)
	require.NotNil(t, posting.ObjectAccountID)
	assert.Equal(t, f.accounts.objectAccounts[obj.ID].ID, *posting.ObjectAccountID)
}

func TestCreateIncome_WithoutContractPostsNothingConcrete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := NewPayment(TypeIncome, f.addCashAccount(), types.MustMoney("1500.00"), time.Now().UTC())
	require.NoError(t, f.svc.CreateIncome(ctx, p, "бухгалтер"))

	// The posting is offered to the journal but carries no project
	// destination, so it resolves to nothing
	require.Len(t, f.journal.paymentPostings, 1)
	assert.Nil(t, f.journal.paymentPostings[0].ContractAccountID)
	assert.Nil(t, f.journal.paymentPostings[0].ObjectAccountID)
}

func TestRegistryLifecycle_PropagatesToPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := NewPayment(TypeExpense, f.addCashAccount(), types.MustMoney("50000.00"), time.Now().UTC())
	reg, err := f.svc.CreateExpense(ctx, p, time.Now().UTC(), "supply")
	require.NoError(t, err)

	// paid straight from planned is illegal
	err = f.svc.PayRegistry(ctx, reg.ID, "director")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	require.NoError(t, f.svc.ApproveRegistry(ctx, reg.ID, "director"))
	require.NotNil(t, reg.ApprovedBy)

	require.NoError(t, f.svc.PayRegistry(ctx, reg.ID, "director"))
	assert.Equal(t, RegistryPaid, reg.Status)
	assert.Equal(t, StatusPaid, p.Status, "payment follows registry")
}

func TestCancelRegistry_CancelsPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := NewPayment(TypeExpense, f.addCashAccount(), types.MustMoney("50000.00"), time.Now().UTC())
	reg, err := f.svc.CreateExpense(ctx, p, time.Now().UTC(), "supply")
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelRegistry(ctx, reg.ID))
	assert.Equal(t, RegistryCancelled, reg.Status)
	assert.Equal(t, StatusCancelled, p.Status)

	// Cancelled registry rejects further transitions
	err = f.svc.CancelRegistry(ctx, reg.ID)
	require.Error(t, err)
}

func TestMarkPaid_PropagatesToRegistryOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := NewPayment(TypeExpense, f.addCashAccount(), types.MustMoney("50000.00"), time.Now().UTC())
	reg, err := f.svc.CreateExpense(ctx, p, time.Now().UTC(), "supply")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkPaid(ctx, p.ID, "accountant"))
	assert.Equal(t, StatusPaid, p.Status)
	assert.Equal(t, RegistryPaid, reg.Status)

	updatesAfter := f.registries.updates

	// Re-marking is rejected before any propagation runs
	err = f.svc.MarkPaid(ctx, p.ID, "accountant")
	require.Error(t, err)
	assert.Equal(t, updatesAfter, f.registries.updates, "no redundant registry writes")
}

func TestPayInvoice_FullPipeline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj, c := f.addObjectContract()
	inv := f.addScheduledInvoice(c)

	act := contract.NewAct(c.ID, "АКТ-1", time.Now().UTC(), types.MustMoney("200000.00"))
	f.contracts.acts[act.ID] = act
	f.invoices.allocations[inv.ID] = []invoice.ActAllocation{
		{InvoiceID: inv.ID, ActID: act.ID, Amount: types.MustMoney("120000.00")},
	}

	p, err := f.svc.PayInvoice(ctx, inv.ID, f.addCashAccount(), "accountant")
	require.NoError(t, err)

	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.Equal(t, StatusPaid, p.Status)
	assert.True(t, p.Amount.Equal(inv.AmountGross))
	require.NotNil(t, p.PaymentRegistryID)
	assert.Equal(t, RegistryPaid, f.registries.byID[*p.PaymentRegistryID].Status)

	// Journal got the resolved contract and object accounts
	require.Len(t, f.journal.postings, 1)
	posting := f.journal.postings[0]
	assert.NotNil(t, posting.ContractAccountID)
	assert.NotNil(t, posting.ObjectAccountID)
	assert.Equal(t, f.accounts.contractAccounts[c.ID].ID, *posting.ContractAccountID)
	assert.Equal(t, f.accounts.objectAccounts[obj.ID].ID, *posting.ObjectAccountID)
	assert.Equal(t, 1, f.invoices.posted)

	// Allocation created for the full requested amount
	require.Len(t, f.allocs.allocations, 1)
	assert.True(t, f.allocs.allocations[0].Amount.Equal(types.MustMoney("120000.00")))
}

func TestPayInvoice_RejectsNonScheduled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, c := f.addObjectContract()
	inv := f.addScheduledInvoice(c)
	inv.Status = invoice.StatusReceived

	_, err := f.svc.PayInvoice(ctx, inv.ID, f.addCashAccount(), "accountant")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Empty(t, f.payments.byID, "no payment fact on failed transition")
}

func TestAllocation_ClampedToActRemaining(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, c := f.addObjectContract()
	inv := f.addScheduledInvoice(c)

	act := contract.NewAct(c.ID, "АКТ-2", time.Now().UTC(), types.MustMoney("100000.00"))
	f.contracts.acts[act.ID] = act

	// Previous payment already covered most of the act
	f.allocs.allocations = append(f.allocs.allocations,
		NewAllocation(act.ID, id.New(), types.MustMoney("90000.00")))

	f.invoices.allocations[inv.ID] = []invoice.ActAllocation{
		{InvoiceID: inv.ID, ActID: act.ID, Amount: types.MustMoney("120000.00")},
	}

	_, err := f.svc.PayInvoice(ctx, inv.ID, f.addCashAccount(), "accountant")
	require.NoError(t, err)

	// Only the remaining 10000 was allocated, and the clamp left an event
	require.Len(t, f.allocs.allocations, 2)
	assert.True(t, f.allocs.allocations[1].Amount.Equal(types.MustMoney("10000.00")))
	assert.Contains(t, f.invoices.events, invoice.EventAmended)

	// Invariant holds: total by act never exceeds act gross
	total, err := f.allocs.SumByAct(ctx, act.ID)
	require.NoError(t, err)
	assert.False(t, total.GreaterThan(act.AmountGross))
}

func TestRegistryPay_AllocatesAttachedAct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, c := f.addObjectContract()
	act := contract.NewAct(c.ID, "АКТ-3", time.Now().UTC(), types.MustMoney("80000.00"))
	f.contracts.acts[act.ID] = act

	p := NewPayment(TypeExpense, f.addCashAccount(), types.MustMoney("30000.00"), time.Now().UTC())
	reg, err := f.svc.CreateExpense(ctx, p, time.Now().UTC(), "supply")
	require.NoError(t, err)
	reg.ActID = &act.ID

	require.NoError(t, f.svc.ApproveRegistry(ctx, reg.ID, "director"))
	require.NoError(t, f.svc.PayRegistry(ctx, reg.ID, "director"))

	require.Len(t, f.allocs.allocations, 1)
	assert.Equal(t, act.ID, f.allocs.allocations[0].ActID)
	assert.True(t, f.allocs.allocations[0].Amount.Equal(types.MustMoney("30000.00")))
}
