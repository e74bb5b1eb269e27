package recurring

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
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/domain/journal"
)

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memTemplateRepo struct {
	byID map[id.ID]*Template
}

func (r *memTemplateRepo) Create(ctx context.Context, t *Template) error {
	r.byID[t.ID] = t
	return nil
}

func (r *memTemplateRepo) GetByID(ctx context.Context, templateID id.ID) (*Template, error) {
	t, ok := r.byID[templateID]
	if !ok {
		return nil, apperror.NewNotFound("recurring template", templateID)
	}
	return t, nil
}

func (r *memTemplateRepo) Update(ctx context.Context, t *Template) error {
	r.byID[t.ID] = t
	return nil
}

func (r *memTemplateRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Template], error) {
	return domain.ListResult[*Template]{}, nil
}

func (r *memTemplateRepo) ListActive(ctx context.Context, now time.Time) ([]*Template, error) {
	var out []*Template
	for _, t := range r.byID {
		if t.IsActive && !t.StartDate.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memIncomeRepo struct {
	byID map[id.ID]*IncomeRecord
}

func (r *memIncomeRepo) Create(ctx context.Context, rec *IncomeRecord) error {
	r.byID[rec.ID] = rec
	return nil
}

func (r *memIncomeRepo) GetByID(ctx context.Context, recordID id.ID) (*IncomeRecord, error) {
	rec, ok := r.byID[recordID]
	if !ok {
		return nil, apperror.NewNotFound("income record", recordID)
	}
	return rec, nil
}

func (r *memIncomeRepo) List(ctx context.Context, filter IncomeFilter) (domain.ListResult[*IncomeRecord], error) {
	return domain.ListResult[*IncomeRecord]{}, nil
}

type fakeInvoices struct {
	created []*invoice.Invoice
	failAll bool
}

func (f *fakeInvoices) Create(ctx context.Context, inv *invoice.Invoice, actor string) error {
	if f.failAll {
		return apperror.NewValidation("broken invoice")
	}
	f.created = append(f.created, inv)
	return nil
}

type fakeJournal struct {
	postings []journal.IncomePosting
}

func (f *fakeJournal) PostForIncome(ctx context.Context, p journal.IncomePosting, actor string) ([]*journal.Entry, error) {
	f.postings = append(f.postings, p)
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
	byID map[id.ID]*contract.Contract
}

func (f *fakeContracts) GetByID(ctx context.Context, contractID id.ID) (*contract.Contract, error) {
	c, ok := f.byID[contractID]
	if !ok {
		return nil, apperror.NewNotFound("contract", contractID)
	}
	return c, nil
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

type fixture struct {
	svc       *Service
	templates *memTemplateRepo
	incomes   *memIncomeRepo
	invoices  *fakeInvoices
	journal   *fakeJournal
	accounts  *fakeAccounts
	contracts *fakeContracts
	objects   *fakeObjects
}

func newFixture() *fixture {
	f := &fixture{
		templates: &memTemplateRepo{byID: make(map[id.ID]*Template)},
		incomes:   &memIncomeRepo{byID: make(map[id.ID]*IncomeRecord)},
		invoices:  &fakeInvoices{},
		journal:   &fakeJournal{},
		accounts:  newFakeAccounts(),
		contracts: &fakeContracts{byID: make(map[id.ID]*contract.Contract)},
		objects:   &fakeObjects{byID: make(map[id.ID]*object.Object)},
	}
	f.svc = NewService(f.templates, f.incomes, noopTxManager{}, nil,
		f.invoices, f.journal, f.accounts, f.contracts, f.objects)
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) addTemplate(frequency Frequency, start time.Time) *Template {
	t := NewTemplate("РП-1", "Аренда офиса", id.New(), id.New(),
		types.MustMoney("85000.00"), frequency, start)
	f.templates.byID[t.ID] = t
	return t
}

func TestDueOccurrences_MonthlyClampsToMonthEnd(t *testing.T) {
	tpl := NewTemplate("РП-1", "Аренда", id.New(), id.New(),
		types.MustMoney("100.00"), FrequencyMonthly, date(2026, time.January, 31))

	due := tpl.DueOccurrences(date(2026, time.April, 30))
	require.Len(t, due, 4)
	assert.Equal(t, date(2026, time.January, 31), due[0])
	assert.Equal(t, date(2026, time.February, 28), due[1], "February clamps, no drift into March")
	assert.Equal(t, date(2026, time.March, 31), due[2])
	assert.Equal(t, date(2026, time.April, 30), due[3])
}

func TestDueOccurrences_CursorAndEndDate(t *testing.T) {
	tpl := NewTemplate("РП-1", "Аренда", id.New(), id.New(),
		types.MustMoney("100.00"), FrequencyWeekly, date(2026, time.June, 1))
	cursor := date(2026, time.June, 8)
	tpl.LastGeneratedDate = &cursor
	end := date(2026, time.June, 20)
	tpl.EndDate = &end

	due := tpl.DueOccurrences(date(2026, time.July, 15))
	require.Len(t, due, 1)
	assert.Equal(t, date(2026, time.June, 15), due[0], "past the cursor, within the end date")
}

func TestDueOccurrences_UnknownFrequencyProducesNothing(t *testing.T) {
	tpl := NewTemplate("РП-1", "Аренда", id.New(), id.New(),
		types.MustMoney("100.00"), Frequency("fortnightly"), date(2026, time.June, 1))
	cursor := date(2026, time.June, 1)
	tpl.LastGeneratedDate = &cursor

	// A bad stored row must terminate, not spin
	assert.Empty(t, tpl.DueOccurrences(date(2026, time.July, 15)))
}

func TestGenerateDue_OneInvoicePerPeriod(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tpl := f.addTemplate(FrequencyMonthly, date(2026, time.May, 10))

	created, err := f.svc.GenerateDue(ctx, date(2026, time.July, 15), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 3, created, "May, June, July")
	require.Len(t, f.invoices.created, 3)

	inv := f.invoices.created[0]
	assert.Equal(t, invoice.SourceRecurring, inv.Source)
	assert.Equal(t, invoice.TypeHousehold, inv.Type)
	assert.Equal(t, invoice.StatusReceived, inv.Status)
	assert.True(t, inv.AmountGross.Equal(tpl.Amount))
	require.NotNil(t, tpl.LastGeneratedDate)
	assert.Equal(t, date(2026, time.July, 10), *tpl.LastGeneratedDate)

	// Re-run generates nothing new
	created, err = f.svc.GenerateDue(ctx, date(2026, time.July, 15), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, f.invoices.created, 3)
}

func TestGenerateDue_ContractBoundTemplateMakesSupplierInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tpl := f.addTemplate(FrequencyMonthly, date(2026, time.August, 1))
	contractID := id.New()
	tpl.ContractID = &contractID

	created, err := f.svc.GenerateDue(ctx, date(2026, time.August, 1), "scheduler")
	require.NoError(t, err)
	require.Equal(t, 1, created)
	assert.Equal(t, invoice.TypeSupplier, f.invoices.created[0].Type)
	assert.Equal(t, &contractID, f.invoices.created[0].ContractID)
}

func TestGenerateDue_InactiveTemplateSkipped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tpl := f.addTemplate(FrequencyDaily, date(2026, time.August, 1))
	tpl.IsActive = false

	created, err := f.svc.GenerateDue(ctx, date(2026, time.August, 5), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestGenerateDue_FailingTemplateDoesNotBlockOthers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addTemplate(FrequencyMonthly, date(2026, time.August, 1))
	f.invoices.failAll = true

	created, err := f.svc.GenerateDue(ctx, date(2026, time.August, 1), "scheduler")
	require.NoError(t, err, "per-template failures are logged, not raised")
	assert.Equal(t, 0, created)
}

func TestRecordIncome_PostsToContractAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	obj := object.NewObject("001", "ЖК Северный", "Москва")
	f.objects.byID[obj.ID] = obj
	c := contract.NewContract("Д-1", "Генподряд", obj.ID, id.New(), id.New(), contract.TypeIncome)
	f.contracts.byID[c.ID] = c

	rec := NewIncomeRecord(IncomeCustomerAct, id.New(), types.MustMoney("500000.00"), date(2026, time.August, 20))
	rec.Number = "ПД-1"
	rec.ContractID = &c.ID

	entries, err := f.svc.RecordIncome(ctx, rec, "accountant")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.Len(t, f.journal.postings, 1)
	posting := f.journal.postings[0]
	assert.Equal(t, journal.IncomeCustomerAct, posting.Type)
	require.NotNil(t, posting.ContractAccountID)
	assert.Equal(t, f.accounts.contractAccounts[c.ID].ID, *posting.ContractAccountID)
	require.NotNil(t, posting.ObjectAccountID, "object account resolved through the contract")
	assert.Contains(t, f.incomes.byID, rec.ID)
}

func TestRecordIncome_RejectsInvalidType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rec := NewIncomeRecord("dividends", id.New(), types.MustMoney("100.00"), date(2026, time.August, 20))
	rec.Number = "ПД-2"

	_, err := f.svc.RecordIncome(ctx, rec, "accountant")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}
