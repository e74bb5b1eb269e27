package contract

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
	"stroyfin/internal/domain/catalogs/counterparty"
	"stroyfin/internal/domain/documents/proposal"
)

// --- Test doubles ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memContractRepo struct {
	byID map[id.ID]*Contract
}

func newMemContractRepo() *memContractRepo {
	return &memContractRepo{byID: make(map[id.ID]*Contract)}
}

func (r *memContractRepo) Create(ctx context.Context, c *Contract) error {
	r.byID[c.ID] = c
	return nil
}

func (r *memContractRepo) GetByID(ctx context.Context, contractID id.ID) (*Contract, error) {
	c, ok := r.byID[contractID]
	if !ok {
		return nil, apperror.NewNotFound("contract", contractID)
	}
	return c, nil
}

func (r *memContractRepo) GetByObjectAndNumber(ctx context.Context, objectID id.ID, number string) (*Contract, error) {
	for _, c := range r.byID {
		if c.ObjectID == objectID && c.Number == number {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memContractRepo) Update(ctx context.Context, c *Contract) error {
	r.byID[c.ID] = c
	return nil
}

func (r *memContractRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Contract], error) {
	return domain.ListResult[*Contract]{}, nil
}

func (r *memContractRepo) ListByParent(ctx context.Context, parentID id.ID) ([]*Contract, error) {
	var out []*Contract
	for _, c := range r.byID {
		if c.ParentContractID != nil && *c.ParentContractID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memActRepo struct {
	byID map[id.ID]*Act
}

func newMemActRepo() *memActRepo {
	return &memActRepo{byID: make(map[id.ID]*Act)}
}

func (r *memActRepo) Create(ctx context.Context, a *Act) error {
	r.byID[a.ID] = a
	return nil
}

func (r *memActRepo) GetByID(ctx context.Context, actID id.ID) (*Act, error) {
	a, ok := r.byID[actID]
	if !ok {
		return nil, apperror.NewNotFound("act", actID)
	}
	return a, nil
}

func (r *memActRepo) GetByContractAndNumber(ctx context.Context, contractID id.ID, number string) (*Act, error) {
	for _, a := range r.byID {
		if a.ContractID == contractID && a.Number == number {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memActRepo) Update(ctx context.Context, a *Act) error {
	r.byID[a.ID] = a
	return nil
}

func (r *memActRepo) ListByContract(ctx context.Context, contractID id.ID) ([]*Act, error) {
	var out []*Act
	for _, a := range r.byID {
		if a.ContractID == contractID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeFinance struct {
	actsGross map[id.ID]types.Money
	actsNet   map[id.ID]types.Money
	childNet  map[id.ID]types.Money
	paid      map[id.ID]types.Money
}

func newFakeFinance() *fakeFinance {
	return &fakeFinance{
		actsGross: make(map[id.ID]types.Money),
		actsNet:   make(map[id.ID]types.Money),
		childNet:  make(map[id.ID]types.Money),
		paid:      make(map[id.ID]types.Money),
	}
}

func (f *fakeFinance) SumSignedActsGross(ctx context.Context, contractID id.ID) (types.Money, error) {
	return f.actsGross[contractID], nil
}

func (f *fakeFinance) SumSignedActsNet(ctx context.Context, contractID id.ID) (types.Money, error) {
	return f.actsNet[contractID], nil
}

func (f *fakeFinance) SumChildSignedActsNet(ctx context.Context, parentContractID id.ID) (types.Money, error) {
	return f.childNet[parentContractID], nil
}

func (f *fakeFinance) SumPaidPayments(ctx context.Context, contractID id.ID) (types.Money, error) {
	return f.paid[contractID], nil
}

func (f *fakeFinance) Cashflow(ctx context.Context, filter CashflowFilter) (CashflowTotals, error) {
	return CashflowTotals{}, nil
}

func (f *fakeFinance) CashflowSeries(ctx context.Context, filter CashflowFilter, granularity Granularity) ([]CashflowPoint, error) {
	return nil, nil
}

type fakeProposals struct {
	byID map[id.ID]*proposal.Proposal
}

func (f *fakeProposals) GetByID(ctx context.Context, proposalID id.ID) (*proposal.Proposal, error) {
	p, ok := f.byID[proposalID]
	if !ok {
		return nil, apperror.NewNotFound("proposal", proposalID)
	}
	return p, nil
}

type fakeCounterparties struct {
	byID map[id.ID]*counterparty.Counterparty
}

func (f *fakeCounterparties) GetByID(ctx context.Context, cpID id.ID) (*counterparty.Counterparty, error) {
	cp, ok := f.byID[cpID]
	if !ok {
		return nil, apperror.NewNotFound("counterparty", cpID)
	}
	return cp, nil
}

type fixture struct {
	svc            *Service
	repo           *memContractRepo
	actRepo        *memActRepo
	finance        *fakeFinance
	proposals      *fakeProposals
	counterparties *fakeCounterparties
}

func newFixture() *fixture {
	f := &fixture{
		repo:           newMemContractRepo(),
		actRepo:        newMemActRepo(),
		finance:        newFakeFinance(),
		proposals:      &fakeProposals{byID: make(map[id.ID]*proposal.Proposal)},
		counterparties: &fakeCounterparties{byID: make(map[id.ID]*counterparty.Counterparty)},
	}
	f.svc = NewService(f.repo, f.actRepo, f.finance, noopTxManager{}, nil, f.proposals, f.counterparties)
	return f
}

func (f *fixture) addVendor() id.ID {
	cp := counterparty.NewCounterparty("КА-001", "ООО СтройПоставка", counterparty.TypeVendor, counterparty.LegalCompany)
	f.counterparties.byID[cp.ID] = cp
	return cp.ID
}

func (f *fixture) addCustomer() id.ID {
	cp := counterparty.NewCounterparty("КА-002", "ООО Заказчик", counterparty.TypeCustomer, counterparty.LegalCompany)
	f.counterparties.byID[cp.ID] = cp
	return cp.ID
}

func (f *fixture) addApprovedProposal(kind proposal.Kind) id.ID {
	p := proposal.NewProposal(kind, id.New(), id.New(), types.MustMoney("100000"))
	p.Status = proposal.StatusApproved
	f.proposals.byID[p.ID] = p
	return p.ID
}

func newExpenseContract(f *fixture, number string) *Contract {
	return NewContract(number, "Субподряд на монтаж", id.New(), f.addVendor(), id.New(), TypeExpense)
}

// --- Tests ---

func TestCreate_RejectsDuplicateNumberPerObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	objID := id.New()
	c1 := NewContract("42/2026", "Договор 1", objID, f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c1))

	c2 := NewContract("42/2026", "Договор 2", objID, f.addCustomer(), id.New(), TypeIncome)
	err := f.svc.Create(ctx, c2)
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	// Same number on another object is fine
	c3 := NewContract("42/2026", "Договор 3", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c3))
}

func TestActivate_RequiresApprovedProposal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := NewContract("7/2026", "Вентиляция", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c))

	// No proposal attached
	err := f.svc.Activate(ctx, c.ID)
	require.Error(t, err)

	// Draft proposal attached
	p := proposal.NewProposal(proposal.KindTechnical, id.New(), id.New(), types.MustMoney("500000"))
	f.proposals.byID[p.ID] = p
	c.TechnicalProposalID = &p.ID
	err = f.svc.Activate(ctx, c.ID)
	require.Error(t, err)

	// Approved proposal unlocks activation
	p.Status = proposal.StatusApproved
	require.NoError(t, f.svc.Activate(ctx, c.ID))
	assert.Equal(t, StatusActive, c.Status)
}

func TestActivate_ExpenseRequiresVendorCounterparty(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mpID := f.addApprovedProposal(proposal.KindMounting)

	c := NewContract("С-1", "Поставка бетона", id.New(), f.addCustomer(), id.New(), TypeExpense)
	c.MountingProposalID = &mpID
	require.NoError(t, f.svc.Create(ctx, c))

	err := f.svc.Activate(ctx, c.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)

	c2 := newExpenseContract(f, "С-2")
	c2.MountingProposalID = &mpID
	require.NoError(t, f.svc.Create(ctx, c2))
	require.NoError(t, f.svc.Activate(ctx, c2.ID))
}

func TestCreate_FrameworkLinkRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	vendorID := f.addVendor()

	fw := NewContract("РД-2026-001", "Рамочный договор", id.New(), vendorID, id.New(), TypeExpense)
	fw.IsFramework = true
	require.NoError(t, f.svc.Create(ctx, fw))

	// Framework not active yet
	c := NewContract("С-10", "Заказ по рамочному", id.New(), vendorID, id.New(), TypeExpense)
	c.FrameworkContractID = &fw.ID
	err := f.svc.Create(ctx, c)
	require.Error(t, err)

	fw.Status = StatusActive

	// Counterparty mismatch
	other := NewContract("С-11", "Чужой заказ", id.New(), f.addVendor(), id.New(), TypeExpense)
	other.FrameworkContractID = &fw.ID
	err = f.svc.Create(ctx, other)
	require.Error(t, err)

	// Matching vendor and active framework
	ok := NewContract("С-12", "Заказ по рамочному", id.New(), vendorID, id.New(), TypeExpense)
	ok.FrameworkContractID = &fw.ID
	require.NoError(t, f.svc.Create(ctx, ok))

	// Income contract cannot carry a framework link at all
	inc := NewContract("С-13", "Договор с заказчиком", id.New(), vendorID, id.New(), TypeIncome)
	inc.FrameworkContractID = &fw.ID
	err = f.svc.Create(ctx, inc)
	require.Error(t, err)
}

func TestCreate_ParentMustBeIncome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	parentExpense := newExpenseContract(f, "С-20")
	require.NoError(t, f.svc.Create(ctx, parentExpense))

	child := newExpenseContract(f, "С-21")
	child.ParentContractID = &parentExpense.ID
	err := f.svc.Create(ctx, child)
	require.Error(t, err)

	parentIncome := NewContract("С-22", "Генподряд", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, parentIncome))

	child2 := newExpenseContract(f, "С-23")
	child2.ParentContractID = &parentIncome.ID
	require.NoError(t, f.svc.Create(ctx, child2))
}

func TestChangeStatus_RejectsIllegalTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := NewContract("С-30", "Договор", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c))

	err := f.svc.ChangeStatus(ctx, c.ID, StatusCompleted)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	c.Status = StatusActive
	require.NoError(t, f.svc.ChangeStatus(ctx, c.ID, StatusCompleted))

	// Completed is terminal
	err = f.svc.ChangeStatus(ctx, c.ID, StatusActive)
	require.Error(t, err)
}

func TestCreateAct_DerivesVATFromContractRate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := NewContract("С-40", "Договор", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c))

	a := NewAct(c.ID, "АКТ-1", time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), types.MustMoney("120000.00"))
	require.NoError(t, f.svc.CreateAct(ctx, a))

	assert.True(t, a.AmountNet.Equal(types.MustMoney("100000.00")), "net = %s", types.MoneyString(a.AmountNet))
	assert.True(t, a.VATAmount.Equal(types.MustMoney("20000.00")), "vat = %s", types.MoneyString(a.VATAmount))

	// Duplicate number on the same contract
	dup := NewAct(c.ID, "АКТ-1", time.Now().UTC(), types.MustMoney("500.00"))
	err := f.svc.CreateAct(ctx, dup)
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestSignAct_OnlyFromDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := NewContract("С-41", "Договор", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c))

	a := NewAct(c.ID, "АКТ-2", time.Now().UTC(), types.MustMoney("50000.00"))
	require.NoError(t, f.svc.CreateAct(ctx, a))

	require.NoError(t, f.svc.SignAct(ctx, a.ID))
	assert.Equal(t, ActSigned, a.Status)

	err := f.svc.SignAct(ctx, a.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	require.NoError(t, f.svc.CancelAct(ctx, a.ID))
	err = f.svc.CancelAct(ctx, a.ID)
	require.Error(t, err)
}

func TestBalance_ActsMinusPayments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	contractID := id.New()
	f.finance.actsGross[contractID] = types.MustMoney("300000.00")
	f.finance.paid[contractID] = types.MustMoney("120000.00")

	balance, err := f.svc.Balance(ctx, contractID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(types.MustMoney("180000.00")))
}

func TestContractMargin_IncomeOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := NewContract("С-50", "Генподряд", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c))

	f.finance.actsNet[c.ID] = types.MustMoney("1000000.00")
	f.finance.childNet[c.ID] = types.MustMoney("640000.00")

	m, err := f.svc.ContractMargin(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, m.Margin.Equal(types.MustMoney("360000.00")))
	assert.True(t, m.Percent.Equal(types.MustMoney("36.00")), "percent = %s", types.MoneyString(m.Percent))

	exp := newExpenseContract(f, "С-51")
	require.NoError(t, f.svc.Create(ctx, exp))

	_, err = f.svc.ContractMargin(ctx, exp.ID)
	require.Error(t, err)
}

func TestContractMargin_ZeroIncomeGivesZeroPercent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := NewContract("С-52", "Генподряд", id.New(), f.addCustomer(), id.New(), TypeIncome)
	require.NoError(t, f.svc.Create(ctx, c))

	m, err := f.svc.ContractMargin(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, m.Percent.IsZero())
}
