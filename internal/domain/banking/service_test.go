package banking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/documents/payment"
)

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memConnectionRepo struct {
	byID map[id.ID]*Connection
}

func (r *memConnectionRepo) Create(ctx context.Context, c *Connection) error {
	r.byID[c.ID] = c
	return nil
}

func (r *memConnectionRepo) GetByID(ctx context.Context, connectionID id.ID) (*Connection, error) {
	c, ok := r.byID[connectionID]
	if !ok {
		return nil, apperror.NewNotFound("bank connection", connectionID)
	}
	return c, nil
}

func (r *memConnectionRepo) Update(ctx context.Context, c *Connection) error {
	r.byID[c.ID] = c
	return nil
}

func (r *memConnectionRepo) ListActive(ctx context.Context) ([]*Connection, error) {
	var out []*Connection
	for _, c := range r.byID {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

type memAccountRepo struct {
	byID map[id.ID]*Account
}

func (r *memAccountRepo) Create(ctx context.Context, a *Account) error {
	r.byID[a.ID] = a
	return nil
}

func (r *memAccountRepo) GetByID(ctx context.Context, accountID id.ID) (*Account, error) {
	a, ok := r.byID[accountID]
	if !ok {
		return nil, apperror.NewNotFound("bank account", accountID)
	}
	return a, nil
}

func (r *memAccountRepo) Update(ctx context.Context, a *Account) error {
	r.byID[a.ID] = a
	return nil
}

func (r *memAccountRepo) ListByConnection(ctx context.Context, connectionID id.ID) ([]*Account, error) {
	var out []*Account
	for _, a := range r.byID {
		if a.ConnectionID == connectionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memTransactionRepo struct {
	byID map[id.ID]*Transaction
}

func (r *memTransactionRepo) Create(ctx context.Context, t *Transaction) error {
	r.byID[t.ID] = t
	return nil
}

func (r *memTransactionRepo) GetByID(ctx context.Context, transactionID id.ID) (*Transaction, error) {
	t, ok := r.byID[transactionID]
	if !ok {
		return nil, apperror.NewNotFound("bank transaction", transactionID)
	}
	return t, nil
}

func (r *memTransactionRepo) GetByExternalID(ctx context.Context, connectionID id.ID, externalID string) (*Transaction, error) {
	for _, t := range r.byID {
		if t.ConnectionID == connectionID && t.ExternalID == externalID {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTransactionRepo) Update(ctx context.Context, t *Transaction) error {
	r.byID[t.ID] = t
	return nil
}

func (r *memTransactionRepo) List(ctx context.Context, filter TransactionFilter) (domain.ListResult[*Transaction], error) {
	return domain.ListResult[*Transaction]{}, nil
}

type memOrderRepo struct {
	byID map[id.ID]*Order
}

func (r *memOrderRepo) Create(ctx context.Context, o *Order) error {
	r.byID[o.ID] = o
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	o, ok := r.byID[orderID]
	if !ok {
		return nil, apperror.NewNotFound("payment order", orderID)
	}
	return o, nil
}

func (r *memOrderRepo) Update(ctx context.Context, o *Order) error {
	r.byID[o.ID] = o
	return nil
}

func (r *memOrderRepo) ListByStatus(ctx context.Context, status OrderStatus) ([]*Order, error) {
	var out []*Order
	for _, o := range r.byID {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

type memOrderEventRepo struct {
	events []*OrderEvent
}

func (r *memOrderEventRepo) Append(ctx context.Context, e *OrderEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *memOrderEventRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]*OrderEvent, error) {
	var out []*OrderEvent
	for _, e := range r.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeBankClient struct {
	lines        map[string][]StatementLine
	refreshCalls int
	sendCalls    int
	sendErr      error
	sentKeys     []string
}

func (c *fakeBankClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	c.refreshCalls++
	return &Token{
		AccessToken:  "fresh-token",
		RefreshToken: "fresh-refresh",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}, nil
}

func (c *fakeBankClient) ListTransactions(ctx context.Context, accessToken, accountExternalID string, from, to time.Time) ([]StatementLine, error) {
	return c.lines[accountExternalID], nil
}

func (c *fakeBankClient) SendOrder(ctx context.Context, accessToken string, o *Order) (string, error) {
	c.sendCalls++
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sentKeys = append(c.sentKeys, o.IdempotencyKey)
	return "bank-" + o.Number, nil
}

type fakePayments struct {
	pending   map[id.ID]*payment.Payment
	markCalls []id.ID
	income    []*payment.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{pending: make(map[id.ID]*payment.Payment)}
}

func (f *fakePayments) FindPending(ctx context.Context, amount types.Money, from, to time.Time) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range f.pending {
		if p.Status != payment.StatusPending {
			continue
		}
		if !p.Amount.Equal(amount) {
			continue
		}
		if p.PaymentDate.Before(from) || p.PaymentDate.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePayments) MarkPaid(ctx context.Context, paymentID id.ID, actor string) error {
	p, ok := f.pending[paymentID]
	if !ok {
		return apperror.NewNotFound("payment", paymentID)
	}
	if p.Status != payment.StatusPending {
		return apperror.NewInvalidTransition("payment", string(p.Status), string(payment.StatusPaid))
	}
	p.Status = payment.StatusPaid
	f.markCalls = append(f.markCalls, paymentID)
	return nil
}

func (f *fakePayments) CreateIncome(ctx context.Context, p *payment.Payment, actor string) error {
	p.Status = payment.StatusPaid
	f.income = append(f.income, p)
	return nil
}

type fixture struct {
	svc          *Service
	connections  *memConnectionRepo
	accounts     *memAccountRepo
	transactions *memTransactionRepo
	orders       *memOrderRepo
	orderEvents  *memOrderEventRepo
	client       *fakeBankClient
	payments     *fakePayments
}

func newFixture() *fixture {
	f := &fixture{
		connections:  &memConnectionRepo{byID: make(map[id.ID]*Connection)},
		accounts:     &memAccountRepo{byID: make(map[id.ID]*Account)},
		transactions: &memTransactionRepo{byID: make(map[id.ID]*Transaction)},
		orders:       &memOrderRepo{byID: make(map[id.ID]*Order)},
		orderEvents:  &memOrderEventRepo{},
		client:       &fakeBankClient{lines: make(map[string][]StatementLine)},
		payments:     newFakePayments(),
	}
	f.svc = NewService(f.connections, f.accounts, f.transactions, f.orders,
		f.orderEvents, noopTxManager{}, nil, f.client, f.payments)
	return f
}

func (f *fixture) addConnection() *Connection {
	conn := NewConnection("Точка основной", "tochka", "client-1")
	conn.AccessToken = "valid"
	expires := time.Now().UTC().Add(time.Hour)
	conn.TokenExpiresAt = &expires
	conn.RefreshToken = "refresh"
	f.connections.byID[conn.ID] = conn
	return conn
}

func (f *fixture) addBankAccount(conn *Connection) *Account {
	acc := &Account{
		BaseEntity:    entity.NewBaseEntity(),
		ConnectionID:  conn.ID,
		ExternalID:    "acc-1",
		AccountNumber: "40702810900000012345",
		Currency:      "RUB",
	}
	f.accounts.byID[acc.ID] = acc
	return acc
}

func (f *fixture) addPendingPayment(amount string, date time.Time, description string) *payment.Payment {
	p := payment.NewPayment(payment.TypeExpense, id.New(), types.MustMoney(amount), date)
	p.Description = description
	f.payments.pending[p.ID] = p
	return p
}

func line(externalID, amount string, date time.Time, inn, description string) StatementLine {
	return StatementLine{
		ExternalID:      externalID,
		Direction:       DirectionExpense,
		Amount:          types.MustMoney(amount),
		PaymentDate:     date,
		CounterpartyINN: inn,
		Description:     description,
	}
}

func TestImportTransactions_AutoReconcilesSingleMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	f.addBankAccount(conn)
	day := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	p := f.addPendingPayment("50000.00", day, "оплата по счёту СЧ-1")
	f.client.lines["acc-1"] = []StatementLine{
		line("ext-1", "50000.00", day.AddDate(0, 0, 1), "", "оплата поставщику"),
	}

	imported, reconciled, err := f.svc.ImportTransactions(ctx, conn.ID, day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, reconciled)
	assert.Equal(t, payment.StatusPaid, p.Status)

	var imported1 *Transaction
	for _, txn := range f.transactions.byID {
		imported1 = txn
	}
	require.NotNil(t, imported1)
	assert.Equal(t, TransactionReconciled, imported1.Status)
	require.NotNil(t, imported1.PaymentID)
	assert.Equal(t, p.ID, *imported1.PaymentID)
	require.NotNil(t, conn.LastSyncAt)
}

func TestImportTransactions_ReimportIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	f.addBankAccount(conn)
	day := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	f.client.lines["acc-1"] = []StatementLine{
		line("ext-1", "100.00", day, "", "комиссия"),
	}

	imported, _, err := f.svc.ImportTransactions(ctx, conn.ID, day, day)
	require.NoError(t, err)
	require.Equal(t, 1, imported)

	imported, _, err = f.svc.ImportTransactions(ctx, conn.ID, day, day)
	require.NoError(t, err)
	assert.Zero(t, imported, "same external id is skipped")
	assert.Len(t, f.transactions.byID, 1)
}

func TestImportTransactions_AmbiguousMatchStaysNew(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	f.addBankAccount(conn)
	day := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	f.addPendingPayment("50000.00", day, "первый")
	f.addPendingPayment("50000.00", day, "второй")
	f.client.lines["acc-1"] = []StatementLine{
		line("ext-1", "50000.00", day, "", "оплата"),
	}

	_, reconciled, err := f.svc.ImportTransactions(ctx, conn.ID, day, day)
	require.NoError(t, err)
	assert.Zero(t, reconciled, "two candidates, no guessing")
	assert.Empty(t, f.payments.markCalls)
}

func TestImportTransactions_INNNarrowsCandidates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	f.addBankAccount(conn)
	day := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	f.addPendingPayment("50000.00", day, "оплата прочая")
	target := f.addPendingPayment("50000.00", day, "ООО Бетон ИНН 7701234567")
	f.client.lines["acc-1"] = []StatementLine{
		line("ext-1", "50000.00", day, "7701234567", "оплата за бетон"),
	}

	_, reconciled, err := f.svc.ImportTransactions(ctx, conn.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)
	assert.Equal(t, payment.StatusPaid, target.Status)
}

func TestImportTransactions_RefreshesExpiredToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	conn.AccessToken = ""
	f.addBankAccount(conn)

	day := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	_, _, err := f.svc.ImportTransactions(ctx, conn.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, f.client.refreshCalls)
	assert.Equal(t, "fresh-token", conn.AccessToken)
}

func TestMaterializeIncome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	acc := f.addBankAccount(conn)
	day := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)

	txn := &Transaction{
		BaseEntity:    entity.NewBaseEntity(),
		ConnectionID:  conn.ID,
		BankAccountID: acc.ID,
		ExternalID:    "ext-9",
		Direction:     DirectionIncome,
		Amount:        types.MustMoney("300000.00"),
		PaymentDate:   day,
		Description:   "аванс от заказчика",
		Status:        TransactionNew,
	}
	require.NoError(t, f.transactions.Create(ctx, txn))

	p, err := f.svc.MaterializeIncome(ctx, txn.ID, id.New(), "бухгалтер")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.Equal(t, "аванс от заказчика", p.Description)
	assert.Equal(t, TransactionReconciled, txn.Status)

	// Expense lines cannot take this path
	txn2 := &Transaction{
		BaseEntity:   entity.NewBaseEntity(),
		ConnectionID: conn.ID,
		ExternalID:   "ext-10",
		Direction:    DirectionExpense,
		Amount:       types.MustMoney("100.00"),
		PaymentDate:  day,
		Status:       TransactionNew,
	}
	require.NoError(t, f.transactions.Create(ctx, txn2))
	_, err = f.svc.MaterializeIncome(ctx, txn2.ID, id.New(), "бухгалтер")
	require.Error(t, err)
}

func newTestOrder(f *fixture, conn *Connection) *Order {
	o := NewOrder(conn.ID, id.New(), types.MustMoney("75000.00"), time.Now().UTC().AddDate(0, 0, 3))
	o.Number = "ПП-1"
	o.CounterpartyName = "ООО СтройБетон"
	o.CounterpartyAccount = "40702810600000054321"
	o.CounterpartyBIC = "044525104"
	o.Purpose = "Оплата по договору С-12"
	f.orders.byID[o.ID] = o
	return o
}

func TestOrderLifecycle_SendIsAtMostOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	o := newTestOrder(f, conn)

	// Sending a draft is illegal
	err := f.svc.SendOrder(ctx, o.ID, "director")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	require.NoError(t, f.svc.ApproveOrder(ctx, o.ID, "director"))
	require.NoError(t, f.svc.SendOrder(ctx, o.ID, "director"))
	assert.Equal(t, OrderSent, o.Status)
	require.NotNil(t, o.ExternalID)
	assert.Equal(t, 1, f.client.sendCalls)
	require.Len(t, f.client.sentKeys, 1)
	assert.Equal(t, o.IdempotencyKey, f.client.sentKeys[0])

	require.NoError(t, f.svc.AcceptOrder(ctx, o.ID))
	require.NoError(t, f.svc.MarkOrderPaid(ctx, o.ID))
	assert.Equal(t, OrderPaid, o.Status)

	history, err := f.svc.OrderHistory(ctx, o.ID)
	require.NoError(t, err)
	kinds := make([]string, 0, len(history))
	for _, e := range history {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"approved", "sent", "accepted", "paid"}, kinds)
}

func TestSendOrder_FailureKeepsApproved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	o := newTestOrder(f, conn)
	require.NoError(t, f.svc.ApproveOrder(ctx, o.ID, "director"))

	f.client.sendErr = fmt.Errorf("gateway timeout")
	err := f.svc.SendOrder(ctx, o.ID, "director")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIntegration, appErr.Code)
	assert.Equal(t, OrderApproved, o.Status, "retry stays possible")
	assert.Nil(t, o.ExternalID)

	// Retry reuses the same idempotency key
	f.client.sendErr = nil
	require.NoError(t, f.svc.SendOrder(ctx, o.ID, "director"))
	assert.Equal(t, o.IdempotencyKey, f.client.sentKeys[0])
}

func TestRescheduleOrder_OnlyBeforeSend(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	conn := f.addConnection()
	o := newTestOrder(f, conn)

	newDate := time.Now().UTC().AddDate(0, 0, 10)
	require.NoError(t, f.svc.RescheduleOrder(ctx, o.ID, newDate, "director"))
	assert.Equal(t, newDate, o.PlannedDate)

	require.NoError(t, f.svc.ApproveOrder(ctx, o.ID, "director"))
	require.NoError(t, f.svc.SendOrder(ctx, o.ID, "director"))

	err := f.svc.RescheduleOrder(ctx, o.ID, newDate.AddDate(0, 0, 1), "director")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}
