package account

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
)

// --- Test doubles ---

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (noopTxManager) Serializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRepo struct {
	byID   map[id.ID]*Account
	byCode map[string]*Account

	// failNextCreate simulates losing an insert race
	failNextCreate bool

	// missFirstObjectLookup makes the first GetByObjectID miss, so the
	// caller takes the insert path even when the row exists
	missFirstObjectLookup bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:   make(map[id.ID]*Account),
		byCode: make(map[string]*Account),
	}
}

func (r *memRepo) Create(ctx context.Context, acc *Account) error {
	if r.failNextCreate {
		r.failNextCreate = false
		return apperror.NewDuplicate("account", "code", acc.Code)
	}
	if _, ok := r.byCode[acc.Code]; ok {
		return apperror.NewDuplicate("account", "code", acc.Code)
	}
	r.byID[acc.ID] = acc
	r.byCode[acc.Code] = acc
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, accID id.ID) (*Account, error) {
	acc, ok := r.byID[accID]
	if !ok {
		return nil, apperror.NewNotFound("account", accID)
	}
	return acc, nil
}

func (r *memRepo) GetByCode(ctx context.Context, code string) (*Account, error) {
	acc, ok := r.byCode[code]
	if !ok {
		return nil, apperror.NewNotFound("account", code)
	}
	return acc, nil
}

func (r *memRepo) Update(ctx context.Context, acc *Account) error {
	r.byID[acc.ID] = acc
	r.byCode[acc.Code] = acc
	return nil
}

func (r *memRepo) SetDeletionMark(ctx context.Context, accID id.ID, marked bool) error {
	acc, ok := r.byID[accID]
	if !ok {
		return apperror.NewNotFound("account", accID)
	}
	acc.DeletionMark = marked
	return nil
}

func (r *memRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Account], error) {
	out := domain.ListResult[*Account]{}
	for _, acc := range r.byID {
		out.Items = append(out.Items, acc)
	}
	out.TotalCount = int64(len(out.Items))
	return out, nil
}

func (r *memRepo) Exists(ctx context.Context, accID id.ID) (bool, error) {
	_, ok := r.byID[accID]
	return ok, nil
}

func (r *memRepo) GetByObjectID(ctx context.Context, objectID id.ID) (*Account, error) {
	if r.missFirstObjectLookup {
		r.missFirstObjectLookup = false
		return nil, nil
	}
	for _, acc := range r.byID {
		if acc.ObjectID != nil && *acc.ObjectID == objectID {
			return acc, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetByContractID(ctx context.Context, contractID id.ID) (*Account, error) {
	for _, acc := range r.byID {
		if acc.ContractID != nil && *acc.ContractID == contractID {
			return acc, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListChildren(ctx context.Context, parentID id.ID) ([]*Account, error) {
	var out []*Account
	pid := parentID.String()
	for _, acc := range r.byID {
		if acc.ParentID != nil && *acc.ParentID == pid {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (r *memRepo) Balance(ctx context.Context, accountID id.ID, asOf *time.Time) (types.Money, error) {
	return types.Zero(), nil
}

func (r *memRepo) BalanceSubtree(ctx context.Context, accountID id.ID, asOf *time.Time) (types.Money, error) {
	return types.Zero(), nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, noopTxManager{})
}

// --- Tests ---

func TestEnsureObject_Idempotent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	ref := ObjectRef{ID: id.New(), Code: "001", Name: "ЖК Северный"}

	first, err := svc.EnsureObject(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, TypeObject, first.Type)
	assert.Equal(t, "obj-001", first.Code)

	second, err := svc.EnsureObject(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byID, 1)
}

func TestEnsureObject_LosesInsertRace(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	ref := ObjectRef{ID: id.New(), Code: "002", Name: "Склад Восток"}

	// The winner's row already exists; our lookup misses and the insert
	// hits the unique constraint, so we must refetch the winner
	winner, err := svc.EnsureObject(ctx, ref)
	require.NoError(t, err)

	repo.missFirstObjectLookup = true
	repo.failNextCreate = true

	got, err := svc.EnsureObject(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, got.ID)
	assert.Len(t, repo.byID, 1)
}

func TestEnsureContract_ParentsToObjectAccount(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	objRef := ObjectRef{ID: id.New(), Code: "003", Name: "ТЦ Мир"}
	ref := ContractRef{
		ID:     id.New(),
		Number: "РД-2026-001",
		Name:   "Монтаж вентиляции",
		Object: objRef,
	}

	acc, err := svc.EnsureContract(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, TypeContract, acc.Type)
	require.NotNil(t, acc.ParentID)

	objAcc, err := repo.GetByObjectID(ctx, objRef.ID)
	require.NoError(t, err)
	require.NotNil(t, objAcc)
	assert.Equal(t, objAcc.ID.String(), *acc.ParentID)

	// Repeated call returns the same account and creates nothing new
	again, err := svc.EnsureContract(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, again.ID)
	assert.Len(t, repo.byID, 2)
}

func TestEnsureSystem_NeverDowngrades(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	acc, err := svc.EnsureSystem(ctx, CodeProfit, "Прибыль")
	require.NoError(t, err)
	assert.Equal(t, TypeSystem, acc.Type)

	again, err := svc.EnsureSystem(ctx, CodeProfit, "Прибыль")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, again.ID)

	// A household account occupying the code is an error, not a silent reuse
	hh := NewAccount("rent", "Аренда офиса", TypeHousehold)
	require.NoError(t, repo.Create(ctx, hh))

	_, err = svc.EnsureSystem(ctx, "rent", "Аренда")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestSeedSystem_CreatesWellKnownAccounts(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	require.NoError(t, svc.SeedSystem(ctx))
	require.NoError(t, svc.SeedSystem(ctx))

	for _, code := range SystemCodes {
		acc, err := repo.GetByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, TypeSystem, acc.Type)
	}
	assert.Len(t, repo.byID, len(SystemCodes))
}

func TestUpdate_RejectsParentCycle(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a := NewAccount("hh-a", "Хозрасходы А", TypeHousehold)
	b := NewAccount("hh-b", "Хозрасходы Б", TypeHousehold)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	b.SetParent(a.ID.String())
	require.NoError(t, svc.Update(ctx, b))

	a.SetParent(b.ID.String())
	err := svc.Update(ctx, a)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeParentCycle, appErr.Code)
}

func TestUpdate_SystemAccountKeepsType(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	acc, err := svc.EnsureSystem(ctx, CodeVAT, "НДС")
	require.NoError(t, err)

	changed := *acc
	changed.Type = TypeHousehold
	err = svc.Update(ctx, &changed)
	require.Error(t, err)
	assert.True(t, apperror.IsAppError(err))
}
