package supply

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
)

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRepo struct {
	byID   map[id.ID]*Request
	byDeal map[string]*Request
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[id.ID]*Request), byDeal: make(map[string]*Request)}
}

func (r *memRepo) Create(ctx context.Context, req *Request) error {
	r.byID[req.ID] = req
	r.byDeal[req.BitrixDealID] = req
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, requestID id.ID) (*Request, error) {
	req, ok := r.byID[requestID]
	if !ok {
		return nil, apperror.NewNotFound("supply request", requestID)
	}
	return req, nil
}

func (r *memRepo) GetByDealID(ctx context.Context, integrationID, dealID string) (*Request, error) {
	return r.byDeal[dealID], nil
}

func (r *memRepo) Update(ctx context.Context, req *Request) error {
	r.byID[req.ID] = req
	return nil
}

func (r *memRepo) List(ctx context.Context, filter Filter) (domain.ListResult[*Request], error) {
	return domain.ListResult[*Request]{}, nil
}

type fakeClient struct {
	deal         *Deal
	comments     []Comment
	files        map[string][]byte
	failFiles    map[string]bool
	getDealCalls int
}

func (c *fakeClient) GetDeal(ctx context.Context, dealID string) (*Deal, error) {
	c.getDealCalls++
	if c.deal == nil {
		return nil, fmt.Errorf("deal %s: connection reset", dealID)
	}
	return c.deal, nil
}

func (c *fakeClient) ListComments(ctx context.Context, dealID string) ([]Comment, error) {
	return c.comments, nil
}

func (c *fakeClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if c.failFiles[fileID] {
		return nil, fmt.Errorf("download %s: timeout", fileID)
	}
	data, ok := c.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return data, nil
}

type fakeBlobs struct {
	puts map[string][]byte
}

func (b *fakeBlobs) Put(ctx context.Context, path string, data []byte) (string, error) {
	if b.puts == nil {
		b.puts = make(map[string][]byte)
	}
	b.puts[path] = data
	return "blob://" + path, nil
}

type fakeInvoices struct {
	created []*invoice.Invoice
}

func (f *fakeInvoices) Create(ctx context.Context, inv *invoice.Invoice, actor string) error {
	f.created = append(f.created, inv)
	return nil
}

type fakeObjects struct {
	byCipher map[string]*object.Object
}

func (f *fakeObjects) GetByCipher(ctx context.Context, cipher string) (*object.Object, error) {
	return f.byCipher[cipher], nil
}

type fakeContracts struct {
	byNumber map[string][]*contract.Contract
}

func (f *fakeContracts) FindByNumber(ctx context.Context, number string) ([]*contract.Contract, error) {
	return f.byNumber[number], nil
}

func (f *fakeContracts) GetByObjectAndNumber(ctx context.Context, objectID id.ID, number string) (*contract.Contract, error) {
	for _, c := range f.byNumber[number] {
		if c.ObjectID == objectID {
			return c, nil
		}
	}
	return nil, nil
}

type fixture struct {
	proc      *Processor
	repo      *memRepo
	client    *fakeClient
	blobs     *fakeBlobs
	invoices  *fakeInvoices
	objects   *fakeObjects
	contracts *fakeContracts
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMemRepo(),
		client:    &fakeClient{files: map[string][]byte{}, failFiles: map[string]bool{}},
		blobs:     &fakeBlobs{},
		invoices:  &fakeInvoices{},
		objects:   &fakeObjects{byCipher: map[string]*object.Object{}},
		contracts: &fakeContracts{byNumber: map[string][]*contract.Contract{}},
	}
	integration := Integration{ID: "main", Name: "Основной портал", TargetStageID: "C1:WON"}
	f.proc = NewProcessor(integration, f.repo, noopTxManager{}, f.client, nil,
		f.blobs, f.invoices, f.objects, f.contracts)
	return f
}

func (f *fixture) setDeal(title string) {
	raw, _ := json.Marshal(map[string]string{"TITLE": title})
	f.client.deal = &Deal{ID: "42", Title: title, StageID: "C1:WON", Raw: raw}
}

func (f *fixture) addContract(number string) *contract.Contract {
	obj := object.NewObject("СЕВ", "ЖК Северный", "Москва")
	obj.Cipher = "СЕВ"
	f.objects.byCipher[obj.Cipher] = obj
	c := contract.NewContract(number, "Поставка", obj.ID, id.New(), id.New(), contract.TypeExpense)
	f.contracts.byNumber[number] = append(f.contracts.byNumber[number], c)
	return c
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		title string
		want  TitleRefs
	}{
		{
			title: "Поставка бетона объект СЕВ-1 договор С-12",
			want:  TitleRefs{ObjectCipher: "СЕВ-1", ContractNumber: "С-12"},
		},
		{
			title: "Договор № С-12, доп. материалы",
			want:  TitleRefs{ContractNumber: "С-12"},
		},
		{
			title: "contract C-12 and object NORD",
			want:  TitleRefs{ObjectCipher: "NORD", ContractNumber: "C-12"},
		},
		{
			title: "договор С-12 и договор С-13",
			want:  TitleRefs{ContractAmbiguous: true},
		},
		{
			// Inflected marker still counts, and never eats the value
			title: "оплата по договору С-12",
			want:  TitleRefs{ContractNumber: "С-12"},
		},
		{
			// Standalone number sign before a numeric value
			title: "объект N 144 монтаж",
			want:  TitleRefs{ObjectCipher: "144"},
		},
		{
			title: "просто поставка без ссылок",
			want:  TitleRefs{},
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTitle(tt.title), tt.title)
	}
}

func TestProcessDeal_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	existing := NewRequest("main", "42", "старый запрос")
	require.NoError(t, f.repo.Create(ctx, existing))

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, req.ID)
	assert.Zero(t, f.client.getDealCalls, "no fetch for a known deal")
}

func TestProcessDeal_SkipsWrongStage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.setDeal("Поставка")
	f.client.deal.StageID = "C1:NEW"

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Empty(t, f.repo.byID)
}

func TestProcessDeal_FetchFailureRaisesIntegrationError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.proc.ProcessDeal(ctx, "42")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIntegration, appErr.Code)
	assert.Empty(t, f.repo.byID, "nothing persisted on fetch failure")
}

func TestProcessDeal_PartitionsCommentsAndCreatesInvoices(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c := f.addContract("С-12")
	f.setDeal("Поставка арматуры договор С-12")
	f.client.comments = []Comment{
		{ID: "1", Text: "ЗАПРОС на арматуру 12мм", Files: []CommentFile{{ID: "f1", Name: "zapros.pdf"}}},
		{ID: "2", Text: "счёт от поставщика", Files: []CommentFile{{ID: "f2", Name: "schet.pdf"}}},
		{ID: "3", Text: "просто обсуждение без файлов"},
	}
	f.client.files["f1"] = []byte("%PDF-request")
	f.client.files["f2"] = []byte("%PDF-invoice")

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, StatusReceived, req.Status)
	assert.Empty(t, req.MappingErrors)
	require.NotNil(t, req.ContractID)
	assert.Equal(t, c.ID, *req.ContractID)
	require.NotNil(t, req.ObjectID, "object inferred from the contract")
	assert.Equal(t, c.ObjectID, *req.ObjectID)
	assert.Equal(t, "ЗАПРОС на арматуру 12мм", req.RequestText)
	require.NotNil(t, req.RequestFileURI)
	assert.Contains(t, *req.RequestFileURI, "supply/requests/")

	require.Len(t, f.invoices.created, 1)
	inv := f.invoices.created[0]
	assert.Equal(t, invoice.SourceBitrix, inv.Source)
	assert.True(t, inv.NeedsRecognition(), "scan attached, amounts empty")
	assert.Equal(t, req.ContractID, inv.ContractID)
	require.NotNil(t, inv.SupplyRequestID)
	assert.Equal(t, req.ID, *inv.SupplyRequestID)
}

func TestProcessDeal_AmbiguousTitleRecordsMappingError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addContract("С-12")
	f.addContract("С-13")
	f.setDeal("договор С-12 и договор С-13")

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, StatusError, req.Status)
	assert.Contains(t, req.MappingErrors, "contract")
	assert.Nil(t, req.ContractID, "ambiguity is never resolved by guessing")
}

func TestProcessDeal_DuplicateContractNumberAcrossObjects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addContract("С-12")
	f.addContract("С-12")
	f.setDeal("оплата по договору С-12")

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, StatusError, req.Status)
	assert.Contains(t, req.MappingErrors["contract"], "matches 2")
}

func TestProcessDeal_PerFileFailureIsolation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addContract("С-12")
	f.setDeal("договор С-12")
	f.client.comments = []Comment{
		{ID: "1", Text: "счёт 1", Files: []CommentFile{{ID: "bad", Name: "one.pdf"}}},
		{ID: "2", Text: "счёт 2", Files: []CommentFile{{ID: "ok", Name: "two.pdf"}}},
	}
	f.client.failFiles["bad"] = true
	f.client.files["ok"] = []byte("%PDF")

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, req.Status)
	require.Len(t, f.invoices.created, 1, "failed download skips that file only")
	assert.Equal(t, "счёт 2", f.invoices.created[0].Description)
}

func TestProcessDeal_RawPayloadsRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addContract("С-12")
	f.setDeal("договор С-12")
	f.client.comments = []Comment{{ID: "1", Text: "запрос на материалы"}}

	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)

	raw, err := DecompressPayload(req.RawDealData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"TITLE":"договор С-12"}`, string(raw))

	rawComments, err := DecompressPayload(req.RawCommentsData)
	require.NoError(t, err)
	var comments []Comment
	require.NoError(t, json.Unmarshal(rawComments, &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "запрос на материалы", comments[0].Text)
}

func TestMarkProcessed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := NewRequest("main", "42", "заявка")
	require.NoError(t, f.repo.Create(ctx, req))

	require.NoError(t, f.proc.MarkProcessed(ctx, req.ID))
	assert.Equal(t, StatusProcessed, req.Status)

	err := f.proc.MarkProcessed(ctx, req.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestReprocess_RecoversAfterContractAppears(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.setDeal("договор С-77")
	req, err := f.proc.ProcessDeal(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, StatusError, req.Status)

	c := f.addContract("С-77")

	reprocessed, err := f.proc.Reprocess(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, reprocessed.Status)
	require.NotNil(t, reprocessed.ContractID)
	assert.Equal(t, c.ID, *reprocessed.ContractID)
}
