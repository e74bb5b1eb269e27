package supply

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/tx"
	"stroyfin/internal/domain"
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/pkg/logger"
)

// requestTokens mark a comment as a supply request rather than an invoice.
var requestTokens = []string{"запрос", "request"}

// Integration identifies one Bitrix24 portal binding.
type Integration struct {
	ID            string
	Name          string
	TargetStageID string
}

// InvoiceCreator is the slice of the invoice service the processor needs.
type InvoiceCreator interface {
	Create(ctx context.Context, inv *invoice.Invoice, actor string) error
}

// ObjectResolver looks up objects by their project cipher.
// Returns nil without error when the cipher is unknown.
type ObjectResolver interface {
	GetByCipher(ctx context.Context, cipher string) (*object.Object, error)
}

// ContractResolver looks up contracts for title resolution.
type ContractResolver interface {
	// FindByNumber returns every contract carrying the number, any object.
	FindByNumber(ctx context.Context, number string) ([]*contract.Contract, error)

	// GetByObjectAndNumber returns nil without error when absent.
	GetByObjectAndNumber(ctx context.Context, objectID id.ID, number string) (*contract.Contract, error)
}

// Processor turns Bitrix24 deals into supply requests and recognition
// invoices.
type Processor struct {
	integration Integration
	repo        Repository
	txManager   tx.Manager
	client      DealClient
	mapper      FieldMapper
	blobs       BlobStore
	invoices    InvoiceCreator
	objects     ObjectResolver
	contracts   ContractResolver
}

// NewProcessor creates a deal processor for one integration.
func NewProcessor(
	integration Integration,
	repo Repository,
	txManager tx.Manager,
	client DealClient,
	mapper FieldMapper,
	blobs BlobStore,
	invoices InvoiceCreator,
	objects ObjectResolver,
	contracts ContractResolver,
) *Processor {
	return &Processor{
		integration: integration,
		repo:        repo,
		txManager:   txManager,
		client:      client,
		mapper:      mapper,
		blobs:       blobs,
		invoices:    invoices,
		objects:     objects,
		contracts:   contracts,
	}
}

// ProcessDeal projects one deal. Idempotent per deal id: a second call
// returns the existing request untouched. Deals outside the target stage
// are skipped without persisting anything. Mapping failures surface on
// the request but never block it; per-file download failures are logged
// and skipped.
func (p *Processor) ProcessDeal(ctx context.Context, dealID string) (*Request, error) {
	existing, err := p.repo.GetByDealID(ctx, p.integration.ID, dealID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Debug(ctx, "deal already projected, skipping",
			"deal_id", dealID,
			"request_id", existing.ID)
		return existing, nil
	}

	deal, err := p.client.GetDeal(ctx, dealID)
	if err != nil {
		return nil, apperror.NewIntegration("bitrix", "fetch deal failed").
			WithDetail("dealId", dealID).
			WithDetail("error", err.Error())
	}

	if deal.StageID != p.integration.TargetStageID {
		logger.Debug(ctx, "deal stage outside target, skipping",
			"deal_id", dealID,
			"stage_id", deal.StageID)
		return nil, nil
	}

	comments, err := p.client.ListComments(ctx, dealID)
	if err != nil {
		return nil, apperror.NewIntegration("bitrix", "fetch deal comments failed").
			WithDetail("dealId", dealID).
			WithDetail("error", err.Error())
	}

	requestComments, invoiceComments := partitionComments(comments)

	req := NewRequest(p.integration.ID, deal.ID, deal.Title)
	req.RequestText = joinTexts(requestComments)

	objectID, contractID := p.resolveReferences(ctx, deal, req.MappingErrors)
	req.ObjectID = objectID
	req.ContractID = contractID

	if p.mapper != nil {
		if mapped, mapErr := p.mapper.MapDeal(ctx, deal); mapErr == nil && mapped.Amount != nil {
			req.Amount = mapped.Amount
		}
	}

	if len(req.MappingErrors) > 0 {
		req.Status = StatusError
	}

	if req.RawDealData, err = compressPayload(deal.Raw); err != nil {
		return nil, err
	}
	rawComments, err := json.Marshal(comments)
	if err != nil {
		return nil, fmt.Errorf("marshal deal comments: %w", err)
	}
	if req.RawCommentsData, err = compressPayload(rawComments); err != nil {
		return nil, err
	}

	p.attachRequestFile(ctx, req, requestComments)

	if err := p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return p.repo.Create(ctx, req)
	}); err != nil {
		// A concurrent poller projected the same deal first
		if apperror.IsConflict(err) {
			return p.repo.GetByDealID(ctx, p.integration.ID, dealID)
		}
		return nil, err
	}

	p.createInvoices(ctx, req, invoiceComments)

	return req, nil
}

// MarkProcessed closes a received request after its invoices are handled.
func (p *Processor) MarkProcessed(ctx context.Context, requestID id.ID) error {
	return p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := p.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusReceived {
			return apperror.NewInvalidTransition("supply request", string(req.Status), string(StatusProcessed))
		}
		req.Status = StatusProcessed
		return p.repo.Update(ctx, req)
	})
}

// Reprocess retries mapping on an errored request using its stored title.
func (p *Processor) Reprocess(ctx context.Context, requestID id.ID) (*Request, error) {
	var result *Request
	err := p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := p.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusError {
			return apperror.NewInvalidTransition("supply request", string(req.Status), string(StatusReceived))
		}

		req.MappingErrors = map[string]string{}
		req.ObjectID, req.ContractID = p.resolveFromTitle(ctx, req.BitrixDealTitle, req.MappingErrors)
		if len(req.MappingErrors) == 0 {
			req.Status = StatusReceived
		}
		req.SyncedAt = time.Now().UTC()

		if err := p.repo.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a supply request by its identifier.
func (p *Processor) GetByID(ctx context.Context, requestID id.ID) (*Request, error) {
	return p.repo.GetByID(ctx, requestID)
}

// List retrieves supply requests with filtering.
func (p *Processor) List(ctx context.Context, filter Filter) (domain.ListResult[*Request], error) {
	return p.repo.List(ctx, filter)
}

// resolveReferences tries custom-field mapping first, then the title
// grammar. When a contract resolves and carries an object, the object is
// taken from the contract.
func (p *Processor) resolveReferences(ctx context.Context, deal *Deal, errs map[string]string) (*id.ID, *id.ID) {
	cipher := ""
	number := ""

	if p.mapper != nil {
		mapped, err := p.mapper.MapDeal(ctx, deal)
		if err != nil {
			logger.Warn(ctx, "custom-field mapping failed, falling back to title",
				"deal_id", deal.ID,
				"error", err)
		} else {
			cipher = mapped.ObjectCipher
			number = mapped.ContractNumber
		}
	}

	if cipher == "" || number == "" {
		refs := ParseTitle(deal.Title)
		if refs.ObjectAmbiguous {
			errs["object"] = "deal title references more than one object"
		}
		if refs.ContractAmbiguous {
			errs["contract"] = "deal title references more than one contract"
		}
		if cipher == "" {
			cipher = refs.ObjectCipher
		}
		if number == "" {
			number = refs.ContractNumber
		}
	}

	return p.lookup(ctx, cipher, number, errs)
}

func (p *Processor) resolveFromTitle(ctx context.Context, title string, errs map[string]string) (*id.ID, *id.ID) {
	refs := ParseTitle(title)
	if refs.ObjectAmbiguous {
		errs["object"] = "deal title references more than one object"
	}
	if refs.ContractAmbiguous {
		errs["contract"] = "deal title references more than one contract"
	}
	return p.lookup(ctx, refs.ObjectCipher, refs.ContractNumber, errs)
}

func (p *Processor) lookup(ctx context.Context, cipher, number string, errs map[string]string) (*id.ID, *id.ID) {
	var objectID, contractID *id.ID

	if cipher != "" && errs["object"] == "" {
		obj, err := p.objects.GetByCipher(ctx, cipher)
		switch {
		case err != nil:
			errs["object"] = err.Error()
		case obj == nil:
			errs["object"] = fmt.Sprintf("no object with cipher %q", cipher)
		default:
			oid := obj.ID
			objectID = &oid
		}
	}

	if number != "" && errs["contract"] == "" {
		c := p.lookupContract(ctx, objectID, number, errs)
		if c != nil {
			cid := c.ID
			contractID = &cid
			if objectID == nil {
				oid := c.ObjectID
				objectID = &oid
			}
		}
	}

	if objectID == nil && contractID == nil && len(errs) == 0 {
		errs["object"] = "neither object nor contract could be resolved from the deal"
	}

	return objectID, contractID
}

func (p *Processor) lookupContract(ctx context.Context, objectID *id.ID, number string, errs map[string]string) *contract.Contract {
	if objectID != nil {
		c, err := p.contracts.GetByObjectAndNumber(ctx, *objectID, number)
		if err != nil {
			errs["contract"] = err.Error()
			return nil
		}
		if c == nil {
			errs["contract"] = fmt.Sprintf("no contract %q on the resolved object", number)
		}
		return c
	}

	candidates, err := p.contracts.FindByNumber(ctx, number)
	if err != nil {
		errs["contract"] = err.Error()
		return nil
	}
	switch len(candidates) {
	case 0:
		errs["contract"] = fmt.Sprintf("no contract with number %q", number)
		return nil
	case 1:
		return candidates[0]
	default:
		errs["contract"] = fmt.Sprintf("contract number %q matches %d contracts", number, len(candidates))
		return nil
	}
}

// attachRequestFile stores the first request PDF. Download failures are
// logged, the request proceeds without the file.
func (p *Processor) attachRequestFile(ctx context.Context, req *Request, requestComments []Comment) {
	for _, c := range requestComments {
		for _, f := range c.Files {
			if !isPDF(f.Name) {
				continue
			}
			data, err := p.client.DownloadFile(ctx, f.ID)
			if err != nil {
				logger.Warn(ctx, "request file download failed, skipping",
					"deal_id", req.BitrixDealID,
					"file", f.Name,
					"error", err)
				continue
			}
			uri, err := p.blobs.Put(ctx, fmt.Sprintf("supply/requests/%s/%s", req.ID, f.Name), data)
			if err != nil {
				logger.Warn(ctx, "request file store failed, skipping",
					"deal_id", req.BitrixDealID,
					"file", f.Name,
					"error", err)
				continue
			}
			req.RequestFileURI = &uri
			return
		}
	}
}

// createInvoices makes one recognition invoice per invoice-comment PDF.
// Each file is isolated: a failed download or create skips that file only.
func (p *Processor) createInvoices(ctx context.Context, req *Request, invoiceComments []Comment) {
	now := time.Now().UTC()
	for _, c := range invoiceComments {
		for _, f := range c.Files {
			if !isPDF(f.Name) {
				continue
			}
			data, err := p.client.DownloadFile(ctx, f.ID)
			if err != nil {
				logger.Warn(ctx, "invoice file download failed, skipping",
					"deal_id", req.BitrixDealID,
					"file", f.Name,
					"error", err)
				continue
			}

			uri, err := p.blobs.Put(ctx, fmt.Sprintf("invoices/%d/%02d/%s-%s", now.Year(), now.Month(), req.BitrixDealID, f.Name), data)
			if err != nil {
				logger.Warn(ctx, "invoice file store failed, skipping",
					"deal_id", req.BitrixDealID,
					"file", f.Name,
					"error", err)
				continue
			}

			inv := invoice.NewInvoice(invoice.SourceBitrix, invoice.TypeSupplier)
			inv.ObjectID = req.ObjectID
			inv.ContractID = req.ContractID
			reqID := req.ID
			inv.SupplyRequestID = &reqID
			inv.ScanBlobURI = uri
			inv.Description = strings.TrimSpace(c.Text)

			if err := p.invoices.Create(ctx, inv, "bitrix"); err != nil {
				logger.Warn(ctx, "invoice create from deal failed, skipping",
					"deal_id", req.BitrixDealID,
					"file", f.Name,
					"error", err)
			}
		}
	}
}

// partitionComments splits the deal timeline: request comments carry the
// request token, invoice comments carry at least one PDF.
func partitionComments(comments []Comment) (requests, invoices []Comment) {
	for _, c := range comments {
		if containsRequestToken(c.Text) {
			requests = append(requests, c)
			continue
		}
		if hasPDF(c.Files) {
			invoices = append(invoices, c)
		}
	}
	return requests, invoices
}

func containsRequestToken(text string) bool {
	lower := strings.ToLower(text)
	for _, token := range requestTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func hasPDF(files []CommentFile) bool {
	for _, f := range files {
		if isPDF(f.Name) {
			return true
		}
	}
	return false
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func joinTexts(comments []Comment) string {
	var parts []string
	for _, c := range comments {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
