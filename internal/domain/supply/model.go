// Package supply projects Bitrix24 deals into supply requests and the
// invoices attached to them.
package supply

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Status is the supply request processing status.
type Status string

const (
	StatusReceived  Status = "received"
	StatusError     Status = "error"
	StatusProcessed Status = "processed"
)

// Request is a Bitrix24 deal projected into the ERP. Raw deal and
// comment payloads are kept zstd-compressed for later reprocessing.
type Request struct {
	entity.BaseEntity

	IntegrationID string `db:"integration_id" json:"integrationId"`

	// BitrixDealID is unique per integration; the idempotency key
	BitrixDealID    string `db:"bitrix_deal_id" json:"bitrixDealId"`
	BitrixDealTitle string `db:"bitrix_deal_title" json:"bitrixDealTitle"`

	ObjectID   *id.ID `db:"object_id" json:"objectId,omitempty"`
	ContractID *id.ID `db:"contract_id" json:"contractId,omitempty"`

	RequestText    string       `db:"request_text" json:"requestText,omitempty"`
	RequestFileURI *string      `db:"request_file_uri" json:"requestFileUri,omitempty"`
	Amount         *types.Money `db:"amount" json:"amount,omitempty"`

	Status Status `db:"status" json:"status"`

	// MappingErrors holds field-keyed messages when resolution failed
	MappingErrors map[string]string `db:"mapping_errors" json:"mappingErrors,omitempty"`

	RawDealData     []byte `db:"raw_deal_data" json:"-"`
	RawCommentsData []byte `db:"raw_comments_data" json:"-"`

	SyncedAt time.Time `db:"synced_at" json:"syncedAt"`
}

// NewRequest creates a supply request projection for a deal.
func NewRequest(integrationID, dealID, dealTitle string) *Request {
	return &Request{
		BaseEntity:      entity.NewBaseEntity(),
		IntegrationID:   integrationID,
		BitrixDealID:    dealID,
		BitrixDealTitle: dealTitle,
		Status:          StatusReceived,
		MappingErrors:   map[string]string{},
		SyncedAt:        time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (r *Request) Validate(ctx context.Context) error {
	if r.BitrixDealID == "" {
		return apperror.NewValidation("bitrix deal id is required").
			WithDetail("field", "bitrixDealId")
	}

	switch r.Status {
	case StatusReceived, StatusError, StatusProcessed:
	default:
		return apperror.NewValidation("invalid supply request status").
			WithDetail("field", "status").
			WithDetail("value", string(r.Status))
	}

	return nil
}
