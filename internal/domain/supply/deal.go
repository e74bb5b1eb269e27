package supply

import (
	"context"
	"encoding/json"

	"stroyfin/internal/core/types"
)

// Deal is the slice of a Bitrix24 deal the processor consumes.
type Deal struct {
	ID      string
	Title   string
	StageID string

	// Fields carries the deal's custom fields for expression mapping
	Fields map[string]any

	Raw json.RawMessage
}

// CommentFile is an attachment on a deal comment.
type CommentFile struct {
	ID   string
	Name string
}

// Comment is a timeline comment on a deal.
type Comment struct {
	ID    string
	Text  string
	Files []CommentFile

	Raw json.RawMessage
}

// DealClient fetches deals from Bitrix24. Satisfied by the bitrix
// infrastructure client.
type DealClient interface {
	GetDeal(ctx context.Context, dealID string) (*Deal, error)
	ListComments(ctx context.Context, dealID string) ([]Comment, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// MappedFields is the result of custom-field mapping for one deal.
// Empty strings mean the expression produced nothing.
type MappedFields struct {
	ObjectCipher   string
	ContractNumber string
	Amount         *types.Money
}

// FieldMapper evaluates the integration's mapping expressions against a
// deal. Satisfied by the bitrix CEL mapper.
type FieldMapper interface {
	MapDeal(ctx context.Context, d *Deal) (*MappedFields, error)
}

// BlobStore persists downloaded files. Satisfied by the blob
// infrastructure store.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}
