// Package dto provides Data Transfer Objects for API requests.
// Responses reuse the domain models, which carry their own json tags.
package dto

import (
	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BalanceResponse carries one account balance.
type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Subtree   bool   `json:"subtree"`
}

// BlobResponse carries the stored location of an uploaded file.
type BlobResponse struct {
	URI  string `json:"uri"`
	Size int    `json:"size"`
}

// SetDeletionMarkRequest toggles the soft-delete mark.
type SetDeletionMarkRequest struct {
	Marked bool `json:"marked"`
}

// ParseMoney parses a decimal-string amount from a request.
func ParseMoney(field, value string) (types.Money, error) {
	m, err := types.NewMoneyFromString(value)
	if err != nil {
		return types.Zero(), apperror.NewValidation("invalid amount").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return m, nil
}

// ParseID parses an entity id from a request.
func ParseID(field, value string) (id.ID, error) {
	parsed, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return parsed, nil
}

// ParseOptionalID parses an optional id, nil for empty input.
func ParseOptionalID(field string, value *string) (*id.ID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := ParseID(field, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
