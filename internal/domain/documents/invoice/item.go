package invoice

import (
	"context"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Item is one invoice line.
type Item struct {
	entity.BaseEntity

	InvoiceID id.ID `db:"invoice_id" json:"invoiceId"`

	// RawName is the line text as recognized or typed
	RawName string `db:"raw_name" json:"rawName"`

	// MatchedProductID is the nomenclature match, when one was found
	MatchedProductID *id.ID `db:"matched_product_id" json:"matchedProductId,omitempty"`

	Quantity     types.Money `db:"quantity" json:"quantity"`
	Unit         string      `db:"unit" json:"unit"`
	PricePerUnit types.Money `db:"price_per_unit" json:"pricePerUnit"`
	Amount       types.Money `db:"amount" json:"amount"`
	VATAmount    *types.Money `db:"vat_amount" json:"vatAmount,omitempty"`
}

// NewItem creates an invoice line. The amount is derived from quantity
// and price when not provided.
func NewItem(invoiceID id.ID, rawName string, quantity, pricePerUnit types.Money) *Item {
	return &Item{
		BaseEntity:   entity.NewBaseEntity(),
		InvoiceID:    invoiceID,
		RawName:      rawName,
		Quantity:     quantity,
		PricePerUnit: pricePerUnit,
	}
}

// Normalize fills the line amount from quantity and price when absent.
func (it *Item) Normalize() {
	if it.Amount.IsZero() {
		it.Amount = types.Round2(it.Quantity.Mul(it.PricePerUnit))
	}
}

// Validate implements entity.Validatable interface.
func (it *Item) Validate(ctx context.Context) error {
	if it.RawName == "" {
		return apperror.NewValidation("item name is required").
			WithDetail("field", "rawName")
	}
	if id.IsNil(it.InvoiceID) {
		return apperror.NewValidation("item must belong to an invoice").
			WithDetail("field", "invoiceId")
	}
	if it.Quantity.IsNegative() || it.PricePerUnit.IsNegative() || it.Amount.IsNegative() {
		return apperror.NewValidation("item amounts cannot be negative").
			WithDetail("field", "amount")
	}
	return nil
}
