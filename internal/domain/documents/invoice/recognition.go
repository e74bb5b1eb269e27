package invoice

import (
	"context"
	"encoding/json"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/pkg/logger"
)

// RecognizedFields is the structured output of the document recognizer.
// Monetary values are decimal strings to avoid float round-trips.
type RecognizedFields struct {
	InvoiceNumber string `json:"invoice_number" jsonschema_description:"Invoice number as printed on the document"`
	InvoiceDate   string `json:"invoice_date" jsonschema_description:"Invoice date in YYYY-MM-DD format"`
	VendorName    string `json:"vendor_name" jsonschema_description:"Supplier name"`
	VendorINN     string `json:"vendor_inn" jsonschema_description:"Supplier tax number (INN), digits only"`
	AmountGross   string `json:"amount_gross" jsonschema_description:"Total amount including VAT, decimal string"`
	AmountNet     string `json:"amount_net" jsonschema_description:"Amount without VAT, decimal string, empty if not printed"`
	VATAmount     string `json:"vat_amount" jsonschema_description:"VAT amount, decimal string, empty if not printed"`
	Description   string `json:"description" jsonschema_description:"Short summary of what the invoice is for"`

	Items []RecognizedItem `json:"items" jsonschema_description:"Line items"`
}

// RecognizedItem is one recognized invoice line.
type RecognizedItem struct {
	Name         string `json:"name" jsonschema_description:"Line item name as printed"`
	Quantity     string `json:"quantity" jsonschema_description:"Quantity, decimal string"`
	Unit         string `json:"unit" jsonschema_description:"Unit of measure"`
	PricePerUnit string `json:"price_per_unit" jsonschema_description:"Unit price, decimal string"`
	Amount       string `json:"amount" jsonschema_description:"Line total, decimal string"`
}

// ApplyRecognition writes recognizer output onto the invoice and moves
// it to received. Results for cancelled invoices are discarded: the
// correlation id is the invoice id, and the state check is the guard.
func (s *Service) ApplyRecognition(ctx context.Context, invoiceID id.ID, fields *RecognizedFields) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}

		if inv.Status != StatusRecognition {
			logger.Info(ctx, "discarding recognition result, invoice left recognition",
				"invoice_id", invoiceID,
				"status", string(inv.Status))
			return nil
		}

		gross, err := types.NewMoneyFromString(fields.AmountGross)
		if err != nil || !gross.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeRecognition,
				"recognizer returned no usable gross amount").
				WithDetail("invoiceId", invoiceID).
				WithDetail("amountGross", fields.AmountGross)
		}

		net, vat := parseNetVAT(fields, gross)

		inv.AmountGross = types.Round2(gross)
		inv.AmountNet = types.Round2(net)
		inv.VATAmount = types.Round2(vat)
		if inv.Description == "" {
			inv.Description = fields.Description
		}
		if raw, merr := json.Marshal(fields); merr == nil {
			inv.RecognizedFields = raw
		}
		inv.Status = StatusReceived

		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}

		if len(fields.Items) > 0 {
			items := make([]*Item, 0, len(fields.Items))
			for _, ri := range fields.Items {
				item := NewItem(inv.ID, ri.Name, parseMoney(ri.Quantity), parseMoney(ri.PricePerUnit))
				item.Unit = ri.Unit
				item.Amount = parseMoney(ri.Amount)
				item.Normalize()
				items = append(items, item)
			}
			if err := s.itemRepo.ReplaceForInvoice(ctx, inv.ID, items); err != nil {
				return err
			}
		}

		return s.eventRepo.Append(ctx, NewEvent(inv.ID, EventRecognized, "", map[string]any{
			"amount_gross": types.MoneyString(inv.AmountGross),
			"vat_amount":   types.MoneyString(inv.VATAmount),
			"vendor_inn":   fields.VendorINN,
		}))
	})
}

// RecordRecognitionFailure logs a permanent recognition failure on the
// event log. The invoice stays in recognition for manual amendment.
func (s *Service) RecordRecognitionFailure(ctx context.Context, invoiceID id.ID, cause error) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != StatusRecognition {
			return nil
		}
		return s.eventRepo.Append(ctx, NewEvent(inv.ID, EventRecognitionFailed, "", map[string]any{
			"error": cause.Error(),
		}))
	})
}

// ListPendingRecognition returns invoices awaiting recognition.
func (s *Service) ListPendingRecognition(ctx context.Context, limit int) ([]*Invoice, error) {
	return s.repo.ListPendingRecognition(ctx, limit)
}

func parseNetVAT(fields *RecognizedFields, gross types.Money) (types.Money, types.Money) {
	net := parseMoney(fields.AmountNet)
	vat := parseMoney(fields.VATAmount)

	switch {
	case net.IsPositive() && vat.IsPositive():
		return net, vat
	case vat.IsPositive():
		return gross.Sub(vat), vat
	case net.IsPositive():
		return net, gross.Sub(net)
	default:
		// Nothing printed: treat the document as VAT-free
		return gross, types.Zero()
	}
}

func parseMoney(s string) types.Money {
	if s == "" {
		return types.Zero()
	}
	m, err := types.NewMoneyFromString(s)
	if err != nil {
		return types.Zero()
	}
	return m
}
