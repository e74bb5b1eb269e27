// Package legalentity provides the catalog of own legal entities
// (Справочник "Организации") the firm operates through.
package legalentity

import (
	"context"
	"regexp"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
)

var innRE = regexp.MustCompile(`^\d{10}$|^\d{12}$`)

// TaxSystem defines the taxation scheme of a legal entity.
type TaxSystem string

const (
	TaxGeneral    TaxSystem = "osno" // ОСНО, VAT payer
	TaxSimplified TaxSystem = "usn"  // УСН, no VAT
	TaxPatent     TaxSystem = "psn"  // Патент
)

// LegalEntity represents one of the firm's own legal entities.
// Contracts, invoices and bank accounts reference the entity they belong to.
type LegalEntity struct {
	entity.Catalog

	// INN is the tax identification number, 10 or 12 digits
	INN string `db:"inn" json:"inn"`

	// KPP for companies (nullable for sole traders)
	KPP *string `db:"kpp" json:"kpp,omitempty"`

	// TaxSystem drives whether documents carry VAT
	TaxSystem TaxSystem `db:"tax_system" json:"taxSystem"`

	// Director is the signing officer's full name
	Director string `db:"director" json:"director"`

	// LegalAddress is the registered address
	LegalAddress string `db:"legal_address" json:"legalAddress"`
}

// NewLegalEntity creates a legal entity with required fields.
func NewLegalEntity(code, name, inn string, taxSystem TaxSystem) *LegalEntity {
	return &LegalEntity{
		Catalog:   entity.NewCatalog(code, name),
		INN:       inn,
		TaxSystem: taxSystem,
	}
}

// Validate implements entity.Validatable interface.
func (e *LegalEntity) Validate(ctx context.Context) error {
	if err := e.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !innRE.MatchString(e.INN) {
		return apperror.NewValidation("INN must be 10 or 12 digits").
			WithDetail("field", "inn")
	}

	switch e.TaxSystem {
	case TaxGeneral, TaxSimplified, TaxPatent:
	default:
		return apperror.NewValidation("invalid tax system").
			WithDetail("field", "taxSystem").
			WithDetail("value", string(e.TaxSystem))
	}

	return nil
}

// VATPayer returns true when documents of this entity carry VAT.
func (e *LegalEntity) VATPayer() bool {
	return e.TaxSystem == TaxGeneral
}
