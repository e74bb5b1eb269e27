// Package counterparty provides the Counterparty catalog (Справочник "Контрагенты").
// Counterparties are customers and vendors of the construction firm.
package counterparty

import (
	"context"
	"regexp"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
)

// Pre-compiled regex patterns for validation
var (
	whitespaceRE = regexp.MustCompile(`\s`)
	digitsOnlyRE = regexp.MustCompile(`^\d+$`)
	kppRE        = regexp.MustCompile(`^\d{9}$`)
)

// CounterpartyType defines the type of counterparty.
type CounterpartyType string

const (
	TypeCustomer CounterpartyType = "customer" // Заказчик
	TypeVendor   CounterpartyType = "vendor"   // Поставщик/подрядчик
	TypeBoth     CounterpartyType = "both"     // Заказчик и поставщик
)

// VendorSubtype refines vendor counterparties.
type VendorSubtype string

const (
	VendorSupplier      VendorSubtype = "supplier"      // Поставщик материалов
	VendorSubcontractor VendorSubtype = "subcontractor" // Субподрядчик
	VendorService       VendorSubtype = "service"       // Услуги
)

// LegalForm defines the legal form of counterparty.
type LegalForm string

const (
	LegalIndividual LegalForm = "individual"  // Физлицо
	LegalSoleTrader LegalForm = "sole_trader" // ИП
	LegalCompany    LegalForm = "company"     // Юрлицо
)

// Counterparty represents a business partner (customer, vendor, or both).
type Counterparty struct {
	entity.Catalog

	// Type defines whether this is a customer, vendor, or both
	Type CounterpartyType `db:"type" json:"type"`

	// VendorSubtype refines the vendor role (nullable for customers)
	VendorSubtype *VendorSubtype `db:"vendor_subtype" json:"vendorSubtype,omitempty"`

	// LegalForm defines the legal status
	LegalForm LegalForm `db:"legal_form" json:"legalForm"`

	// INN (ИНН) - Tax Identification Number
	INN *string `db:"inn" json:"inn"`

	// KPP (КПП) - Tax Registration Reason Code (for companies)
	KPP *string `db:"kpp" json:"kpp,omitempty"`

	// OGRN (ОГРН) - Primary State Registration Number
	OGRN *string `db:"ogrn" json:"ogrn,omitempty"`

	// LegalAddress is the registered address
	LegalAddress *string `db:"legal_address" json:"legalAddress,omitempty"`

	// ContactPerson is the primary contact name
	ContactPerson *string `db:"contact_person" json:"contactPerson,omitempty"`

	// Phone is the primary contact phone
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Comment is a free-form note
	Comment *string `db:"comment" json:"comment,omitempty"`
}

// NewCounterparty creates a new Counterparty with required fields.
func NewCounterparty(code, name string, cpType CounterpartyType, legalForm LegalForm) *Counterparty {
	return &Counterparty{
		Catalog:   entity.NewCatalog(code, name),
		Type:      cpType,
		LegalForm: legalForm,
	}
}

// Validate implements entity.Validatable interface.
func (c *Counterparty) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidCounterpartyType(c.Type) {
		return apperror.NewValidation("invalid counterparty type").
			WithDetail("field", "type").
			WithDetail("value", string(c.Type))
	}

	if !isValidLegalForm(c.LegalForm) {
		return apperror.NewValidation("invalid legal form").
			WithDetail("field", "legalForm").
			WithDetail("value", string(c.LegalForm))
	}

	if c.VendorSubtype != nil && !c.IsVendor() {
		return apperror.NewValidation("vendor subtype requires a vendor-typed counterparty").
			WithDetail("field", "vendorSubtype")
	}

	if c.INN != nil && *c.INN != "" {
		if err := validateINN(*c.INN, c.LegalForm); err != nil {
			return err
		}
	}

	if c.LegalForm == LegalCompany && c.KPP != nil && *c.KPP != "" {
		if !kppRE.MatchString(*c.KPP) {
			return apperror.NewValidation("invalid KPP format (must be 9 digits)").
				WithDetail("field", "kpp")
		}
	}

	return nil
}

// IsCustomer returns true if counterparty can be a customer.
func (c *Counterparty) IsCustomer() bool {
	return c.Type == TypeCustomer || c.Type == TypeBoth
}

// IsVendor returns true if counterparty can be a vendor.
// Expense contracts require a vendor-typed counterparty.
func (c *Counterparty) IsVendor() bool {
	return c.Type == TypeVendor || c.Type == TypeBoth
}

// --- Validation Helpers ---

func isValidCounterpartyType(t CounterpartyType) bool {
	switch t {
	case TypeCustomer, TypeVendor, TypeBoth:
		return true
	}
	return false
}

func isValidLegalForm(f LegalForm) bool {
	switch f {
	case LegalIndividual, LegalSoleTrader, LegalCompany:
		return true
	}
	return false
}

func validateINN(inn string, form LegalForm) error {
	cleaned := whitespaceRE.ReplaceAllString(inn, "")

	// Length depends on legal form: 12 digits for individuals, 10 for companies
	switch form {
	case LegalIndividual, LegalSoleTrader:
		if len(cleaned) != 12 {
			return apperror.NewValidation("individual INN must be 12 digits").
				WithDetail("field", "inn")
		}
	case LegalCompany:
		if len(cleaned) != 10 {
			return apperror.NewValidation("company INN must be 10 digits").
				WithDetail("field", "inn")
		}
	}

	if !digitsOnlyRE.MatchString(cleaned) {
		return apperror.NewValidation("INN must contain only digits").
			WithDetail("field", "inn")
	}

	return nil
}
