package dto

import (
	"time"

	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/catalogs/cashaccount"
	"stroyfin/internal/domain/catalogs/counterparty"
	"stroyfin/internal/domain/catalogs/legalentity"
	"stroyfin/internal/domain/catalogs/object"
)

// --- Chart accounts ---

// CreateAccountRequest creates a household account; system, object and
// contract accounts are created by the services that need them.
type CreateAccountRequest struct {
	Code             string  `json:"code" binding:"required"`
	Name             string  `json:"name" binding:"required"`
	ParentID         *string `json:"parentId"`
	RequiresContract bool    `json:"requiresContract"`
	SortOrder        int     `json:"sortOrder"`
}

// ToAccount maps the request to a domain account.
func (r CreateAccountRequest) ToAccount() *account.Account {
	acc := account.NewAccount(r.Code, r.Name, account.TypeHousehold)
	acc.ParentID = r.ParentID
	acc.RequiresContract = r.RequiresContract
	acc.SortOrder = r.SortOrder
	return acc
}

// UpdateAccountRequest renames or reorders an account.
type UpdateAccountRequest struct {
	Name             string  `json:"name" binding:"required"`
	ParentID         *string `json:"parentId"`
	RequiresContract bool    `json:"requiresContract"`
	SortOrder        int     `json:"sortOrder"`
	Version          int     `json:"version" binding:"required,min=1"`
}

// --- Construction objects ---

type CreateObjectRequest struct {
	Code      string     `json:"code"`
	Name      string     `json:"name" binding:"required"`
	Address   string     `json:"address"`
	Cipher    string     `json:"cipher"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (r CreateObjectRequest) ToObject() *object.Object {
	obj := object.NewObject(r.Code, r.Name, r.Address)
	obj.Cipher = r.Cipher
	obj.StartDate = r.StartDate
	obj.EndDate = r.EndDate
	return obj
}

type UpdateObjectRequest struct {
	Name      string     `json:"name" binding:"required"`
	Address   string     `json:"address"`
	Cipher    string     `json:"cipher"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	Version   int        `json:"version" binding:"required,min=1"`
}

type ChangeObjectStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// --- Counterparties ---

type CreateCounterpartyRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name" binding:"required"`
	Type          string  `json:"type" binding:"required"`
	VendorSubtype *string `json:"vendorSubtype"`
	LegalForm     string  `json:"legalForm" binding:"required"`
	INN           *string `json:"inn"`
	KPP           *string `json:"kpp"`
	OGRN          *string `json:"ogrn"`
	LegalAddress  *string `json:"legalAddress"`
	ContactPerson *string `json:"contactPerson"`
	Phone         *string `json:"phone"`
	Comment       *string `json:"comment"`
}

func (r CreateCounterpartyRequest) ToCounterparty() *counterparty.Counterparty {
	cp := counterparty.NewCounterparty(r.Code, r.Name,
		counterparty.CounterpartyType(r.Type), counterparty.LegalForm(r.LegalForm))
	if r.VendorSubtype != nil {
		sub := counterparty.VendorSubtype(*r.VendorSubtype)
		cp.VendorSubtype = &sub
	}
	cp.INN = r.INN
	cp.KPP = r.KPP
	cp.OGRN = r.OGRN
	cp.LegalAddress = r.LegalAddress
	cp.ContactPerson = r.ContactPerson
	cp.Phone = r.Phone
	cp.Comment = r.Comment
	return cp
}

type UpdateCounterpartyRequest struct {
	Name          string  `json:"name" binding:"required"`
	VendorSubtype *string `json:"vendorSubtype"`
	INN           *string `json:"inn"`
	KPP           *string `json:"kpp"`
	OGRN          *string `json:"ogrn"`
	LegalAddress  *string `json:"legalAddress"`
	ContactPerson *string `json:"contactPerson"`
	Phone         *string `json:"phone"`
	Comment       *string `json:"comment"`
	Version       int     `json:"version" binding:"required,min=1"`
}

// --- Legal entities ---

type CreateLegalEntityRequest struct {
	Code         string  `json:"code"`
	Name         string  `json:"name" binding:"required"`
	INN          string  `json:"inn" binding:"required"`
	KPP          *string `json:"kpp"`
	TaxSystem    string  `json:"taxSystem" binding:"required"`
	Director     string  `json:"director"`
	LegalAddress string  `json:"legalAddress"`
}

func (r CreateLegalEntityRequest) ToLegalEntity() *legalentity.LegalEntity {
	e := legalentity.NewLegalEntity(r.Code, r.Name, r.INN, legalentity.TaxSystem(r.TaxSystem))
	e.KPP = r.KPP
	e.Director = r.Director
	e.LegalAddress = r.LegalAddress
	return e
}

type UpdateLegalEntityRequest struct {
	Name         string  `json:"name" binding:"required"`
	KPP          *string `json:"kpp"`
	TaxSystem    string  `json:"taxSystem" binding:"required"`
	Director     string  `json:"director"`
	LegalAddress string  `json:"legalAddress"`
	Version      int     `json:"version" binding:"required,min=1"`
}

// --- Cash accounts ---

type CreateCashAccountRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name" binding:"required"`
	Kind          string  `json:"kind" binding:"required"`
	LegalEntityID *string `json:"legalEntityId"`
	AccountNumber *string `json:"accountNumber"`
	BIC           *string `json:"bic"`
}

func (r CreateCashAccountRequest) ToCashAccount() (*cashaccount.CashAccount, error) {
	acc := cashaccount.NewCashAccount(r.Code, r.Name, cashaccount.Kind(r.Kind))
	legalEntityID, err := ParseOptionalID("legalEntityId", r.LegalEntityID)
	if err != nil {
		return nil, err
	}
	acc.LegalEntityID = legalEntityID
	acc.AccountNumber = r.AccountNumber
	acc.BIC = r.BIC
	return acc, nil
}

type UpdateCashAccountRequest struct {
	Name          string  `json:"name" binding:"required"`
	AccountNumber *string `json:"accountNumber"`
	BIC           *string `json:"bic"`
	Version       int     `json:"version" binding:"required,min=1"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}
