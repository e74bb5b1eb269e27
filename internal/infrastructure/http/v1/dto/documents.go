package dto

import (
	"time"

	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/domain/documents/proposal"
)

// --- Contracts ---

type CreateContractRequest struct {
	Number         string `json:"number"`
	Name           string `json:"name" binding:"required"`
	ObjectID       string `json:"objectId" binding:"required"`
	CounterpartyID string `json:"counterpartyId" binding:"required"`
	LegalEntityID  string `json:"legalEntityId" binding:"required"`
	ContractType   string `json:"contractType" binding:"required"`

	ContractDate time.Time  `json:"contractDate" binding:"required"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`

	TotalAmount string `json:"totalAmount" binding:"required"`
	Currency    string `json:"currency"`
	VATRate     string `json:"vatRate"`
	VATIncluded bool   `json:"vatIncluded"`

	IsFramework         bool    `json:"isFramework"`
	ParentContractID    *string `json:"parentContractId"`
	FrameworkContractID *string `json:"frameworkContractId"`
	TechnicalProposalID *string `json:"technicalProposalId"`
	MountingProposalID  *string `json:"mountingProposalId"`
}

// ToContract maps the request to a domain contract.
func (r CreateContractRequest) ToContract() (*contract.Contract, error) {
	objectID, err := ParseID("objectId", r.ObjectID)
	if err != nil {
		return nil, err
	}
	counterpartyID, err := ParseID("counterpartyId", r.CounterpartyID)
	if err != nil {
		return nil, err
	}
	legalEntityID, err := ParseID("legalEntityId", r.LegalEntityID)
	if err != nil {
		return nil, err
	}

	c := contract.NewContract(r.Number, r.Name, objectID, counterpartyID, legalEntityID,
		contract.Type(r.ContractType))
	c.ContractDate = r.ContractDate
	c.StartDate = r.StartDate
	c.EndDate = r.EndDate

	if c.TotalAmount, err = ParseMoney("totalAmount", r.TotalAmount); err != nil {
		return nil, err
	}
	if r.Currency != "" {
		c.Currency = r.Currency
	}
	if r.VATRate != "" {
		if c.VATRate, err = ParseMoney("vatRate", r.VATRate); err != nil {
			return nil, err
		}
	}
	c.VATIncluded = r.VATIncluded
	c.IsFramework = r.IsFramework

	if c.ParentContractID, err = ParseOptionalID("parentContractId", r.ParentContractID); err != nil {
		return nil, err
	}
	if c.FrameworkContractID, err = ParseOptionalID("frameworkContractId", r.FrameworkContractID); err != nil {
		return nil, err
	}
	if c.TechnicalProposalID, err = ParseOptionalID("technicalProposalId", r.TechnicalProposalID); err != nil {
		return nil, err
	}
	if c.MountingProposalID, err = ParseOptionalID("mountingProposalId", r.MountingProposalID); err != nil {
		return nil, err
	}
	return c, nil
}

type UpdateContractRequest struct {
	Name        string     `json:"name" binding:"required"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	TotalAmount string     `json:"totalAmount" binding:"required"`
	VATRate     string     `json:"vatRate"`
	VATIncluded bool       `json:"vatIncluded"`
	Comment     string     `json:"comment"`
	Version     int        `json:"version" binding:"required,min=1"`
}

type ChangeContractStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// --- Acts ---

type CreateActRequest struct {
	ContractID  string     `json:"contractId" binding:"required"`
	Number      string     `json:"number" binding:"required"`
	Date        time.Time  `json:"date" binding:"required"`
	PeriodStart *time.Time `json:"periodStart"`
	PeriodEnd   *time.Time `json:"periodEnd"`
	AmountGross string     `json:"amountGross" binding:"required"`
	AmountNet   string     `json:"amountNet"`
	VATAmount   string     `json:"vatAmount"`
	DueDate     *time.Time `json:"dueDate"`
}

// ToAct maps the request to a domain act.
func (r CreateActRequest) ToAct() (*contract.Act, error) {
	contractID, err := ParseID("contractId", r.ContractID)
	if err != nil {
		return nil, err
	}
	gross, err := ParseMoney("amountGross", r.AmountGross)
	if err != nil {
		return nil, err
	}

	act := contract.NewAct(contractID, r.Number, r.Date, gross)
	act.PeriodStart = r.PeriodStart
	act.PeriodEnd = r.PeriodEnd
	act.DueDate = r.DueDate

	if r.AmountNet != "" {
		if act.AmountNet, err = ParseMoney("amountNet", r.AmountNet); err != nil {
			return nil, err
		}
	}
	if r.VATAmount != "" {
		if act.VATAmount, err = ParseMoney("vatAmount", r.VATAmount); err != nil {
			return nil, err
		}
	}
	return act, nil
}

// --- Proposals ---

type CreateProposalRequest struct {
	Kind                string  `json:"kind" binding:"required"`
	ObjectID            string  `json:"objectId" binding:"required"`
	CounterpartyID      string  `json:"counterpartyId" binding:"required"`
	Amount              string  `json:"amount" binding:"required"`
	TechnicalProposalID *string `json:"technicalProposalId"`
	Comment             string  `json:"comment"`
}

func (r CreateProposalRequest) ToProposal() (*proposal.Proposal, error) {
	objectID, err := ParseID("objectId", r.ObjectID)
	if err != nil {
		return nil, err
	}
	counterpartyID, err := ParseID("counterpartyId", r.CounterpartyID)
	if err != nil {
		return nil, err
	}
	amount, err := ParseMoney("amount", r.Amount)
	if err != nil {
		return nil, err
	}

	p := proposal.NewProposal(proposal.Kind(r.Kind), objectID, counterpartyID, amount)
	if p.TechnicalProposalID, err = ParseOptionalID("technicalProposalId", r.TechnicalProposalID); err != nil {
		return nil, err
	}
	p.Comment = r.Comment
	return p, nil
}

// --- Invoices ---

type CreateInvoiceRequest struct {
	InvoiceType     string     `json:"invoiceType" binding:"required"`
	Number          string     `json:"number"`
	Date            *time.Time `json:"date"`
	ObjectID        *string    `json:"objectId"`
	ContractID      *string    `json:"contractId"`
	CategoryID      *string    `json:"categoryId"`
	TargetAccountID *string    `json:"targetAccountId"`
	AmountGross     string     `json:"amountGross"`
	AmountNet       string     `json:"amountNet"`
	VATAmount       string     `json:"vatAmount"`
	PlannedDate     *time.Time `json:"plannedDate"`
	ScanBlobURI     string     `json:"scanBlobUri"`
	Description     string     `json:"description"`
}

// ToInvoice maps the request to a manually entered invoice.
func (r CreateInvoiceRequest) ToInvoice() (*invoice.Invoice, error) {
	inv := invoice.NewInvoice(invoice.SourceManual, invoice.Type(r.InvoiceType))
	inv.Number = r.Number
	if r.Date != nil {
		inv.Date = *r.Date
	}

	var err error
	if inv.ObjectID, err = ParseOptionalID("objectId", r.ObjectID); err != nil {
		return nil, err
	}
	if inv.ContractID, err = ParseOptionalID("contractId", r.ContractID); err != nil {
		return nil, err
	}
	if inv.CategoryID, err = ParseOptionalID("categoryId", r.CategoryID); err != nil {
		return nil, err
	}
	if inv.TargetAccountID, err = ParseOptionalID("targetAccountId", r.TargetAccountID); err != nil {
		return nil, err
	}

	if r.AmountGross != "" {
		if inv.AmountGross, err = ParseMoney("amountGross", r.AmountGross); err != nil {
			return nil, err
		}
	}
	if r.AmountNet != "" {
		if inv.AmountNet, err = ParseMoney("amountNet", r.AmountNet); err != nil {
			return nil, err
		}
	}
	if r.VATAmount != "" {
		if inv.VATAmount, err = ParseMoney("vatAmount", r.VATAmount); err != nil {
			return nil, err
		}
	}

	inv.PlannedDate = r.PlannedDate
	inv.ScanBlobURI = r.ScanBlobURI
	inv.Description = r.Description
	return inv, nil
}

type AmendInvoiceRequest struct {
	ObjectID        *string    `json:"objectId"`
	ContractID      *string    `json:"contractId"`
	CategoryID      *string    `json:"categoryId"`
	TargetAccountID *string    `json:"targetAccountId"`
	AmountGross     string     `json:"amountGross"`
	AmountNet       string     `json:"amountNet"`
	VATAmount       string     `json:"vatAmount"`
	PlannedDate     *time.Time `json:"plannedDate"`
	Description     string     `json:"description"`
	Version         int        `json:"version" binding:"required,min=1"`
}

type InvoiceItemRequest struct {
	RawName      string `json:"rawName" binding:"required"`
	Quantity     string `json:"quantity"`
	Unit         string `json:"unit"`
	PricePerUnit string `json:"pricePerUnit"`
	Amount       string `json:"amount"`
}

type SetInvoiceItemsRequest struct {
	Items []InvoiceItemRequest `json:"items" binding:"required"`
}

type ActAllocationRequest struct {
	ActID  string `json:"actId" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type SetActAllocationsRequest struct {
	Allocations []ActAllocationRequest `json:"allocations" binding:"required"`
}

// ToAllocations maps allocation requests keyed to the invoice.
func (r SetActAllocationsRequest) ToAllocations(invoiceID string) ([]invoice.ActAllocation, error) {
	invID, err := ParseID("invoiceId", invoiceID)
	if err != nil {
		return nil, err
	}

	allocations := make([]invoice.ActAllocation, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		actID, err := ParseID("actId", a.ActID)
		if err != nil {
			return nil, err
		}
		amount, err := ParseMoney("amount", a.Amount)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, invoice.ActAllocation{
			InvoiceID: invID,
			ActID:     actID,
			Amount:    amount,
		})
	}
	return allocations, nil
}

type RejectInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ScheduleInvoiceRequest struct {
	PlannedDate time.Time `json:"plannedDate" binding:"required"`
}

// ParseMoneyOrZero parses an optional money field, zero when empty.
func ParseMoneyOrZero(field, value string) (types.Money, error) {
	if value == "" {
		return types.Zero(), nil
	}
	return ParseMoney(field, value)
}
