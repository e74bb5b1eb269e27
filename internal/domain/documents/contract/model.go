// Package contract provides contracts, their acts and the contract
// financial model: balance, margin and cash-flow aggregates.
package contract

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Type separates money coming in from money going out.
type Type string

const (
	TypeIncome  Type = "income"  // с заказчиком
	TypeExpense Type = "expense" // с поставщиком или субподрядчиком
)

// Status is the contract lifecycle status.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusSuspended  Status = "suspended"
	StatusTerminated Status = "terminated"
)

// allowedTransitions maps each status to the statuses reachable from it.
var allowedTransitions = map[Status][]Status{
	StatusPlanned:   {StatusActive, StatusTerminated},
	StatusActive:    {StatusCompleted, StatusSuspended, StatusTerminated},
	StatusSuspended: {StatusActive, StatusTerminated},
}

// Contract is a signed agreement with a counterparty for an object.
type Contract struct {
	entity.Document

	Name string `db:"name" json:"name"`

	ObjectID       id.ID `db:"object_id" json:"objectId"`
	CounterpartyID id.ID `db:"counterparty_id" json:"counterpartyId"`
	LegalEntityID  id.ID `db:"legal_entity_id" json:"legalEntityId"`

	Type   Type   `db:"contract_type" json:"contractType"`
	Status Status `db:"status" json:"status"`

	ContractDate time.Time  `db:"contract_date" json:"contractDate"`
	StartDate    *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate      *time.Time `db:"end_date" json:"endDate,omitempty"`

	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	Currency    string      `db:"currency" json:"currency"`

	VATRate     types.Money `db:"vat_rate" json:"vatRate"`
	VATIncluded bool        `db:"vat_included" json:"vatIncluded"`

	// IsFramework marks a framework agreement (РД) other expense
	// contracts can link to
	IsFramework bool `db:"is_framework" json:"isFramework"`

	// ParentContractID links an expense contract to the income contract
	// whose margin it reduces
	ParentContractID *id.ID `db:"parent_contract_id" json:"parentContractId,omitempty"`

	// FrameworkContractID links an expense contract to its framework agreement
	FrameworkContractID *id.ID `db:"framework_contract_id" json:"frameworkContractId,omitempty"`

	// Proposal gates: income contracts need an approved ТКП,
	// expense contracts an approved МП, before going active
	TechnicalProposalID *id.ID `db:"technical_proposal_id" json:"technicalProposalId,omitempty"`
	MountingProposalID  *id.ID `db:"mounting_proposal_id" json:"mountingProposalId,omitempty"`
}

// NewContract creates a planned contract.
func NewContract(number, name string, objectID, counterpartyID, legalEntityID id.ID, cType Type) *Contract {
	doc := entity.NewDocument()
	doc.Number = number
	return &Contract{
		Document:       doc,
		Name:           name,
		ObjectID:       objectID,
		CounterpartyID: counterpartyID,
		LegalEntityID:  legalEntityID,
		Type:           cType,
		Status:         StatusPlanned,
		ContractDate:   time.Now().UTC(),
		Currency:       "RUB",
		VATRate:        types.MustMoney("20"),
		VATIncluded:    true,
	}
}

// Validate implements entity.Validatable interface.
func (c *Contract) Validate(ctx context.Context) error {
	if err := c.Document.Validate(ctx); err != nil {
		return err
	}

	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	switch c.Type {
	case TypeIncome, TypeExpense:
	default:
		return apperror.NewValidation("invalid contract type").
			WithDetail("field", "contractType").
			WithDetail("value", string(c.Type))
	}

	switch c.Status {
	case StatusPlanned, StatusActive, StatusCompleted, StatusSuspended, StatusTerminated:
	default:
		return apperror.NewValidation("invalid contract status").
			WithDetail("field", "status").
			WithDetail("value", string(c.Status))
	}

	if id.IsNil(c.ObjectID) {
		return apperror.NewValidation("object is required").
			WithDetail("field", "objectId")
	}
	if id.IsNil(c.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").
			WithDetail("field", "counterpartyId")
	}

	if c.VATRate.IsNegative() || c.VATRate.GreaterThan(types.MustMoney("100")) {
		return apperror.NewValidation("vat rate must be between 0 and 100").
			WithDetail("field", "vatRate")
	}

	if c.TotalAmount.IsNegative() {
		return apperror.NewValidation("total amount cannot be negative").
			WithDetail("field", "totalAmount")
	}

	if c.FrameworkContractID != nil && c.Type != TypeExpense {
		return apperror.NewValidation("framework link is permitted only for expense contracts").
			WithDetail("field", "frameworkContractId")
	}

	if c.IsFramework && c.Type != TypeExpense {
		return apperror.NewValidation("framework agreements are expense contracts").
			WithDetail("field", "isFramework")
	}

	return nil
}

// CanTransition reports whether the status change is allowed.
func (c *Contract) CanTransition(to Status) bool {
	for _, allowed := range allowedTransitions[c.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ProposalID returns the gating proposal reference for the contract type.
func (c *Contract) ProposalID() *id.ID {
	if c.Type == TypeIncome {
		return c.TechnicalProposalID
	}
	return c.MountingProposalID
}
