// Package proposal provides pre-contract documents: technical proposals
// (ТКП) for income contracts and mounting proposals (МП) for expense
// contracts. Proposals are versioned: a new version copies the previous
// one and becomes current; historical versions are never mutated.
package proposal

import (
	"context"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/entity"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Kind distinguishes technical from mounting proposals.
type Kind string

const (
	KindTechnical Kind = "technical" // ТКП, gates income contracts
	KindMounting  Kind = "mounting"  // МП, gates expense contracts
)

// Status is the proposal lifecycle status.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Proposal is a versioned pre-contract document.
type Proposal struct {
	entity.Document

	Kind   Kind   `db:"kind" json:"kind"`
	Status Status `db:"status" json:"status"`

	ObjectID       id.ID `db:"object_id" json:"objectId"`
	CounterpartyID id.ID `db:"counterparty_id" json:"counterpartyId"`

	Amount types.Money `db:"amount" json:"amount"`

	// TechnicalProposalID attaches a mounting proposal to its ТКП,
	// which drives suffix numbering
	TechnicalProposalID *id.ID `db:"technical_proposal_id" json:"technicalProposalId,omitempty"`

	// Versioning: versions of one proposal form a chain; exactly one is current
	VersionNumber   int    `db:"version_number" json:"versionNumber"`
	ParentVersionID *id.ID `db:"parent_version_id" json:"parentVersionId,omitempty"`
	IsCurrent       bool   `db:"is_current" json:"isCurrent"`

	ApprovedBy *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
}

// NewProposal creates a first-version draft proposal.
func NewProposal(kind Kind, objectID, counterpartyID id.ID, amount types.Money) *Proposal {
	return &Proposal{
		Document:       entity.NewDocument(),
		Kind:           kind,
		Status:         StatusDraft,
		ObjectID:       objectID,
		CounterpartyID: counterpartyID,
		Amount:         types.Round2(amount),
		VersionNumber:  1,
		IsCurrent:      true,
	}
}

// Validate implements entity.Validatable interface.
func (p *Proposal) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	switch p.Kind {
	case KindTechnical, KindMounting:
	default:
		return apperror.NewValidation("invalid proposal kind").
			WithDetail("field", "kind").
			WithDetail("value", string(p.Kind))
	}

	if p.Kind == KindTechnical && p.TechnicalProposalID != nil {
		return apperror.NewValidation("technical proposal cannot attach to another proposal").
			WithDetail("field", "technicalProposalId")
	}

	if id.IsNil(p.ObjectID) {
		return apperror.NewValidation("object is required").
			WithDetail("field", "objectId")
	}
	if id.IsNil(p.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").
			WithDetail("field", "counterpartyId")
	}

	if p.Amount.IsNegative() {
		return apperror.NewValidation("amount cannot be negative").
			WithDetail("field", "amount")
	}

	if p.VersionNumber < 1 {
		return apperror.NewValidation("version number must be positive").
			WithDetail("field", "versionNumber")
	}

	return nil
}

// IsApproved reports whether this version gates contract activation.
func (p *Proposal) IsApproved() bool {
	return p.Status == StatusApproved
}
