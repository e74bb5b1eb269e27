package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var contractColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"name", "object_id", "counterparty_id", "legal_entity_id",
	"contract_type", "status", "contract_date", "start_date", "end_date",
	"total_amount", "currency", "vat_rate", "vat_included",
	"is_framework", "parent_contract_id", "framework_contract_id",
	"technical_proposal_id", "mounting_proposal_id",
}

// ContractRepo is the PostgreSQL repository for contracts.
type ContractRepo struct {
	*BaseDocumentRepo[*contract.Contract]
}

// NewContractRepo creates a contract repository.
func NewContractRepo(txm *postgres.TxManager) *ContractRepo {
	return &ContractRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"contracts",
			contractColumns,
			func() *contract.Contract { return &contract.Contract{} },
		),
	}
}

// GetByObjectAndNumber enforces (object, number) uniqueness, nil when absent.
func (r *ContractRepo) GetByObjectAndNumber(ctx context.Context, objectID id.ID, number string) (*contract.Contract, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"object_id": objectID}).
		Where(squirrel.Eq{"number": number}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	c, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return c, nil
}

// FindByNumber returns every contract carrying the number across all
// objects. Deal title resolution uses this to detect ambiguity.
func (r *ContractRepo) FindByNumber(ctx context.Context, number string) ([]*contract.Contract, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"number": number}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date DESC")

	items, err := r.SelectMany(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find by number: %w", err)
	}
	return items, nil
}

// ListByParent returns expense contracts whose parent_contract is the
// given income contract.
func (r *ContractRepo) ListByParent(ctx context.Context, parentID id.ID) ([]*contract.Contract, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"parent_contract_id": parentID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date")

	return r.SelectMany(ctx, q)
}
