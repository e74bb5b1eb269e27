package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var actColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"contract_id", "period_start", "period_end",
	"amount_gross", "amount_net", "vat_amount",
	"status", "due_date",
}

// ActRepo is the PostgreSQL repository for works certificates.
type ActRepo struct {
	*BaseDocumentRepo[*contract.Act]
}

// NewActRepo creates an act repository.
func NewActRepo(txm *postgres.TxManager) *ActRepo {
	return &ActRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"acts",
			actColumns,
			func() *contract.Act { return &contract.Act{} },
		),
	}
}

// GetByContractAndNumber enforces (contract, number) uniqueness, nil when absent.
func (r *ActRepo) GetByContractAndNumber(ctx context.Context, contractID id.ID, number string) (*contract.Act, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"contract_id": contractID}).
		Where(squirrel.Eq{"number": number}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	a, found, err := r.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return a, nil
}

// ListByContract returns the contract's acts ordered by date.
func (r *ActRepo) ListByContract(ctx context.Context, contractID id.ID) ([]*contract.Act, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"contract_id": contractID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date", "number")

	return r.SelectMany(ctx, q)
}
