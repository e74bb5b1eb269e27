package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stroyfin/internal/core/id"
	"stroyfin/internal/domain/documents/proposal"
	"stroyfin/internal/infrastructure/storage/postgres"
)

var proposalColumns = []string{
	"id", "number", "date", "comment", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"kind", "status", "object_id", "counterparty_id", "amount",
	"technical_proposal_id",
	"version_number", "parent_version_id", "is_current",
	"approved_by", "approved_at",
}

// ProposalRepo is the PostgreSQL repository for proposals.
type ProposalRepo struct {
	*BaseDocumentRepo[*proposal.Proposal]
}

// NewProposalRepo creates a proposal repository.
func NewProposalRepo(txm *postgres.TxManager) *ProposalRepo {
	return &ProposalRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"proposals",
			proposalColumns,
			func() *proposal.Proposal { return &proposal.Proposal{} },
		),
	}
}

// ListVersions returns all versions of the chain the proposal belongs
// to, ordered by version number. The chain is walked in both
// directions from the given proposal.
func (r *ProposalRepo) ListVersions(ctx context.Context, proposalID id.ID) ([]*proposal.Proposal, error) {
	sql := `
		WITH RECURSIVE ancestors AS (
			SELECT * FROM proposals WHERE id = $1
			UNION ALL
			SELECT p.* FROM proposals p
			JOIN ancestors a ON p.id = a.parent_version_id
		), descendants AS (
			SELECT * FROM proposals WHERE id = $1
			UNION ALL
			SELECT p.* FROM proposals p
			JOIN descendants d ON p.parent_version_id = d.id
		)
		SELECT DISTINCT ` + strings.Join(proposalColumns, ", ") + `
		FROM (
			SELECT * FROM ancestors
			UNION
			SELECT * FROM descendants
		) chain
		ORDER BY version_number`

	var items []*proposal.Proposal
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, proposalID); err != nil {
		return nil, fmt.Errorf("list proposal versions: %w", err)
	}
	return items, nil
}

// CountMountingForTechnical counts mounting proposals attached to a
// technical proposal. Drives suffix numbering of new МП.
func (r *ProposalRepo) CountMountingForTechnical(ctx context.Context, technicalID id.ID) (int, error) {
	sql, args, err := r.Builder().
		Select("COUNT(*)").
		From("proposals").
		Where(squirrel.Eq{"technical_proposal_id": technicalID}).
		Where(squirrel.Eq{"kind": proposal.KindMounting}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Eq{"is_current": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mounting proposals: %w", err)
	}
	return count, nil
}
