package document_repo

import (
	"context"
	"fmt"
	"time"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/infrastructure/storage/postgres"
)

// FinanceRepo computes contract financial aggregates with single-query
// SQL sums. It deliberately has no base repo: every method is an
// aggregate over acts or payments, not entity CRUD.
type FinanceRepo struct {
	txm *postgres.TxManager
}

// NewFinanceRepo creates a finance aggregate repository.
func NewFinanceRepo(txm *postgres.TxManager) *FinanceRepo {
	return &FinanceRepo{txm: txm}
}

func (r *FinanceRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// SumSignedActsGross totals amount_gross over signed acts of the contract.
func (r *FinanceRepo) SumSignedActsGross(ctx context.Context, contractID id.ID) (types.Money, error) {
	return r.sumActs(ctx, contractID, "amount_gross")
}

// SumSignedActsNet totals amount_net over signed acts of the contract.
func (r *FinanceRepo) SumSignedActsNet(ctx context.Context, contractID id.ID) (types.Money, error) {
	return r.sumActs(ctx, contractID, "amount_net")
}

func (r *FinanceRepo) sumActs(ctx context.Context, contractID id.ID, column string) (types.Money, error) {
	// column is one of two compile-time constants, never user input
	sql := fmt.Sprintf(`
		SELECT COALESCE(SUM(%s), 0)
		FROM acts
		WHERE contract_id = $1
		  AND status = $2
		  AND deletion_mark = false`, column)

	var total types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, contractID, contract.ActSigned).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum signed acts: %w", err)
	}
	return total, nil
}

// SumChildSignedActsNet totals amount_net over signed acts of all
// contracts whose parent_contract is the given contract.
func (r *FinanceRepo) SumChildSignedActsNet(ctx context.Context, parentContractID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(a.amount_net), 0)
		FROM acts a
		JOIN contracts c ON c.id = a.contract_id
		WHERE c.parent_contract_id = $1
		  AND a.status = $2
		  AND a.deletion_mark = false
		  AND c.deletion_mark = false`

	var total types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, parentContractID, contract.ActSigned).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum child signed acts: %w", err)
	}
	return total, nil
}

// SumPaidPayments totals paid payment amounts for the contract.
func (r *FinanceRepo) SumPaidPayments(ctx context.Context, contractID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE contract_id = $1
		  AND status = 'paid'
		  AND deletion_mark = false`

	var total types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, contractID).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum paid payments: %w", err)
	}
	return total, nil
}

// Cashflow returns income/expense totals over paid payments in scope.
func (r *FinanceRepo) Cashflow(ctx context.Context, filter contract.CashflowFilter) (contract.CashflowTotals, error) {
	sql := `
		SELECT
			COALESCE(SUM(CASE WHEN p.payment_type = 'income' THEN p.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN p.payment_type = 'expense' THEN p.amount ELSE 0 END), 0)
		FROM payments p
		LEFT JOIN contracts c ON c.id = p.contract_id
		WHERE p.status = 'paid'
		  AND p.deletion_mark = false
		  AND ($1::uuid IS NULL OR p.contract_id = $1)
		  AND ($2::uuid IS NULL OR c.object_id = $2)
		  AND ($3::timestamptz IS NULL OR p.payment_date >= $3)
		  AND ($4::timestamptz IS NULL OR p.payment_date <= $4)`

	var totals contract.CashflowTotals
	err := r.querier(ctx).QueryRow(ctx, sql,
		filter.Scope.ContractID, filter.Scope.ObjectID,
		filter.DateFrom, filter.DateTo,
	).Scan(&totals.Income, &totals.Expense)
	if err != nil {
		return totals, fmt.Errorf("cashflow totals: %w", err)
	}

	totals.CashFlow = totals.Income.Sub(totals.Expense)
	return totals, nil
}

// CashflowSeries returns the periodized cash-flow in ascending period order.
func (r *FinanceRepo) CashflowSeries(ctx context.Context, filter contract.CashflowFilter, granularity contract.Granularity) ([]contract.CashflowPoint, error) {
	switch granularity {
	case contract.ByMonth, contract.ByWeek, contract.ByDay:
	default:
		return nil, fmt.Errorf("unsupported granularity %q", granularity)
	}

	sql := `
		SELECT
			date_trunc($5, p.payment_date) AS period,
			COALESCE(SUM(CASE WHEN p.payment_type = 'income' THEN p.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN p.payment_type = 'expense' THEN p.amount ELSE 0 END), 0)
		FROM payments p
		LEFT JOIN contracts c ON c.id = p.contract_id
		WHERE p.status = 'paid'
		  AND p.deletion_mark = false
		  AND ($1::uuid IS NULL OR p.contract_id = $1)
		  AND ($2::uuid IS NULL OR c.object_id = $2)
		  AND ($3::timestamptz IS NULL OR p.payment_date >= $3)
		  AND ($4::timestamptz IS NULL OR p.payment_date <= $4)
		GROUP BY period
		ORDER BY period`

	rows, err := r.querier(ctx).Query(ctx, sql,
		filter.Scope.ContractID, filter.Scope.ObjectID,
		filter.DateFrom, filter.DateTo,
		string(granularity),
	)
	if err != nil {
		return nil, fmt.Errorf("cashflow series: %w", err)
	}
	defer rows.Close()

	var series []contract.CashflowPoint
	for rows.Next() {
		var point contract.CashflowPoint
		var period time.Time
		if err := rows.Scan(&period, &point.Income, &point.Expense); err != nil {
			return nil, fmt.Errorf("scan cashflow point: %w", err)
		}
		point.Period = period
		point.CashFlow = point.Income.Sub(point.Expense)
		series = append(series, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cashflow series rows: %w", err)
	}

	return series, nil
}
