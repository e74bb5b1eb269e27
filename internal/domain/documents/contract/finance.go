package contract

import (
	"context"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
)

// Margin is the income-contract profitability snapshot.
type Margin struct {
	IncomeNet  types.Money `json:"incomeNet"`
	ExpenseNet types.Money `json:"expenseNet"`
	Margin     types.Money `json:"margin"`
	Percent    types.Money `json:"percent"`
}

// Balance returns what is still owed under the contract:
// signed acts gross minus paid payments. Positive means outstanding.
func (s *Service) Balance(ctx context.Context, contractID id.ID) (types.Money, error) {
	actsGross, err := s.finance.SumSignedActsGross(ctx, contractID)
	if err != nil {
		return types.Zero(), err
	}
	paid, err := s.finance.SumPaidPayments(ctx, contractID)
	if err != nil {
		return types.Zero(), err
	}
	return actsGross.Sub(paid), nil
}

// ContractMargin computes margin for an income contract: own signed acts
// net minus the signed-act net of all child expense contracts.
func (s *Service) ContractMargin(ctx context.Context, contractID id.ID) (*Margin, error) {
	c, err := s.repo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Type != TypeIncome {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"margin is defined for income contracts only").
			WithDetail("contractId", contractID).
			WithDetail("contractType", string(c.Type))
	}

	incomeNet, err := s.finance.SumSignedActsNet(ctx, contractID)
	if err != nil {
		return nil, err
	}
	expenseNet, err := s.finance.SumChildSignedActsNet(ctx, contractID)
	if err != nil {
		return nil, err
	}

	margin := incomeNet.Sub(expenseNet)
	return &Margin{
		IncomeNet:  incomeNet,
		ExpenseNet: expenseNet,
		Margin:     margin,
		Percent:    types.Percent(margin, incomeNet),
	}, nil
}

// Cashflow returns income/expense totals over paid payments in scope.
func (s *Service) Cashflow(ctx context.Context, filter CashflowFilter) (CashflowTotals, error) {
	return s.finance.Cashflow(ctx, filter)
}

// CashflowByPeriod returns the periodized cash-flow series in ascending
// period order.
func (s *Service) CashflowByPeriod(ctx context.Context, filter CashflowFilter, granularity Granularity) ([]CashflowPoint, error) {
	switch granularity {
	case ByMonth, ByWeek, ByDay:
	default:
		return nil, apperror.NewValidation("invalid cash-flow granularity").
			WithDetail("field", "granularity").
			WithDetail("value", string(granularity))
	}
	return s.finance.CashflowSeries(ctx, filter, granularity)
}
