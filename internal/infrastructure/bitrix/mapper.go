package bitrix

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/supply"
)

// MapperConfig holds per-integration CEL expressions evaluated against
// the deal's field map. Each expression sees one variable, fields, and
// must produce a string. Empty expressions are skipped.
//
// Example: objectCipher = `fields["UF_CRM_OBJECT_CIPHER"]`,
// amount = `fields["OPPORTUNITY"]`.
type MapperConfig struct {
	ObjectCipherExpr   string
	ContractNumberExpr string
	AmountExpr         string
}

// CELMapper evaluates configured CEL expressions to extract references
// from deal custom fields. Expressions are compiled once at startup.
type CELMapper struct {
	objectCipher   cel.Program
	contractNumber cel.Program
	amount         cel.Program
}

// NewCELMapper compiles the mapping expressions.
func NewCELMapper(cfg MapperConfig) (*CELMapper, error) {
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	m := &CELMapper{}
	for _, binding := range []struct {
		name string
		expr string
		dst  *cel.Program
	}{
		{"objectCipher", cfg.ObjectCipherExpr, &m.objectCipher},
		{"contractNumber", cfg.ContractNumberExpr, &m.contractNumber},
		{"amount", cfg.AmountExpr, &m.amount},
	} {
		if binding.expr == "" {
			continue
		}
		ast, issues := env.Compile(binding.expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile %s expression: %w", binding.name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build %s program: %w", binding.name, err)
		}
		*binding.dst = prg
	}

	return m, nil
}

// MapDeal evaluates the expressions against the deal's fields.
func (m *CELMapper) MapDeal(ctx context.Context, d *supply.Deal) (*supply.MappedFields, error) {
	result := &supply.MappedFields{}

	cipher, err := m.evalString(m.objectCipher, d)
	if err != nil {
		return nil, fmt.Errorf("map object cipher: %w", err)
	}
	result.ObjectCipher = cipher

	number, err := m.evalString(m.contractNumber, d)
	if err != nil {
		return nil, fmt.Errorf("map contract number: %w", err)
	}
	result.ContractNumber = number

	amountStr, err := m.evalString(m.amount, d)
	if err != nil {
		return nil, fmt.Errorf("map amount: %w", err)
	}
	if amountStr != "" {
		amount, err := types.NewMoneyFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("mapped amount %q is not a number: %w", amountStr, err)
		}
		if amount.IsPositive() {
			result.Amount = &amount
		}
	}

	return result, nil
}

func (m *CELMapper) evalString(prg cel.Program, d *supply.Deal) (string, error) {
	if prg == nil {
		return "", nil
	}

	out, _, err := prg.Eval(map[string]any{"fields": d.Fields})
	if err != nil {
		return "", err
	}

	// Bitrix custom fields arrive untyped; coerce scalars to string
	switch v := out.Value().(type) {
	case string:
		return strings.TrimSpace(v), nil
	case nil:
		return "", nil
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v)), nil
	}
}
