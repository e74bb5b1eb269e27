package bitrix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/supply"
)

func deal(fields map[string]any) *supply.Deal {
	return &supply.Deal{ID: "101", Title: "АВС-01 Договор №12-СМР", Fields: fields}
}

func TestCELMapper_MapsConfiguredFields(t *testing.T) {
	m, err := NewCELMapper(MapperConfig{
		ObjectCipherExpr:   `fields["UF_CRM_OBJECT_CIPHER"]`,
		ContractNumberExpr: `fields["UF_CRM_CONTRACT_NUMBER"]`,
		AmountExpr:         `fields["OPPORTUNITY"]`,
	})
	require.NoError(t, err)

	mapped, err := m.MapDeal(context.Background(), deal(map[string]any{
		"UF_CRM_OBJECT_CIPHER":   "  АВС-01 ",
		"UF_CRM_CONTRACT_NUMBER": "12-СМР",
		"OPPORTUNITY":            "150000.50",
	}))
	require.NoError(t, err)

	assert.Equal(t, "АВС-01", mapped.ObjectCipher)
	assert.Equal(t, "12-СМР", mapped.ContractNumber)
	require.NotNil(t, mapped.Amount)
	assert.True(t, mapped.Amount.Equal(types.MustMoney("150000.50")))
}

func TestCELMapper_EmptyExpressionsProduceNothing(t *testing.T) {
	m, err := NewCELMapper(MapperConfig{})
	require.NoError(t, err)

	mapped, err := m.MapDeal(context.Background(), deal(map[string]any{
		"OPPORTUNITY": "99",
	}))
	require.NoError(t, err)

	assert.Empty(t, mapped.ObjectCipher)
	assert.Empty(t, mapped.ContractNumber)
	assert.Nil(t, mapped.Amount)
}

func TestCELMapper_CoercesNonStringAmount(t *testing.T) {
	// Bitrix returns OPPORTUNITY as a number on some portals
	m, err := NewCELMapper(MapperConfig{AmountExpr: `fields["OPPORTUNITY"]`})
	require.NoError(t, err)

	mapped, err := m.MapDeal(context.Background(), deal(map[string]any{
		"OPPORTUNITY": 150000,
	}))
	require.NoError(t, err)

	require.NotNil(t, mapped.Amount)
	assert.True(t, mapped.Amount.Equal(types.MustMoney("150000")))
}

func TestCELMapper_NonPositiveAmountIsDropped(t *testing.T) {
	m, err := NewCELMapper(MapperConfig{AmountExpr: `fields["OPPORTUNITY"]`})
	require.NoError(t, err)

	mapped, err := m.MapDeal(context.Background(), deal(map[string]any{
		"OPPORTUNITY": "0",
	}))
	require.NoError(t, err)
	assert.Nil(t, mapped.Amount)
}

func TestCELMapper_BadAmountFails(t *testing.T) {
	m, err := NewCELMapper(MapperConfig{AmountExpr: `fields["OPPORTUNITY"]`})
	require.NoError(t, err)

	_, err = m.MapDeal(context.Background(), deal(map[string]any{
		"OPPORTUNITY": "сто тысяч",
	}))
	assert.Error(t, err)
}

func TestNewCELMapper_RejectsBrokenExpression(t *testing.T) {
	_, err := NewCELMapper(MapperConfig{ObjectCipherExpr: `fields[`})
	assert.Error(t, err)
}

func TestCELMapper_MissingFieldEvaluatesToError(t *testing.T) {
	m, err := NewCELMapper(MapperConfig{ObjectCipherExpr: `fields["UF_MISSING"]`})
	require.NoError(t, err)

	_, err = m.MapDeal(context.Background(), deal(map[string]any{}))
	assert.Error(t, err)
}
