package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2_HalfToEven(t *testing.T) {
	assert.Equal(t, "0.12", Round2(MustMoney("0.125")).String())
	assert.Equal(t, "0.14", Round2(MustMoney("0.135")).String())
	assert.Equal(t, "2.67", Round2(MustMoney("2.665")).String())
}

func TestSplitGross(t *testing.T) {
	net, vat := SplitGross(MustMoney("120000.00"), MustMoney("20"))
	assert.Equal(t, "100000.00", MoneyString(net))
	assert.Equal(t, "20000.00", MoneyString(vat))

	// Zero rate: everything is net
	net, vat = SplitGross(MustMoney("5000.00"), Zero())
	assert.Equal(t, "5000.00", MoneyString(net))
	assert.True(t, vat.IsZero())

	// Parts always reassemble the gross exactly
	net, vat = SplitGross(MustMoney("100.00"), MustMoney("20"))
	assert.Equal(t, "100.00", MoneyString(net.Add(vat)))
}

func TestPercent_BankersRounding(t *testing.T) {
	// 1/800*100 = 0.125: half to even gives 0.12, not 0.13
	assert.Equal(t, "0.12", Percent(MustMoney("1"), MustMoney("800")).String())
	assert.Equal(t, "0.62", Percent(MustMoney("1"), MustMoney("160")).String())
	assert.Equal(t, "6.25", Percent(MustMoney("1"), MustMoney("16")).String())
	assert.True(t, Percent(MustMoney("50"), Zero()).IsZero())
}
