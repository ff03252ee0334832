package finance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/pkg/finance"
)

func TestDebtInstallments(t *testing.T) {
	d := finance.Debt{
		Name:              "laptop",
		Principal:         money("1200"),
		InstallmentAmount: money("100"),
		TotalInstallments: 12,
		PaidInstallments:  3,
	}
	assert.Equal(t, 9, d.RemainingInstallments())
	assert.Equal(t, "900", d.RemainingBalance().String())
	assert.False(t, d.PaidOff())

	_, err := d.PayInstallments(10)
	assert.ErrorIs(t, err, finance.ErrInvalid)
	_, err = d.PayInstallments(0)
	assert.ErrorIs(t, err, finance.ErrInvalid)

	d, err = d.PayInstallments(9)
	require.NoError(t, err)
	assert.Equal(t, 12, d.PaidInstallments)
	assert.True(t, d.RemainingBalance().IsZero())
	assert.True(t, d.PaidOff())
}

func TestPlanPayoffSnowball(t *testing.T) {
	debts := []finance.PayoffDebt{
		{ID: "b", Balance: dec("300"), MinPayment: dec("10")},
		{ID: "a", Balance: dec("100"), MinPayment: dec("10")},
	}
	plan, err := finance.PlanPayoff(debts, dec("110"), finance.Snowball, 24)
	require.NoError(t, err)

	assert.True(t, plan.Complete)
	assert.Equal(t, 4, plan.PayoffMonths)
	require.Len(t, plan.Months, 4)
	assert.True(t, plan.TotalInterest.IsZero())

	first := plan.Months[0]
	assert.Equal(t, "100", first.Payments["a"].String())
	assert.Equal(t, "10", first.Payments["b"].String())
	assert.True(t, first.Balances["a"].IsZero())
	assert.Equal(t, "290", first.Balances["b"].String())

	last := plan.Months[3]
	assert.Equal(t, "70", last.Paid.String())
	assert.True(t, last.Balances["b"].IsZero())
}

func TestPlanPayoffAvalanche(t *testing.T) {
	debts := []finance.PayoffDebt{
		{ID: "a", Balance: dec("100"), APR: dec("10"), MinPayment: dec("10")},
		{ID: "b", Balance: dec("300"), APR: dec("20"), MinPayment: dec("10")},
	}
	plan, err := finance.PlanPayoff(debts, dec("110"), finance.Avalanche, 24)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Months)

	first := plan.Months[0]
	assert.Equal(t, "5.83", first.Interest.String())
	assert.Equal(t, "10", first.Payments["a"].String())
	assert.Equal(t, "100", first.Payments["b"].String())
	assert.Equal(t, "205", first.Balances["b"].String())
	assert.True(t, plan.Complete)
}

func TestPlanPayoffHorizon(t *testing.T) {
	debts := []finance.PayoffDebt{{ID: "a", Balance: dec("1000"), MinPayment: dec("10")}}
	plan, err := finance.PlanPayoff(debts, dec("1"), finance.Snowball, 3)
	require.NoError(t, err)
	assert.False(t, plan.Complete)
	assert.Equal(t, 3, plan.PayoffMonths)
	assert.Len(t, plan.Months, 3)
	assert.Equal(t, "997", plan.Months[2].Balances["a"].String())
}

func TestPlanPayoffRejectsBadInput(t *testing.T) {
	_, err := finance.PlanPayoff(nil, dec("10"), "random", 12)
	assert.ErrorIs(t, err, finance.ErrInvalid)
	_, err = finance.PlanPayoff(nil, decimal.Zero, finance.Snowball, 12)
	assert.ErrorIs(t, err, finance.ErrInvalid)
	_, err = finance.PlanPayoff(nil, dec("10"), finance.Snowball, 0)
	assert.ErrorIs(t, err, finance.ErrInvalid)
}

func TestPlanPayoffFromDebt(t *testing.T) {
	d := finance.Debt{Name: "car", Principal: money("500"), InstallmentAmount: money("100"), TotalInstallments: 5, PaidInstallments: 2, MinPayment: money("100")}
	plan, err := finance.PlanPayoff([]finance.PayoffDebt{d.Payoff("car")}, dec("100"), finance.Avalanche, 12)
	require.NoError(t, err)
	assert.True(t, plan.Complete)
	assert.Equal(t, 3, plan.PayoffMonths)
}
