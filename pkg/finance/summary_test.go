package finance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/pkg/finance"
)

func TestMonthSummary(t *testing.T) {
	incomes := []finance.Income{
		{Source: "salary", Amount: money("1000"), Date: day(2026, time.January, 25)},
		{Source: "bonus", Amount: money("300"), Date: day(2026, time.February, 1)},
	}
	expenses := []finance.Expense{
		{Description: "groceries", Amount: money("50"), Category: "food", Date: day(2026, time.January, 3)},
		{Description: "rent", Amount: money("500"), Category: "housing", Date: day(2026, time.January, 1)},
		{Description: "dinner", Amount: money("25"), Category: "Food", Date: day(2026, time.January, 31)},
		{Description: "gym", Amount: money("40"), Category: "health", Date: day(2026, time.February, 2)},
	}

	s := finance.Month(incomes, expenses, day(2026, time.January, 15))
	assert.Equal(t, "1000", s.Income.String())
	assert.Equal(t, "575", s.Expenses.String())
	assert.Equal(t, "425", s.Net.String())
	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, "housing", s.ByCategory[0].Category)
	assert.Equal(t, "food", s.ByCategory[1].Category)
	assert.Equal(t, "75", s.ByCategory[1].Amount.String())
}

func TestEmptySummary(t *testing.T) {
	s := finance.Summarize(nil, nil, day(2026, time.January, 1), day(2026, time.February, 1))
	assert.True(t, s.Net.IsZero())
	assert.Empty(t, s.ByCategory)
}

func TestDueBills(t *testing.T) {
	bills := []finance.RecurringBill{
		{Name: "rent", Amount: money("500"), Frequency: finance.Monthly, StartDate: day(2026, time.January, 1)},
		{Name: "cleaner", Amount: money("40"), Frequency: finance.Weekly, StartDate: day(2026, time.January, 6)},
	}
	due := finance.DueBills(bills, day(2026, time.January, 1), day(2026, time.January, 14))
	require.Len(t, due, 3)
	assert.Equal(t, "rent", due[0].Bill.Name)
	assert.Equal(t, "cleaner", due[1].Bill.Name)
	assert.Equal(t, day(2026, time.January, 13), due[2].Due)
}
