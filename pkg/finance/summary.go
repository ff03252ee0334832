package finance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

// Summary totals a period. ByCategory is sorted by amount, largest first,
// then by name.
type Summary struct {
	From       time.Time
	To         time.Time
	Income     decimal.Decimal
	Expenses   decimal.Decimal
	Net        decimal.Decimal
	ByCategory []CategoryAmount
}

func inPeriod(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// Summarize totals the incomes and expenses dated in [from, to).
func Summarize(incomes []Income, expenses []Expense, from, to time.Time) Summary {
	s := Summary{
		From:     from,
		To:       to,
		Income:   decimal.Zero,
		Expenses: decimal.Zero,
	}
	for _, i := range incomes {
		if inPeriod(i.Date, from, to) {
			s.Income = s.Income.Add(i.Amount.Decimal)
		}
	}
	byCat := map[string]decimal.Decimal{}
	for _, e := range expenses {
		if !inPeriod(e.Date, from, to) {
			continue
		}
		s.Expenses = s.Expenses.Add(e.Amount.Decimal)
		cat := NormalizeCategory(e.Category)
		byCat[cat] = byCat[cat].Add(e.Amount.Decimal)
	}
	s.Net = s.Income.Sub(s.Expenses)

	s.ByCategory = make([]CategoryAmount, 0, len(byCat))
	for cat, amount := range byCat {
		s.ByCategory = append(s.ByCategory, CategoryAmount{Category: cat, Amount: amount})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	return s
}

// Month summarizes the calendar month containing t, in t's location.
func Month(incomes []Income, expenses []Expense, t time.Time) Summary {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Summarize(incomes, expenses, from, from.AddDate(0, 1, 0))
}

// DueBills lists the bills falling due in [from, to], one entry per
// occurrence, ordered by date.
func DueBills(bills []RecurringBill, from, to time.Time) []DueBill {
	var out []DueBill
	for _, b := range bills {
		for _, due := range b.Schedule().Between(from, to) {
			out = append(out, DueBill{Bill: b, Due: due})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

type DueBill struct {
	Bill RecurringBill
	Due  time.Time
}
