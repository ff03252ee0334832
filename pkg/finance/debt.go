package finance

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// RemainingInstallments is never negative.
func (d Debt) RemainingInstallments() int {
	if r := d.TotalInstallments - d.PaidInstallments; r > 0 {
		return r
	}
	return 0
}

// RemainingBalance is the principal less the installments paid, never
// negative.
func (d Debt) RemainingBalance() decimal.Decimal {
	paid := d.InstallmentAmount.Mul(decimal.NewFromInt(int64(d.PaidInstallments)))
	r := d.Principal.Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (d Debt) PaidOff() bool {
	return d.RemainingInstallments() == 0 || !d.RemainingBalance().IsPositive()
}

// PayInstallments records n more paid installments.
func (d Debt) PayInstallments(n int) (Debt, error) {
	if n < 1 {
		return d, invalid("installments to pay must be positive")
	}
	if n > d.RemainingInstallments() {
		return d, invalid("paying %d installments but only %d remain", n, d.RemainingInstallments())
	}
	d.PaidInstallments += n
	return d, nil
}

type Strategy string

const (
	// Snowball pays the smallest balance first.
	Snowball Strategy = "snowball"
	// Avalanche pays the highest APR first.
	Avalanche Strategy = "avalanche"
)

func (s Strategy) Validate() error {
	switch s {
	case Snowball, Avalanche:
		return nil
	default:
		return invalid("unknown payoff strategy %q", string(s))
	}
}

// PayoffDebt is one debt as seen by the payoff planner.
type PayoffDebt struct {
	ID         string
	Balance    decimal.Decimal
	APR        decimal.Decimal
	MinPayment decimal.Decimal
}

// Payoff describes d for the planner under id.
func (d Debt) Payoff(id string) PayoffDebt {
	return PayoffDebt{ID: id, Balance: d.RemainingBalance(), APR: d.APR.Decimal, MinPayment: d.MinPayment.Decimal}
}

type PlanMonth struct {
	Month    int
	Interest decimal.Decimal
	Paid     decimal.Decimal
	Payments map[string]decimal.Decimal
	Balances map[string]decimal.Decimal
}

type Plan struct {
	Months        []PlanMonth
	TotalInterest decimal.Decimal
	// PayoffMonths is the number of months until every balance is zero, or
	// the horizon when Complete is false.
	PayoffMonths int
	Complete     bool
}

// PlanPayoff simulates paying debts with a fixed monthly budget: interest
// accrues, minimums are paid, then what is left of the budget goes to the
// debt chosen by strategy until the budget or the debts run out.
func PlanPayoff(debts []PayoffDebt, budget decimal.Decimal, strategy Strategy, maxMonths int) (Plan, error) {
	if err := strategy.Validate(); err != nil {
		return Plan{}, err
	}
	if !budget.IsPositive() {
		return Plan{}, invalid("monthly budget must be greater than zero")
	}
	if maxMonths < 1 {
		return Plan{}, invalid("horizon must be at least one month")
	}

	active := make([]PayoffDebt, 0, len(debts))
	bal := make(map[string]decimal.Decimal, len(debts))
	for _, d := range debts {
		if d.Balance.IsPositive() {
			active = append(active, d)
			bal[d.ID] = d.Balance
		}
	}

	next := func() (PayoffDebt, bool) {
		open := make([]PayoffDebt, 0, len(active))
		for _, d := range active {
			if bal[d.ID].IsPositive() {
				open = append(open, d)
			}
		}
		if len(open) == 0 {
			return PayoffDebt{}, false
		}
		sort.SliceStable(open, func(i, j int) bool {
			bi, bj := bal[open[i].ID], bal[open[j].ID]
			if strategy == Snowball {
				if !bi.Equal(bj) {
					return bi.LessThan(bj)
				}
				return open[i].APR.GreaterThan(open[j].APR)
			}
			if !open[i].APR.Equal(open[j].APR) {
				return open[i].APR.GreaterThan(open[j].APR)
			}
			return bi.LessThan(bj)
		})
		return open[0], true
	}

	plan := Plan{TotalInterest: decimal.Zero}
	for m := 1; m <= maxMonths; m++ {
		if _, open := next(); !open {
			plan.PayoffMonths = m - 1
			plan.Complete = true
			return plan, nil
		}

		month := PlanMonth{
			Month:    m,
			Interest: decimal.Zero,
			Paid:     decimal.Zero,
			Payments: map[string]decimal.Decimal{},
			Balances: map[string]decimal.Decimal{},
		}
		for _, d := range active {
			b := bal[d.ID]
			if !b.IsPositive() {
				continue
			}
			interest := b.Mul(d.APR).Div(hundred).Div(twelve).Round(2)
			bal[d.ID] = b.Add(interest)
			month.Interest = month.Interest.Add(interest)
		}

		remaining := budget
		pay := func(id string, amount decimal.Decimal) {
			bal[id] = bal[id].Sub(amount)
			month.Payments[id] = month.Payments[id].Add(amount)
			month.Paid = month.Paid.Add(amount)
			remaining = remaining.Sub(amount)
		}
		for _, d := range active {
			if !bal[d.ID].IsPositive() {
				continue
			}
			amount := decimal.Min(d.MinPayment, remaining, bal[d.ID])
			if amount.IsPositive() {
				pay(d.ID, amount)
			}
		}
		for remaining.IsPositive() {
			target, open := next()
			if !open {
				break
			}
			pay(target.ID, decimal.Min(remaining, bal[target.ID]))
		}

		for _, d := range active {
			month.Balances[d.ID] = bal[d.ID]
		}
		plan.TotalInterest = plan.TotalInterest.Add(month.Interest)
		plan.Months = append(plan.Months, month)
	}

	if _, open := next(); !open {
		plan.PayoffMonths = maxMonths
		plan.Complete = true
		return plan, nil
	}
	plan.PayoffMonths = maxMonths
	return plan, nil
}
