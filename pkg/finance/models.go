// Package finance holds the document types a user keeps under
// users/{uid}/... and the arithmetic the app runs over them: the 52-week
// savings challenge, debt installments and payoff plans, recurring due dates
// and period summaries.
package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Collection names under users/{uid}.
const (
	Expenses          = "expenses"
	Incomes           = "income"
	Debts             = "debts"
	SavingsGoals      = "savingsGoals"
	RecurringBills    = "recurringBills"
	Subscriptions     = "subscriptions"
	CreditCards       = "creditCards"
	ChallengeDeposits = "challengeDeposits"
)

var ErrInvalid = errors.New("invalid document")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func requireName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

func requirePositive(field string, v Money) error {
	if !v.IsPositive() {
		return invalid("%s must be greater than zero", field)
	}
	return nil
}

func requireNonNegative(field string, v Money) error {
	if v.IsNegative() {
		return invalid("%s must not be negative", field)
	}
	return nil
}

// Data converts a document value into the map form the store writes.
func Data(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type Expense struct {
	Description string    `json:"description"`
	Amount      Money     `json:"amount"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Notes       string    `json:"notes,omitempty"`
}

func (e *Expense) Validate() error {
	if err := requireName("description", e.Description); err != nil {
		return err
	}
	if err := requirePositive("amount", e.Amount); err != nil {
		return err
	}
	e.Category = NormalizeCategory(e.Category)
	return nil
}

type Income struct {
	Source string    `json:"source"`
	Amount Money     `json:"amount"`
	Date   time.Time `json:"date"`
	Notes  string    `json:"notes,omitempty"`
}

func (i *Income) Validate() error {
	if err := requireName("source", i.Source); err != nil {
		return err
	}
	return requirePositive("amount", i.Amount)
}

// Debt is a loan repaid in fixed installments. APR is a yearly percentage.
type Debt struct {
	Name              string    `json:"name"`
	Lender            string    `json:"lender,omitempty"`
	Principal         Money     `json:"principal"`
	InstallmentAmount Money     `json:"installmentAmount"`
	TotalInstallments int       `json:"totalInstallments"`
	PaidInstallments  int       `json:"paidInstallments"`
	APR               Money     `json:"apr"`
	MinPayment        Money     `json:"minPayment"`
	StartDate         time.Time `json:"startDate"`
}

func (d *Debt) Validate() error {
	if err := requireName("name", d.Name); err != nil {
		return err
	}
	if err := requirePositive("principal", d.Principal); err != nil {
		return err
	}
	if err := requireNonNegative("installmentAmount", d.InstallmentAmount); err != nil {
		return err
	}
	if err := requireNonNegative("apr", d.APR); err != nil {
		return err
	}
	if err := requireNonNegative("minPayment", d.MinPayment); err != nil {
		return err
	}
	if d.TotalInstallments < 0 || d.PaidInstallments < 0 {
		return invalid("installment counts must not be negative")
	}
	if d.PaidInstallments > d.TotalInstallments {
		return invalid("paid installments %d exceed total %d", d.PaidInstallments, d.TotalInstallments)
	}
	return nil
}

type SavingsGoal struct {
	Name     string     `json:"name"`
	Target   Money      `json:"target"`
	Saved    Money      `json:"saved"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

func (g *SavingsGoal) Validate() error {
	if err := requireName("name", g.Name); err != nil {
		return err
	}
	if err := requirePositive("target", g.Target); err != nil {
		return err
	}
	return requireNonNegative("saved", g.Saved)
}

// Progress is the saved share of the target, between 0 and 1.
func (g SavingsGoal) Progress() decimal.Decimal {
	if !g.Target.IsPositive() {
		return decimal.Zero
	}
	p := g.Saved.Div(g.Target.Decimal)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}

func (g SavingsGoal) Remaining() decimal.Decimal {
	r := g.Target.Sub(g.Saved.Decimal)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

type RecurringBill struct {
	Name      string     `json:"name"`
	Amount    Money      `json:"amount"`
	Category  string     `json:"category"`
	Frequency Frequency  `json:"frequency"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Paid      bool       `json:"paid,omitempty"`
}

func (b *RecurringBill) Validate() error {
	if err := requireName("name", b.Name); err != nil {
		return err
	}
	if err := requirePositive("amount", b.Amount); err != nil {
		return err
	}
	if err := b.Frequency.Validate(); err != nil {
		return err
	}
	b.Category = NormalizeCategory(b.Category)
	return nil
}

func (b RecurringBill) Schedule() Schedule {
	return Schedule{Start: b.StartDate, Frequency: b.Frequency, End: b.EndDate}
}

type Subscription struct {
	Name      string    `json:"name"`
	Amount    Money     `json:"amount"`
	Frequency Frequency `json:"frequency"`
	StartDate time.Time `json:"startDate"`
	Active    bool      `json:"active"`
}

func (s *Subscription) Validate() error {
	if err := requireName("name", s.Name); err != nil {
		return err
	}
	if err := requirePositive("amount", s.Amount); err != nil {
		return err
	}
	return s.Frequency.Validate()
}

func (s Subscription) Schedule() Schedule {
	return Schedule{Start: s.StartDate, Frequency: s.Frequency}
}

// MonthlyCost normalizes the subscription price to one month.
func (s Subscription) MonthlyCost() decimal.Decimal {
	switch s.Frequency {
	case Weekly:
		return s.Amount.Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12)).Round(2)
	case Yearly:
		return s.Amount.Div(decimal.NewFromInt(12)).Round(2)
	default:
		return s.Amount.Decimal
	}
}

type CreditCard struct {
	Name         string `json:"name"`
	Limit        Money  `json:"limit"`
	Balance      Money  `json:"balance"`
	StatementDay int    `json:"statementDay"`
	DueDay       int    `json:"dueDay"`
}

func (c *CreditCard) Validate() error {
	if err := requireName("name", c.Name); err != nil {
		return err
	}
	if err := requirePositive("limit", c.Limit); err != nil {
		return err
	}
	if err := requireNonNegative("balance", c.Balance); err != nil {
		return err
	}
	for field, day := range map[string]int{"statementDay": c.StatementDay, "dueDay": c.DueDay} {
		if day < 1 || day > 31 {
			return invalid("%s must be between 1 and 31", field)
		}
	}
	return nil
}

func (c CreditCard) Available() decimal.Decimal {
	return c.Limit.Sub(c.Balance.Decimal)
}

// Utilization is the used share of the limit.
func (c CreditCard) Utilization() decimal.Decimal {
	if !c.Limit.IsPositive() {
		return decimal.Zero
	}
	return c.Balance.Div(c.Limit.Decimal)
}

type ChallengeDeposit struct {
	Week   int       `json:"week"`
	Amount Money     `json:"amount"`
	Date   time.Time `json:"date"`
}

func (d *ChallengeDeposit) Validate() error {
	if d.Week < 1 || d.Week > ChallengeWeeks {
		return invalid("week must be between 1 and %d", ChallengeWeeks)
	}
	return requirePositive("amount", d.Amount)
}

// NormalizeCategory lowercases and trims a category, defaulting to "other".
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return "other"
	}
	return c
}
