package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

const ChallengeWeeks = 52

// Challenge is the 52-week savings challenge: week n asks for Base × n, or
// Base × (53 - n) when Reverse is set.
type Challenge struct {
	Base      Money     `json:"base"`
	Reverse   bool      `json:"reverse"`
	StartDate time.Time `json:"startDate"`
}

func (c *Challenge) Validate() error {
	return requirePositive("base", c.Base)
}

// ExpectedDeposit is the amount due in week (1-based). Weeks outside the
// challenge are zero.
func (c Challenge) ExpectedDeposit(week int) decimal.Decimal {
	if week < 1 || week > ChallengeWeeks {
		return decimal.Zero
	}
	multiple := week
	if c.Reverse {
		multiple = ChallengeWeeks + 1 - week
	}
	return c.Base.Mul(decimal.NewFromInt(int64(multiple)))
}

// ExpectedTotal is the cumulative amount due through week.
func (c Challenge) ExpectedTotal(week int) decimal.Decimal {
	if week > ChallengeWeeks {
		week = ChallengeWeeks
	}
	total := decimal.Zero
	for w := 1; w <= week; w++ {
		total = total.Add(c.ExpectedDeposit(w))
	}
	return total
}

// Goal is the total saved by completing every week.
func (c Challenge) Goal() decimal.Decimal {
	return c.ExpectedTotal(ChallengeWeeks)
}

// WeekAt is the challenge week containing t: 0 before the start, capped at
// ChallengeWeeks.
func (c Challenge) WeekAt(t time.Time) int {
	if t.Before(c.StartDate) {
		return 0
	}
	w := int(t.Sub(c.StartDate).Hours()/24/7) + 1
	if w > ChallengeWeeks {
		return ChallengeWeeks
	}
	return w
}

type Ledger struct {
	Saved    decimal.Decimal
	Expected decimal.Decimal
	Goal     decimal.Decimal
	// Behind is how much is missing against Expected, never negative.
	Behind decimal.Decimal
	// Completed counts weeks whose deposits reach the expected amount.
	Completed int
	// Missed lists weeks up to the current one that are not completed.
	Missed []int
}

// Ledger summarizes deposits as of week.
func (c Challenge) Ledger(deposits []ChallengeDeposit, week int) Ledger {
	if week > ChallengeWeeks {
		week = ChallengeWeeks
	}
	perWeek := make(map[int]decimal.Decimal, len(deposits))
	saved := decimal.Zero
	for _, d := range deposits {
		saved = saved.Add(d.Amount.Decimal)
		perWeek[d.Week] = perWeek[d.Week].Add(d.Amount.Decimal)
	}

	l := Ledger{
		Saved:    saved,
		Expected: c.ExpectedTotal(week),
		Goal:     c.Goal(),
		Behind:   decimal.Zero,
	}
	if gap := l.Expected.Sub(saved); gap.IsPositive() {
		l.Behind = gap
	}
	for w := 1; w <= ChallengeWeeks; w++ {
		if paid, ok := perWeek[w]; ok && paid.GreaterThanOrEqual(c.ExpectedDeposit(w)) {
			l.Completed++
			continue
		}
		if w <= week {
			l.Missed = append(l.Missed, w)
		}
	}
	return l
}
