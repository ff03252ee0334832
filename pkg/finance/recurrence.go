package finance

import (
	"strings"
	"time"
)

type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// ParseFrequency accepts any casing and surrounding space.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, Monthly, Yearly:
		return nil
	case "":
		return invalid("frequency is required")
	default:
		return invalid("unsupported frequency %q", string(f))
	}
}

// Schedule is a repeating due date. Monthly and yearly occurrences keep the
// start's day of month, clamped to the last day of shorter months.
type Schedule struct {
	Start     time.Time
	Frequency Frequency
	End       *time.Time
}

// Occurrence returns the n-th due date, counting the start as 0.
func (s Schedule) Occurrence(n int) time.Time {
	switch s.Frequency {
	case Weekly:
		return s.Start.AddDate(0, 0, 7*n)
	case Yearly:
		return addMonthsClamped(s.Start, 12*n)
	default:
		return addMonthsClamped(s.Start, n)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func (s Schedule) ended(t time.Time) bool {
	return s.End != nil && t.After(*s.End)
}

// estimate returns an occurrence index at or before the first one on or after t.
func (s Schedule) estimate(t time.Time) int {
	if !t.After(s.Start) {
		return 0
	}
	var n int
	switch s.Frequency {
	case Weekly:
		n = int(t.Sub(s.Start).Hours()/24/7) - 1
	case Yearly:
		n = t.Year() - s.Start.Year() - 1
	default:
		n = (t.Year()-s.Start.Year())*12 + int(t.Month()-s.Start.Month()) - 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// NextDue returns the first due date on or after t. ok is false once the
// schedule has ended.
func (s Schedule) NextDue(t time.Time) (due time.Time, ok bool) {
	if s.Frequency.Validate() != nil {
		return time.Time{}, false
	}
	for n := s.estimate(t); ; n++ {
		due = s.Occurrence(n)
		if s.ended(due) {
			return time.Time{}, false
		}
		if !due.Before(t) {
			return due, true
		}
	}
}

// Between lists the due dates in [from, to].
func (s Schedule) Between(from, to time.Time) []time.Time {
	var out []time.Time
	if s.Frequency.Validate() != nil || to.Before(from) {
		return out
	}
	for n := s.estimate(from); ; n++ {
		due := s.Occurrence(n)
		if due.After(to) || s.ended(due) {
			return out
		}
		if !due.Before(from) {
			out = append(out, due)
		}
	}
}
