package ledger

import (
	"sort"
	"time"

	"github.com/mcclellann/debtbook/pkg/models"
	"github.com/shopspring/decimal"
)

// dueTodayToleranceDays is the band around the 30-day cycle inside which
// a day-of-month match counts as a payment day. Day-of-month alignment
// alone would also catch a loan's own anniversary in its first month.
const dueTodayToleranceDays = 28

// monthlyRate is the interest share of one cycle, 40% of principal.
var monthlyRate = decimal.RequireFromString("0.4")

// Totals aggregates the active book.
type Totals struct {
	TotalPrincipal   decimal.Decimal `json:"total_principal"`    // principal outstanding
	TotalProjected   decimal.Decimal `json:"total_projected"`    // principal plus one 40% cycle
	DueTodayInterest decimal.Decimal `json:"due_today_interest"` // interest collectible from the due-today bucket
}

// Buckets is the classification of the active book for display and
// prioritization. Every loan appears in exactly one bucket; each bucket
// is sorted by borrower name, ties kept in input order.
type Buckets struct {
	Overdue  []*models.ActiveLoan `json:"overdue"`
	DueToday []*models.ActiveLoan `json:"due_today"`
	Other    []*models.ActiveLoan `json:"other"`
	Totals   Totals               `json:"totals"`
}

// Classify partitions the active loans into overdue, due-today and other
// buckets as of today, first match wins, and computes the aggregate
// totals. It is pure: inputs are not modified.
func Classify(loans []*models.ActiveLoan, today time.Time) Buckets {
	day := dateOnly(today)
	b := Buckets{
		Overdue:  []*models.ActiveLoan{},
		DueToday: []*models.ActiveLoan{},
		Other:    []*models.ActiveLoan{},
		Totals: Totals{
			TotalPrincipal:   decimal.Zero,
			TotalProjected:   decimal.Zero,
			DueTodayInterest: decimal.Zero,
		},
	}

	for _, loan := range loans {
		last := dateOnly(loan.LastPaymentDate)
		days := daysBetween(last, day)
		if days < 0 {
			days = 0
		}

		b.Totals.TotalPrincipal = b.Totals.TotalPrincipal.Add(loan.Principal)
		b.Totals.TotalProjected = b.Totals.TotalProjected.Add(loan.Principal.Mul(monthlyMultiplier))

		switch {
		case loan.LastPaymentKind == models.PaymentNone && day.After(last) && days > 0:
			b.Overdue = append(b.Overdue, loan)
		case day.Day() == last.Day() && !day.Equal(last) && days >= dueTodayToleranceDays:
			b.DueToday = append(b.DueToday, loan)
			b.Totals.DueTodayInterest = b.Totals.DueTodayInterest.Add(loan.Principal.Mul(monthlyRate))
		default:
			b.Other = append(b.Other, loan)
		}
	}

	byName := func(loans []*models.ActiveLoan) func(i, j int) bool {
		return func(i, j int) bool { return loans[i].Name < loans[j].Name }
	}
	sort.SliceStable(b.Overdue, byName(b.Overdue))
	sort.SliceStable(b.DueToday, byName(b.DueToday))
	sort.SliceStable(b.Other, byName(b.Other))

	return b
}
