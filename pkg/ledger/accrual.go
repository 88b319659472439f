package ledger

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/debtbook/pkg/models"
	"github.com/shopspring/decimal"
)

// accrualCycleDays is the length of one compounding cycle.
const accrualCycleDays = 30

var (
	// monthlyMultiplier is the 40% interest applied once per completed
	// 30-day cycle without a payment.
	monthlyMultiplier = decimal.RequireFromString("1.4")

	// DefaultDailyPenalty is the flat charge added per day a loan sits
	// with no payment recorded. The books historically carried both 10
	// and 20; 10 is the rate in force.
	DefaultDailyPenalty = decimal.NewFromInt(10)

	// writeTolerance suppresses updates that would move the stored
	// balance by no more than representation noise.
	writeTolerance = decimal.RequireFromString("0.001")
)

// dateOnly strips the time-of-day, pinning the calendar date to UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of whole calendar days from a to b.
// Negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// Accrue computes the interest- and penalty-adjusted balance of a loan
// as of today, without modifying the loan. It reports whether the result
// differs from the stored balance by more than the write tolerance.
//
// Charges are anchored on LastPaymentDate and tracked through
// LastAccrualDate, so a re-run on the same day is a no-op and a
// multi-month gap compounds once per completed 30-day cycle. Penalty for
// the uncharged days is added before any multiplier, so a loan of 1000
// reaching day 30 unpaid owes (1000 + 10*30) * 1.4 = 1820.00.
func (l *Ledger) Accrue(loan *models.ActiveLoan, today time.Time) (decimal.Decimal, bool) {
	day := dateOnly(today)
	anchor := dateOnly(loan.LastPaymentDate)
	charged := dateOnly(loan.LastAccrualDate)
	if charged.Before(anchor) {
		charged = anchor
	}
	// Nothing new to charge; a clock running behind the last payment is
	// treated as zero elapsed days.
	if !day.After(charged) || !day.After(anchor) {
		return loan.Balance, false
	}

	balance := loan.Balance

	// Daily penalty, only while no payment has ever been recorded in the
	// current window. Only the days since LastAccrualDate are charged,
	// so the cumulative lump equals penalty * daysSinceLastPayment.
	if loan.LastPaymentKind == models.PaymentNone {
		uncharged := daysBetween(charged, day)
		balance = balance.Add(l.dailyPenalty.Mul(decimal.NewFromInt(int64(uncharged))))
	}

	// One 40% step per completed 30-day cycle not yet applied.
	cyclesDue := daysBetween(anchor, day)/accrualCycleDays - daysBetween(anchor, charged)/accrualCycleDays
	for i := 0; i < cyclesDue; i++ {
		balance = balance.Mul(monthlyMultiplier)
	}

	balance = balance.Round(2)
	if balance.Sub(loan.Balance).Abs().LessThanOrEqual(writeTolerance) {
		return loan.Balance, false
	}
	return balance, true
}

// RefreshAll runs accrual for every active loan and persists the changed
// balances. Storage errors are logged per record and collected into a
// PartialAccrualError so the rest of the batch still refreshes. The
// returned bool reports whether any record changed.
func (l *Ledger) RefreshAll(today time.Time) (bool, error) {
	loans, err := l.storage.ListActive()
	if err != nil {
		return false, fmt.Errorf("failed to list active loans: %w", err)
	}

	anyChanged := false
	failed := make(map[uuid.UUID]error)
	for _, loan := range loans {
		newBalance, changed := l.Accrue(loan, today)
		if !changed {
			continue
		}
		loan.Balance = newBalance
		loan.LastAccrualDate = dateOnly(today)
		if err := l.storage.UpdateActive(loan); err != nil {
			log.Printf("Error persisting accrual for loan %s: %v", loan.ID, err)
			failed[loan.ID] = err
			continue
		}
		anyChanged = true
	}

	if len(failed) > 0 {
		return anyChanged, &PartialAccrualError{Failed: failed}
	}
	return anyChanged, nil
}
