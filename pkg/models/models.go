package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentKind records what the most recent payment event on a loan was.
// It is not a running state: it influences penalty eligibility and the
// accrual clock, nothing else.
type PaymentKind string

const (
	PaymentNone     PaymentKind = "none"
	PaymentInterest PaymentKind = "interest"
	PaymentFull     PaymentKind = "full"
)

// ParsePaymentKind maps a raw string onto the closed set of payment
// kinds. Anything outside the set is rejected.
func ParsePaymentKind(s string) (PaymentKind, bool) {
	switch k := PaymentKind(s); k {
	case PaymentNone, PaymentInterest, PaymentFull:
		return k, true
	}
	return "", false
}

// ActiveLoan is a loan still carrying an outstanding balance.
type ActiveLoan struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone,omitempty"`
	Address         string          `json:"address,omitempty"`
	Principal       decimal.Decimal `json:"principal"` // Fixed at creation; changes only through an explicit edit
	Balance         decimal.Decimal `json:"balance"`   // Mutated only by accrual and payment events
	LoanDate        time.Time       `json:"loan_date"`
	LastPaymentDate time.Time       `json:"last_payment_date"`
	LastPaymentKind PaymentKind     `json:"last_payment_kind"`
	LastAccrualDate time.Time       `json:"last_accrual_date"` // Date through which interest and penalties have been charged
}

// SettledLoan is the immutable snapshot written once when an active loan
// is fully paid off. The active record is deleted in the same operation.
type SettledLoan struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	Principal      decimal.Decimal `json:"principal"`
	LoanDate       time.Time       `json:"loan_date"`
	SettlementDate time.Time       `json:"settlement_date"`
}
