package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/debtbook/pkg/models"
	"github.com/mcclellann/debtbook/pkg/store"
	"github.com/shopspring/decimal"
)

// Ledger handles the business logic for the loan book: registration,
// accrual, payment lifecycle and classification. Every entry point takes
// an explicit date; the ledger never reads the wall clock.
type Ledger struct {
	storage      store.Storage
	dailyPenalty decimal.Decimal
}

// NewLedger creates a new Ledger with a given Storage implementation and
// the default daily penalty rate.
func NewLedger(s store.Storage) *Ledger {
	return NewLedgerWithPenalty(s, DefaultDailyPenalty)
}

// NewLedgerWithPenalty creates a Ledger charging the given flat amount
// per unpaid day.
func NewLedgerWithPenalty(s store.Storage, dailyPenalty decimal.Decimal) *Ledger {
	return &Ledger{storage: s, dailyPenalty: dailyPenalty}
}

// RegisterLoan validates and stores a new active loan. The balance
// starts at the principal, the payment clock at the loan date.
func (l *Ledger) RegisterLoan(name, phone, address string, principal decimal.Decimal, loanDate time.Time) (*models.ActiveLoan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	}
	if loanDate.IsZero() {
		return nil, fmt.Errorf("%w: loan date is required", ErrInvalidInput)
	}

	day := dateOnly(loanDate)
	loan := &models.ActiveLoan{
		ID:              uuid.New(),
		Name:            name,
		Phone:           strings.TrimSpace(phone),
		Address:         strings.TrimSpace(address),
		Principal:       principal,
		Balance:         principal,
		LoanDate:        day,
		LastPaymentDate: day,
		LastPaymentKind: models.PaymentNone,
		LastAccrualDate: day,
	}

	if err := l.storage.InsertActive(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// PaymentResult reports the outcome of a payment event. After a full
// settlement Active is nil and Settled carries the historical record;
// otherwise Active holds the updated loan.
type PaymentResult struct {
	Kind    models.PaymentKind  `json:"kind"`
	Active  *models.ActiveLoan  `json:"active,omitempty"`
	Settled *models.SettledLoan `json:"settled,omitempty"`
}

// ApplyPayment applies a payment event to an active loan.
//
//   - full: the loan is settled and atomically relocated to the settled
//     book; no active record remains.
//   - interest: accrued interest is cleared, the balance resets to the
//     full principal.
//   - none: the debt is untouched but the accrual clock restarts; the
//     borrower stays liable.
func (l *Ledger) ApplyPayment(id uuid.UUID, kind models.PaymentKind, date time.Time) (*PaymentResult, error) {
	switch kind {
	case models.PaymentFull, models.PaymentInterest, models.PaymentNone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentKind, kind)
	}

	loan, err := l.storage.GetActive(id)
	if err != nil {
		return nil, err
	}

	day := dateOnly(date)
	if day.Before(dateOnly(loan.LoanDate)) {
		return nil, fmt.Errorf("%w: payment date precedes loan date", ErrInvalidInput)
	}

	if kind == models.PaymentFull {
		settled, err := l.storage.SettleActive(id, day)
		if err != nil {
			return nil, fmt.Errorf("failed to settle loan: %w", err)
		}
		return &PaymentResult{Kind: kind, Settled: settled}, nil
	}

	if kind == models.PaymentInterest {
		loan.Balance = loan.Principal
	}
	loan.LastPaymentDate = day
	loan.LastPaymentKind = kind
	loan.LastAccrualDate = day

	if err := l.storage.UpdateActive(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return &PaymentResult{Kind: kind, Active: loan}, nil
}

// RefreshAndList runs accrual over the whole active book, then
// classifies the refreshed set. Classification always observes
// post-accrual balances. When some records failed to persist during
// accrual the buckets are still returned, alongside the
// PartialAccrualError.
func (l *Ledger) RefreshAndList(today time.Time) (Buckets, error) {
	_, accErr := l.RefreshAll(today)
	if accErr != nil {
		var partial *PartialAccrualError
		if !errors.As(accErr, &partial) {
			return Buckets{}, accErr
		}
	}

	loans, err := l.storage.ListActive()
	if err != nil {
		return Buckets{}, fmt.Errorf("failed to list active loans: %w", err)
	}
	return Classify(loans, today), accErr
}

// GetLoan retrieves an active loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.ActiveLoan, error) {
	return l.storage.GetActive(id)
}

// LoanEdit carries the editable fields of an active loan. The balance is
// deliberately absent: it only moves through accrual and payment events.
type LoanEdit struct {
	Name            string             `json:"name"`
	Phone           string             `json:"phone"`
	Address         string             `json:"address"`
	Principal       decimal.Decimal    `json:"principal"`
	LoanDate        time.Time          `json:"loan_date"`
	LastPaymentDate time.Time          `json:"last_payment_date"`
	LastPaymentKind models.PaymentKind `json:"last_payment_kind"`
}

// UpdateLoanDetails edits an existing active loan. The same validation
// rules as registration apply; moving the last payment date also resets
// the accrual clock to it.
func (l *Ledger) UpdateLoanDetails(id uuid.UUID, edit LoanEdit) (*models.ActiveLoan, error) {
	edit.Name = strings.TrimSpace(edit.Name)
	if edit.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !edit.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	}
	if edit.LoanDate.IsZero() || edit.LastPaymentDate.IsZero() {
		return nil, fmt.Errorf("%w: loan date and last payment date are required", ErrInvalidInput)
	}
	if dateOnly(edit.LastPaymentDate).Before(dateOnly(edit.LoanDate)) {
		return nil, fmt.Errorf("%w: last payment date precedes loan date", ErrInvalidInput)
	}
	if _, ok := models.ParsePaymentKind(string(edit.LastPaymentKind)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentKind, edit.LastPaymentKind)
	}

	loan, err := l.storage.GetActive(id)
	if err != nil {
		return nil, err
	}

	newLast := dateOnly(edit.LastPaymentDate)
	if !newLast.Equal(dateOnly(loan.LastPaymentDate)) {
		loan.LastAccrualDate = newLast
	}
	loan.Name = edit.Name
	loan.Phone = strings.TrimSpace(edit.Phone)
	loan.Address = strings.TrimSpace(edit.Address)
	loan.Principal = edit.Principal
	loan.LoanDate = dateOnly(edit.LoanDate)
	loan.LastPaymentDate = newLast
	loan.LastPaymentKind = edit.LastPaymentKind

	if err := l.storage.UpdateActive(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return loan, nil
}

// DeleteLoan removes an active loan outright, without settling it.
func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	return l.storage.DeleteActive(id)
}

// ListSettled retrieves the settlement history, newest first.
func (l *Ledger) ListSettled() ([]*models.SettledLoan, error) {
	return l.storage.ListSettled()
}
