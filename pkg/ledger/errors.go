package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/debtbook/pkg/store"
)

// Error taxonomy surfaced to callers. Validation errors are detected
// before any mutation; storage failures are wrapped with %w.
var (
	// ErrNotFound aliases the store sentinel so callers can match it
	// without importing the store package.
	ErrNotFound = store.ErrNotFound

	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidPaymentKind = errors.New("invalid payment kind")
)

// PartialAccrualError reports records that failed to persist during a
// batch accrual run. The rest of the batch is still processed; one bad
// record never blocks the refresh of the others.
type PartialAccrualError struct {
	Failed map[uuid.UUID]error
}

func (e *PartialAccrualError) Error() string {
	return fmt.Sprintf("accrual failed to persist %d loan(s)", len(e.Failed))
}
