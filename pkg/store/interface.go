package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/debtbook/pkg/models"
)

// ErrNotFound is returned when no loan exists for the given id.
var ErrNotFound = errors.New("loan not found")

// Storage defines the interface for database operations on active and
// settled loans.
type Storage interface {
	InsertActive(loan *models.ActiveLoan) error
	GetActive(id uuid.UUID) (*models.ActiveLoan, error)
	UpdateActive(loan *models.ActiveLoan) error
	DeleteActive(id uuid.UUID) error
	ListActive() ([]*models.ActiveLoan, error)

	// SettleActive atomically copies the active loan into the settled
	// table, stamping settlementDate, and removes the active record.
	// Either both writes land or neither does.
	SettleActive(id uuid.UUID, settlementDate time.Time) (*models.SettledLoan, error)

	// ListSettled returns settled loans ordered by settlement date,
	// newest first.
	ListSettled() ([]*models.SettledLoan, error)

	Close() error
}
