package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/debtbook/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS active_loans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL,
		balance TEXT NOT NULL,
		loan_date DATETIME NOT NULL,
		last_payment_date DATETIME NOT NULL,
		last_payment_kind TEXT NOT NULL DEFAULT 'none',
		last_accrual_date DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settled_loans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL,
		loan_date DATETIME NOT NULL,
		settlement_date DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertActive inserts a new active loan into the database.
func (s *SQLiteStore) InsertActive(loan *models.ActiveLoan) error {
	_, err := s.db.Exec(
		`INSERT INTO active_loans (id, name, phone, address, principal, balance, loan_date, last_payment_date, last_payment_kind, last_accrual_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.Name, loan.Phone, loan.Address, loan.Principal, loan.Balance, loan.LoanDate, loan.LastPaymentDate, string(loan.LastPaymentKind), loan.LastAccrualDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// GetActive retrieves an active loan by its ID.
func (s *SQLiteStore) GetActive(id uuid.UUID) (*models.ActiveLoan, error) {
	row := s.db.QueryRow(
		`SELECT id, name, phone, address, principal, balance, loan_date, last_payment_date, last_payment_kind, last_accrual_date
		FROM active_loans WHERE id = ?`, id.String())
	loan, err := scanActiveLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateActive updates an existing active loan in the database.
func (s *SQLiteStore) UpdateActive(loan *models.ActiveLoan) error {
	result, err := s.db.Exec(
		`UPDATE active_loans SET name = ?, phone = ?, address = ?, principal = ?, balance = ?, loan_date = ?, last_payment_date = ?, last_payment_kind = ?, last_accrual_date = ? WHERE id = ?`,
		loan.Name, loan.Phone, loan.Address, loan.Principal, loan.Balance, loan.LoanDate, loan.LastPaymentDate, string(loan.LastPaymentKind), loan.LastAccrualDate, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteActive removes an active loan from the database.
func (s *SQLiteStore) DeleteActive(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM active_loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive retrieves all active loans.
func (s *SQLiteStore) ListActive() ([]*models.ActiveLoan, error) {
	rows, err := s.db.Query(
		`SELECT id, name, phone, address, principal, balance, loan_date, last_payment_date, last_payment_kind, last_accrual_date
		FROM active_loans`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.ActiveLoan
	for rows.Next() {
		loan, err := scanActiveLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// SettleActive moves an active loan into the settled table within a
// single transaction. On any failure the transaction rolls back and the
// active record is left untouched.
func (s *SQLiteStore) SettleActive(id uuid.UUID, settlementDate time.Time) (*models.SettledLoan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT id, name, phone, address, principal, balance, loan_date, last_payment_date, last_payment_kind, last_accrual_date
		FROM active_loans WHERE id = ?`, id.String())
	loan, err := scanActiveLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan for settlement: %w", err)
	}

	settled := &models.SettledLoan{
		ID:             loan.ID,
		Name:           loan.Name,
		Phone:          loan.Phone,
		Address:        loan.Address,
		Principal:      loan.Principal,
		LoanDate:       loan.LoanDate,
		SettlementDate: settlementDate,
	}

	_, err = tx.Exec(
		`INSERT INTO settled_loans (id, name, phone, address, principal, loan_date, settlement_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		settled.ID.String(), settled.Name, settled.Phone, settled.Address, settled.Principal, settled.LoanDate, settled.SettlementDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert settled loan: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM active_loans WHERE id = ?`, id.String()); err != nil {
		return nil, fmt.Errorf("failed to delete active loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return settled, nil
}

// ListSettled retrieves all settled loans, newest settlement first.
func (s *SQLiteStore) ListSettled() ([]*models.SettledLoan, error) {
	rows, err := s.db.Query(
		`SELECT id, name, phone, address, principal, loan_date, settlement_date
		FROM settled_loans ORDER BY settlement_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled loans: %w", err)
	}
	defer rows.Close()

	var settled []*models.SettledLoan
	for rows.Next() {
		var rec models.SettledLoan
		var idStr string
		var loanDate, settlementDate time.Time
		if err := rows.Scan(&idStr, &rec.Name, &rec.Phone, &rec.Address, &rec.Principal, &loanDate, &settlementDate); err != nil {
			return nil, fmt.Errorf("failed to scan settled loan row: %w", err)
		}
		rec.ID = uuid.MustParse(idStr)
		rec.LoanDate = loanDate
		rec.SettlementDate = settlementDate
		settled = append(settled, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return settled, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActiveLoan(row rowScanner) (*models.ActiveLoan, error) {
	var loan models.ActiveLoan
	var idStr, kindStr string
	var loanDate, lastPayment, lastAccrual time.Time
	err := row.Scan(&idStr, &loan.Name, &loan.Phone, &loan.Address, &loan.Principal, &loan.Balance, &loanDate, &lastPayment, &kindStr, &lastAccrual)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	loan.LoanDate = loanDate
	loan.LastPaymentDate = lastPayment
	loan.LastPaymentKind = models.PaymentKind(kindStr)
	loan.LastAccrualDate = lastAccrual
	return &loan, nil
}
