package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/debtbook/pkg/ledger"
	"github.com/mcclellann/debtbook/pkg/models"
	"github.com/mcclellann/debtbook/pkg/store"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
}

func NewServer(s store.Storage) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
	}
}

// requestDate resolves "today" once per request. An as_of=YYYY-MM-DD
// query parameter overrides the wall clock for inspection.
func requestDate(r *http.Request) (time.Time, error) {
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		day, err := time.Parse(dateLayout, asOf)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid as_of date %q", asOf)
		}
		return day, nil
	}
	return time.Now().UTC(), nil
}

// writeError maps ledger errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "Loan not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidPaymentKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) registerLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string          `json:"name"`
		Phone     string          `json:"phone"`
		Address   string          `json:"address"`
		Principal decimal.Decimal `json:"principal"`
		LoanDate  string          `json:"loan_date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loanDate, err := time.Parse(dateLayout, req.LoanDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid loan_date %q", req.LoanDate), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.RegisterLoan(req.Name, req.Phone, req.Address, req.Principal, loanDate)
	if err != nil {
		log.Printf("Error registering loan: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

// listLoansHandler refreshes accrual for the whole book, then returns
// the classified buckets and totals. A partial accrual failure still
// yields the refreshed view.
func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	today, err := requestDate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	buckets, err := s.ledger.RefreshAndList(today)
	if err != nil {
		var partial *ledger.PartialAccrualError
		if !errors.As(err, &partial) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Printf("Partial accrual failure during listing: %v", err)
	}

	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Name            string          `json:"name"`
		Phone           string          `json:"phone"`
		Address         string          `json:"address"`
		Principal       decimal.Decimal `json:"principal"`
		LoanDate        string          `json:"loan_date"`
		LastPaymentDate string          `json:"last_payment_date"`
		LastPaymentKind string          `json:"last_payment_kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loanDate, err := time.Parse(dateLayout, req.LoanDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid loan_date %q", req.LoanDate), http.StatusBadRequest)
		return
	}
	lastPayment, err := time.Parse(dateLayout, req.LastPaymentDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid last_payment_date %q", req.LastPaymentDate), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.UpdateLoanDetails(loanID, ledger.LoanEdit{
		Name:            req.Name,
		Phone:           req.Phone,
		Address:         req.Address,
		Principal:       req.Principal,
		LoanDate:        loanDate,
		LastPaymentDate: lastPayment,
		LastPaymentKind: models.PaymentKind(req.LastPaymentKind),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) applyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	today, err := requestDate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.ledger.ApplyPayment(loanID, models.PaymentKind(req.Kind), today)
	if err != nil {
		log.Printf("Error applying %q payment to loan %s: %v", req.Kind, loanID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	if err := s.ledger.DeleteLoan(loanID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSettledHandler(w http.ResponseWriter, r *http.Request) {
	settled, err := s.ledger.ListSettled()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if settled == nil {
		settled = []*models.SettledLoan{}
	}
	writeJSON(w, http.StatusOK, settled)
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.registerLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/payments", s.applyPaymentHandler).Methods("POST")
	router.HandleFunc("/settled", s.listSettledHandler).Methods("GET")
	return router
}

func main() {
	sqliteStore, err := store.NewSQLiteStore("debtbook.db")
	if err != nil {
		log.Fatalf("Failed to initialize SQLite store: %v", err)
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore)

	log.Println("Server starting on :8080")
	log.Fatal(http.ListenAndServe(":8080", server.routes()))
}
