package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mcclellann/debtbook/pkg/ledger"
	"github.com/mcclellann/debtbook/pkg/models"
	"github.com/mcclellann/debtbook/pkg/store"
	"github.com/shopspring/decimal"
)

func setupTestServer(t *testing.T) *Server {
	dbFile := "test_api.db"
	os.Remove(dbFile)

	s, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		os.Remove(dbFile)
	})

	return NewServer(s)
}

func doJSON(t *testing.T, router http.Handler, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func registerLoan(t *testing.T, router http.Handler, name string, principal float64, loanDate string) models.ActiveLoan {
	t.Helper()
	rr := doJSON(t, router, "POST", "/loans", map[string]interface{}{
		"name":      name,
		"principal": principal,
		"loan_date": loanDate,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var loan models.ActiveLoan
	json.Unmarshal(rr.Body.Bytes(), &loan)
	return loan
}

func TestAPI_RegisterAndList(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := registerLoan(t, router, "Alice", 1000.0, "2025-01-01")

	// Listing 30 days later runs accrual inline before classifying.
	rr := doJSON(t, router, "GET", "/loans?as_of=2025-01-31", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var buckets ledger.Buckets
	json.Unmarshal(rr.Body.Bytes(), &buckets)

	if len(buckets.Overdue) != 1 {
		t.Fatalf("Expected 1 overdue loan, got %d/%d/%d", len(buckets.Overdue), len(buckets.DueToday), len(buckets.Other))
	}
	want := decimal.RequireFromString("1820.00")
	if !buckets.Overdue[0].Balance.Equal(want) {
		t.Errorf("Expected post-accrual balance %s, got %s", want, buckets.Overdue[0].Balance)
	}
	if buckets.Overdue[0].ID != loan.ID {
		t.Errorf("Expected loan %s in the overdue bucket", loan.ID)
	}
	if !buckets.Totals.TotalPrincipal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected total principal 1000, got %s", buckets.Totals.TotalPrincipal)
	}
}

func TestAPI_RegisterValidation(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	rr := doJSON(t, router, "POST", "/loans", map[string]interface{}{
		"name":      "",
		"principal": 100.0,
		"loan_date": "2025-01-01",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a missing name, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/loans", map[string]interface{}{
		"name":      "Bob",
		"principal": 100.0,
		"loan_date": "not-a-date",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a malformed date, got %d", rr.Code)
	}
}

func TestAPI_FullPaymentSettles(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := registerLoan(t, router, "Carol", 500.0, "2025-01-01")

	rr := doJSON(t, router, "POST", "/loans/"+loan.ID.String()+"/payments?as_of=2025-02-10", map[string]interface{}{
		"kind": "full",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var result ledger.PaymentResult
	json.Unmarshal(rr.Body.Bytes(), &result)
	if result.Settled == nil {
		t.Fatal("Expected a settled record in the payment result")
	}

	// The active record is gone.
	rr = doJSON(t, router, "GET", "/loans/"+loan.ID.String(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after settlement, got %d", rr.Code)
	}

	// And exactly one settled record exists.
	rr = doJSON(t, router, "GET", "/settled", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var settled []models.SettledLoan
	json.Unmarshal(rr.Body.Bytes(), &settled)
	if len(settled) != 1 || settled[0].ID != loan.ID {
		t.Errorf("Expected one settled record for %s, got %d", loan.ID, len(settled))
	}
}

func TestAPI_PaymentErrors(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := registerLoan(t, router, "Dave", 200.0, "2025-01-01")

	rr := doJSON(t, router, "POST", "/loans/"+loan.ID.String()+"/payments", map[string]interface{}{
		"kind": "partial",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an unknown kind, got %d", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/loans/00000000-0000-0000-0000-000000000000/payments", map[string]interface{}{
		"kind": "none",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown loan, got %d", rr.Code)
	}
}

func TestAPI_DeleteLoan(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := registerLoan(t, router, "Frank", 100.0, "2025-01-01")

	rr := doJSON(t, router, "DELETE", "/loans/"+loan.ID.String(), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rr.Code)
	}

	rr = doJSON(t, router, "GET", "/loans/"+loan.ID.String(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after deletion, got %d", rr.Code)
	}
}

func TestAPI_UpdateLoan(t *testing.T) {
	server := setupTestServer(t)
	router := server.routes()

	loan := registerLoan(t, router, "Eve", 800.0, "2025-01-01")

	rr := doJSON(t, router, "PUT", "/loans/"+loan.ID.String(), map[string]interface{}{
		"name":              "Eve Adams",
		"phone":             "555-0202",
		"address":           "9 Elm St",
		"principal":         900.0,
		"loan_date":         "2025-01-01",
		"last_payment_date": "2025-02-01",
		"last_payment_kind": "interest",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var updated models.ActiveLoan
	json.Unmarshal(rr.Body.Bytes(), &updated)
	if updated.Name != "Eve Adams" {
		t.Errorf("Expected updated name, got %q", updated.Name)
	}
	if !updated.Principal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Expected principal 900, got %s", updated.Principal)
	}
	if updated.LastPaymentKind != models.PaymentInterest {
		t.Errorf("Expected kind interest, got %q", updated.LastPaymentKind)
	}
}
