package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moneybook/internal/engine"
)

func TestRecordEntryCredit(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/transactions", map[string]string{
		"direction": "credit",
		"amount":    "750.00",
		"wallet_id": wallet.Wallet.ID,
		"category":  "salary",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["wallet_balance"] != "750.00" {
		t.Fatalf("expected balance 750.00, got %v", payload["wallet_balance"])
	}
	displayID, _ := payload["display_id"].(string)
	if !strings.HasPrefix(displayID, "CI-") {
		t.Fatalf("expected CI identifier, got %q", displayID)
	}
}

func TestRecordEntryBadDirection(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/transactions", map[string]string{
		"direction": "sideways",
		"amount":    "10.00",
		"wallet_id": wallet.Wallet.ID,
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(eng.Entries("user-1")) != 0 {
		t.Fatal("rejected request must not create an entry")
	}
}

func TestRecordEntryRejectsSubCentAmount(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/transactions", map[string]string{
		"direction": "credit",
		"amount":    "10.001",
		"wallet_id": wallet.Wallet.ID,
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestTransferBetweenWallets(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	from, err := eng.CreateWallet("user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	to, err := eng.CreateWallet("user-1", "Savings", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/transactions/transfer", map[string]string{
		"from_wallet_id": from.Wallet.ID,
		"to_wallet_id":   to.Wallet.ID,
		"amount":         "250.00",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["from_balance"] != "750.00" || payload["to_balance"] != "250.00" {
		t.Fatalf("unexpected balances: %v", payload)
	}
}

func TestTransferSameWallet(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/transactions/transfer", map[string]string{
		"from_wallet_id": wallet.Wallet.ID,
		"to_wallet_id":   wallet.Wallet.ID,
		"amount":         "10.00",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestDeleteProtectedEntry(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	ob, err := eng.Originate("user-1", engine.OriginateParams{
		Counterparty: "Dana",
		Polarity:     engine.OwedByUser,
		Magnitude:    50_000,
		WalletID:     wallet.Wallet.ID,
	})
	if err != nil {
		t.Fatalf("Originate: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodDelete, "/transactions/"+ob.Entry.ID, nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for obligation-linked entry, got %d", rr.Code)
	}
}

func TestUpdateEntryLabels(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	res, err := eng.RecordEntry("user-1", engine.RecordParams{
		Direction: engine.Credit,
		Magnitude: 5_000,
		WalletID:  wallet.Wallet.ID,
		Category:  "misc",
	})
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPatch, "/transactions/"+res.Entry.ID, map[string]string{
		"category": "groceries",
		"note":     "weekly shop",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["category"] != "groceries" || payload["note"] != "weekly shop" {
		t.Fatalf("labels not updated: %v", payload)
	}
	if payload["magnitude"] != "50.00" {
		t.Fatalf("magnitude must stay untouched: %v", payload["magnitude"])
	}
}
