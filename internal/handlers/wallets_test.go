package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateWalletWithSeed(t *testing.T) {
	handler, _ := newTestHandler(stubUserStore{}, stubAuditStore{})
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/wallets", map[string]string{
		"name": "Checking",
		"seed": "1000.00",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["balance"] != "1000.00" {
		t.Fatalf("expected balance 1000.00, got %v", payload["balance"])
	}
	opening, ok := payload["opening_entry"].(map[string]any)
	if !ok {
		t.Fatalf("expected opening entry, got %v", payload)
	}
	if opening["correction"] != true {
		t.Fatalf("opening entry should be a correction: %v", opening)
	}
}

func TestListWalletsRequiresAuth(t *testing.T) {
	handler, _ := newTestHandler(stubUserStore{}, stubAuditStore{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wallets", nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestGetBalanceUnknownWallet(t *testing.T) {
	handler, _ := newTestHandler(stubUserStore{}, stubAuditStore{})
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodGet, "/wallets/missing/balance", nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestGetBalanceScopedToOwner(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	res, err := eng.CreateWallet("user-1", "Main", 50_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-2", http.MethodGet, "/wallets/"+res.Wallet.ID+"/balance", nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("another user's wallet must read as missing, got %d", rr.Code)
	}
}

func TestDeleteWalletWithEntriesConflicts(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	res, err := eng.CreateWallet("user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/wallets/"+res.Wallet.ID+"/reset", nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", rr.Code)
	}

	seeded, err := eng.CreateWallet("user-1", "Seeded", 10_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr = httptest.NewRecorder()
	req = authedRequest(t, "user-1", http.MethodDelete, "/wallets/"+seeded.Wallet.ID, nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for wallet with entries, got %d", rr.Code)
	}
}

func TestAdjustWallet(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	res, err := eng.CreateWallet("user-1", "Main", 10_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/wallets/"+res.Wallet.ID+"/adjust", map[string]string{
		"delta": "-2.50",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["balance"] != "97.50" {
		t.Fatalf("expected balance 97.50, got %v", payload["balance"])
	}
}

func TestAdjustWalletRejectsZeroDelta(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	res, err := eng.CreateWallet("user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/wallets/"+res.Wallet.ID+"/adjust", map[string]string{
		"delta": "0.00",
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestVerifyLedgerReportsConsistent(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	if _, err := eng.CreateWallet("user-1", "Main", 25_000); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodGet, "/ledger/verify", nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["consistent"] != true {
		t.Fatalf("expected consistent ledger, got %v", payload)
	}
}
