package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moneybook/internal/engine"
)

func TestOriginateAndSettleOverHTTP(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	routes := handler.Routes()

	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/obligations", map[string]string{
		"counterparty": "Dana",
		"polarity":     "owed_by_user",
		"amount":       "500.00",
		"wallet_id":    wallet.Wallet.ID,
	})
	routes.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("originate: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["wallet_balance"] != "1500.00" {
		t.Fatalf("borrowing must credit the wallet, got %v", payload["wallet_balance"])
	}
	entry, _ := payload["entry"].(map[string]any)
	displayID, _ := entry["display_id"].(string)
	if !strings.HasPrefix(displayID, "AP-") {
		t.Fatalf("expected AP identifier for a payable, got %q", displayID)
	}
	obligationID, _ := payload["id"].(string)

	rr = httptest.NewRecorder()
	req = authedRequest(t, "user-1", http.MethodPost, "/obligations/"+obligationID+"/settlements", map[string]string{
		"amount":    "500.00",
		"wallet_id": wallet.Wallet.ID,
	})
	routes.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("settle: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload = decodeBody(t, rr)
	if payload["remaining"] != "0.00" || payload["settled"] != true {
		t.Fatalf("obligation should be settled: %v", payload)
	}
	if payload["wallet_balance"] != "1000.00" {
		t.Fatalf("settling must debit the wallet, got %v", payload["wallet_balance"])
	}
	entry, _ = payload["entry"].(map[string]any)
	displayID, _ = entry["display_id"].(string)
	if !strings.HasPrefix(displayID, "CO-") {
		t.Fatalf("settlement entry takes a cash code, got %q", displayID)
	}
}

func TestSettleExceedsRemaining(t *testing.T) {
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
	req := authedRequest(t, "user-1", http.MethodPost, "/obligations/"+ob.Obligation.ID+"/settlements", map[string]string{
		"amount":    "600.00",
		"wallet_id": wallet.Wallet.ID,
	})
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestDeleteSettlementRestoresRemaining(t *testing.T) {
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
	settled, err := eng.Settle("user-1", ob.Obligation.ID, 50_000, wallet.Wallet.ID, "")
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodDelete, "/obligations/"+ob.Obligation.ID+"/settlements/"+settled.Settlement.ID, nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["remaining"] != "500.00" || payload["settled"] != false {
		t.Fatalf("remaining should be restored: %v", payload)
	}
	if payload["wallet_balance"] != "1500.00" {
		t.Fatalf("wallet should regain the settlement, got %v", payload["wallet_balance"])
	}
}

func TestCancelOriginationWithSettlements(t *testing.T) {
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
	if _, err := eng.Settle("user-1", ob.Obligation.ID, 10_000, wallet.Wallet.ID, ""); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodPost, "/obligations/"+ob.Obligation.ID+"/cancel", nil)
	handler.Routes().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("cancel with settlements must conflict, got %d", rr.Code)
	}
}

func TestObligationSummaryAndDue(t *testing.T) {
	handler, eng := newTestHandler(stubUserStore{}, stubAuditStore{})
	wallet, err := eng.CreateWallet("user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if _, err := eng.Originate("user-1", engine.OriginateParams{
		Counterparty: "Dana",
		Polarity:     engine.OwedByUser,
		Magnitude:    50_000,
		WalletID:     wallet.Wallet.ID,
	}); err != nil {
		t.Fatalf("Originate: %v", err)
	}
	routes := handler.Routes()

	rr := httptest.NewRecorder()
	req := authedRequest(t, "user-1", http.MethodGet, "/obligations/summary", nil)
	routes.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rr.Code)
	}
	var summaries []map[string]any
	mustDecodeList(t, rr, &summaries)
	if len(summaries) != 1 || summaries[0]["payable"] != "500.00" {
		t.Fatalf("unexpected summary: %v", summaries)
	}

	rr = httptest.NewRecorder()
	req = authedRequest(t, "user-1", http.MethodGet, "/obligations/due?days=notanumber", nil)
	routes.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad days value: expected 400, got %d", rr.Code)
	}
}
