package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moneybook/internal/auth"
	"moneybook/internal/config"
	"moneybook/internal/engine"
	"moneybook/internal/store"
	"moneybook/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn func(ctx context.Context, email string) (store.User, error)
	getByIDFn    func(ctx context.Context, userID string) (store.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (store.User, error) {
	if s.getByEmailFn == nil {
		return store.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (store.User, error) {
	if s.getByIDFn == nil {
		return store.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubAuditStore struct {
	logFn         func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listByActorFn func(ctx context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error) {
	if s.listByActorFn == nil {
		return nil, nil
	}
	return s.listByActorFn(ctx, actorID, limit, offset)
}

// engineService drives the in-memory ledger directly, skipping
// persistence, so handler tests exercise real semantics.
type engineService struct {
	eng *engine.Engine
}

func (s engineService) CreateWallet(ctx context.Context, userID, name string, seed int64) (engine.WalletResult, error) {
	return s.eng.CreateWallet(userID, name, seed)
}

func (s engineService) DeleteWallet(ctx context.Context, userID, walletID string) error {
	return s.eng.DeleteWallet(userID, walletID)
}

func (s engineService) ResetWallet(ctx context.Context, userID, walletID string) (engine.Wallet, error) {
	return s.eng.ResetWallet(userID, walletID)
}

func (s engineService) ApplyDelta(ctx context.Context, userID, walletID string, delta int64) (engine.Wallet, error) {
	return s.eng.ApplyDelta(userID, walletID, delta)
}

func (s engineService) RecordEntry(ctx context.Context, userID string, p engine.RecordParams) (engine.EntryResult, error) {
	return s.eng.RecordEntry(userID, p)
}

func (s engineService) RecordCorrection(ctx context.Context, userID string, p engine.RecordParams) (engine.EntryResult, error) {
	return s.eng.RecordCorrection(userID, p)
}

func (s engineService) Transfer(ctx context.Context, userID, fromWalletID, toWalletID string, magnitude int64, note string, date time.Time) (engine.TransferResult, error) {
	return s.eng.Transfer(userID, fromWalletID, toWalletID, magnitude, note, date)
}

func (s engineService) UpdateEntry(ctx context.Context, userID, entryID, category, note string) (engine.LedgerEntry, error) {
	return s.eng.UpdateEntry(userID, entryID, category, note)
}

func (s engineService) DeleteEntry(ctx context.Context, userID, entryID string) (engine.EntryResult, error) {
	return s.eng.DeleteEntry(userID, entryID)
}

func (s engineService) Originate(ctx context.Context, userID string, p engine.OriginateParams) (engine.ObligationResult, error) {
	return s.eng.Originate(userID, p)
}

func (s engineService) Settle(ctx context.Context, userID, obligationID string, magnitude int64, walletID, note string) (engine.SettleResult, error) {
	return s.eng.Settle(userID, obligationID, magnitude, walletID, note)
}

func (s engineService) CancelOrigination(ctx context.Context, userID, obligationID string) (engine.CancelResult, error) {
	return s.eng.CancelOrigination(userID, obligationID)
}

func (s engineService) DeleteSettlement(ctx context.Context, userID, obligationID, settlementID string) (engine.DeleteSettlementResult, error) {
	return s.eng.DeleteSettlement(userID, obligationID, settlementID)
}

func (s engineService) DeleteObligation(ctx context.Context, userID, obligationID string) (engine.DeleteObligationResult, error) {
	return s.eng.DeleteObligation(userID, obligationID)
}

func newTestHandler(users UserStore, audit AuditStore) (*Handler, *engine.Engine) {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	eng := engine.New()
	return New(cfg, fakeTxRunner{}, users, audit, eng, engineService{eng}, websocket.NewHub()), eng
}

func authedRequest(t *testing.T, userID, method, target string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	token, err := auth.GenerateToken("secret", userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func mustDecodeList(t *testing.T, rr *httptest.ResponseRecorder, dest *[]map[string]any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}
