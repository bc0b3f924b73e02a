package handlers

import (
	"context"
	"time"

	"moneybook/internal/engine"
	"moneybook/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetByID(ctx context.Context, userID string) (store.User, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error)
}

type LedgerService interface {
	CreateWallet(ctx context.Context, userID, name string, seed int64) (engine.WalletResult, error)
	DeleteWallet(ctx context.Context, userID, walletID string) error
	ResetWallet(ctx context.Context, userID, walletID string) (engine.Wallet, error)
	ApplyDelta(ctx context.Context, userID, walletID string, delta int64) (engine.Wallet, error)
	RecordEntry(ctx context.Context, userID string, p engine.RecordParams) (engine.EntryResult, error)
	RecordCorrection(ctx context.Context, userID string, p engine.RecordParams) (engine.EntryResult, error)
	Transfer(ctx context.Context, userID, fromWalletID, toWalletID string, magnitude int64, note string, date time.Time) (engine.TransferResult, error)
	UpdateEntry(ctx context.Context, userID, entryID, category, note string) (engine.LedgerEntry, error)
	DeleteEntry(ctx context.Context, userID, entryID string) (engine.EntryResult, error)
	Originate(ctx context.Context, userID string, p engine.OriginateParams) (engine.ObligationResult, error)
	Settle(ctx context.Context, userID, obligationID string, magnitude int64, walletID, note string) (engine.SettleResult, error)
	CancelOrigination(ctx context.Context, userID, obligationID string) (engine.CancelResult, error)
	DeleteSettlement(ctx context.Context, userID, obligationID, settlementID string) (engine.DeleteSettlementResult, error)
	DeleteObligation(ctx context.Context, userID, obligationID string) (engine.DeleteObligationResult, error)
}
