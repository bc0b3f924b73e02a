package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"moneybook/internal/db"
	"moneybook/internal/engine"
	"moneybook/internal/money"
	"moneybook/internal/store"
	"moneybook/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type WalletStore interface {
	Insert(ctx context.Context, tx store.Execer, wallet engine.Wallet) error
	UpdateBalance(ctx context.Context, tx store.Execer, walletID string, balance int64) error
	Delete(ctx context.Context, tx store.Execer, walletID string) error
}

type EntryStore interface {
	Insert(ctx context.Context, tx store.Execer, entry engine.LedgerEntry) error
	UpdateLabels(ctx context.Context, tx store.Execer, entryID, category, note string) error
	Delete(ctx context.Context, tx store.Execer, entryID string) error
}

type ObligationStore interface {
	Upsert(ctx context.Context, tx store.Execer, ob engine.Obligation) error
	Delete(ctx context.Context, tx store.Execer, obligationID string) error
	InsertSettlement(ctx context.Context, tx store.Execer, obligationID string, rec engine.SettlementRecord) error
	DeleteSettlement(ctx context.Context, tx store.Execer, settlementID string) error
}

type CounterStore interface {
	Save(ctx context.Context, tx store.Execer, state engine.CounterState) error
	Delete(ctx context.Context, tx store.Execer, state engine.CounterState) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type SnapshotLoader interface {
	Load(ctx context.Context) (engine.Snapshot, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// LedgerService pairs every engine compound operation with persistence
// of exactly the rows that operation touched, inside one retrying
// serializable transaction. The engine mutates first; if the write
// ultimately fails, the engine is re-hydrated from storage so memory
// converges back to the durable view.
type LedgerService struct {
	engine      *engine.Engine
	txRunner    db.TxRunner
	wallets     WalletStore
	entries     EntryStore
	obligations ObligationStore
	counters    CounterStore
	audit       AuditStore
	loader      SnapshotLoader
	hub         BalanceHub
}

func NewLedgerService(eng *engine.Engine, txRunner db.TxRunner, wallets WalletStore, entries EntryStore, obligations ObligationStore, counters CounterStore, audit AuditStore, loader SnapshotLoader, hub BalanceHub) *LedgerService {
	return &LedgerService{
		engine:      eng,
		txRunner:    txRunner,
		wallets:     wallets,
		entries:     entries,
		obligations: obligations,
		counters:    counters,
		audit:       audit,
		loader:      loader,
		hub:         hub,
	}
}

// Hydrate loads the durable snapshot into the engine. Called once at
// startup before the server accepts requests.
func (s *LedgerService) Hydrate(ctx context.Context) error {
	snap, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}
	s.engine.Restore(snap)
	return nil
}

// PruneIdentifiers drops identifier buckets beyond the retention window
// from both the engine and the counters table.
func (s *LedgerService) PruneIdentifiers(ctx context.Context, retentionMonths int) error {
	removed := s.engine.PruneIdentifiers(retentionMonths)
	if len(removed) == 0 {
		return nil
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, state := range removed {
			if err := s.counters.Delete(ctx, tx, state); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LedgerService) CreateWallet(ctx context.Context, userID, name string, seed int64) (engine.WalletResult, error) {
	res, err := s.engine.CreateWallet(userID, name, seed)
	if err != nil {
		return engine.WalletResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.wallets.Insert(ctx, tx, res.Wallet); err != nil {
			return err
		}
		if res.Entry != nil {
			if err := s.entries.Insert(ctx, tx, *res.Entry); err != nil {
				return err
			}
			if err := s.counters.Save(ctx, tx, *res.Counter); err != nil {
				return err
			}
		}
		return s.logAudit(ctx, tx, userID, "wallet_create", "wallet", res.Wallet.ID, map[string]any{"name": name, "seed": seed})
	})
	if err != nil {
		return engine.WalletResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) DeleteWallet(ctx context.Context, userID, walletID string) error {
	if err := s.engine.DeleteWallet(userID, walletID); err != nil {
		return err
	}
	return s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.wallets.Delete(ctx, tx, walletID); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "wallet_delete", "wallet", walletID, nil)
	})
}

func (s *LedgerService) ResetWallet(ctx context.Context, userID, walletID string) (engine.Wallet, error) {
	wallet, err := s.engine.ResetWallet(userID, walletID)
	if err != nil {
		return engine.Wallet{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.wallets.UpdateBalance(ctx, tx, walletID, 0); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "wallet_reset", "wallet", walletID, nil)
	})
	if err != nil {
		return engine.Wallet{}, err
	}
	s.broadcast(userID, wallet)
	return wallet, nil
}

func (s *LedgerService) ApplyDelta(ctx context.Context, userID, walletID string, delta int64) (engine.Wallet, error) {
	wallet, err := s.engine.ApplyDelta(userID, walletID, delta)
	if err != nil {
		return engine.Wallet{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.wallets.UpdateBalance(ctx, tx, walletID, wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "wallet_adjust", "wallet", walletID, map[string]any{"delta": delta})
	})
	if err != nil {
		return engine.Wallet{}, err
	}
	s.broadcast(userID, wallet)
	return wallet, nil
}

func (s *LedgerService) RecordEntry(ctx context.Context, userID string, p engine.RecordParams) (engine.EntryResult, error) {
	res, err := s.engine.RecordEntry(userID, p)
	if err != nil {
		return engine.EntryResult{}, err
	}
	if err := s.persistEntry(ctx, userID, "entry_record", res); err != nil {
		return engine.EntryResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) RecordCorrection(ctx context.Context, userID string, p engine.RecordParams) (engine.EntryResult, error) {
	res, err := s.engine.RecordCorrection(userID, p)
	if err != nil {
		return engine.EntryResult{}, err
	}
	if err := s.persistEntry(ctx, userID, "entry_correction", res); err != nil {
		return engine.EntryResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) Transfer(ctx context.Context, userID, fromWalletID, toWalletID string, magnitude int64, note string, date time.Time) (engine.TransferResult, error) {
	res, err := s.engine.Transfer(userID, fromWalletID, toWalletID, magnitude, note, date)
	if err != nil {
		return engine.TransferResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.Insert(ctx, tx, res.Out); err != nil {
			return err
		}
		if err := s.entries.Insert(ctx, tx, res.In); err != nil {
			return err
		}
		if err := s.counters.Save(ctx, tx, res.Counter); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.From.ID, res.From.Balance); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.To.ID, res.To.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "transfer", "entry", res.Out.ID, map[string]any{
			"from": fromWalletID, "to": toWalletID, "magnitude": magnitude,
		})
	})
	if err != nil {
		return engine.TransferResult{}, err
	}
	s.broadcast(userID, res.From)
	s.broadcast(userID, res.To)
	return res, nil
}

func (s *LedgerService) UpdateEntry(ctx context.Context, userID, entryID, category, note string) (engine.LedgerEntry, error) {
	entry, err := s.engine.UpdateEntry(userID, entryID, category, note)
	if err != nil {
		return engine.LedgerEntry{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.UpdateLabels(ctx, tx, entryID, category, note); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "entry_update", "entry", entryID, nil)
	})
	if err != nil {
		return engine.LedgerEntry{}, err
	}
	return entry, nil
}

func (s *LedgerService) DeleteEntry(ctx context.Context, userID, entryID string) (engine.EntryResult, error) {
	res, err := s.engine.DeleteEntry(userID, entryID)
	if err != nil {
		return engine.EntryResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.Delete(ctx, tx, entryID); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.Wallet.ID, res.Wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "entry_delete", "entry", entryID, nil)
	})
	if err != nil {
		return engine.EntryResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) Originate(ctx context.Context, userID string, p engine.OriginateParams) (engine.ObligationResult, error) {
	res, err := s.engine.Originate(userID, p)
	if err != nil {
		return engine.ObligationResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		// Obligation row first: the origination entry references it.
		if err := s.obligations.Upsert(ctx, tx, res.Obligation); err != nil {
			return err
		}
		if err := s.entries.Insert(ctx, tx, res.Entry); err != nil {
			return err
		}
		if err := s.counters.Save(ctx, tx, res.Counter); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.Wallet.ID, res.Wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "obligation_originate", "obligation", res.Obligation.ID, map[string]any{
			"counterparty": p.Counterparty, "polarity": p.Polarity, "magnitude": p.Magnitude,
		})
	})
	if err != nil {
		return engine.ObligationResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) Settle(ctx context.Context, userID, obligationID string, magnitude int64, walletID, note string) (engine.SettleResult, error) {
	res, err := s.engine.Settle(userID, obligationID, magnitude, walletID, note)
	if err != nil {
		return engine.SettleResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.Insert(ctx, tx, res.Entry); err != nil {
			return err
		}
		if err := s.obligations.InsertSettlement(ctx, tx, obligationID, res.Settlement); err != nil {
			return err
		}
		if err := s.obligations.Upsert(ctx, tx, res.Obligation); err != nil {
			return err
		}
		if err := s.counters.Save(ctx, tx, res.Counter); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.Wallet.ID, res.Wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "obligation_settle", "obligation", obligationID, map[string]any{
			"magnitude": magnitude, "wallet_id": walletID,
		})
	})
	if err != nil {
		return engine.SettleResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) CancelOrigination(ctx context.Context, userID, obligationID string) (engine.CancelResult, error) {
	res, err := s.engine.CancelOrigination(userID, obligationID)
	if err != nil {
		return engine.CancelResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.obligations.Delete(ctx, tx, obligationID); err != nil {
			return err
		}
		if err := s.entries.Delete(ctx, tx, res.EntryID); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.Wallet.ID, res.Wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "obligation_cancel", "obligation", obligationID, nil)
	})
	if err != nil {
		return engine.CancelResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) DeleteSettlement(ctx context.Context, userID, obligationID, settlementID string) (engine.DeleteSettlementResult, error) {
	res, err := s.engine.DeleteSettlement(userID, obligationID, settlementID)
	if err != nil {
		return engine.DeleteSettlementResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.obligations.DeleteSettlement(ctx, tx, settlementID); err != nil {
			return err
		}
		if err := s.entries.Delete(ctx, tx, res.Settlement.EntryID); err != nil {
			return err
		}
		if err := s.obligations.Upsert(ctx, tx, res.Obligation); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.Wallet.ID, res.Wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, "settlement_delete", "obligation", obligationID, map[string]any{
			"settlement_id": settlementID,
		})
	})
	if err != nil {
		return engine.DeleteSettlementResult{}, err
	}
	s.broadcast(userID, res.Wallet)
	return res, nil
}

func (s *LedgerService) DeleteObligation(ctx context.Context, userID, obligationID string) (engine.DeleteObligationResult, error) {
	res, err := s.engine.DeleteObligation(userID, obligationID)
	if err != nil {
		return engine.DeleteObligationResult{}, err
	}
	err = s.persist(ctx, func(tx *sqlx.Tx) error {
		// Settlements go with the obligation row via FK cascade.
		if err := s.obligations.Delete(ctx, tx, obligationID); err != nil {
			return err
		}
		for _, entryID := range res.EntryIDs {
			if err := s.entries.Delete(ctx, tx, entryID); err != nil {
				return err
			}
		}
		for _, wallet := range res.Wallets {
			if err := s.wallets.UpdateBalance(ctx, tx, wallet.ID, wallet.Balance); err != nil {
				return err
			}
		}
		return s.logAudit(ctx, tx, userID, "obligation_delete", "obligation", obligationID, map[string]any{
			"entries_removed": len(res.EntryIDs),
		})
	})
	if err != nil {
		return engine.DeleteObligationResult{}, err
	}
	for _, wallet := range res.Wallets {
		s.broadcast(userID, wallet)
	}
	return res, nil
}

func (s *LedgerService) persistEntry(ctx context.Context, userID, action string, res engine.EntryResult) error {
	return s.persist(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.Insert(ctx, tx, res.Entry); err != nil {
			return err
		}
		if err := s.counters.Save(ctx, tx, res.Counter); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, res.Wallet.ID, res.Wallet.Balance); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, userID, action, "entry", res.Entry.ID, nil)
	})
}

// persist writes one operation's rows; on failure the engine is
// re-hydrated so it cannot drift ahead of storage.
func (s *LedgerService) persist(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if err := s.txRunner.WithTx(ctx, fn); err != nil {
		s.reload(ctx)
		return err
	}
	return nil
}

func (s *LedgerService) reload(ctx context.Context) {
	snap, err := s.loader.Load(ctx)
	if err != nil {
		log.Printf("ledger reload after failed persist: %v", err)
		return
	}
	s.engine.Restore(snap)
}

func (s *LedgerService) logAudit(ctx context.Context, tx *sqlx.Tx, actorID, action, entityType, entityID string, details map[string]any) error {
	data := "{}"
	if details != nil {
		encoded, _ := json.Marshal(details)
		data = string(encoded)
	}
	return s.audit.Log(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s *LedgerService) broadcast(userID string, wallet engine.Wallet) {
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		WalletID: wallet.ID,
		Balance:  money.FormatMinor(wallet.Balance),
	})
}
