package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"moneybook/internal/engine"
	"moneybook/internal/store"
	"moneybook/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err   error
	calls int
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return fn(nil)
}

type recordingStores struct {
	insertedWallets []engine.Wallet
	balanceUpdates  map[string]int64
	deletedWallets  []string
	insertedEntries []engine.LedgerEntry
	deletedEntries  []string
	upserts         []engine.Obligation
	deletedObs      []string
	settlements     []engine.SettlementRecord
	deletedSetts    []string
	savedCounters   []engine.CounterState
	deletedCounters []engine.CounterState
	auditActions    []string
}

func newRecordingStores() *recordingStores {
	return &recordingStores{balanceUpdates: make(map[string]int64)}
}

func (r *recordingStores) Insert(ctx context.Context, tx store.Execer, wallet engine.Wallet) error {
	r.insertedWallets = append(r.insertedWallets, wallet)
	return nil
}

func (r *recordingStores) UpdateBalance(ctx context.Context, tx store.Execer, walletID string, balance int64) error {
	r.balanceUpdates[walletID] = balance
	return nil
}

func (r *recordingStores) Delete(ctx context.Context, tx store.Execer, walletID string) error {
	r.deletedWallets = append(r.deletedWallets, walletID)
	return nil
}

type recordingEntryStore struct{ parent *recordingStores }

func (r recordingEntryStore) Insert(ctx context.Context, tx store.Execer, entry engine.LedgerEntry) error {
	r.parent.insertedEntries = append(r.parent.insertedEntries, entry)
	return nil
}

func (r recordingEntryStore) UpdateLabels(ctx context.Context, tx store.Execer, entryID, category, note string) error {
	return nil
}

func (r recordingEntryStore) Delete(ctx context.Context, tx store.Execer, entryID string) error {
	r.parent.deletedEntries = append(r.parent.deletedEntries, entryID)
	return nil
}

type recordingObligationStore struct{ parent *recordingStores }

func (r recordingObligationStore) Upsert(ctx context.Context, tx store.Execer, ob engine.Obligation) error {
	r.parent.upserts = append(r.parent.upserts, ob)
	return nil
}

func (r recordingObligationStore) Delete(ctx context.Context, tx store.Execer, obligationID string) error {
	r.parent.deletedObs = append(r.parent.deletedObs, obligationID)
	return nil
}

func (r recordingObligationStore) InsertSettlement(ctx context.Context, tx store.Execer, obligationID string, rec engine.SettlementRecord) error {
	r.parent.settlements = append(r.parent.settlements, rec)
	return nil
}

func (r recordingObligationStore) DeleteSettlement(ctx context.Context, tx store.Execer, settlementID string) error {
	r.parent.deletedSetts = append(r.parent.deletedSetts, settlementID)
	return nil
}

type recordingCounterStore struct{ parent *recordingStores }

func (r recordingCounterStore) Save(ctx context.Context, tx store.Execer, state engine.CounterState) error {
	r.parent.savedCounters = append(r.parent.savedCounters, state)
	return nil
}

func (r recordingCounterStore) Delete(ctx context.Context, tx store.Execer, state engine.CounterState) error {
	r.parent.deletedCounters = append(r.parent.deletedCounters, state)
	return nil
}

type recordingAuditStore struct{ parent *recordingStores }

func (r recordingAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	r.parent.auditActions = append(r.parent.auditActions, action)
	return nil
}

type fakeLoader struct {
	snapshot engine.Snapshot
	loads    int
}

func (l *fakeLoader) Load(ctx context.Context) (engine.Snapshot, error) {
	l.loads++
	return l.snapshot, nil
}

type fakeHub struct {
	updates []websocket.BalanceUpdate
}

func (h *fakeHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.updates = append(h.updates, update)
}

func fixedClock() time.Time {
	return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func newTestService(runner *fakeTxRunner) (*LedgerService, *recordingStores, *fakeLoader, *fakeHub) {
	eng := engine.NewWithClock(fixedClock)
	stores := newRecordingStores()
	loader := &fakeLoader{}
	hub := &fakeHub{}
	svc := NewLedgerService(eng, runner, stores, recordingEntryStore{stores}, recordingObligationStore{stores}, recordingCounterStore{stores}, recordingAuditStore{stores}, loader, hub)
	return svc, stores, loader, hub
}

func TestCreateWalletPersistsSeedEntry(t *testing.T) {
	svc, stores, _, hub := newTestService(&fakeTxRunner{})
	ctx := context.Background()

	res, err := svc.CreateWallet(ctx, "user-1", "Checking", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if len(stores.insertedWallets) != 1 || stores.insertedWallets[0].Balance != 100_000 {
		t.Fatalf("wallet row not persisted: %+v", stores.insertedWallets)
	}
	if len(stores.insertedEntries) != 1 || stores.insertedEntries[0].DisplayID != "BA-25060001" {
		t.Fatalf("seed entry not persisted: %+v", stores.insertedEntries)
	}
	if len(stores.savedCounters) != 1 {
		t.Fatalf("expected counter save, got %d", len(stores.savedCounters))
	}
	if len(hub.updates) != 1 || hub.updates[0].Balance != "1000.00" {
		t.Fatalf("expected balance broadcast, got %+v", hub.updates)
	}
	if res.Wallet.Balance != 100_000 {
		t.Fatalf("unexpected balance %d", res.Wallet.Balance)
	}
}

func TestSettlePersistsEveryRow(t *testing.T) {
	svc, stores, _, hub := newTestService(&fakeTxRunner{})
	ctx := context.Background()

	wallet, err := svc.CreateWallet(ctx, "user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	ob, err := svc.Originate(ctx, "user-1", engine.OriginateParams{
		Counterparty: "Dana",
		Polarity:     engine.OwedByUser,
		Magnitude:    50_000,
		WalletID:     wallet.Wallet.ID,
	})
	if err != nil {
		t.Fatalf("Originate: %v", err)
	}
	res, err := svc.Settle(ctx, "user-1", ob.Obligation.ID, 50_000, wallet.Wallet.ID, "")
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.Obligation.Remaining != 0 || !res.Obligation.Settled {
		t.Fatalf("obligation not settled: %+v", res.Obligation)
	}
	if len(stores.settlements) != 1 {
		t.Fatalf("settlement row not persisted")
	}
	// Origination upsert plus settlement upsert.
	if len(stores.upserts) != 2 {
		t.Fatalf("expected 2 obligation upserts, got %d", len(stores.upserts))
	}
	if got := stores.balanceUpdates[wallet.Wallet.ID]; got != 100_000 {
		t.Fatalf("expected wallet back at 100000, got %d", got)
	}
	last := hub.updates[len(hub.updates)-1]
	if last.Balance != "1000.00" {
		t.Fatalf("unexpected broadcast balance %q", last.Balance)
	}
	want := []string{"wallet_create", "obligation_originate", "obligation_settle"}
	if len(stores.auditActions) != len(want) {
		t.Fatalf("audit trail %v", stores.auditActions)
	}
	for i, action := range want {
		if stores.auditActions[i] != action {
			t.Fatalf("audit[%d] = %q, want %q", i, stores.auditActions[i], action)
		}
	}
}

func TestPersistFailureReloadsEngine(t *testing.T) {
	runner := &fakeTxRunner{}
	svc, _, loader, hub := newTestService(runner)
	ctx := context.Background()

	wallet, err := svc.CreateWallet(ctx, "user-1", "Main", 0)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	// Capture a durable view with the wallet, then fail the next write.
	loader.snapshot = svc.engine.Snapshot()
	runner.err = errors.New("serialize conflict")

	if _, err := svc.ApplyDelta(ctx, "user-1", wallet.Wallet.ID, 5_000); err == nil {
		t.Fatal("expected persist error")
	}
	if loader.loads != 1 {
		t.Fatalf("expected reload after failed persist, loads = %d", loader.loads)
	}
	got, err := svc.engine.Wallet("user-1", wallet.Wallet.ID)
	if err != nil {
		t.Fatalf("wallet lost after reload: %v", err)
	}
	if got.Balance != 0 {
		t.Fatalf("engine kept unpersisted delta, balance = %d", got.Balance)
	}
	if len(hub.updates) != 1 {
		t.Fatalf("failed op must not broadcast, got %d updates", len(hub.updates))
	}
}

func TestDeleteObligationReversesAndPersists(t *testing.T) {
	svc, stores, _, _ := newTestService(&fakeTxRunner{})
	ctx := context.Background()

	wallet, err := svc.CreateWallet(ctx, "user-1", "Main", 100_000)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	ob, err := svc.Originate(ctx, "user-1", engine.OriginateParams{
		Counterparty: "Dana",
		Polarity:     engine.OwedByUser,
		Magnitude:    50_000,
		WalletID:     wallet.Wallet.ID,
	})
	if err != nil {
		t.Fatalf("Originate: %v", err)
	}
	if _, err := svc.Settle(ctx, "user-1", ob.Obligation.ID, 20_000, wallet.Wallet.ID, ""); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	res, err := svc.DeleteObligation(ctx, "user-1", ob.Obligation.ID)
	if err != nil {
		t.Fatalf("DeleteObligation: %v", err)
	}
	if len(res.EntryIDs) != 2 {
		t.Fatalf("expected 2 removed entries, got %d", len(res.EntryIDs))
	}
	if len(stores.deletedObs) != 1 || stores.deletedObs[0] != ob.Obligation.ID {
		t.Fatalf("obligation row not deleted: %v", stores.deletedObs)
	}
	if len(stores.deletedEntries) != 2 {
		t.Fatalf("entry rows not deleted: %v", stores.deletedEntries)
	}
	if got := stores.balanceUpdates[wallet.Wallet.ID]; got != 100_000 {
		t.Fatalf("wallet not restored, balance = %d", got)
	}
}

func TestPruneIdentifiersDeletesCounterRows(t *testing.T) {
	runner := &fakeTxRunner{}
	svc, stores, _, _ := newTestService(runner)
	ctx := context.Background()

	if err := svc.PruneIdentifiers(ctx, 12); err != nil {
		t.Fatalf("PruneIdentifiers: %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("no buckets to prune, expected no transaction")
	}

	// A bucket older than the retention window gets removed.
	now := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	eng := engine.NewWithClock(func() time.Time { return now })
	svcOld := NewLedgerService(eng, runner, stores, recordingEntryStore{stores}, recordingObligationStore{stores}, recordingCounterStore{stores}, recordingAuditStore{stores}, &fakeLoader{}, &fakeHub{})
	if _, err := svcOld.CreateWallet(ctx, "user-1", "Old", 1_000); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	if err := svcOld.PruneIdentifiers(ctx, 12); err != nil {
		t.Fatalf("PruneIdentifiers: %v", err)
	}
	if len(stores.deletedCounters) != 1 {
		t.Fatalf("expected 1 counter row delete, got %d", len(stores.deletedCounters))
	}
	if stores.deletedCounters[0].Year != 2024 || stores.deletedCounters[0].Month != time.January {
		t.Fatalf("wrong bucket pruned: %+v", stores.deletedCounters[0])
	}
}
