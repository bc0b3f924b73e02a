package store

import (
	"context"

	"moneybook/internal/engine"
)

// SnapshotLoader hydrates a full engine snapshot from the row stores at
// startup.
type SnapshotLoader struct {
	wallets     *WalletStore
	entries     *EntryStore
	obligations *ObligationStore
	counters    *CounterStore
}

func NewSnapshotLoader(wallets *WalletStore, entries *EntryStore, obligations *ObligationStore, counters *CounterStore) *SnapshotLoader {
	return &SnapshotLoader{
		wallets:     wallets,
		entries:     entries,
		obligations: obligations,
		counters:    counters,
	}
}

func (l *SnapshotLoader) Load(ctx context.Context) (engine.Snapshot, error) {
	wallets, err := l.wallets.ListAll(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	entries, err := l.entries.ListAll(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	obligations, err := l.obligations.ListAll(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	counters, err := l.counters.ListAll(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return engine.Snapshot{
		Wallets:     wallets,
		Entries:     entries,
		Obligations: obligations,
		Counters:    counters,
	}, nil
}
