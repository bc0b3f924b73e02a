// Package engine is the in-memory ledger consistency core: wallets,
// journal entries and obligations mutated together under one lock, with
// display identifiers issued from per-month counters. No operation here
// performs I/O; persistence happens in the service layer after each
// compound operation succeeds.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Engine owns all three record sets. Every public method takes the lock
// for its whole duration, so compound operations are linearized and a
// rejected operation can never leave a partial mutation behind.
type Engine struct {
	mu          sync.Mutex
	now         func() time.Time
	idGen       *identifierGenerator
	wallets     map[string]*Wallet
	entries     map[string]*LedgerEntry
	order       []string
	obligations map[string]*Obligation
}

func New() *Engine {
	return NewWithClock(time.Now)
}

// NewWithClock builds an engine on an injected clock so tests can pin
// identifier buckets to a known month.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{
		now:         now,
		idGen:       newIdentifierGenerator(now),
		wallets:     make(map[string]*Wallet),
		entries:     make(map[string]*LedgerEntry),
		obligations: make(map[string]*Obligation),
	}
}

// Snapshot is the full durable state of an engine.
type Snapshot struct {
	Wallets     []Wallet
	Entries     []LedgerEntry
	Obligations []Obligation
	Counters    []CounterState
}

// Snapshot copies out the complete state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Wallets:     make([]Wallet, 0, len(e.wallets)),
		Entries:     make([]LedgerEntry, 0, len(e.order)),
		Obligations: make([]Obligation, 0, len(e.obligations)),
		Counters:    e.idGen.snapshot(),
	}
	for _, wallet := range e.wallets {
		snap.Wallets = append(snap.Wallets, *wallet)
	}
	for _, id := range e.order {
		snap.Entries = append(snap.Entries, *e.entries[id])
	}
	for _, ob := range e.obligations {
		snap.Obligations = append(snap.Obligations, copyObligation(ob))
	}
	return snap
}

// Restore replaces the engine state with a snapshot, typically the one
// hydrated from storage at startup. Entry order is rebuilt from creation
// timestamps.
func (e *Engine) Restore(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.wallets = make(map[string]*Wallet, len(snap.Wallets))
	for _, wallet := range snap.Wallets {
		w := wallet
		e.wallets[w.ID] = &w
	}

	entries := append([]LedgerEntry(nil), snap.Entries...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].DisplayID < entries[j].DisplayID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	e.entries = make(map[string]*LedgerEntry, len(entries))
	e.order = make([]string, 0, len(entries))
	for _, entry := range entries {
		en := entry
		e.entries[en.ID] = &en
		e.order = append(e.order, en.ID)
	}

	e.obligations = make(map[string]*Obligation, len(snap.Obligations))
	for _, ob := range snap.Obligations {
		restored := copyObligation(&ob)
		e.obligations[ob.ID] = &restored
	}

	e.idGen.restore(snap.Counters)
}

// PruneIdentifiers drops identifier buckets older than the retention
// window and returns them so the durable copies can be cleared as well.
func (e *Engine) PruneIdentifiers(retentionMonths int) []CounterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idGen.prune(retentionMonths)
}

// Verify checks the cross-record invariants over the whole state:
// settlement sums, the settled flag, mutual and unique entry/obligation
// linkage, zero net effect of a hypothetically reversed obligation, and
// display identifier uniqueness.
func (e *Engine) Verify() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	displayIDs := make(map[string]string, len(e.entries))
	for id, entry := range e.entries {
		if other, dup := displayIDs[entry.DisplayID]; dup {
			return fmt.Errorf("display id %s shared by entries %s and %s", entry.DisplayID, other, id)
		}
		displayIDs[entry.DisplayID] = id
	}

	linked := make(map[string]string)
	claim := func(entryID, obligationID string) error {
		if prev, ok := linked[entryID]; ok {
			return fmt.Errorf("entry %s linked by obligations %s and %s", entryID, prev, obligationID)
		}
		linked[entryID] = obligationID
		return nil
	}

	for id, ob := range e.obligations {
		var settled int64
		for _, rec := range ob.Settlements {
			settled += rec.Magnitude
			entry, ok := e.entries[rec.EntryID]
			if !ok {
				return fmt.Errorf("obligation %s settlement %s references missing entry %s", id, rec.ID, rec.EntryID)
			}
			if !entry.Flags.ObligationLinked || entry.Linkage.ObligationID != id || entry.Linkage.Role != RoleSettlement {
				return fmt.Errorf("entry %s does not link back to obligation %s as settlement", rec.EntryID, id)
			}
			if entry.Magnitude != rec.Magnitude {
				return fmt.Errorf("obligation %s settlement %s magnitude mismatch", id, rec.ID)
			}
			if err := claim(rec.EntryID, id); err != nil {
				return err
			}
		}
		if ob.Remaining != ob.Original-settled {
			return fmt.Errorf("obligation %s remaining %d != original %d - settled %d", id, ob.Remaining, ob.Original, settled)
		}
		if ob.Remaining < 0 {
			return fmt.Errorf("obligation %s remaining is negative", id)
		}
		if ob.Settled != (ob.Remaining == 0) {
			return fmt.Errorf("obligation %s settled flag disagrees with remaining %d", id, ob.Remaining)
		}

		origin, ok := e.entries[ob.OriginEntryID]
		if !ok {
			return fmt.Errorf("obligation %s references missing origin entry %s", id, ob.OriginEntryID)
		}
		if !origin.Flags.ObligationLinked || origin.Linkage.ObligationID != id || origin.Linkage.Role != RoleOrigination {
			return fmt.Errorf("entry %s does not link back to obligation %s as origination", ob.OriginEntryID, id)
		}
		if origin.Magnitude != ob.Original {
			return fmt.Errorf("obligation %s origin magnitude mismatch", id)
		}
		if err := claim(ob.OriginEntryID, id); err != nil {
			return err
		}

		// The net delta of everything the obligation put on the
		// wallets must equal what is still outstanding, so a full
		// end-to-end reversal lands exactly back at zero.
		net := signedDelta(origin)
		for _, rec := range ob.Settlements {
			net += signedDelta(e.entries[rec.EntryID])
		}
		expected := ob.Remaining
		if ob.Polarity == OwedToUser {
			expected = -ob.Remaining
		}
		if net != expected {
			return fmt.Errorf("obligation %s net wallet effect %d, want %d", id, net, expected)
		}
	}

	for id, entry := range e.entries {
		if entry.Flags.ObligationLinked {
			if _, ok := linked[id]; !ok {
				return fmt.Errorf("entry %s claims obligation linkage but no obligation references it", id)
			}
		}
		if _, ok := e.wallets[entry.WalletID]; !ok {
			return fmt.Errorf("entry %s references missing wallet %s", id, entry.WalletID)
		}
	}
	return nil
}
