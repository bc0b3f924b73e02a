package engine

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

type Polarity string

const (
	OwedByUser Polarity = "owed_by_user"
	OwedToUser Polarity = "owed_to_user"
)

type Role string

const (
	RoleOrigination Role = "origination"
	RoleSettlement  Role = "settlement"
)

type EntryFlags struct {
	Transfer          bool
	ObligationLinked  bool
	BalanceCorrection bool
}

// Linkage ties an obligation-linked entry back to its obligation. Zero
// value when the entry is not linked.
type Linkage struct {
	ObligationID string
	Role         Role
	Polarity     Polarity
}

// LedgerEntry is one signed wallet effect. Direction and magnitude are
// immutable once recorded; only the category label and note may change.
type LedgerEntry struct {
	ID        string
	DisplayID string
	OwnerID   string
	WalletID  string
	Direction Direction
	Magnitude int64
	Category  string
	Note      string
	Date      time.Time
	Flags     EntryFlags
	Linkage   Linkage
	CreatedAt time.Time
}

// signedDelta is the entry's effect on its wallet balance.
func signedDelta(entry *LedgerEntry) int64 {
	if entry.Direction == Credit {
		return entry.Magnitude
	}
	return -entry.Magnitude
}

// entryCode maps an entry's flags to its identifier category. The switch
// is ordered: corrections beat transfers beat obligation linkage; plain
// entries fall through to cash in/out by direction. Settlement entries
// deliberately take cash codes, only originations carry AP/AR.
func entryCode(flags EntryFlags, direction Direction, linkage Linkage) Code {
	switch {
	case flags.BalanceCorrection:
		return CodeCorrection
	case flags.Transfer:
		return CodeTransfer
	case flags.ObligationLinked && linkage.Role == RoleOrigination:
		if linkage.Polarity == OwedByUser {
			return CodePayable
		}
		return CodeReceivable
	default:
		if direction == Credit {
			return CodeCashIn
		}
		return CodeCashOut
	}
}

type recordParams struct {
	Direction Direction
	Magnitude int64
	WalletID  string
	Category  string
	Note      string
	Date      time.Time
	Flags     EntryFlags
	Linkage   Linkage
}

// record is the single path that creates a ledger entry: it validates,
// issues the display identifier, applies the wallet delta and stores the
// entry as one step. Callers hold e.mu. All validation happens before
// any state is touched.
func (e *Engine) record(ownerID string, p recordParams) (*LedgerEntry, CounterState, error) {
	if p.Magnitude <= 0 {
		return nil, CounterState{}, ErrNonPositiveMagnitude
	}
	wallet, err := e.getWallet(ownerID, p.WalletID)
	if err != nil {
		return nil, CounterState{}, err
	}

	displayID, counter := e.idGen.next(entryCode(p.Flags, p.Direction, p.Linkage))
	now := e.now()
	date := p.Date
	if date.IsZero() {
		date = now
	}
	entry := &LedgerEntry{
		ID:        uuid.NewString(),
		DisplayID: displayID,
		OwnerID:   ownerID,
		WalletID:  p.WalletID,
		Direction: p.Direction,
		Magnitude: p.Magnitude,
		Category:  p.Category,
		Note:      p.Note,
		Date:      date,
		Flags:     p.Flags,
		Linkage:   p.Linkage,
		CreatedAt: now,
	}
	e.applyDelta(wallet, signedDelta(entry))
	e.entries[entry.ID] = entry
	e.order = append(e.order, entry.ID)
	return entry, counter, nil
}

// removeEntry drops an entry without touching any wallet. Internal
// deletion: the caller has already applied the compensating delta as part
// of its own compound operation. Callers hold e.mu.
func (e *Engine) removeEntry(entryID string) {
	delete(e.entries, entryID)
	for i, id := range e.order {
		if id == entryID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// EntryResult pairs a new entry with the wallet it moved and the
// identifier counter it advanced.
type EntryResult struct {
	Entry   LedgerEntry
	Wallet  Wallet
	Counter CounterState
}

// RecordParams describes a plain (non-obligation) journal entry.
type RecordParams struct {
	Direction Direction
	Magnitude int64
	WalletID  string
	Category  string
	Note      string
	Date      time.Time
}

// RecordEntry appends a plain income or expense entry.
func (e *Engine) RecordEntry(ownerID string, p RecordParams) (EntryResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, counter, err := e.record(ownerID, recordParams{
		Direction: p.Direction,
		Magnitude: p.Magnitude,
		WalletID:  p.WalletID,
		Category:  p.Category,
		Note:      p.Note,
		Date:      p.Date,
	})
	if err != nil {
		return EntryResult{}, err
	}
	return EntryResult{Entry: *entry, Wallet: *e.wallets[entry.WalletID], Counter: counter}, nil
}

// RecordCorrection appends a balance-correction entry.
func (e *Engine) RecordCorrection(ownerID string, p RecordParams) (EntryResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, counter, err := e.record(ownerID, recordParams{
		Direction: p.Direction,
		Magnitude: p.Magnitude,
		WalletID:  p.WalletID,
		Category:  p.Category,
		Note:      p.Note,
		Date:      p.Date,
		Flags:     EntryFlags{BalanceCorrection: true},
	})
	if err != nil {
		return EntryResult{}, err
	}
	return EntryResult{Entry: *entry, Wallet: *e.wallets[entry.WalletID], Counter: counter}, nil
}

// TransferResult reports both legs of a transfer.
type TransferResult struct {
	Out     LedgerEntry
	In      LedgerEntry
	From    Wallet
	To      Wallet
	Counter CounterState
}

// Transfer moves an amount between two wallets of the same owner as a
// debit/credit entry pair, both flagged as transfer legs.
func (e *Engine) Transfer(ownerID, fromWalletID, toWalletID string, magnitude int64, note string, date time.Time) (TransferResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if magnitude <= 0 {
		return TransferResult{}, ErrNonPositiveMagnitude
	}
	if fromWalletID == toWalletID {
		return TransferResult{}, ErrSameWalletTransfer
	}
	if _, err := e.getWallet(ownerID, fromWalletID); err != nil {
		return TransferResult{}, err
	}
	if _, err := e.getWallet(ownerID, toWalletID); err != nil {
		return TransferResult{}, err
	}

	out, _, err := e.record(ownerID, recordParams{
		Direction: Debit,
		Magnitude: magnitude,
		WalletID:  fromWalletID,
		Category:  "transfer",
		Note:      note,
		Date:      date,
		Flags:     EntryFlags{Transfer: true},
	})
	if err != nil {
		return TransferResult{}, err
	}
	in, counter, err := e.record(ownerID, recordParams{
		Direction: Credit,
		Magnitude: magnitude,
		WalletID:  toWalletID,
		Category:  "transfer",
		Note:      note,
		Date:      date,
		Flags:     EntryFlags{Transfer: true},
	})
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		Out:     *out,
		In:      *in,
		From:    *e.wallets[fromWalletID],
		To:      *e.wallets[toWalletID],
		Counter: counter,
	}, nil
}

// UpdateEntry edits the category label and note of an entry. Direction
// and magnitude are immutable; changing those is delete and recreate.
func (e *Engine) UpdateEntry(ownerID, entryID, category, note string) (LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.getEntry(ownerID, entryID)
	if err != nil {
		return LedgerEntry{}, err
	}
	entry.Category = category
	entry.Note = note
	return *entry, nil
}

// DeleteEntry is direct deletion: it reverts the wallet by the inverse
// delta and removes the entry. Obligation-linked entries are refused;
// those leave only through the obligation operations.
func (e *Engine) DeleteEntry(ownerID, entryID string) (EntryResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.getEntry(ownerID, entryID)
	if err != nil {
		return EntryResult{}, err
	}
	if entry.Flags.ObligationLinked {
		return EntryResult{}, ErrProtectedEntry
	}
	wallet := e.wallets[entry.WalletID]
	e.applyDelta(wallet, -signedDelta(entry))
	removed := *entry
	e.removeEntry(entryID)
	return EntryResult{Entry: removed, Wallet: *wallet}, nil
}

// Entry returns a copy of one entry.
func (e *Engine) Entry(ownerID, entryID string) (LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.getEntry(ownerID, entryID)
	if err != nil {
		return LedgerEntry{}, err
	}
	return *entry, nil
}

// Entries lists the owner's entries in creation order.
func (e *Engine) Entries(ownerID string) []LedgerEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := make([]LedgerEntry, 0)
	for _, id := range e.order {
		if entry := e.entries[id]; entry.OwnerID == ownerID {
			entries = append(entries, *entry)
		}
	}
	return entries
}

// EntriesByWallet lists one wallet's entries in creation order.
func (e *Engine) EntriesByWallet(ownerID, walletID string) ([]LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.getWallet(ownerID, walletID); err != nil {
		return nil, err
	}
	entries := make([]LedgerEntry, 0)
	for _, id := range e.order {
		if entry := e.entries[id]; entry.WalletID == walletID {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (e *Engine) getEntry(ownerID, entryID string) (*LedgerEntry, error) {
	entry, ok := e.entries[entryID]
	if !ok || entry.OwnerID != ownerID {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}
