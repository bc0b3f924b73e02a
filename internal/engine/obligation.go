package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SettlementRecord is one partial payment against an obligation, tied to
// exactly one journal entry.
type SettlementRecord struct {
	ID        string
	Magnitude int64
	WalletID  string
	Note      string
	EntryID   string
	CreatedAt time.Time
}

// Obligation is a peer-to-peer debt or credit with partial-settlement
// history. Remaining always equals Original minus the sum of settlement
// magnitudes, and Settled mirrors Remaining == 0.
type Obligation struct {
	ID            string
	OwnerID       string
	Counterparty  string
	Polarity      Polarity
	Original      int64
	Remaining     int64
	DueDate       time.Time
	Settled       bool
	WalletID      string
	OriginEntryID string
	Settlements   []SettlementRecord
	CreatedAt     time.Time
}

func copyObligation(ob *Obligation) Obligation {
	out := *ob
	out.Settlements = append([]SettlementRecord(nil), ob.Settlements...)
	return out
}

type OriginateParams struct {
	Counterparty string
	Polarity     Polarity
	Magnitude    int64
	WalletID     string
	DueDate      time.Time
	Note         string
}

// ObligationResult reports an origination: the new obligation, its
// originating entry, the wallet it moved and the advanced counter.
type ObligationResult struct {
	Obligation Obligation
	Entry      LedgerEntry
	Wallet     Wallet
	Counter    CounterState
}

// Originate records a new obligation together with its originating
// journal entry and wallet delta. Receiving a loan credits the wallet;
// extending one debits it.
func (e *Engine) Originate(ownerID string, p OriginateParams) (ObligationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.Magnitude <= 0 {
		return ObligationResult{}, ErrNonPositiveMagnitude
	}
	if _, err := e.getWallet(ownerID, p.WalletID); err != nil {
		return ObligationResult{}, err
	}

	obligationID := uuid.NewString()
	direction := Debit
	if p.Polarity == OwedByUser {
		direction = Credit
	}
	entry, counter, err := e.record(ownerID, recordParams{
		Direction: direction,
		Magnitude: p.Magnitude,
		WalletID:  p.WalletID,
		Category:  "obligation",
		Note:      p.Note,
		Flags:     EntryFlags{ObligationLinked: true},
		Linkage: Linkage{
			ObligationID: obligationID,
			Role:         RoleOrigination,
			Polarity:     p.Polarity,
		},
	})
	if err != nil {
		return ObligationResult{}, err
	}

	obligation := &Obligation{
		ID:            obligationID,
		OwnerID:       ownerID,
		Counterparty:  p.Counterparty,
		Polarity:      p.Polarity,
		Original:      p.Magnitude,
		Remaining:     p.Magnitude,
		DueDate:       p.DueDate,
		WalletID:      p.WalletID,
		OriginEntryID: entry.ID,
		CreatedAt:     e.now(),
	}
	e.obligations[obligationID] = obligation
	return ObligationResult{
		Obligation: copyObligation(obligation),
		Entry:      *entry,
		Wallet:     *e.wallets[p.WalletID],
		Counter:    counter,
	}, nil
}

// SettleResult reports a settlement: the updated obligation, the new
// settlement record and entry, the wallet it moved and the counter.
type SettleResult struct {
	Obligation Obligation
	Settlement SettlementRecord
	Entry      LedgerEntry
	Wallet     Wallet
	Counter    CounterState
}

// Settle records a partial or full payment against an obligation. Paying
// down a payable debits the wallet; collecting a receivable credits it.
// Rejections leave every record untouched.
func (e *Engine) Settle(ownerID, obligationID string, magnitude int64, walletID, note string) (SettleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if magnitude <= 0 {
		return SettleResult{}, ErrNonPositiveMagnitude
	}
	obligation, err := e.getObligation(ownerID, obligationID)
	if err != nil {
		return SettleResult{}, err
	}
	if obligation.Settled {
		return SettleResult{}, ErrAlreadySettled
	}
	if magnitude > obligation.Remaining {
		return SettleResult{}, ErrExceedsRemaining
	}
	if _, err := e.getWallet(ownerID, walletID); err != nil {
		return SettleResult{}, err
	}

	direction := Credit
	if obligation.Polarity == OwedByUser {
		direction = Debit
	}
	entry, counter, err := e.record(ownerID, recordParams{
		Direction: direction,
		Magnitude: magnitude,
		WalletID:  walletID,
		Category:  "settlement",
		Note:      note,
		Flags:     EntryFlags{ObligationLinked: true},
		Linkage: Linkage{
			ObligationID: obligationID,
			Role:         RoleSettlement,
			Polarity:     obligation.Polarity,
		},
	})
	if err != nil {
		return SettleResult{}, err
	}

	settlement := SettlementRecord{
		ID:        uuid.NewString(),
		Magnitude: magnitude,
		WalletID:  walletID,
		Note:      note,
		EntryID:   entry.ID,
		CreatedAt: e.now(),
	}
	obligation.Settlements = append(obligation.Settlements, settlement)
	obligation.Remaining -= magnitude
	obligation.Settled = obligation.Remaining == 0
	return SettleResult{
		Obligation: copyObligation(obligation),
		Settlement: settlement,
		Entry:      *entry,
		Wallet:     *e.wallets[walletID],
		Counter:    counter,
	}, nil
}

// CancelResult reports a cancelled origination: the removed obligation,
// the id of its removed originating entry and the reverted wallet.
type CancelResult struct {
	Obligation Obligation
	EntryID    string
	Wallet     Wallet
}

// CancelOrigination reverses and removes an obligation that has no
// settlements: the origination delta comes back off the wallet, the
// originating entry is removed internally, the obligation disappears.
func (e *Engine) CancelOrigination(ownerID, obligationID string) (CancelResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obligation, err := e.getObligation(ownerID, obligationID)
	if err != nil {
		return CancelResult{}, err
	}
	if len(obligation.Settlements) > 0 {
		return CancelResult{}, ErrHasSettlements
	}

	entry := e.entries[obligation.OriginEntryID]
	wallet := e.wallets[entry.WalletID]
	e.applyDelta(wallet, -signedDelta(entry))
	e.removeEntry(entry.ID)
	removed := copyObligation(obligation)
	delete(e.obligations, obligationID)
	return CancelResult{Obligation: removed, EntryID: entry.ID, Wallet: *wallet}, nil
}

// DeleteSettlementResult reports a removed settlement: the updated
// obligation, the removed record and its entry id, and the reverted
// wallet.
type DeleteSettlementResult struct {
	Obligation Obligation
	Settlement SettlementRecord
	Wallet     Wallet
}

// DeleteSettlement undoes one settlement: the wallet gets the inverse
// delta, the settlement's entry is removed internally, remaining grows
// back and the settled flag is recomputed from it.
func (e *Engine) DeleteSettlement(ownerID, obligationID, settlementID string) (DeleteSettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obligation, err := e.getObligation(ownerID, obligationID)
	if err != nil {
		return DeleteSettlementResult{}, err
	}
	index := -1
	for i, rec := range obligation.Settlements {
		if rec.ID == settlementID {
			index = i
			break
		}
	}
	if index < 0 {
		return DeleteSettlementResult{}, ErrSettlementNotFound
	}

	settlement := obligation.Settlements[index]
	entry := e.entries[settlement.EntryID]
	wallet := e.wallets[entry.WalletID]
	e.applyDelta(wallet, -signedDelta(entry))
	e.removeEntry(entry.ID)
	obligation.Settlements = append(obligation.Settlements[:index], obligation.Settlements[index+1:]...)
	obligation.Remaining += settlement.Magnitude
	obligation.Settled = obligation.Remaining == 0
	return DeleteSettlementResult{
		Obligation: copyObligation(obligation),
		Settlement: settlement,
		Wallet:     *wallet,
	}, nil
}

// DeleteObligationResult reports a fully reversed obligation deletion.
type DeleteObligationResult struct {
	Obligation Obligation
	EntryIDs   []string
	Wallets    []Wallet
}

// DeleteObligation removes an obligation outright, reversing every
// wallet delta it ever caused: each settlement in reverse order, then
// the origination. The wallets end up exactly where they would be had
// the obligation never existed.
func (e *Engine) DeleteObligation(ownerID, obligationID string) (DeleteObligationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obligation, err := e.getObligation(ownerID, obligationID)
	if err != nil {
		return DeleteObligationResult{}, err
	}

	touched := make(map[string]*Wallet)
	var entryIDs []string
	for i := len(obligation.Settlements) - 1; i >= 0; i-- {
		rec := obligation.Settlements[i]
		entry := e.entries[rec.EntryID]
		wallet := e.wallets[entry.WalletID]
		e.applyDelta(wallet, -signedDelta(entry))
		e.removeEntry(entry.ID)
		touched[wallet.ID] = wallet
		entryIDs = append(entryIDs, entry.ID)
	}
	origin := e.entries[obligation.OriginEntryID]
	originWallet := e.wallets[origin.WalletID]
	e.applyDelta(originWallet, -signedDelta(origin))
	e.removeEntry(origin.ID)
	touched[originWallet.ID] = originWallet
	entryIDs = append(entryIDs, origin.ID)

	removed := copyObligation(obligation)
	delete(e.obligations, obligationID)

	wallets := make([]Wallet, 0, len(touched))
	for _, wallet := range touched {
		wallets = append(wallets, *wallet)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].ID < wallets[j].ID })
	return DeleteObligationResult{Obligation: removed, EntryIDs: entryIDs, Wallets: wallets}, nil
}

// Obligation returns a copy of one obligation.
func (e *Engine) Obligation(ownerID, obligationID string) (Obligation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obligation, err := e.getObligation(ownerID, obligationID)
	if err != nil {
		return Obligation{}, err
	}
	return copyObligation(obligation), nil
}

// Obligations lists the owner's obligations ordered by creation time.
func (e *Engine) Obligations(ownerID string) []Obligation {
	e.mu.Lock()
	defer e.mu.Unlock()

	obligations := make([]Obligation, 0)
	for _, ob := range e.obligations {
		if ob.OwnerID == ownerID {
			obligations = append(obligations, copyObligation(ob))
		}
	}
	sort.Slice(obligations, func(i, j int) bool {
		if obligations[i].CreatedAt.Equal(obligations[j].CreatedAt) {
			return obligations[i].ID < obligations[j].ID
		}
		return obligations[i].CreatedAt.Before(obligations[j].CreatedAt)
	})
	return obligations
}

// EntriesByObligation lists the origination entry followed by the
// settlement entries in settlement order.
func (e *Engine) EntriesByObligation(ownerID, obligationID string) ([]LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obligation, err := e.getObligation(ownerID, obligationID)
	if err != nil {
		return nil, err
	}
	entries := make([]LedgerEntry, 0, len(obligation.Settlements)+1)
	entries = append(entries, *e.entries[obligation.OriginEntryID])
	for _, rec := range obligation.Settlements {
		entries = append(entries, *e.entries[rec.EntryID])
	}
	return entries, nil
}

// CounterpartySummary aggregates unsettled amounts per counterparty.
type CounterpartySummary struct {
	Counterparty string
	Payable      int64
	Receivable   int64
}

// SummaryByCounterparty totals remaining payable and receivable amounts
// per counterparty name, sorted by name.
func (e *Engine) SummaryByCounterparty(ownerID string) []CounterpartySummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	totals := make(map[string]*CounterpartySummary)
	for _, ob := range e.obligations {
		if ob.OwnerID != ownerID {
			continue
		}
		summary, ok := totals[ob.Counterparty]
		if !ok {
			summary = &CounterpartySummary{Counterparty: ob.Counterparty}
			totals[ob.Counterparty] = summary
		}
		if ob.Polarity == OwedByUser {
			summary.Payable += ob.Remaining
		} else {
			summary.Receivable += ob.Remaining
		}
	}
	summaries := make([]CounterpartySummary, 0, len(totals))
	for _, summary := range totals {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Counterparty < summaries[j].Counterparty })
	return summaries
}

// DueWithin lists unsettled obligations whose due date falls before the
// end of the window, overdue ones included, ordered by due date.
func (e *Engine) DueWithin(ownerID string, window time.Duration) []Obligation {
	e.mu.Lock()
	defer e.mu.Unlock()

	deadline := e.now().Add(window)
	due := make([]Obligation, 0)
	for _, ob := range e.obligations {
		if ob.OwnerID != ownerID || ob.Settled || ob.DueDate.IsZero() {
			continue
		}
		if !ob.DueDate.After(deadline) {
			due = append(due, copyObligation(ob))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueDate.Equal(due[j].DueDate) {
			return due[i].ID < due[j].ID
		}
		return due[i].DueDate.Before(due[j].DueDate)
	})
	return due
}

func (e *Engine) getObligation(ownerID, obligationID string) (*Obligation, error) {
	obligation, ok := e.obligations[obligationID]
	if !ok || obligation.OwnerID != ownerID {
		return nil, ErrObligationNotFound
	}
	return obligation, nil
}
