package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Wallet holds a single signed balance in minor currency units. Balances
// move only through signed deltas; nothing outside this package can set
// one directly.
type Wallet struct {
	ID        string
	OwnerID   string
	Name      string
	Balance   int64
	CreatedAt time.Time
}

// WalletResult reports a wallet creation, including the seed correction
// entry when the wallet started with a non-zero balance.
type WalletResult struct {
	Wallet  Wallet
	Entry   *LedgerEntry
	Counter *CounterState
}

// CreateWallet adds a wallet for owner. A non-zero seed is recorded as a
// balance-correction entry so the journal accounts for the opening amount.
func (e *Engine) CreateWallet(ownerID, name string, seed int64) (WalletResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallet := &Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: e.now(),
	}
	e.wallets[wallet.ID] = wallet

	result := WalletResult{}
	if seed != 0 {
		direction := Credit
		magnitude := seed
		if seed < 0 {
			direction = Debit
			magnitude = -seed
		}
		entry, counter, err := e.record(ownerID, recordParams{
			Direction: direction,
			Magnitude: magnitude,
			WalletID:  wallet.ID,
			Category:  "opening balance",
			Flags:     EntryFlags{BalanceCorrection: true},
		})
		if err != nil {
			delete(e.wallets, wallet.ID)
			return WalletResult{}, err
		}
		entryCopy := *entry
		result.Entry = &entryCopy
		result.Counter = &counter
	}
	result.Wallet = *wallet
	return result, nil
}

// DeleteWallet removes a wallet, allowed only when its balance is exactly
// zero and no ledger entries reference it.
func (e *Engine) DeleteWallet(ownerID, walletID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallet, err := e.getWallet(ownerID, walletID)
	if err != nil {
		return err
	}
	if wallet.Balance != 0 {
		return ErrWalletNotEmpty
	}
	for _, id := range e.order {
		if e.entries[id].WalletID == walletID {
			return ErrWalletHasEntries
		}
	}
	delete(e.wallets, walletID)
	return nil
}

// ResetWallet force-sets a balance to zero. Administrative correction
// only; obligation and transaction flows never call this.
func (e *Engine) ResetWallet(ownerID, walletID string) (Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallet, err := e.getWallet(ownerID, walletID)
	if err != nil {
		return Wallet{}, err
	}
	wallet.Balance = 0
	return *wallet, nil
}

// ApplyDelta adds a signed amount to a wallet balance without writing a
// journal entry. Administrative correction only.
func (e *Engine) ApplyDelta(ownerID, walletID string, delta int64) (Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallet, err := e.getWallet(ownerID, walletID)
	if err != nil {
		return Wallet{}, err
	}
	e.applyDelta(wallet, delta)
	return *wallet, nil
}

// Wallet returns a copy of one wallet.
func (e *Engine) Wallet(ownerID, walletID string) (Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallet, err := e.getWallet(ownerID, walletID)
	if err != nil {
		return Wallet{}, err
	}
	return *wallet, nil
}

// Wallets lists the owner's wallets ordered by creation time.
func (e *Engine) Wallets(ownerID string) []Wallet {
	e.mu.Lock()
	defer e.mu.Unlock()

	wallets := make([]Wallet, 0)
	for _, wallet := range e.wallets {
		if wallet.OwnerID == ownerID {
			wallets = append(wallets, *wallet)
		}
	}
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].ID < wallets[j].ID
		}
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
	return wallets
}

// getWallet resolves a wallet scoped to its owner. Callers hold e.mu.
func (e *Engine) getWallet(ownerID, walletID string) (*Wallet, error) {
	wallet, ok := e.wallets[walletID]
	if !ok || wallet.OwnerID != ownerID {
		return nil, ErrWalletNotFound
	}
	return wallet, nil
}

// applyDelta is the only place a balance number changes outside of
// Reset. Callers hold e.mu and have already validated the wallet.
func (e *Engine) applyDelta(wallet *Wallet, delta int64) int64 {
	wallet.Balance += delta
	return wallet.Balance
}
