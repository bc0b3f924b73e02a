package engine

import "errors"

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrObligationNotFound   = errors.New("obligation not found")
	ErrSettlementNotFound   = errors.New("settlement not found")
	ErrExceedsRemaining     = errors.New("settlement exceeds remaining amount")
	ErrAlreadySettled       = errors.New("obligation already settled")
	ErrHasSettlements       = errors.New("obligation has settlements")
	ErrProtectedEntry       = errors.New("entry is linked to an obligation")
	ErrNonPositiveMagnitude = errors.New("magnitude must be positive")
	ErrWalletNotEmpty       = errors.New("wallet balance is not zero")
	ErrWalletHasEntries     = errors.New("wallet still owns ledger entries")
	ErrSameWalletTransfer   = errors.New("cannot transfer within the same wallet")
)
