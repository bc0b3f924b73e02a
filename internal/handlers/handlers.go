package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"moneybook/internal/engine"
	"moneybook/internal/money"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps the engine's sentinel errors onto HTTP
// statuses. Anything unrecognized is a 500.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrWalletNotFound),
		errors.Is(err, engine.ErrEntryNotFound),
		errors.Is(err, engine.ErrObligationNotFound),
		errors.Is(err, engine.ErrSettlementNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrExceedsRemaining),
		errors.Is(err, engine.ErrAlreadySettled),
		errors.Is(err, engine.ErrHasSettlements),
		errors.Is(err, engine.ErrProtectedEntry),
		errors.Is(err, engine.ErrWalletNotEmpty),
		errors.Is(err, engine.ErrWalletHasEntries),
		errors.Is(err, engine.ErrSameWalletTransfer):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrNonPositiveMagnitude):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "operation failed")
	}
}

func walletJSON(wallet engine.Wallet) map[string]any {
	return map[string]any{
		"id":         wallet.ID,
		"name":       wallet.Name,
		"balance":    money.FormatMinor(wallet.Balance),
		"created_at": wallet.CreatedAt,
	}
}

func entryJSON(entry engine.LedgerEntry) map[string]any {
	payload := map[string]any{
		"id":         entry.ID,
		"display_id": entry.DisplayID,
		"wallet_id":  entry.WalletID,
		"direction":  entry.Direction,
		"magnitude":  money.FormatMinor(entry.Magnitude),
		"category":   entry.Category,
		"note":       entry.Note,
		"date":       entry.Date,
		"transfer":   entry.Flags.Transfer,
		"correction": entry.Flags.BalanceCorrection,
		"created_at": entry.CreatedAt,
	}
	if entry.Flags.ObligationLinked {
		payload["obligation_id"] = entry.Linkage.ObligationID
		payload["obligation_role"] = entry.Linkage.Role
	}
	return payload
}

func settlementJSON(rec engine.SettlementRecord) map[string]any {
	return map[string]any{
		"id":         rec.ID,
		"magnitude":  money.FormatMinor(rec.Magnitude),
		"wallet_id":  rec.WalletID,
		"note":       rec.Note,
		"entry_id":   rec.EntryID,
		"created_at": rec.CreatedAt,
	}
}

func obligationJSON(ob engine.Obligation) map[string]any {
	settlements := make([]map[string]any, 0, len(ob.Settlements))
	for _, rec := range ob.Settlements {
		settlements = append(settlements, settlementJSON(rec))
	}
	payload := map[string]any{
		"id":           ob.ID,
		"counterparty": ob.Counterparty,
		"polarity":     ob.Polarity,
		"original":     money.FormatMinor(ob.Original),
		"remaining":    money.FormatMinor(ob.Remaining),
		"settled":      ob.Settled,
		"wallet_id":    ob.WalletID,
		"settlements":  settlements,
		"created_at":   ob.CreatedAt,
	}
	if !ob.DueDate.IsZero() {
		payload["due_date"] = ob.DueDate.Format(time.DateOnly)
	}
	return payload
}
