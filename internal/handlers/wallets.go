package handlers

import (
	"encoding/json"
	"net/http"

	"moneybook/internal/middleware"
	"moneybook/internal/money"
	"moneybook/internal/validator"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallets := h.ledger.Wallets(userID)
	payload := make([]map[string]any, 0, len(wallets))
	for _, wallet := range wallets {
		payload = append(payload, walletJSON(wallet))
	}
	respondJSON(w, http.StatusOK, payload)
}

type createWalletRequest struct {
	Name string `json:"name"`
	Seed string `json:"seed"`
}

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var seed int64
	if req.Seed != "" {
		var err error
		seed, err = money.ParseMinor(req.Seed)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid seed amount")
			return
		}
	}
	res, err := h.service.CreateWallet(r.Context(), userID, req.Name, seed)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := walletJSON(res.Wallet)
	if res.Entry != nil {
		payload["opening_entry"] = entryJSON(*res.Entry)
	}
	respondJSON(w, http.StatusCreated, payload)
}

func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.service.DeleteWallet(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.ledger.Wallet(userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"wallet_id": wallet.ID,
		"balance":   money.FormatMinor(wallet.Balance),
	})
}

func (h *Handler) ResetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.service.ResetWallet(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, walletJSON(wallet))
}

type adjustWalletRequest struct {
	Delta string `json:"delta"`
}

// AdjustWallet applies a raw signed delta to a wallet balance without a
// journal entry. Administrative, like reset.
func (h *Handler) AdjustWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req adjustWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	delta, err := money.ParseMinor(req.Delta)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid delta")
		return
	}
	if delta == 0 {
		respondError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	wallet, err := h.service.ApplyDelta(r.Context(), userID, chi.URLParam(r, "id"), delta)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, walletJSON(wallet))
}

func (h *Handler) ListWalletEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.ledger.EntriesByWallet(userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, entryJSON(entry))
	}
	respondJSON(w, http.StatusOK, payload)
}

// VerifyLedger recomputes the engine's internal invariants and reports
// any violation found.
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.ledger.Verify(); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"consistent": false,
			"detail":     err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"consistent": true})
}
