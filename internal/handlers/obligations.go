package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"moneybook/internal/engine"
	"moneybook/internal/middleware"
	"moneybook/internal/money"
	"moneybook/internal/validator"

	"github.com/go-chi/chi/v5"
)

type originateRequest struct {
	Counterparty string `json:"counterparty"`
	Polarity     string `json:"polarity"`
	Amount       string `json:"amount"`
	WalletID     string `json:"wallet_id"`
	DueDate      string `json:"due_date"`
	Note         string `json:"note"`
}

func (h *Handler) Originate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req originateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateCounterparty(req.Counterparty); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var polarity engine.Polarity
	switch req.Polarity {
	case string(engine.OwedByUser):
		polarity = engine.OwedByUser
	case string(engine.OwedToUser):
		polarity = engine.OwedToUser
	default:
		respondError(w, http.StatusBadRequest, "polarity must be owed_by_user or owed_to_user")
		return
	}
	magnitude, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	var dueDate time.Time
	if req.DueDate != "" {
		dueDate, err = time.Parse(time.DateOnly, req.DueDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}
	}
	res, err := h.service.Originate(r.Context(), userID, engine.OriginateParams{
		Counterparty: req.Counterparty,
		Polarity:     polarity,
		Magnitude:    magnitude,
		WalletID:     req.WalletID,
		DueDate:      dueDate,
		Note:         req.Note,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := obligationJSON(res.Obligation)
	payload["entry"] = entryJSON(res.Entry)
	payload["wallet_balance"] = money.FormatMinor(res.Wallet.Balance)
	respondJSON(w, http.StatusCreated, payload)
}

type settleRequest struct {
	Amount   string `json:"amount"`
	WalletID string `json:"wallet_id"`
	Note     string `json:"note"`
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	magnitude, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := h.service.Settle(r.Context(), userID, chi.URLParam(r, "id"), magnitude, req.WalletID, req.Note)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := obligationJSON(res.Obligation)
	payload["settlement"] = settlementJSON(res.Settlement)
	payload["entry"] = entryJSON(res.Entry)
	payload["wallet_balance"] = money.FormatMinor(res.Wallet.Balance)
	respondJSON(w, http.StatusCreated, payload)
}

func (h *Handler) CancelOrigination(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.service.CancelOrigination(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "cancelled",
		"wallet_id":      res.Wallet.ID,
		"wallet_balance": money.FormatMinor(res.Wallet.Balance),
	})
}

func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.service.DeleteSettlement(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := obligationJSON(res.Obligation)
	payload["wallet_balance"] = money.FormatMinor(res.Wallet.Balance)
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) DeleteObligation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.service.DeleteObligation(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	wallets := make([]map[string]any, 0, len(res.Wallets))
	for _, wallet := range res.Wallets {
		wallets = append(wallets, map[string]any{
			"wallet_id": wallet.ID,
			"balance":   money.FormatMinor(wallet.Balance),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "deleted",
		"entries_removed": len(res.EntryIDs),
		"wallets":         wallets,
	})
}

func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ob, err := h.ledger.Obligation(userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, obligationJSON(ob))
}

func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	obligations := h.ledger.Obligations(userID)
	payload := make([]map[string]any, 0, len(obligations))
	for _, ob := range obligations {
		payload = append(payload, obligationJSON(ob))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) ListObligationEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.ledger.EntriesByObligation(userID, chi.URLParam(r, "id"))
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

func (h *Handler) ObligationSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	summaries := h.ledger.SummaryByCounterparty(userID)
	payload := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		payload = append(payload, map[string]any{
			"counterparty": summary.Counterparty,
			"payable":      money.FormatMinor(summary.Payable),
			"receivable":   money.FormatMinor(summary.Receivable),
		})
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) ObligationsDue(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}
	due := h.ledger.DueWithin(userID, time.Duration(days)*24*time.Hour)
	payload := make([]map[string]any, 0, len(due))
	for _, ob := range due {
		payload = append(payload, obligationJSON(ob))
	}
	respondJSON(w, http.StatusOK, payload)
}
