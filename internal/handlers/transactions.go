package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"moneybook/internal/engine"
	"moneybook/internal/middleware"
	"moneybook/internal/money"

	"github.com/go-chi/chi/v5"
)

type recordEntryRequest struct {
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	WalletID  string `json:"wallet_id"`
	Category  string `json:"category"`
	Note      string `json:"note"`
	Date      string `json:"date"`
}

func (r recordEntryRequest) toParams() (engine.RecordParams, string) {
	var direction engine.Direction
	switch r.Direction {
	case "credit":
		direction = engine.Credit
	case "debit":
		direction = engine.Debit
	default:
		return engine.RecordParams{}, "direction must be credit or debit"
	}
	magnitude, err := money.ParseMinor(r.Amount)
	if err != nil {
		return engine.RecordParams{}, "invalid amount"
	}
	date := time.Now().UTC()
	if r.Date != "" {
		parsed, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return engine.RecordParams{}, "date must be YYYY-MM-DD"
		}
		date = parsed
	}
	return engine.RecordParams{
		Direction: direction,
		Magnitude: magnitude,
		WalletID:  r.WalletID,
		Category:  r.Category,
		Note:      r.Note,
		Date:      date,
	}, ""
}

func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req recordEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	params, problem := req.toParams()
	if problem != "" {
		respondError(w, http.StatusBadRequest, problem)
		return
	}
	res, err := h.service.RecordEntry(r.Context(), userID, params)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := entryJSON(res.Entry)
	payload["wallet_balance"] = money.FormatMinor(res.Wallet.Balance)
	respondJSON(w, http.StatusCreated, payload)
}

func (h *Handler) RecordCorrection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req recordEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	params, problem := req.toParams()
	if problem != "" {
		respondError(w, http.StatusBadRequest, problem)
		return
	}
	res, err := h.service.RecordCorrection(r.Context(), userID, params)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	payload := entryJSON(res.Entry)
	payload["wallet_balance"] = money.FormatMinor(res.Wallet.Balance)
	respondJSON(w, http.StatusCreated, payload)
}

type transferRequest struct {
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	Amount       string `json:"amount"`
	Note         string `json:"note"`
	Date         string `json:"date"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	magnitude, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	res, err := h.service.Transfer(r.Context(), userID, req.FromWalletID, req.ToWalletID, magnitude, req.Note, date)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"out":          entryJSON(res.Out),
		"in":           entryJSON(res.In),
		"from_balance": money.FormatMinor(res.From.Balance),
		"to_balance":   money.FormatMinor(res.To.Balance),
	})
}

type updateEntryRequest struct {
	Category string `json:"category"`
	Note     string `json:"note"`
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	entry, err := h.service.UpdateEntry(r.Context(), userID, chi.URLParam(r, "id"), req.Category, req.Note)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entryJSON(entry))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.service.DeleteEntry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "deleted",
		"wallet_id":      res.Wallet.ID,
		"wallet_balance": money.FormatMinor(res.Wallet.Balance),
	})
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries := h.ledger.Entries(userID)
	payload := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, entryJSON(entry))
	}
	respondJSON(w, http.StatusOK, payload)
}
