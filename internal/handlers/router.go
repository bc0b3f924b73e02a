package handlers

import (
	"net/http"

	"moneybook/internal/config"
	"moneybook/internal/db"
	"moneybook/internal/engine"
	"moneybook/internal/middleware"
	"moneybook/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	txRunner db.TxRunner
	users    UserStore
	audit    AuditStore
	ledger   *engine.Engine
	service  LedgerService
	hub      *websocket.Hub
}

func New(cfg config.Config, txRunner db.TxRunner, users UserStore, audit AuditStore, ledger *engine.Engine, service LedgerService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:      cfg,
		txRunner: txRunner,
		users:    users,
		audit:    audit,
		ledger:   ledger,
		service:  service,
		hub:      hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.Route("/wallets", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/", h.ListWallets)
		r.Post("/", h.CreateWallet)
		r.Delete("/{id}", h.DeleteWallet)
		r.Get("/{id}/balance", h.GetBalance)
		r.Post("/{id}/reset", h.ResetWallet)
		r.Post("/{id}/adjust", h.AdjustWallet)
		r.Get("/{id}/entries", h.ListWalletEntries)
	})
	router.Route("/transactions", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/", h.ListEntries)
		r.Post("/", h.RecordEntry)
		r.Post("/transfer", h.Transfer)
		r.Post("/correction", h.RecordCorrection)
		r.Patch("/{id}", h.UpdateEntry)
		r.Delete("/{id}", h.DeleteEntry)
	})
	router.Route("/obligations", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/", h.ListObligations)
		r.Post("/", h.Originate)
		r.Get("/summary", h.ObligationSummary)
		r.Get("/due", h.ObligationsDue)
		r.Get("/{id}", h.GetObligation)
		r.Delete("/{id}", h.DeleteObligation)
		r.Post("/{id}/cancel", h.CancelOrigination)
		r.Post("/{id}/settlements", h.Settle)
		r.Delete("/{id}/settlements/{sid}", h.DeleteSettlement)
		r.Get("/{id}/entries", h.ListObligationEntries)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/ledger/verify", h.VerifyLedger)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/audit", h.ListAuditLogs)
	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
