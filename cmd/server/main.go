package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneybook/internal/config"
	"moneybook/internal/db"
	"moneybook/internal/engine"
	"moneybook/internal/handlers"
	"moneybook/internal/services"
	"moneybook/internal/store"
	"moneybook/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	wallets := store.NewWalletStore(database)
	entries := store.NewEntryStore(database)
	obligations := store.NewObligationStore(database)
	counters := store.NewCounterStore(database)
	audit := store.NewAuditStore(database)
	loader := store.NewSnapshotLoader(wallets, entries, obligations, counters)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	ledger := engine.New()
	service := services.NewLedgerService(ledger, txRunner, wallets, entries, obligations, counters, audit, loader, hub)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.Hydrate(startupCtx); err != nil {
		cancelStartup()
		log.Fatalf("failed to hydrate ledger: %v", err)
	}
	if err := service.PruneIdentifiers(startupCtx, cfg.IdentRetentionMonths); err != nil {
		log.Printf("identifier prune failed: %v", err)
	}
	cancelStartup()
	if err := ledger.Verify(); err != nil {
		log.Fatalf("ledger inconsistent after hydrate: %v", err)
	}

	pruneDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := service.PruneIdentifiers(ctx, cfg.IdentRetentionMonths); err != nil {
					log.Printf("identifier prune failed: %v", err)
				}
				cancel()
			case <-pruneDone:
				return
			}
		}
	}()

	handler := handlers.New(cfg, txRunner, users, audit, ledger, service, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("moneybook API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	close(pruneDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
