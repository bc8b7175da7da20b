package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/config"
	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// clear-cache drops session-scoped state: cached charges and the stored
// reseller token. Wallets, the ledger and bookings are never touched.
func main() {
	var keepToken, all bool
	flag.BoolVar(&keepToken, "keep-token", false, "leave the stored reseller token in place")
	flag.BoolVar(&all, "all", false, "drop every cached charges entry, not just expired ones")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, _, err := database.OpenDocumentStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close()

	fmt.Printf("Connected to %s store. Clearing cached state...\n", cfg.Database.Driver)

	cutoff := time.Now()
	if all {
		cutoff = time.Now().Add(100 * 365 * 24 * time.Hour)
	}
	removed, err := database.NewChargesCacheRepository(store, cfg.Session.ChargesTTL).DeleteExpired(ctx, cutoff)
	if err != nil {
		log.Fatalf("Failed to clear cached charges: %v", err)
	}
	fmt.Printf("  %s: %d removed\n", models.CollectionSessionCharges, removed)

	if !keepToken {
		if err := store.Delete(ctx, models.CollectionFerryAuthTokens, models.FerryAuthTokenDocID); err != nil {
			log.Fatalf("Failed to delete stored token: %v", err)
		}
		fmt.Printf("  %s: removed\n", models.CollectionFerryAuthTokens)
	}

	fmt.Println("Done.")
}
