package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/config"
	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// Events that leave a wallet and the reseller out of step
var needsReconciliation = []models.BookingEventType{
	models.BookingEventLedgerCommitFailed,
	models.BookingEventReconciliationFailed,
	models.BookingEventVoidPartial,
	models.BookingEventBookingRemovalFailed,
}

func main() {
	limit := flag.Int("limit", 50, "events per type")
	transactionID := flag.String("transaction", "", "show the full history of one transaction instead")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, _, err := database.OpenDocumentStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close()

	audits := database.NewAuditRepository(store, logger)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "CREATED\tEVENT\tTRANSACTION\tWALLET\tREFERENCE\tAMOUNT\tERROR")

	if *transactionID != "" {
		events, err := audits.ListByTransaction(ctx, *transactionID)
		if err != nil {
			log.Fatalf("Failed to list events: %v", err)
		}
		for _, e := range events {
			printEvent(w, e)
		}
		return
	}

	for _, eventType := range needsReconciliation {
		events, err := audits.ListRecent(ctx, eventType, *limit)
		if err != nil {
			log.Fatalf("Failed to list %s events: %v", eventType, err)
		}
		for _, e := range events {
			printEvent(w, e)
		}
	}
}

func printEvent(w *tabwriter.Writer, e *models.BookingAudit) {
	amount := ""
	if e.Amount != nil {
		amount = e.Amount.StringFixed(2) + " " + deref(e.Currency)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		e.CreatedAt.Format(time.RFC3339),
		e.EventType,
		deref(e.TransactionID),
		deref(e.WalletID),
		deref(e.BookingReferenceNo),
		amount,
		deref(e.ErrorMessage),
	)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
