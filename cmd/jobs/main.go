// One-shot batch runner for cron environments without an HTTP scheduler.
// Runs the escrow settlement pass and the stale-purchase reaper, then exits.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/driftlab/market-backend/internal/config"
	"github.com/driftlab/market-backend/internal/db"
	"github.com/driftlab/market-backend/internal/mail"
	"github.com/driftlab/market-backend/internal/payment"
	"github.com/driftlab/market-backend/internal/repository"
	"github.com/driftlab/market-backend/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	release := flag.Bool("release", true, "run the escrow release pass")
	reap := flag.Bool("reap", true, "run the stale purchase reaper")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}

	purchaseRepo := repository.NewPurchaseRepository(conn)
	userRepo := repository.NewUserRepository(conn)
	notificationRepo := repository.NewNotificationRepository(conn)
	mailer := mail.NewResendMailer(cfg.ResendAPIKey, cfg.FromEmail)
	notifySvc := service.NewNotificationService(notificationRepo, mailer)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey)
	settlement := service.NewSettlementService(purchaseRepo, userRepo, gateway, notifySvc,
		time.Duration(cfg.StaleThresholdHours)*time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *release {
		res, err := settlement.ReleaseDue(ctx)
		if err != nil {
			log.Fatalf("release pass failed: %v", err)
		}
		log.Printf("release pass: processed=%d released=%d failed=%d", res.Processed, res.Released, res.Failed)
		for _, e := range res.Errors {
			log.Printf("release failure: %s", e)
		}
	}
	if *reap {
		res, err := settlement.ReapStale(ctx)
		if err != nil {
			log.Fatalf("reap pass failed: %v", err)
		}
		log.Printf("reap pass: deleted=%d ids=%v", res.DeletedCount, res.DeletedIDs)
	}
}
