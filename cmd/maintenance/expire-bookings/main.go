package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/localbazaar/reservation-backend/internal/config"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// Runs the expiry sweeper once outside the server process, for example when
// the in-process cron is disabled or after an outage.
func main() {
	var (
		dbURLFlag string
		batchSize int
		dryRun    bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.IntVar(&batchSize, "batch-size", 100, "maximum bookings to expire in this run")
	flag.BoolVar(&dryRun, "dry-run", false, "list expired bookings without changing them")
	flag.Parse()

	// Optional .env in the working directory
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
		LockTimeout:        3 * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bookingRepo := database.NewBookingRepository(db)

	if dryRun {
		expired, err := bookingRepo.ListExpired(ctx, time.Now(), batchSize)
		if err != nil {
			log.Fatalf("failed to list expired bookings: %v", err)
		}
		fmt.Printf("%d booking(s) past their hold deadline:\n", len(expired))
		for _, b := range expired {
			fmt.Printf("  %s  %-16s  expired %s\n", b.ID, b.Status, b.ExpiresAt.Format(time.RFC3339))
		}
		return
	}

	ledger := services.NewBookingLedgerService(
		db,
		database.NewResourceRepository(db),
		bookingRepo,
		nil,
		nil,
		nil,
		services.LedgerConfig{LockTimeout: 3 * time.Second},
		logger,
	)
	sweeper := services.NewExpirySweeperService(bookingRepo, ledger, batchSize, logger)

	result, err := sweeper.RunOnce(ctx)
	if err != nil {
		log.Fatalf("expiry sweep failed: %v", err)
	}

	fmt.Printf("Scanned %d, expired %d, skipped %d, failed %d\n",
		result.Scanned, result.Expired, result.Skipped, result.Failed)
	if result.Failed > 0 {
		os.Exit(1)
	}
}
