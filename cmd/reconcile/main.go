package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/learnhub/lms-api/config"
	"github.com/learnhub/lms-api/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds everything the reconcile command needs. All values come from
// flags or the environment; there are no baked-in connection strings.
type Config struct {
	DSN     string
	DryRun  bool
	Timeout time.Duration
}

func loadConfig() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.DSN, "dsn", "", "PostgreSQL DSN (defaults to DB_* environment variables)")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "report drift without writing corrections")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Minute, "abort the sweep after this long")
	flag.Parse()

	if cfg.DSN == "" {
		if err := config.LoadENV(); err != nil {
			log.Printf("No .env file loaded: %v", err)
		}
		env, err := config.Get()
		if err != nil {
			return nil, err
		}
		if env.DB_NAME == "" {
			return nil, fmt.Errorf("no database configured: set -dsn or the DB_* environment variables")
		}
		cfg.DSN = env.DSN()
	}

	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get database handle: %v", err)
	}
	defer sqlDB.Close()

	if cfg.DryRun {
		// Drift detection without writes runs in a rolled-back transaction.
		db = db.Begin()
		defer db.Rollback()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	reconciler := services.NewEnrollmentReconciler(db)
	summary, err := reconciler.ReconcileAll(ctx)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}

	fmt.Printf("processed:       %d\n", summary.Processed)
	fmt.Printf("fixed:           %d\n", summary.Fixed)
	fmt.Printf("already correct: %d\n", summary.AlreadyCorrect)
	fmt.Printf("skipped:         %d\n", summary.Skipped)
	fmt.Printf("failed:          %d\n", summary.Failed)

	if cfg.DryRun {
		fmt.Println("dry run: no corrections were committed")
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
