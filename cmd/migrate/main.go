package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gocal/internal/config"
	"gocal/internal/container"
	"gocal/internal/migration"

	"github.com/jmoiron/sqlx"
)

// dropTables lists tables in reverse dependency order
var dropTables = []string{"runs", "observations", "series"}

func main() {
	if len(os.Args) > 3 {
		log.Fatal("Usage: migrate [database_url] [--reset]")
	}
	if _, err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	dbConfig := config.DatabaseConfig{URL: os.Getenv("DATABASE_URL"), MaxOpenConns: 1}
	reset := false
	for _, arg := range os.Args[1:] {
		if arg == "--reset" {
			reset = true
			continue
		}
		dbConfig.URL = arg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := container.OpenDatabase(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if reset {
		if err := resetDatabase(ctx, db); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
	}

	runner := migration.NewRunner()
	log.Printf("Applying schema %s: %v", runner.Version(), runner.Steps())
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration complete")
}

func resetDatabase(ctx context.Context, db *sqlx.DB) error {
	log.Println("Dropping calendarization tables")
	for _, table := range dropTables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
