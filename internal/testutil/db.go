package testutil

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/xxxsen/discovery/internal/config"
	"github.com/xxxsen/discovery/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_* and applies
// migrations. Tests are skipped when TEST_DB_HOST is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	port := 5432
	if v, err := strconv.Atoi(os.Getenv("TEST_DB_PORT")); err == nil && v > 0 {
		port = v
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "discovery"),
		Password: envOr("TEST_DB_PASSWORD", "discovery_pass"),
		DBName:   envOr("TEST_DB_NAME", "discovery_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(context.Background(), conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
