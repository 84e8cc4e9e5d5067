package repository

import (
	"context"
	"os"
	"testing"

	"github.com/fossbin/propease/internal/config"
	"github.com/fossbin/propease/internal/database"
)

// getTestConfig returns database configuration for integration tests.
func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "propease_test"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		SSLMode:  "disable",
		PoolMin:  1,
		PoolMax:  10,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupPostgresStore connects, migrates and truncates the test database.
func setupPostgresStore(t *testing.T) Store {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Migrate(database.Up, ""); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, `TRUNCATE payments, transactions, applications, properties`); err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}

	return NewPostgresStore(db)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	runStoreContract(t, setupPostgresStore)
}

func TestWhereBuilder(t *testing.T) {
	var w whereBuilder
	if w.String() != "" {
		t.Errorf("Expected empty where clause, got %q", w.String())
	}

	w.add("owner_id = ?", "o")
	w.add("active")
	w.add("ST_DWithin(geom, ST_MakePoint(?, ?), ?)", 1.0, 2.0, 3.0)

	want := " WHERE owner_id = $1 AND active AND ST_DWithin(geom, ST_MakePoint($2, $3), $4)"
	if got := w.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if len(w.args) != 4 {
		t.Errorf("Expected 4 args, got %d", len(w.args))
	}
}
