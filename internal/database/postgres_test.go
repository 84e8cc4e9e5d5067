package database

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fossbin/propease/internal/config"
)

func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "propease_test"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		SSLMode:  "disable",
		PoolMin:  1,
		PoolMax:  5,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func TestEmbeddedMigrations_Paired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("Failed to read embedded migrations: %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("Unexpected file in migrations: %s", name)
		}
	}

	if len(ups) == 0 {
		t.Fatal("Expected at least one up migration")
	}
	for version := range ups {
		if !downs[version] {
			t.Errorf("Migration %s has no down file", version)
		}
	}
}

func TestEmbeddedMigrations_ActiveTransactionIndex(t *testing.T) {
	content, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("Failed to read init migration: %v", err)
	}
	if !strings.Contains(string(content), "transactions_active_property_idx") {
		t.Error("Expected partial unique index guarding one active transaction per property")
	}
}

func TestNewPostgresPool_Success(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	cfg := getTestConfig()

	db, err := NewPostgresPool(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats == nil {
		t.Fatal("Expected stats to be available")
	}
	if stats.MaxConns() != int32(cfg.PoolMax) {
		t.Errorf("Expected MaxConns %d, got %d", cfg.PoolMax, stats.MaxConns())
	}
}

func TestNewPostgresPool_InvalidHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.Host = "invalid-host-that-does-not-exist"

	if _, err := NewPostgresPool(ctx, cfg); err == nil {
		t.Error("Expected error when connecting to invalid host")
	}
}

func TestPing_AfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	db.Close()
	db.Close()

	if err := db.Ping(ctx); err == nil {
		t.Error("Expected ping to fail after pool is closed")
	}
}

func TestMigrate_UpDownUp(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewPostgresPool(context.Background(), getTestConfig())
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	defer db.Close()

	version, err := db.Migrate(Up, "")
	if err != nil {
		t.Fatalf("Migrate up failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}

	// Up again is a no-op.
	if _, err := db.Migrate(Up, ""); err != nil {
		t.Fatalf("Second migrate up failed: %v", err)
	}

	if _, err := db.Migrate(Down, ""); err != nil {
		t.Fatalf("Migrate down failed: %v", err)
	}
	if _, err := db.Migrate(Up, ""); err != nil {
		t.Fatalf("Migrate up after down failed: %v", err)
	}
}
