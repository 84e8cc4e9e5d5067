package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies the schema migrations in the given direction.
// An empty dir uses the migrations embedded in the binary; otherwise dir is
// read from disk. Returns the resulting schema version.
func (db *Database) Migrate(direction Direction, dir string) (uint, error) {
	m, err := db.migrator(dir)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Steps(-1)
	default:
		return 0, fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to migrate %s: %w", direction, err)
	}

	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (db *Database) migrator(dir string) (*migrate.Migrate, error) {
	driver, err := pgxmigrate.WithInstance(stdlib.OpenDBFromPool(db.Pool), &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	if dir != "" {
		m, err := migrate.NewWithDatabaseInstance("file://"+dir, "pgx5", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to load migrations from %s: %w", dir, err)
		}
		return m, nil
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
