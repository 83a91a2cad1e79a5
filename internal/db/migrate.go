package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/go-echeancier/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// requiredTables must exist once the schema is in place.
var requiredTables = []string{"quotes", "quote_lines"}

// Migrate creates or updates the schema with gorm's AutoMigrate.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&models.Quote{}, &models.QuoteLine{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return CheckSchema(db)
}

// CheckSchema verifies that the core tables exist.
func CheckSchema(db *gorm.DB) error {
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded SQL migrations to the postgres
// database at dsn. Both URL and key=value DSNs are accepted.
func RunSQLMigrations(dsn string) error {
	src, err := iofs.New(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, ToURLDSN(NormalizeDSN(dsn)))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
