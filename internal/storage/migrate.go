package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// runMigrations applies the schema for dbName ("sqlite" or "postgres").
// An empty dir uses the migrations compiled into the binary.
func runMigrations(driver database.Driver, dbName, dir string) error {
	var (
		m   *migrate.Migrate
		err error
	)
	if dir != "" {
		m, err = migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), dbName, driver)
	} else {
		src, srcErr := iofs.New(migrationsFS, "migrations/"+dbName)
		if srcErr != nil {
			return fmt.Errorf("could not open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithInstance("iofs", src, dbName, driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}
