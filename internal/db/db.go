package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/racetime/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions makes every write transaction take the database write lock at BEGIN, so
// concurrent writers queue on the busy timeout instead of failing on lock upgrade.
const dsnOptions = "_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

func InitDB(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?%s", path, dsnOptions))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}

	slog.Info("database connected", "path", path)
	return db, nil
}

// RunMigrations applies every pending migration embedded in the migrations package.
func RunMigrations(database *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
