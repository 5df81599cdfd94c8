package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Proton-105/pricechek-rider/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// a single connection keeps in-memory databases shared and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}

	return db, nil
}

// Migrations returns the embedded migration set for driver.
func Migrations(driver string) (fs.FS, error) {
	dir := "migrations/" + driver
	if _, err := fs.Stat(migrationsFS, dir); err != nil {
		return nil, fmt.Errorf("migrations for %q: %w", driver, err)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations for %q: %w", driver, err)
	}
	return sub, nil
}

// Migrate applies the embedded migrations matching db's driver.
func Migrate(ctx context.Context, db *sqlx.DB, log *slog.Logger) error {
	migrations, err := Migrations(db.DriverName())
	if err != nil {
		return err
	}

	return NewMigrator(db, log).Apply(ctx, migrations)
}
