package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/paybridge/pkg/db"
)

//go:embed sql/postgres/*.sql sql/sqlite3/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies every pending migration for the given dialect.
// The schema is small enough that startup applies it directly.
func RunMigrations(conn *sql.DB, dialect string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	dir, err := migrationsDir(dialect)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case db.TypeSQLite:
		driver, err = sqlite3.WithInstance(conn, &sqlite3.Config{})
	default:
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dialectName(dialect), driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

func migrationsDir(dialect string) (string, error) {
	switch dialect {
	case db.TypePostgres, "":
		return "sql/postgres", nil
	case db.TypeSQLite:
		return "sql/sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", dialect)
	}
}

func dialectName(dialect string) string {
	if dialect == db.TypeSQLite {
		return "sqlite3"
	}
	return "postgres"
}
