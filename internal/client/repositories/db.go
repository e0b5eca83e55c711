// Package repositories wires the local SQLite database: it opens the file
// with the durability pragmas the offline-first engine depends on, runs the
// embedded goose migrations, and hands out the per-entity repositories.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/certsync/certsync/internal/client/migrations"
	"github.com/certsync/certsync/internal/client/repositories/attachments"
	"github.com/certsync/certsync/internal/client/repositories/certificates"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories bundles the local store handles used by the services layer.
type Repositories struct {
	Certificates certificates.Repository
	Attachments  attachments.Repository
	DB           *sql.DB
}

// DSN builds a SQLite connection string with WAL journaling and synchronous
// FULL, so a crash immediately after Put returns cannot lose the write.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)", path)
}

// RunMigrations applies the embedded migrations to the local database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (or creates) the local database and returns the
// repositories bound to it.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// The local store assumes a single writer process.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Certificates: certificates.NewSQLiteRepository(db),
		Attachments:  attachments.NewSQLiteRepository(db),
		DB:           db,
	}, nil
}
