// Package testsupport provides migrated stores and seed helpers for package tests.
package testsupport

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/docket/migrations"
	"github.com/JaimeStill/docket/pkg/database"
)

// EnvPostgresDSN names the variable that enables PostgreSQL-backed tests.
const EnvPostgresDSN = "DOCKET_TEST_POSTGRES_DSN"

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MustOpenDB opens a migrated SQLite database in a per-test temp directory
// and registers cleanup.
func MustOpenDB(t testing.TB) database.System {
	t.Helper()

	cfg := database.Config{
		Driver:          "sqlite",
		Path:            filepath.Join(t.TempDir(), "docket.db"),
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}

	if err := migrations.Up(database.SQLite, cfg.Dsn()); err != nil {
		t.Fatalf("migrations.Up: %v", err)
	}

	db, err := database.New(&cfg, Logger())
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() {
		db.Connection().Close()
	})

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("database ping: %v", err)
	}
	return db
}

// MustOpenPostgres opens the PostgreSQL database named by DOCKET_TEST_POSTGRES_DSN,
// migrates it, and truncates every table. The test is skipped when the variable is unset.
func MustOpenPostgres(t testing.TB) database.System {
	t.Helper()

	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvPostgresDSN)
	}

	if err := migrations.Up(database.Postgres, dsn); err != nil {
		t.Fatalf("migrations.Up: %v", err)
	}

	conn, err := sql.Open(database.Postgres.DriverName(), dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(16)
	t.Cleanup(func() {
		conn.Close()
	})

	if _, err := conn.Exec("TRUNCATE task_events, task_assignments, tasks, import_rows"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return database.Wrap(conn, database.Postgres, Logger())
}
