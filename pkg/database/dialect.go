package database

import "fmt"

// Dialect identifies the SQL backend behind a connection and the locking
// features it offers.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect validates a configured driver name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case Postgres, SQLite:
		return Dialect(s), nil
	}
	return "", fmt.Errorf("unsupported database driver: %q", s)
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// ForUpdate returns the row-lock suffix for a read that will be followed by an
// update in the same transaction. SQLite serialises writers instead and returns "".
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// SkipLocked returns the lock-skipping suffix used by dequeue reads: rows
// already locked by another transaction are excluded rather than waited on.
// SQLite has no equivalent; callers fall back to a compare-and-swap update.
func (d Dialect) SkipLocked() string {
	if d == Postgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

// SupportsSkipLocked reports whether SkipLocked yields a native lock-skipping read.
func (d Dialect) SupportsSkipLocked() bool {
	return d == Postgres
}
