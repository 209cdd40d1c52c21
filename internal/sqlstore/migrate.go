// Package sqlstore implements the optional relational loader and migrator:
// a one-shot SQL-file migrator and a workflow hydrator over a
// jackc/pgx/v5-backed *sql.DB, grounded on original_source/src/sql.rs's
// glob-and-split migration runner and the dynamic-add lookup it uses to
// turn dependency rows into graph edges.
package sqlstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pkg/errors"

	"github.com/willwooten/thermidor/internal/telemetry/resilience"
)

// connectAttempts and connectBaseDelay bound how hard Connect retries a
// database that is not yet accepting connections (e.g. during a rolling
// deploy or container startup race).
const (
	connectAttempts  = 5
	connectBaseDelay = 250 * time.Millisecond
)

// Connect opens a connection pool against a Postgres url via pgx's
// database/sql shim, so the rest of this package can be exercised against
// DATA-DOG/go-sqlmock in tests without depending on pgx's native pool type.
// The open-and-ping attempt is retried with resilience.Retry's exponential
// backoff, since a database that is still starting up should not fail the
// caller on the first attempt.
func Connect(ctx context.Context, url string) (*sql.DB, error) {
	db, err := resilience.Retry(ctx, connectAttempts, connectBaseDelay, func() (*sql.DB, error) {
		db, err := sql.Open("pgx", url)
		if err != nil {
			return nil, errors.Wrap(err, "sqlstore: open connection")
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "sqlstore: ping database")
		}
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations enumerates folder/*.sql in lexicographic order (so
// 01_*.sql runs before 02_*.sql), splits each file's contents on ';',
// trims empty statements, and executes every remaining statement in
// order. It aborts on the first failing file or statement.
func RunMigrations(ctx context.Context, db *sql.DB, folder string) error {
	matches, err := filepath.Glob(filepath.Join(folder, "*.sql"))
	if err != nil {
		return errors.Wrap(err, "sqlstore: glob migrations folder")
	}
	sort.Strings(matches)

	for _, path := range matches {
		if err := executeMigrationFile(ctx, db, path); err != nil {
			return errors.Wrapf(err, "sqlstore: migration %s failed", path)
		}
	}
	return nil
}

func executeMigrationFile(ctx context.Context, db *sql.DB, path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read migration file")
	}

	for _, stmt := range splitStatements(string(contents)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "execute statement %q", stmt)
		}
	}
	return nil
}

func splitStatements(sqlText string) []string {
	raw := strings.Split(sqlText, ";")
	out := make([]string, 0, len(raw))
	for _, stmt := range raw {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
