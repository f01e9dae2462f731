package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// ErrSchemaMismatch reports a history database written by a newer tamperwatch.
var ErrSchemaMismatch = errors.New("history: schema version mismatch")

// migration upgrades the database to version. The version is tracked in
// SQLite's user_version header, so there is no bookkeeping table to drift.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{version: 1, name: "evaluations table", stmt: baseSchema},
	// "history --tampered" and /api/evaluations?tampered=true scan only
	// flagged rows; they are rare next to clear verdicts.
	{version: 2, name: "tampered index", stmt: `CREATE INDEX IF NOT EXISTS idx_evaluations_tampered
        ON evaluations(created_at) WHERE tampered = 1`},
}

func latestVersion() int {
	return migrations[len(migrations)-1].version
}

// migrate applies every migration newer than the database, one transaction
// per step, and refuses databases from a newer release.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	if current > latestVersion() {
		return fmt.Errorf("%w: %s has version %d, this build understands up to %d",
			ErrSchemaMismatch, s.path, current, latestVersion())
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s): begin: %w", m.version, m.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migration %d (%s): record version: %w", m.version, m.name, err)
	}
	return tx.Commit()
}
