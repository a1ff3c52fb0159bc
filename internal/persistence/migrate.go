package persistence

import (
	"context"
	"fmt"
)

// A revision is one atomic schema step. Revisions are applied in ascending
// version order, each inside its own transaction, and recorded in
// schema_migrations so re-application is a no-op.
type revision struct {
	version int
	name    string
	stmts   []string
}

var revisions = []revision{
	{
		version: 1,
		name:    "core-tables",
		stmts: []string{
			`CREATE TABLE messages (
				message_id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				ts         INTEGER NOT NULL
			);`,
			`CREATE INDEX idx_messages_session ON messages(session_id);`,
			`CREATE INDEX idx_messages_ts ON messages(ts);`,
			`CREATE TABLE memory_facts (
				id         TEXT PRIMARY KEY,
				key        TEXT NOT NULL UNIQUE,
				value      TEXT NOT NULL,
				confidence REAL NOT NULL,
				updated_at INTEGER NOT NULL
			);`,
			`CREATE TABLE tool_calls (
				call_id    TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				tool       TEXT NOT NULL,
				args       TEXT NOT NULL,
				result     TEXT,
				ok         INTEGER,
				elapsed_ms INTEGER,
				ts         INTEGER NOT NULL
			);`,
			`CREATE INDEX idx_tool_calls_session ON tool_calls(session_id);`,
			`CREATE INDEX idx_tool_calls_ts ON tool_calls(ts);`,
			`CREATE TABLE artifacts (
				id       TEXT PRIMARY KEY,
				type     TEXT NOT NULL,
				path     TEXT NOT NULL,
				metadata TEXT,
				ts       INTEGER NOT NULL
			);`,
		},
	},
	{
		version: 2,
		name:    "tasks",
		stmts: []string{
			`CREATE TABLE tasks (
				id         TEXT PRIMARY KEY,
				title      TEXT NOT NULL,
				schedule   TEXT NOT NULL,
				payload    TEXT,
				enabled    INTEGER NOT NULL DEFAULT 1,
				last_run   INTEGER,
				next_run   INTEGER,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);`,
			`CREATE INDEX idx_tasks_next_run ON tasks(next_run);`,
		},
	},
	{
		version: 3,
		name:    "task-runs-journal",
		stmts: []string{
			`CREATE TABLE task_runs (
				run_id     INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id    TEXT NOT NULL,
				ok         INTEGER NOT NULL,
				detail     TEXT,
				created_at INTEGER NOT NULL
			);`,
			`CREATE INDEX idx_task_runs_task ON task_runs(task_id);`,
		},
	},
	{
		version: 4,
		name:    "notes",
		stmts: []string{
			`CREATE TABLE notes (
				id      TEXT PRIMARY KEY,
				title   TEXT NOT NULL,
				content TEXT NOT NULL,
				ts      INTEGER NOT NULL
			);`,
		},
	},
}

// SchemaLatest is the newest schema revision this build knows about.
var SchemaLatest = revisions[len(revisions)-1].version

// SchemaVersion returns the highest applied revision, zero for a fresh
// database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if err := s.ensureMigrationLedger(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// ApplyTo brings the schema from its current revision up to target,
// applying each pending revision exactly once in ascending order, one
// transaction per revision. Calling with an already-applied target is a
// no-op. On failure the store remains at the last fully applied revision
// and a *MigrationError is returned.
func (s *Store) ApplyTo(ctx context.Context, target int) error {
	if err := s.ensureMigrationLedger(ctx); err != nil {
		return err
	}
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > SchemaLatest {
		return fmt.Errorf("db schema version %d is newer than supported %d", current, SchemaLatest)
	}
	if target > SchemaLatest {
		return fmt.Errorf("unknown schema target %d (latest is %d)", target, SchemaLatest)
	}

	for _, rev := range revisions {
		if rev.version <= current || rev.version > target {
			continue
		}
		if err := s.applyRevision(ctx, rev); err != nil {
			return &MigrationError{Version: rev.version, Name: rev.name, Err: err}
		}
	}
	return nil
}

func (s *Store) applyRevision(ctx context.Context, rev revision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range rev.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, name, applied_at)
		VALUES (?, ?, CURRENT_TIMESTAMP);
	`, rev.version, rev.name); err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ensureMigrationLedger(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
