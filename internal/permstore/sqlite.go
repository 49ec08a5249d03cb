// Copyright 2026 The Riff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package permstore persists permission pattern sets and resolved ask
// decisions in SQLite, backing the permission mediator for local CLI use.
//
// Database location: ~/.riff/riff.db
package permstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/riffware/riff/pkg/permissions"
)

// SQLiteStore implements permissions.Store on a local SQLite database.
//
// Features:
//   - WAL mode for better concurrency
//   - schema migrations run on open
//   - pattern edits visible to the next check without restart
type SQLiteStore struct {
	db *sql.DB
}

// DefaultPath returns the standard database location under the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".riff", "riff.db"), nil
}

// Open creates or opens the permission database at path, running
// migrations as needed. The parent directory is created if missing.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=ON"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite with WAL mode serves multiple readers; writes serialize.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS permission_patterns (
			scope TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('allow', 'ask', 'deny')),
			pattern TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (scope, kind, pattern)
		)`,

		`CREATE TABLE IF NOT EXISTS permission_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			resource TEXT NOT NULL,
			scope TEXT NOT NULL,
			outcome TEXT NOT NULL,
			decided_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_decisions_session
			ON permission_decisions (session, resource)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// LoadPatterns implements permissions.Store.
func (s *SQLiteStore) LoadPatterns(ctx context.Context, scope permissions.Scope) (*permissions.PatternSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, pattern FROM permission_patterns WHERE scope = ? ORDER BY pattern`,
		string(scope))
	if err != nil {
		return nil, fmt.Errorf("querying patterns for scope %s: %w", scope, err)
	}
	defer rows.Close()

	set := &permissions.PatternSet{}
	for rows.Next() {
		var kind, pattern string
		if err := rows.Scan(&kind, &pattern); err != nil {
			return nil, fmt.Errorf("scanning pattern row: %w", err)
		}
		switch kind {
		case "allow":
			set.Allow = append(set.Allow, pattern)
		case "ask":
			set.Ask = append(set.Ask, pattern)
		case "deny":
			set.Deny = append(set.Deny, pattern)
		}
	}
	return set, rows.Err()
}

// SaveDecision implements permissions.Store, appending to the decision
// audit log.
func (s *SQLiteStore) SaveDecision(ctx context.Context, session, resource string, scope permissions.Scope, outcome permissions.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO permission_decisions (session, resource, scope, outcome) VALUES (?, ?, ?, ?)`,
		session, resource, string(scope), string(outcome))
	if err != nil {
		return fmt.Errorf("saving decision for %s: %w", resource, err)
	}
	return nil
}

// AddPattern registers a pattern under a scope and kind. kind is one of
// "allow", "ask" or "deny". Adding an existing pattern is a no-op.
func (s *SQLiteStore) AddPattern(ctx context.Context, scope permissions.Scope, kind, pattern string) error {
	switch kind {
	case "allow", "ask", "deny":
	default:
		return fmt.Errorf("unknown pattern kind %q", kind)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO permission_patterns (scope, kind, pattern) VALUES (?, ?, ?)`,
		string(scope), kind, pattern)
	if err != nil {
		return fmt.Errorf("adding %s pattern: %w", kind, err)
	}
	return nil
}

// RemovePattern deletes a pattern. Removing a missing pattern is a no-op.
func (s *SQLiteStore) RemovePattern(ctx context.Context, scope permissions.Scope, kind, pattern string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM permission_patterns WHERE scope = ? AND kind = ? AND pattern = ?`,
		string(scope), kind, pattern)
	if err != nil {
		return fmt.Errorf("removing %s pattern: %w", kind, err)
	}
	return nil
}

// DecisionRecord is one row of the decision audit log.
type DecisionRecord struct {
	Session   string
	Resource  string
	Scope     permissions.Scope
	Outcome   permissions.Outcome
	DecidedAt time.Time
}

// Decisions returns the audit log for a session, oldest first.
func (s *SQLiteStore) Decisions(ctx context.Context, session string) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource, scope, outcome, decided_at FROM permission_decisions
		 WHERE session = ? ORDER BY id`,
		session)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var scope, outcome, decidedAt string
		if err := rows.Scan(&rec.Resource, &scope, &outcome, &decidedAt); err != nil {
			return nil, fmt.Errorf("scanning decision row: %w", err)
		}
		rec.Session = session
		rec.Scope = permissions.Scope(scope)
		rec.Outcome = permissions.Outcome(outcome)
		if ts, err := time.Parse("2006-01-02 15:04:05", decidedAt); err == nil {
			rec.DecidedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
