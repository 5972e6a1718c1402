// ABOUTME: SQLite-backed Store using modernc.org/sqlite
// ABOUTME: One row per user; Save replaces every row inside a single transaction

package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "sessions")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL lets readers keep seeing the last committed mapping while a
	// replacement is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite session store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			user_id    TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

// Load reads every row into a Record.
func (s *SQLiteStore) Load(ctx context.Context) (Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, session_id FROM sessions`)
	if err != nil {
		return Record{}, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	record := Record{}
	for rows.Next() {
		var user, token string
		if err := rows.Scan(&user, &token); err != nil {
			return Record{}, fmt.Errorf("scanning session row: %w", err)
		}
		record[user] = token
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("iterating sessions: %w", err)
	}
	return record, nil
}

// Save replaces the table contents with record in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, record Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clearing sessions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sessions (user_id, session_id, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for user, token := range record {
		if _, err := stmt.ExecContext(ctx, user, token, now); err != nil {
			return fmt.Errorf("inserting session for %s: %w", user, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sessions: %w", err)
	}
	return nil
}

// Clear deletes one row. Deleting a missing row is not an error.
func (s *SQLiteStore) Clear(ctx context.Context, user string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, user); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
