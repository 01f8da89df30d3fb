package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS seen (
	source TEXT NOT NULL,
	id     TEXT NOT NULL,
	PRIMARY KEY (source, id)
)`

type sqliteStore struct {
	db     *sql.DB
	source string
}

func openSQLite(ctx context.Context, path, source string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite %s: %w", path, err)
	}
	return &sqliteStore{db: db, source: source}, nil
}

func (s *sqliteStore) Load(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen WHERE source = ?`, s.source)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return map[string]struct{}{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		seen[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seen ids: %w", err)
	}
	return seen, nil
}

// Save replaces the source's rows in one transaction.
func (s *sqliteStore) Save(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen WHERE source = ?`, s.source); err != nil {
		return fmt.Errorf("failed to clear seen ids: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen(source, id) VALUES(?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, s.source, id); err != nil {
			return fmt.Errorf("failed to insert seen id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seen ids: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
