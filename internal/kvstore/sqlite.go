package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"pkt.systems/pslog"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps keys in a single sqlite table.
type SQLiteStore struct {
	db  *sql.DB
	log pslog.Logger
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string, logger pslog.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite from returning SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		if logger != nil {
			logger.Warn("sqlite schema failed", "path", path, "err", err)
		}
		return nil, err
	}
	if logger != nil {
		logger = logger.With("sqlite_path", path)
		logger.Debug("sqlite store open")
	}
	return &SQLiteStore{db: db, log: logger}, nil
}

// Get returns the value stored at key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		if s.log != nil {
			s.log.Warn("sqlite get failed", "key", key, "err", err)
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores value at key.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil && s.log != nil {
		s.log.Warn("sqlite set failed", "key", key, "err", err)
	}
	return err
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil && s.log != nil {
		s.log.Warn("sqlite delete failed", "key", key, "err", err)
	}
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
