// Package sqlite provides a durable RecordStore backed by SQLite. It lives
// in its own package so the cgo driver dependency stays out of minimal
// builds that only need the in-memory or file stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/issuemesh/core"
)

// Store persists one JSON document per session/key pair in a records table.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS records (
		session_id TEXT NOT NULL,
		key        TEXT NOT NULL,
		record     TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, key)
	)`
	_, err := db.Exec(schema)
	return err
}

// Get loads and decodes the stored document, or fails with
// ErrSessionNotFound when the session/key pair is absent.
func (s *Store) Get(ctx context.Context, sessionID, key string) (*core.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM records WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrSessionNotFound, sessionID, key)
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}

	var rec core.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", sessionID, key, err)
	}
	return &rec, nil
}

// Set upserts the whole document for the session/key pair.
func (s *Store) Set(ctx context.Context, sessionID, key string, record *core.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", sessionID, key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (session_id, key, record, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		sessionID, key, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

var _ core.RecordStore = (*Store)(nil)
