package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/studlancer/studlancer/internal/schema"
)

// SQLiteStore is the durable Store implementation, one row per document
// with the snapshot serialized as JSON.
type SQLiteStore struct {
	conn *sql.DB
	path string

	// Serializes Update's read-mutate-write cycle. All calls originate
	// from one editor session, so contention is not expected; the mutex
	// keeps the contract honest for tests that exercise the store alone.
	mu sync.Mutex
}

// Open creates or opens the local document store at the given path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping local store: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteStore{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	ddl := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		stored_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(ddl); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize local store schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close local store: %w", err)
	}
	s.conn = nil
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*schema.Document, error) {
	var payload string
	err := s.conn.QueryRowContext(ctx,
		"SELECT payload FROM documents WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}

	var doc schema.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		// Corrupt row: treat as absent so the server becomes source of truth.
		return nil, ErrNotFound
	}
	return &doc, nil
}

// Put implements Store.Put.
func (s *SQLiteStore) Put(ctx context.Context, doc *schema.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
	}

	query := `
	INSERT INTO documents (id, payload, stored_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		payload = excluded.payload,
		stored_at = excluded.stored_at
	`
	if _, err := s.conn.ExecContext(ctx, query,
		doc.ID, string(payload), time.Now().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
	}
	return nil
}

// Update implements Store.Update.
func (s *SQLiteStore) Update(ctx context.Context, id string, mutate func(*schema.Document) error) (*schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(doc); err != nil {
		return nil, err
	}
	if err := s.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete implements Store.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}
