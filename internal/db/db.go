// Package db provides the authoritative document database for the
// Studlancer backend.
//
// The database runs embedded (SQLite with WAL) and stores one row per
// document with a column per content attribute, so an attribute batch
// lands as a single conditional UPDATE per document:
//
//	UPDATE documents SET ... WHERE id = ? AND creator_id = ? AND published = 0
//
// The published = 0 condition is the server-side guard that makes
// published documents immutable to attribute edits: zero rows affected
// fails that document's whole batch.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
)

// Common errors returned by document operations. Check with errors.Is().
var (
	// ErrNotFound is returned when no document exists with the given id.
	ErrNotFound = errors.New("document not found")

	// ErrConditionFailed is returned when a conditional write matched no
	// row: the document is published, trashed the wrong way, or owned by
	// someone else.
	ErrConditionFailed = errors.New("conditional write failed")

	// ErrUnpublishNotAllowed is returned when a publish can no longer be
	// reverted because a privileged viewer has seen the document.
	ErrUnpublishNotAllowed = errors.New("unpublish no longer allowed")
)

// DB wraps the SQLite connection with document-store functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection, checkpointing the WAL first.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,             -- quest, solution
		creator_id TEXT NOT NULL,
		quest_id TEXT,                  -- solutions only: the quest answered

		published INTEGER NOT NULL DEFAULT 0,
		in_trash INTEGER NOT NULL DEFAULT 0,
		allow_unpublish INTEGER NOT NULL DEFAULT 1,

		title TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		subtopic TEXT NOT NULL DEFAULT '',
		reward INTEGER NOT NULL DEFAULT 0,
		slots INTEGER NOT NULL DEFAULT 0,
		deadline TEXT,
		content TEXT NOT NULL DEFAULT '',

		created_at TEXT NOT NULL,
		last_updated TEXT NOT NULL,

		-- Published snapshot fields
		published_at TEXT,
		solver_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'open'
	);

	CREATE INDEX IF NOT EXISTS idx_documents_creator ON documents(creator_id);
	CREATE INDEX IF NOT EXISTS idx_documents_quest ON documents(quest_id);
	CREATE INDEX IF NOT EXISTS idx_documents_published ON documents(published);

	-- Composite index for workspace listings
	CREATE INDEX IF NOT EXISTS idx_documents_workspace
	    ON documents(creator_id, in_trash, last_updated);
	`

	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpsertUser inserts or updates a user profile row.
func (db *DB) UpsertUser(ctx context.Context, id, username string) error {
	query := `
	INSERT INTO users (id, username) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET username = excluded.username
	`
	if _, err := db.conn.ExecContext(ctx, query, id, username); err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", id, err)
	}
	return nil
}

// CreateDocument inserts a new draft. The id must be unused.
func (db *DB) CreateDocument(ctx context.Context, doc *schema.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}

	query := `
	INSERT INTO documents (
		id, kind, creator_id, quest_id, published, in_trash, allow_unpublish,
		title, topic, subtopic, reward, slots, deadline, content,
		created_at, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		doc.ID,
		string(doc.Kind),
		doc.CreatorID,
		stringToNull(doc.QuestID),
		boolToInt(doc.Published),
		boolToInt(doc.InTrash),
		boolToInt(doc.AllowUnpublish),
		doc.Title,
		doc.Topic,
		doc.Subtopic,
		doc.Reward,
		doc.Slots,
		timeToNullString(doc.Deadline),
		doc.Content,
		doc.CreatedAt.Format(time.RFC3339Nano),
		doc.LastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument retrieves a single document by id.
// Returns ErrNotFound if no such document exists.
func (db *DB) GetDocument(ctx context.Context, id string) (*schema.Document, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT id, kind, creator_id, quest_id, published, in_trash, allow_unpublish,
	       title, topic, subtopic, reward, slots, deadline, content,
	       created_at, last_updated
	FROM documents
	WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*schema.Document, error) {
	var (
		doc                    schema.Document
		kind                   string
		questID                sql.NullString
		published, inTrash     int
		allowUnpublish         int
		deadline               sql.NullString
		createdAt, lastUpdated string
	)

	err := row.Scan(
		&doc.ID, &kind, &doc.CreatorID, &questID, &published, &inTrash, &allowUnpublish,
		&doc.Title, &doc.Topic, &doc.Subtopic, &doc.Reward, &doc.Slots,
		&deadline, &doc.Content, &createdAt, &lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	doc.Kind = schema.Kind(kind)
	doc.QuestID = questID.String
	doc.Published = published != 0
	doc.InTrash = inTrash != 0
	doc.AllowUnpublish = allowUnpublish != 0
	doc.Deadline = nullStringToTime(deadline)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		doc.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		doc.LastUpdated = t
	}
	return &doc, nil
}

// ApplyBatch applies a decoded transaction queue on behalf of owner.
//
// Every document's transactions collapse to one conditional UPDATE that
// requires published = 0 and creator_id = owner. The whole batch runs in
// one database transaction: any document failing its condition rolls the
// batch back and returns ErrConditionFailed, which the API surfaces as
// success = false.
func (db *DB) ApplyBatch(ctx context.Context, owner string, q *queue.Queue) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range q.Documents() {
		txs := q.Transactions(id)
		if len(txs) == 0 {
			continue
		}

		var (
			sets []string
			args []any
		)
		for _, t := range txs {
			col, val, err := columnValue(t)
			if err != nil {
				return fmt.Errorf("invalid transaction for %s: %w", id, err)
			}
			sets = append(sets, col+" = ?")
			args = append(args, val)
		}

		query := "UPDATE documents SET " + strings.Join(sets, ", ") +
			" WHERE id = ? AND creator_id = ? AND published = 0"
		args = append(args, id, owner)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update document %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update of %s: %w", id, err)
		}
		if affected == 0 {
			return fmt.Errorf("document %s: %w", id, ErrConditionFailed)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// columnValue maps a transaction to its column name and SQL value.
func columnValue(t queue.Transaction) (string, any, error) {
	switch t.Attribute {
	case schema.AttrTitle:
		return "title", t.Value.Str(), nil
	case schema.AttrTopic:
		return "topic", t.Value.Str(), nil
	case schema.AttrSubtopic:
		return "subtopic", t.Value.Str(), nil
	case schema.AttrContent:
		return "content", t.Value.Str(), nil
	case schema.AttrReward:
		return "reward", t.Value.AsInt(), nil
	case schema.AttrSlots:
		return "slots", t.Value.AsInt(), nil
	case schema.AttrDeadline:
		return "deadline", t.Value.Str(), nil
	case schema.AttrLastUpdated:
		return "last_updated", t.Value.Str(), nil
	default:
		return "", nil, fmt.Errorf("unknown attribute %q", t.Attribute)
	}
}

// stringToNull maps an empty string to SQL NULL.
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
