// Package store provides the local document store: a durable key-value
// store holding full document snapshots for the workspace editor.
//
// This is the larger-capacity companion to the version ledger. Document
// payloads can be big (serialized rich-text content), so snapshots live in
// an embedded SQLite database rather than the ledger's JSON file.
package store

import (
	"context"
	"errors"

	"github.com/studlancer/studlancer/internal/schema"
)

// ErrNotFound is returned when no snapshot exists for a document id.
var ErrNotFound = errors.New("document not found in local store")

// Store abstracts local document persistence.
// Implementations: SQLite (durable), Memory (tests).
type Store interface {
	// Get returns the stored snapshot for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*schema.Document, error)

	// Put stores doc, replacing any existing snapshot with the same id.
	Put(ctx context.Context, doc *schema.Document) error

	// Update applies mutate to the current stored value and persists the
	// result atomically with respect to other Update calls on the same
	// store. The updated snapshot is returned.
	Update(ctx context.Context, id string, mutate func(*schema.Document) error) (*schema.Document, error)

	// Delete removes the snapshot for id. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying storage.
	Close() error
}
