package sync

import (
	"context"

	"github.com/studlancer/studlancer/internal/schema"
)

// Remote is the backend the session syncs against. Implementations:
// remote.Client (HTTP), fakes in tests.
type Remote interface {
	// FetchDocument returns the server copy of a document, including the
	// last_updated stamp that seeds the version ledger. Returns
	// ErrNotFound when the document truly does not exist.
	FetchDocument(ctx context.Context, id string) (*schema.Document, error)

	// CreateDocument registers a new draft with the server.
	CreateDocument(ctx context.Context, doc *schema.Document) error

	// UpdateAttributes sends one serialized transaction batch. Each
	// document's transactions are applied as a single conditional update
	// that fails wholesale if the document is published or owned by
	// someone else. Returns false when the server rejected the batch.
	UpdateAttributes(ctx context.Context, payload string) (bool, error)

	// Publish turns a draft into its published snapshot.
	Publish(ctx context.Context, id string) (*schema.PublishedDocument, error)

	// Unpublish reverts a publish while the server still allows it.
	Unpublish(ctx context.Context, id string) error

	// Trash soft-deletes a draft.
	Trash(ctx context.Context, id string) error

	// Restore moves a trashed draft back to the workspace.
	Restore(ctx context.Context, id string) error

	// DeletePermanently removes a trashed or empty draft for good.
	DeletePermanently(ctx context.Context, id string) error

	// Workspace lists the caller's non-deleted drafts.
	Workspace(ctx context.Context) ([]schema.WorkspaceEntry, error)
}
