package sync

import "errors"

// Common errors returned by session operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, sync.ErrNotFound) {
//	    // terminal: the document does not exist on the server
//	}
var (
	// ErrNotFound is returned when the server reports that a document
	// does not exist. This is a terminal state, distinct from a transient
	// fetch failure, and is not retried.
	ErrNotFound = errors.New("document does not exist")

	// ErrRejected is returned when the server refuses an attribute batch,
	// typically because a document was already published or belongs to
	// another user. The optimistic local commit has been rolled back.
	ErrRejected = errors.New("server rejected attribute batch")

	// ErrClosed is returned when operating on a session after Close.
	ErrClosed = errors.New("session is closed")
)
