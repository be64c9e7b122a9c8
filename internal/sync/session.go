package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
	"github.com/studlancer/studlancer/internal/store"
	"github.com/studlancer/studlancer/internal/versions"
)

// Config holds configuration for an editor session.
type Config struct {
	// QuiescenceWindow is how long after the last edit the flush fires.
	// Repeated edits within the window reset the timer.
	QuiescenceWindow time.Duration

	// Logger for session activity.
	Logger *log.Logger

	// Now supplies timestamps; overridable for tests.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		QuiescenceWindow: 1000 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[sync] ", log.LstdFlags),
		Now:              time.Now,
	}
}

// Session is the explicit context object owning one editor's sync state:
// the pending-transaction queue, the debounced flush, the local document
// store, and the version ledger. Sessions are created per editing surface
// and passed in, never held as process globals, so tests can run any number
// of independent instances.
type Session struct {
	store  store.Store
	ledger *versions.Ledger
	remote Remote
	logger *log.Logger
	now    func() time.Time

	queue *queue.Queue
	deb   *Debouncer

	// mu serializes all session state (queue, ledger, workspace cache)
	// against the timer-goroutine flush, the Go stand-in for the single
	// UI thread the editor originally ran on.
	mu     chan struct{}
	closed bool

	workspace []schema.WorkspaceEntry
}

// NewSession creates a session over the given collaborators.
// If config is nil, DefaultConfig() is used.
func NewSession(localStore store.Store, ledger *versions.Ledger, remote Remote, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.QuiescenceWindow <= 0 {
		config.QuiescenceWindow = 1000 * time.Millisecond
	}

	s := &Session{
		store:  localStore,
		ledger: ledger,
		remote: remote,
		logger: config.Logger,
		now:    config.Now,
		queue:  queue.New(),
		mu:     make(chan struct{}, 1),
	}
	s.deb = NewDebouncer(config.QuiescenceWindow, func(snapshot *queue.Queue, trigger queue.Transaction) {
		if err := s.flush(context.Background(), snapshot, trigger); err != nil {
			// Best-effort notification; the debounced path has no caller
			// to return to.
			s.logger.Printf("WARNING: flush failed: %v", err)
		}
	})
	return s
}

func (s *Session) lock()   { s.mu <- struct{}{} }
func (s *Session) unlock() { <-s.mu }

// Load resolves the source of truth for a document and returns it.
//
// If the version ledger has no record for the document, or its local stamp
// lags the server stamp, the server copy is fetched, written to the local
// store, and the ledger is seeded with {server: lastUpdated, local:
// lastUpdated}. Otherwise the local store is read with no network call.
//
// A locally missing document whose version claims to be current means the
// local store was cleared out from under us; the ledger entry is dropped
// and the load falls through to a server fetch.
//
// Returns ErrNotFound when the server reports the document does not exist;
// that state is terminal and distinct from a transient fetch failure.
func (s *Session) Load(ctx context.Context, id string) (*schema.Document, error) {
	s.lock()
	defer s.unlock()
	return s.load(ctx, id)
}

// load is Load with the session lock already held.
func (s *Session) load(ctx context.Context, id string) (*schema.Document, error) {
	rec, ok := s.ledger.Get(id)
	stale := !ok || rec.Stale()

	if !stale {
		doc, err := s.store.Get(ctx, id)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to read local document %s: %w", id, err)
		}
		// Version says current but the snapshot is gone. Forget the
		// record and refetch.
		if err := s.ledger.Delete(id); err != nil {
			s.logger.Printf("WARNING: failed to clear version record for %s: %v", id, err)
		}
	}

	doc, err := s.remote.FetchDocument(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}

	if err := s.store.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to cache document %s: %w", id, err)
	}
	if err := s.ledger.Set(id, versions.Record{Server: doc.LastUpdated, Local: doc.LastUpdated}); err != nil {
		s.logger.Printf("WARNING: failed to record version for %s: %v", id, err)
	}
	return doc, nil
}

// Edit records one attribute mutation and arms the debounced flush. It is
// cheap and synchronous: called on every keystroke, it only touches the
// in-memory queue.
func (s *Session) Edit(id string, attr schema.Attribute, value queue.Value) {
	s.lock()
	if s.closed {
		s.unlock()
		return
	}
	tx := queue.Transaction{DocID: id, Attribute: attr, Value: value}
	s.queue.Add(tx)
	snapshot := s.queue.Snapshot()
	s.unlock()

	s.deb.Trigger(snapshot, tx)
}

// Flush forces any pending batch out immediately, bypassing the remaining
// quiescence window. It is a no-op when nothing is pending.
func (s *Session) Flush(ctx context.Context) error {
	var flushErr error
	s.deb.fireWith(func(snapshot *queue.Queue, trigger queue.Transaction) {
		flushErr = s.flush(ctx, snapshot, trigger)
	})
	return flushErr
}

// preimage captures the state needed to undo one document's optimistic
// commit.
type preimage struct {
	doc       *schema.Document // nil when the store had no snapshot
	rec       versions.Record
	hadRecord bool
}

// flush is the debounced batch flush: coalesce, commit locally, stamp
// versions, send, clear.
func (s *Session) flush(ctx context.Context, snapshot *queue.Queue, trigger queue.Transaction) error {
	s.lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}

	// Work on a private copy so state visible to the editor is never
	// mutated mid-flight.
	merged := snapshot.Snapshot()
	now := s.now()
	merged.Merge(trigger, now)

	// Capture pre-images before the optimistic apply so a rejected batch
	// can be compensated.
	pre := make(map[string]preimage, merged.Len())
	for _, id := range merged.Documents() {
		var p preimage
		if doc, err := s.store.Get(ctx, id); err == nil {
			p.doc = doc
		}
		p.rec, p.hadRecord = s.ledger.Get(id)
		pre[id] = p
	}

	// Optimistic local commit: every (document, attribute, value) triple
	// lands in the local store, and the version ledger advances as if the
	// server write already succeeded.
	stamp := versions.Record{Server: now, Local: now}
	for _, id := range merged.Documents() {
		txs := merged.Transactions(id)
		_, err := s.store.Update(ctx, id, func(doc *schema.Document) error {
			for _, tx := range txs {
				if err := queue.Apply(doc, tx); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.rollback(ctx, pre)
			return fmt.Errorf("failed to apply batch locally for %s: %w", id, err)
		}
		if err := s.ledger.Set(id, stamp); err != nil {
			s.logger.Printf("WARNING: failed to stamp version for %s: %v", id, err)
		}
	}

	payload, err := queue.Encode(merged)
	if err != nil {
		s.rollback(ctx, pre)
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	accepted, err := s.remote.UpdateAttributes(ctx, payload)

	// The queue is cleared whether or not the server took the batch: a
	// rejected batch would be rejected again verbatim, so replaying it is
	// pointless. Edits made after the snapshot was taken are preserved.
	s.clearFlushed(merged)

	if err != nil {
		s.rollback(ctx, pre)
		return fmt.Errorf("failed to send batch: %w", err)
	}
	if !accepted {
		s.rollback(ctx, pre)
		return ErrRejected
	}

	s.logger.Printf("Flushed %d document(s) at %s", merged.Len(), now.Format(time.RFC3339))
	return nil
}

// clearFlushed drops the flushed transactions from the live queue. Edits
// recorded after the snapshot stay queued for the next cycle.
func (s *Session) clearFlushed(flushed *queue.Queue) {
	remainder := queue.New()
	for _, id := range s.queue.Documents() {
		sent := flushed.Transactions(id)
		for _, tx := range s.queue.Transactions(id) {
			if !wasSent(sent, tx) {
				remainder.Add(tx)
			}
		}
	}
	s.queue = remainder
}

func wasSent(sent []queue.Transaction, tx queue.Transaction) bool {
	for _, st := range sent {
		if st.Attribute == tx.Attribute && st.Value.Equal(tx.Value) {
			return true
		}
	}
	return false
}

// rollback restores store snapshots and ledger records captured before an
// optimistic commit.
func (s *Session) rollback(ctx context.Context, pre map[string]preimage) {
	for id, p := range pre {
		if p.doc != nil {
			if err := s.store.Put(ctx, p.doc); err != nil {
				s.logger.Printf("WARNING: rollback failed for %s: %v", id, err)
			}
		} else {
			if err := s.store.Delete(ctx, id); err != nil {
				s.logger.Printf("WARNING: rollback failed for %s: %v", id, err)
			}
		}
		if p.hadRecord {
			if err := s.ledger.Set(id, p.rec); err != nil {
				s.logger.Printf("WARNING: rollback failed for %s: %v", id, err)
			}
		} else {
			if err := s.ledger.Delete(id); err != nil {
				s.logger.Printf("WARNING: rollback failed for %s: %v", id, err)
			}
		}
	}
}

// Close flushes any pending batch and shuts the session down. Without this,
// navigating away mid-debounce would silently drop the pending flush.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.deb.Cancel()

	s.lock()
	s.closed = true
	s.unlock()
	return err
}

// Create registers a new draft with the server and materializes it locally.
func (s *Session) Create(ctx context.Context, doc *schema.Document) error {
	doc.SetDefaults()
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	if err := s.remote.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	s.lock()
	defer s.unlock()
	if err := s.store.Put(ctx, doc); err != nil {
		return fmt.Errorf("failed to cache new document: %w", err)
	}
	if err := s.ledger.Set(doc.ID, versions.Record{Server: doc.LastUpdated, Local: doc.LastUpdated}); err != nil {
		s.logger.Printf("WARNING: failed to record version for %s: %v", doc.ID, err)
	}
	s.workspace = nil
	return nil
}

// Publish flushes pending edits, then asks the server to turn the draft
// into its published snapshot. Validation failures come back from the
// server as request errors and leave no state mutated.
func (s *Session) Publish(ctx context.Context, id string) (*schema.PublishedDocument, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to flush before publish: %w", err)
	}

	pub, err := s.remote.Publish(ctx, id)
	if err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()
	if _, err := s.store.Update(ctx, id, func(doc *schema.Document) error {
		doc.Published = true
		doc.AllowUnpublish = true
		doc.LastUpdated = pub.LastUpdated
		return nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Printf("WARNING: failed to mark %s published locally: %v", id, err)
	}
	if err := s.ledger.Set(id, versions.Record{Server: pub.LastUpdated, Local: pub.LastUpdated}); err != nil {
		s.logger.Printf("WARNING: failed to record version for %s: %v", id, err)
	}
	s.workspace = nil
	return pub, nil
}

// Unpublish reverts a published document to a draft. The server refuses
// once a privileged viewer has seen the published copy.
func (s *Session) Unpublish(ctx context.Context, id string) error {
	if err := s.remote.Unpublish(ctx, id); err != nil {
		return err
	}

	s.lock()
	defer s.unlock()
	if _, err := s.store.Update(ctx, id, func(d *schema.Document) error {
		d.Published = false
		return nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Printf("WARNING: failed to mark %s unpublished locally: %v", id, err)
	}
	s.workspace = nil
	return nil
}

// Trash soft-deletes a draft. Empty drafts skip the trash: the server
// deletes them permanently, and so does the local store.
func (s *Session) Trash(ctx context.Context, id string) error {
	s.lock()
	defer s.unlock()

	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !doc.HasContent() {
		return s.deletePermanently(ctx, id)
	}

	if err := s.remote.Trash(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.Update(ctx, id, func(d *schema.Document) error {
		d.InTrash = true
		return nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Printf("WARNING: failed to trash %s locally: %v", id, err)
	}
	s.workspace = nil
	return nil
}

// Restore moves a trashed draft back into the workspace.
func (s *Session) Restore(ctx context.Context, id string) error {
	if err := s.remote.Restore(ctx, id); err != nil {
		return err
	}

	s.lock()
	defer s.unlock()
	if _, err := s.store.Update(ctx, id, func(d *schema.Document) error {
		d.InTrash = false
		return nil
	}); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Printf("WARNING: failed to restore %s locally: %v", id, err)
	}
	s.workspace = nil
	return nil
}

// DeletePermanently removes a document for good, locally and remotely.
func (s *Session) DeletePermanently(ctx context.Context, id string) error {
	s.lock()
	defer s.unlock()
	return s.deletePermanently(ctx, id)
}

// deletePermanently is DeletePermanently with the session lock already held.
func (s *Session) deletePermanently(ctx context.Context, id string) error {
	if err := s.remote.DeletePermanently(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Printf("WARNING: failed to delete %s locally: %v", id, err)
	}
	if err := s.ledger.Delete(id); err != nil {
		s.logger.Printf("WARNING: failed to clear version record for %s: %v", id, err)
	}
	s.workspace = nil
	return nil
}

// Workspace returns the user's non-deleted drafts, cached for the life of
// the session. Lifecycle operations invalidate the cache.
func (s *Session) Workspace(ctx context.Context) ([]schema.WorkspaceEntry, error) {
	s.lock()
	defer s.unlock()

	if s.workspace != nil {
		cp := make([]schema.WorkspaceEntry, len(s.workspace))
		copy(cp, s.workspace)
		return cp, nil
	}
	entries, err := s.remote.Workspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}
	s.workspace = entries
	cp := make([]schema.WorkspaceEntry, len(entries))
	copy(cp, entries)
	return cp, nil
}

// Pending reports whether a debounced flush is armed.
func (s *Session) Pending() bool {
	return s.deb.Pending()
}
