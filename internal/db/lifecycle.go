package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/studlancer/studlancer/internal/schema"
)

// Publish turns a draft into its published snapshot.
//
// The draft is validated first: required attributes must be present and,
// for quests, the deadline must be strictly in the future. The flip itself
// is conditional on published = 0, so a concurrent publish (or an edit
// racing this publish) cannot double-apply.
func (db *DB) Publish(ctx context.Context, owner, id string, now time.Time) (*schema.PublishedDocument, error) {
	doc, err := db.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CreatorID != owner {
		return nil, ErrConditionFailed
	}
	if err := doc.ValidateForPublish(now); err != nil {
		return nil, err
	}

	res, err := db.conn.ExecContext(ctx, `
	UPDATE documents
	SET published = 1, allow_unpublish = 1, published_at = ?, status = 'open',
	    last_updated = ?
	WHERE id = ? AND creator_id = ? AND published = 0 AND in_trash = 0
	`, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), id, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to publish document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check publish of %s: %w", id, err)
	}
	if affected == 0 {
		return nil, ErrConditionFailed
	}

	return db.GetPublished(ctx, id)
}

// GetPublished retrieves the published snapshot of a document, including
// the denormalized creator username. Returns ErrNotFound for drafts.
func (db *DB) GetPublished(ctx context.Context, id string) (*schema.PublishedDocument, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT d.id, d.kind, d.creator_id, d.published, d.in_trash, d.allow_unpublish,
	       d.title, d.topic, d.subtopic, d.reward, d.slots, d.deadline, d.content,
	       d.created_at, d.last_updated,
	       COALESCE(u.username, d.creator_id), d.solver_count, d.status, d.published_at
	FROM documents d
	LEFT JOIN users u ON u.id = d.creator_id
	WHERE d.id = ? AND d.published = 1
	`, id)

	var (
		pub         schema.PublishedDocument
		kind        string
		published   int
		inTrash     int
		allowUnpub  int
		deadline    sql.NullString
		createdAt   string
		lastUpdated string
		publishedAt sql.NullString
	)
	err := row.Scan(
		&pub.ID, &kind, &pub.CreatorID, &published, &inTrash, &allowUnpub,
		&pub.Title, &pub.Topic, &pub.Subtopic, &pub.Reward, &pub.Slots,
		&deadline, &pub.Content, &createdAt, &lastUpdated,
		&pub.CreatorUsername, &pub.SolverCount, &pub.Status, &publishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published document %s: %w", id, err)
	}

	pub.Kind = schema.Kind(kind)
	pub.Published = published != 0
	pub.InTrash = inTrash != 0
	pub.AllowUnpublish = allowUnpub != 0
	pub.Deadline = nullStringToTime(deadline)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		pub.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
		pub.LastUpdated = t
	}
	if at := nullStringToTime(publishedAt); at != nil {
		pub.PublishedAt = *at
	}
	return &pub, nil
}

// Unpublish reverts a publish while still allowed. Once a privileged
// viewer has seen the document the flip is refused.
func (db *DB) Unpublish(ctx context.Context, owner, id string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
	UPDATE documents
	SET published = 0, published_at = NULL, last_updated = ?
	WHERE id = ? AND creator_id = ? AND published = 1 AND allow_unpublish = 1
	`, now.Format(time.RFC3339Nano), id, owner)
	if err != nil {
		return fmt.Errorf("failed to unpublish document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check unpublish of %s: %w", id, err)
	}
	if affected == 0 {
		// Distinguish "already seen" from plain condition failures.
		doc, gerr := db.GetDocument(ctx, id)
		if gerr == nil && doc.Published && !doc.AllowUnpublish {
			return ErrUnpublishNotAllowed
		}
		return ErrConditionFailed
	}
	return nil
}

// RecordView notes that viewer opened a published document. The first view
// by a privileged viewer (for solutions, the creator of the answered
// quest) makes the publish irreversible.
func (db *DB) RecordView(ctx context.Context, viewer, id string) error {
	doc, err := db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Published || doc.Kind != schema.KindSolution || !doc.AllowUnpublish {
		return nil
	}

	var questCreator string
	err = db.conn.QueryRowContext(ctx, `
	SELECT q.creator_id
	FROM documents s
	JOIN documents q ON q.id = s.quest_id
	WHERE s.id = ?
	`, id).Scan(&questCreator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve quest creator for %s: %w", id, err)
	}
	if questCreator != viewer {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx,
		"UPDATE documents SET allow_unpublish = 0 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to lock publish of %s: %w", id, err)
	}
	return nil
}

// Trash soft-deletes a draft. Published documents cannot be trashed.
func (db *DB) Trash(ctx context.Context, owner, id string, now time.Time) error {
	return db.setTrash(ctx, owner, id, now, true)
}

// Restore moves a trashed draft back to the workspace.
func (db *DB) Restore(ctx context.Context, owner, id string, now time.Time) error {
	return db.setTrash(ctx, owner, id, now, false)
}

func (db *DB) setTrash(ctx context.Context, owner, id string, now time.Time, trashed bool) error {
	res, err := db.conn.ExecContext(ctx, `
	UPDATE documents
	SET in_trash = ?, last_updated = ?
	WHERE id = ? AND creator_id = ? AND published = 0 AND in_trash = ?
	`, boolToInt(trashed), now.Format(time.RFC3339Nano), id, owner, boolToInt(!trashed))
	if err != nil {
		return fmt.Errorf("failed to update trash state of %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check trash update of %s: %w", id, err)
	}
	if affected == 0 {
		return ErrConditionFailed
	}
	return nil
}

// DeletePermanently removes a document for good. Only trashed drafts and
// empty drafts qualify; anything else fails the condition.
func (db *DB) DeletePermanently(ctx context.Context, owner, id string) error {
	doc, err := db.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.CreatorID != owner || doc.Published {
		return ErrConditionFailed
	}
	if !doc.InTrash && doc.HasContent() {
		return ErrConditionFailed
	}

	if _, err := db.conn.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ? AND creator_id = ? AND published = 0",
		id, owner); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// Workspace lists owner's documents as thin projections, newest first.
// Trashed drafts are included with the flag set so the client can render
// a trash view; permanently deleted documents are gone.
func (db *DB) Workspace(ctx context.Context, owner string) ([]schema.WorkspaceEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, kind, title, topic, in_trash, last_updated
	FROM documents
	WHERE creator_id = ?
	ORDER BY last_updated DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}
	defer rows.Close()

	var entries []schema.WorkspaceEntry
	for rows.Next() {
		var (
			e           schema.WorkspaceEntry
			kind        string
			inTrash     int
			lastUpdated string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Title, &e.Topic, &inTrash, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan workspace entry: %w", err)
		}
		e.Kind = schema.Kind(kind)
		e.InTrash = inTrash != 0
		if t, err := time.Parse(time.RFC3339Nano, lastUpdated); err == nil {
			e.LastUpdated = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workspace entries: %w", err)
	}
	return entries, nil
}

// DocumentCount returns the total number of documents in the database.
func (db *DB) DocumentCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}
