package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
)

// openTestDB returns an initialized database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func draftQuest(id, creator string, now time.Time) *schema.Document {
	deadline := now.Add(72 * time.Hour)
	return &schema.Document{
		ID:             id,
		Kind:           schema.KindQuest,
		CreatorID:      creator,
		Title:          "Quest title",
		Topic:          "math",
		Content:        "Do the thing.",
		Reward:         50,
		Slots:          3,
		Deadline:       &deadline,
		AllowUnpublish: true,
		CreatedAt:      now,
		LastUpdated:    now,
	}
}

// mustCreate inserts a document or fails the test.
func mustCreate(t *testing.T, db *DB, doc *schema.Document) {
	t.Helper()
	if err := db.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument(%s) failed: %v", doc.ID, err)
	}
}

// TestInitSchema_Idempotent tests that schema initialization is repeatable.
func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.InitSchema(); err != nil {
		t.Errorf("second InitSchema() failed: %v", err)
	}
}

// TestCreateGet_RoundTrip tests document insertion and retrieval.
func TestCreateGet_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	mustCreate(t, db, draftQuest("q1", "u1", now))

	got, err := db.GetDocument(context.Background(), "q1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got.Title != "Quest title" || got.Reward != 50 || got.Slots != 3 {
		t.Errorf("document = %+v, fields lost in round trip", got)
	}
	if got.Deadline == nil || !got.Deadline.Equal(now.Add(72*time.Hour)) {
		t.Errorf("deadline = %v, want %v", got.Deadline, now.Add(72*time.Hour))
	}
	if !got.LastUpdated.Equal(now) {
		t.Errorf("last_updated = %v, want %v", got.LastUpdated, now)
	}
	if got.QuestID != "" {
		t.Errorf("quest_id = %q for a quest, want empty", got.QuestID)
	}
}

// TestCreate_SolutionLinksQuest tests the quest_id linkage.
func TestCreate_SolutionLinksQuest(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))

	sol := &schema.Document{
		ID: "s1", Kind: schema.KindSolution, CreatorID: "u2", QuestID: "q1",
		Title: "Answer", Topic: "math", Content: "Solved.",
		AllowUnpublish: true, CreatedAt: now, LastUpdated: now,
	}
	mustCreate(t, db, sol)

	got, err := db.GetDocument(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got.QuestID != "q1" {
		t.Errorf("quest_id = %q, want q1", got.QuestID)
	}
}

// TestCreate_DuplicateID tests the primary-key constraint.
func TestCreate_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))
	if err := db.CreateDocument(context.Background(), draftQuest("q1", "u1", now)); err == nil {
		t.Error("CreateDocument() accepted a duplicate id")
	}
}

// TestGetDocument_NotFound tests the missing-document sentinel.
func TestGetDocument_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetDocument(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument() error = %v, want ErrNotFound", err)
	}
}

func batch(txs ...queue.Transaction) *queue.Queue {
	q := queue.New()
	for _, tx := range txs {
		q.Add(tx)
	}
	return q
}

// TestApplyBatch_UpdatesDraft tests the happy-path conditional update.
func TestApplyBatch_UpdatesDraft(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))

	stamp := now.Add(time.Minute)
	err := db.ApplyBatch(ctx, "u1", batch(
		queue.Transaction{DocID: "q1", Attribute: schema.AttrTitle, Value: queue.String("Renamed")},
		queue.Transaction{DocID: "q1", Attribute: schema.AttrReward, Value: queue.Int(80)},
		queue.Transaction{DocID: "q1", Attribute: schema.AttrLastUpdated, Value: queue.String(stamp.Format(time.RFC3339Nano))},
	))
	if err != nil {
		t.Fatalf("ApplyBatch() failed: %v", err)
	}

	got, err := db.GetDocument(ctx, "q1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got.Title != "Renamed" || got.Reward != 80 {
		t.Errorf("document = %q/%d, want Renamed/80", got.Title, got.Reward)
	}
	if !got.LastUpdated.Equal(stamp) {
		t.Errorf("last_updated = %v, want %v", got.LastUpdated, stamp)
	}
}

// TestApplyBatch_PublishedIsImmutable tests that a published document
// rejects attribute updates.
func TestApplyBatch_PublishedIsImmutable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))

	if _, err := db.Publish(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	err := db.ApplyBatch(ctx, "u1", batch(
		queue.Transaction{DocID: "q1", Attribute: schema.AttrTitle, Value: queue.String("sneaky")},
	))
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("ApplyBatch() error = %v, want ErrConditionFailed", err)
	}

	got, err := db.GetDocument(ctx, "q1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got.Title != "Quest title" {
		t.Errorf("published title = %q, immutability guard leaked", got.Title)
	}
}

// TestApplyBatch_WrongOwner tests the ownership condition.
func TestApplyBatch_WrongOwner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustCreate(t, db, draftQuest("q1", "u1", time.Now().UTC()))

	err := db.ApplyBatch(ctx, "intruder", batch(
		queue.Transaction{DocID: "q1", Attribute: schema.AttrTitle, Value: queue.String("mine now")},
	))
	if !errors.Is(err, ErrConditionFailed) {
		t.Errorf("ApplyBatch() error = %v, want ErrConditionFailed", err)
	}
}

// TestApplyBatch_AtomicAcrossDocuments tests that one failing document rolls
// back the whole batch.
func TestApplyBatch_AtomicAcrossDocuments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))
	mustCreate(t, db, draftQuest("q2", "u1", now))

	// q2 becomes immutable; the update to q1 must not survive.
	if _, err := db.Publish(ctx, "u1", "q2", now); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	err := db.ApplyBatch(ctx, "u1", batch(
		queue.Transaction{DocID: "q1", Attribute: schema.AttrTitle, Value: queue.String("halfway")},
		queue.Transaction{DocID: "q2", Attribute: schema.AttrTitle, Value: queue.String("blocked")},
	))
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("ApplyBatch() error = %v, want ErrConditionFailed", err)
	}

	got, err := db.GetDocument(ctx, "q1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if got.Title != "Quest title" {
		t.Errorf("q1 title = %q, partial batch committed", got.Title)
	}
}

// TestApplyBatch_UnknownAttribute tests rejection of bad transactions.
func TestApplyBatch_UnknownAttribute(t *testing.T) {
	db := openTestDB(t)
	mustCreate(t, db, draftQuest("q1", "u1", time.Now().UTC()))

	err := db.ApplyBatch(context.Background(), "u1", batch(
		queue.Transaction{DocID: "q1", Attribute: "color", Value: queue.String("red")},
	))
	if err == nil {
		t.Error("ApplyBatch() accepted an unknown attribute")
	}
}

// TestUpsertUser tests profile insert and update.
func TestUpsertUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertUser(ctx, "u1", "alice"); err != nil {
		t.Fatalf("UpsertUser() failed: %v", err)
	}
	if err := db.UpsertUser(ctx, "u1", "alice2"); err != nil {
		t.Fatalf("second UpsertUser() failed: %v", err)
	}

	var username string
	if err := db.conn.QueryRow("SELECT username FROM users WHERE id = 'u1'").Scan(&username); err != nil {
		t.Fatalf("failed to query user: %v", err)
	}
	if username != "alice2" {
		t.Errorf("username = %q, want alice2", username)
	}
}

// TestDocumentCount tests the aggregate.
func TestDocumentCount(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))
	mustCreate(t, db, draftQuest("q2", "u2", now))

	count, err := db.DocumentCount(context.Background())
	if err != nil {
		t.Fatalf("DocumentCount() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("DocumentCount() = %d, want 2", count)
	}
}
