package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/studlancer/studlancer/internal/schema"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// publishedSolution seeds a quest by quester, a solution by solver, and
// publishes the solution.
func publishedSolution(t *testing.T, db *DB, now time.Time) {
	t.Helper()
	ctx := context.Background()

	mustCreate(t, db, draftQuest("q1", "quester", now))
	sol := &schema.Document{
		ID: "s1", Kind: schema.KindSolution, CreatorID: "solver", QuestID: "q1",
		Title: "Answer", Topic: "math", Content: "Solved.",
		AllowUnpublish: true, CreatedAt: now, LastUpdated: now,
	}
	mustCreate(t, db, sol)

	if _, err := db.Publish(ctx, "solver", "s1", now); err != nil {
		t.Fatalf("Publish(s1) failed: %v", err)
	}
}

// TestPublish_FlipsFlagsAndSnapshot tests a successful publish.
func TestPublish_FlipsFlagsAndSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	mustCreate(t, db, draftQuest("q1", "u1", now))

	if err := db.UpsertUser(ctx, "u1", "alice"); err != nil {
		t.Fatalf("UpsertUser() failed: %v", err)
	}

	pub, err := db.Publish(ctx, "u1", "q1", now)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if !pub.Published || !pub.AllowUnpublish {
		t.Errorf("snapshot flags = published=%v allow_unpublish=%v, want true/true", pub.Published, pub.AllowUnpublish)
	}
	if pub.Status != "open" {
		t.Errorf("status = %q, want open", pub.Status)
	}
	if pub.CreatorUsername != "alice" {
		t.Errorf("creator username = %q, want alice", pub.CreatorUsername)
	}
	if !pub.PublishedAt.Equal(now) {
		t.Errorf("published_at = %v, want %v", pub.PublishedAt, now)
	}
}

// TestPublish_IncompleteDraft tests the validation gate.
func TestPublish_IncompleteDraft(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	doc := draftQuest("q1", "u1", now)
	doc.Content = ""
	mustCreate(t, db, doc)

	if _, err := db.Publish(context.Background(), "u1", "q1", now); err == nil {
		t.Error("Publish() accepted an incomplete draft")
	}
}

// TestPublish_PastDeadline tests that an expired quest cannot go live.
func TestPublish_PastDeadline(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	doc := draftQuest("q1", "u1", now)
	past := now.Add(-time.Hour)
	doc.Deadline = &past
	mustCreate(t, db, doc)

	if _, err := db.Publish(context.Background(), "u1", "q1", now); err == nil {
		t.Error("Publish() accepted a past deadline")
	}
}

// TestPublish_WrongOwner tests the ownership check.
func TestPublish_WrongOwner(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))

	_, err := db.Publish(context.Background(), "intruder", "q1", now)
	if !errors.Is(err, ErrConditionFailed) {
		t.Errorf("Publish() error = %v, want ErrConditionFailed", err)
	}
}

// TestPublish_Twice tests that a second publish fails the condition.
func TestPublish_Twice(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))

	if _, err := db.Publish(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if _, err := db.Publish(ctx, "u1", "q1", now); err == nil {
		t.Error("second Publish() succeeded")
	}
}

// TestGetPublished_DraftIsHidden tests that drafts are invisible to the
// published view.
func TestGetPublished_DraftIsHidden(t *testing.T) {
	db := openTestDB(t)
	mustCreate(t, db, draftQuest("q1", "u1", time.Now().UTC()))

	_, err := db.GetPublished(context.Background(), "q1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPublished() error = %v, want ErrNotFound for a draft", err)
	}
}

// TestUnpublish_AllowedBeforeView tests the revert path.
func TestUnpublish_AllowedBeforeView(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	publishedSolution(t, db, now)

	if err := db.Unpublish(ctx, "solver", "s1", now); err != nil {
		t.Fatalf("Unpublish() failed: %v", err)
	}

	doc, err := db.GetDocument(ctx, "s1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.Published {
		t.Error("document still published after Unpublish()")
	}
}

// TestUnpublish_BlockedAfterPrivilegedView tests that the quest creator's
// view makes the publish irreversible.
func TestUnpublish_BlockedAfterPrivilegedView(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	publishedSolution(t, db, now)

	if err := db.RecordView(ctx, "quester", "s1"); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}

	err := db.Unpublish(ctx, "solver", "s1", now)
	if !errors.Is(err, ErrUnpublishNotAllowed) {
		t.Errorf("Unpublish() error = %v, want ErrUnpublishNotAllowed", err)
	}
}

// TestRecordView_UnprivilegedViewerIsHarmless tests that random viewers do
// not lock the publish.
func TestRecordView_UnprivilegedViewerIsHarmless(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	publishedSolution(t, db, now)

	if err := db.RecordView(ctx, "bystander", "s1"); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}
	if err := db.RecordView(ctx, "solver", "s1"); err != nil {
		t.Fatalf("self RecordView() failed: %v", err)
	}

	if err := db.Unpublish(ctx, "solver", "s1", now); err != nil {
		t.Errorf("Unpublish() failed after unprivileged views: %v", err)
	}
}

// TestRecordView_QuestViewsDoNotLock tests that viewing a published quest
// never locks it.
func TestRecordView_QuestViewsDoNotLock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))
	if _, err := db.Publish(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if err := db.RecordView(ctx, "anyone", "q1"); err != nil {
		t.Fatalf("RecordView() failed: %v", err)
	}
	if err := db.Unpublish(ctx, "u1", "q1", now); err != nil {
		t.Errorf("Unpublish() failed after quest view: %v", err)
	}
}

// TestTrashRestore_Cycle tests the soft-delete round trip.
func TestTrashRestore_Cycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))

	if err := db.Trash(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Trash() failed: %v", err)
	}
	doc, err := db.GetDocument(ctx, "q1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if !doc.InTrash {
		t.Error("document not in trash")
	}

	// Trashing again fails the in_trash condition.
	if err := db.Trash(ctx, "u1", "q1", now); !errors.Is(err, ErrConditionFailed) {
		t.Errorf("double Trash() error = %v, want ErrConditionFailed", err)
	}

	if err := db.Restore(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	doc, err = db.GetDocument(ctx, "q1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.InTrash {
		t.Error("document still in trash after Restore()")
	}
}

// TestTrash_PublishedRefused tests that published documents cannot be
// trashed.
func TestTrash_PublishedRefused(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	mustCreate(t, db, draftQuest("q1", "u1", now))
	if _, err := db.Publish(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if err := db.Trash(ctx, "u1", "q1", now); !errors.Is(err, ErrConditionFailed) {
		t.Errorf("Trash() error = %v, want ErrConditionFailed", err)
	}
}

// TestDeletePermanently_Rules tests which documents qualify for permanent
// deletion.
func TestDeletePermanently_Rules(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// A contentful, untrashed draft is refused.
	mustCreate(t, db, draftQuest("q1", "u1", now))
	if err := db.DeletePermanently(ctx, "u1", "q1"); !errors.Is(err, ErrConditionFailed) {
		t.Errorf("DeletePermanently(live draft) error = %v, want ErrConditionFailed", err)
	}

	// Trashed drafts qualify.
	if err := db.Trash(ctx, "u1", "q1", now); err != nil {
		t.Fatalf("Trash() failed: %v", err)
	}
	if err := db.DeletePermanently(ctx, "u1", "q1"); err != nil {
		t.Fatalf("DeletePermanently(trashed) failed: %v", err)
	}
	if _, err := db.GetDocument(ctx, "q1"); !errors.Is(err, ErrNotFound) {
		t.Error("document still present after permanent delete")
	}

	// Empty drafts skip the trash requirement.
	empty := &schema.Document{
		ID: "q2", Kind: schema.KindQuest, CreatorID: "u1",
		AllowUnpublish: true, CreatedAt: now, LastUpdated: now,
	}
	mustCreate(t, db, empty)
	if err := db.DeletePermanently(ctx, "u1", "q2"); err != nil {
		t.Errorf("DeletePermanently(empty draft) failed: %v", err)
	}
}

// TestWorkspace_ListsOwnerNewestFirst tests the workspace projection.
func TestWorkspace_ListsOwnerNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	older := draftQuest("q1", "u1", base)
	newer := draftQuest("q2", "u1", base.Add(time.Hour))
	foreign := draftQuest("q3", "u2", base)
	mustCreate(t, db, older)
	mustCreate(t, db, newer)
	mustCreate(t, db, foreign)

	if err := db.Trash(ctx, "u1", "q1", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("Trash() failed: %v", err)
	}

	entries, err := db.Workspace(ctx, "u1")
	if err != nil {
		t.Fatalf("Workspace() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("workspace has %d entries, want 2", len(entries))
	}
	// The trash stamp made q1 newest.
	if entries[0].ID != "q1" || !entries[0].InTrash {
		t.Errorf("entries[0] = %+v, want trashed q1 first", entries[0])
	}
	if entries[1].ID != "q2" {
		t.Errorf("entries[1] = %+v, want q2", entries[1])
	}
}

// TestSeed_LoadsFixture tests the YAML seed path.
func TestSeed_LoadsFixture(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fixture := `
users:
  - id: u1
    username: alice
  - id: u2
    username: bob
documents:
  - id: q1
    kind: quest
    creator: u1
    title: Seeded quest
    topic: math
    content: Prove it.
    reward: 40
    slots: 2
    deadline: 2027-01-01T00:00:00Z
  - id: s1
    kind: solution
    creator: u2
    quest_id: q1
    title: Seeded solution
    topic: math
    content: Proof.
`
	path := writeTempFile(t, "seed.yaml", fixture)

	result, err := db.Seed(ctx, path)
	if err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	if result.UsersLoaded != 2 || result.DocumentsLoaded != 2 {
		t.Errorf("result = %+v, want 2 users and 2 documents", result)
	}

	doc, err := db.GetDocument(ctx, "s1")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.QuestID != "q1" {
		t.Errorf("seeded solution quest_id = %q, want q1", doc.QuestID)
	}

	// Re-seeding skips existing rows instead of failing.
	again, err := db.Seed(ctx, path)
	if err != nil {
		t.Fatalf("second Seed() failed: %v", err)
	}
	if again.DocumentsLoaded != 0 {
		t.Errorf("second seed loaded %d documents, want 0", again.DocumentsLoaded)
	}
}
