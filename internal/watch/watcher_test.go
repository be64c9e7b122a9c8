package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
)

// recordingEditor captures replayed edits.
type recordingEditor struct {
	mu    sync.Mutex
	edits []recordedEdit
}

type recordedEdit struct {
	id    string
	attr  schema.Attribute
	value queue.Value
}

func (r *recordingEditor) Edit(id string, attr schema.Attribute, value queue.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, recordedEdit{id, attr, value})
}

func (r *recordingEditor) snapshot() []recordedEdit {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]recordedEdit, len(r.edits))
	copy(cp, r.edits)
	return cp
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, editor Editor, dir string) {
	t.Helper()

	cfg := &Config{
		DebounceInterval: 20 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
	w, err := New(editor, dir, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the fsnotify watch a moment to attach before writing files.
	time.Sleep(50 * time.Millisecond)
}

// TestWatcher_ReplaysDraftFile tests that writing a draft file produces the
// matching edits, keyed by the filename.
func TestWatcher_ReplaysDraftFile(t *testing.T) {
	dir := t.TempDir()
	editor := &recordingEditor{}
	startWatcher(t, editor, dir)

	draft := `{"title":"From disk","reward":60}`
	if err := os.WriteFile(filepath.Join(dir, "q1.json"), []byte(draft), 0644); err != nil {
		t.Fatalf("failed to write draft: %v", err)
	}

	waitFor(t, func() bool { return len(editor.snapshot()) >= 2 })

	edits := editor.snapshot()
	for _, e := range edits {
		if e.id != "q1" {
			t.Errorf("edit targeted %q, want q1", e.id)
		}
	}

	byAttr := make(map[schema.Attribute]queue.Value)
	for _, e := range edits {
		byAttr[e.attr] = e.value
	}
	if got := byAttr[schema.AttrTitle].Str(); got != "From disk" {
		t.Errorf("title edit = %q, want From disk", got)
	}
	if got := byAttr[schema.AttrReward].AsInt(); got != 60 {
		t.Errorf("reward edit = %d, want 60", got)
	}
}

// TestWatcher_PartialDraftTouchesNamedAttributesOnly tests that absent
// fields are not replayed.
func TestWatcher_PartialDraftTouchesNamedAttributesOnly(t *testing.T) {
	dir := t.TempDir()
	editor := &recordingEditor{}
	startWatcher(t, editor, dir)

	if err := os.WriteFile(filepath.Join(dir, "q1.json"), []byte(`{"content":"only this"}`), 0644); err != nil {
		t.Fatalf("failed to write draft: %v", err)
	}

	waitFor(t, func() bool { return len(editor.snapshot()) >= 1 })

	edits := editor.snapshot()
	if len(edits) != 1 {
		t.Fatalf("replayed %d edits, want 1", len(edits))
	}
	if edits[0].attr != schema.AttrContent {
		t.Errorf("edit attr = %s, want content", edits[0].attr)
	}
}

// TestWatcher_IgnoresNonJSONFiles tests the extension filter.
func TestWatcher_IgnoresNonJSONFiles(t *testing.T) {
	dir := t.TempDir()
	editor := &recordingEditor{}
	startWatcher(t, editor, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "q1.json~"), []byte(`{"title":"backup"}`), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if got := editor.snapshot(); len(got) != 0 {
		t.Errorf("replayed %d edits from non-draft files, want 0", len(got))
	}
}

// TestWatcher_MalformedDraftIsSkipped tests that a bad file does not stop
// later replays.
func TestWatcher_MalformedDraftIsSkipped(t *testing.T) {
	dir := t.TempDir()
	editor := &recordingEditor{}
	startWatcher(t, editor, dir)

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{{{"), 0644); err != nil {
		t.Fatalf("failed to write draft: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(`{"title":"fine"}`), 0644); err != nil {
		t.Fatalf("failed to write draft: %v", err)
	}
	waitFor(t, func() bool { return len(editor.snapshot()) >= 1 })

	edits := editor.snapshot()
	if edits[0].id != "good" {
		t.Errorf("edit id = %q, want good", edits[0].id)
	}
}

// TestNew_Validation tests constructor argument checks.
func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, t.TempDir(), nil); err == nil {
		t.Error("New() accepted a nil editor")
	}
	if _, err := New(&recordingEditor{}, "", nil); err == nil {
		t.Error("New() accepted an empty drafts dir")
	}
}

// TestDraftFile_Edits tests the field-to-attribute mapping directly.
func TestDraftFile_Edits(t *testing.T) {
	title := "t"
	reward := 55.0
	deadline := "2026-06-01T00:00:00Z"
	d := &DraftFile{Title: &title, Reward: &reward, Deadline: &deadline}

	edits := d.edits()
	if len(edits) != 3 {
		t.Fatalf("edits() returned %d, want 3", len(edits))
	}
	want := []schema.Attribute{schema.AttrTitle, schema.AttrReward, schema.AttrDeadline}
	for i, attr := range want {
		if edits[i].attr != attr {
			t.Errorf("edits[%d].attr = %s, want %s", i, edits[i].attr, attr)
		}
	}
}
