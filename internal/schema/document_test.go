package schema

import (
	"strings"
	"testing"
	"time"
)

func validQuest(now time.Time) *Document {
	deadline := now.Add(72 * time.Hour)
	return &Document{
		ID:          "q1",
		Kind:        KindQuest,
		CreatorID:   "u1",
		Title:       "Integrate by parts",
		Topic:       "math",
		Content:     "Show all steps.",
		Reward:      50,
		Slots:       3,
		Deadline:    &deadline,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// TestValidate_RequiredFields tests structural validation.
func TestValidate_RequiredFields(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name   string
		mutate func(*Document)
		errHas string
	}{
		{"missing id", func(d *Document) { d.ID = "" }, "id"},
		{"bad kind", func(d *Document) { d.Kind = "essay" }, "kind"},
		{"missing creator", func(d *Document) { d.CreatorID = "" }, "creator"},
		{"oversized title", func(d *Document) { d.Title = strings.Repeat("x", 501) }, "title"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := validQuest(now)
			tc.mutate(doc)
			err := doc.Validate()
			if err == nil {
				t.Fatal("Validate() accepted an invalid document")
			}
			if !strings.Contains(err.Error(), tc.errHas) {
				t.Errorf("error %q does not mention %q", err, tc.errHas)
			}
		})
	}

	if err := validQuest(now).Validate(); err != nil {
		t.Errorf("Validate() rejected a valid document: %v", err)
	}
}

// TestValidateForPublish_Quest tests the publish gate for quests.
func TestValidateForPublish_Quest(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name   string
		mutate func(*Document)
	}{
		{"already published", func(d *Document) { d.Published = true }},
		{"in trash", func(d *Document) { d.InTrash = true }},
		{"no title", func(d *Document) { d.Title = "" }},
		{"no topic", func(d *Document) { d.Topic = "" }},
		{"no content", func(d *Document) { d.Content = "" }},
		{"zero reward", func(d *Document) { d.Reward = 0 }},
		{"zero slots", func(d *Document) { d.Slots = 0 }},
		{"no deadline", func(d *Document) { d.Deadline = nil }},
		{"past deadline", func(d *Document) {
			past := now.Add(-time.Hour)
			d.Deadline = &past
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := validQuest(now)
			tc.mutate(doc)
			if err := doc.ValidateForPublish(now); err == nil {
				t.Error("ValidateForPublish() accepted an unpublishable quest")
			}
		})
	}

	if err := validQuest(now).ValidateForPublish(now); err != nil {
		t.Errorf("ValidateForPublish() rejected a complete quest: %v", err)
	}
}

// TestValidateForPublish_Solution tests that solutions skip the quest-only
// requirements.
func TestValidateForPublish_Solution(t *testing.T) {
	now := time.Now()
	doc := &Document{
		ID:          "s1",
		Kind:        KindSolution,
		CreatorID:   "u2",
		QuestID:     "q1",
		Title:       "My answer",
		Topic:       "math",
		Content:     "Worked solution.",
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := doc.ValidateForPublish(now); err != nil {
		t.Errorf("ValidateForPublish() rejected a complete solution: %v", err)
	}
}

// TestHasContent tests the empty-draft detection used by the trash flow.
func TestHasContent(t *testing.T) {
	empty := &Document{ID: "q1", Kind: KindQuest, CreatorID: "u1"}
	if empty.HasContent() {
		t.Error("HasContent() true for an empty draft")
	}

	titled := &Document{ID: "q1", Kind: KindQuest, CreatorID: "u1", Title: "x"}
	if !titled.HasContent() {
		t.Error("HasContent() false for a draft with a title")
	}

	deadline := time.Now()
	dated := &Document{ID: "q1", Kind: KindQuest, CreatorID: "u1", Deadline: &deadline}
	if !dated.HasContent() {
		t.Error("HasContent() false for a draft with a deadline")
	}
}

// TestClone_Independent tests that Clone deep-copies the deadline pointer.
func TestClone_Independent(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	doc := &Document{ID: "q1", Deadline: &deadline}

	cp := doc.Clone()
	*cp.Deadline = cp.Deadline.Add(time.Hour)
	cp.Title = "changed"

	if !doc.Deadline.Equal(deadline) {
		t.Error("Clone() shares the deadline pointer")
	}
	if doc.Title != "" {
		t.Error("Clone() shares scalar fields")
	}
}

// TestSetDefaults tests fresh-draft defaults.
func TestSetDefaults(t *testing.T) {
	doc := &Document{ID: "q1", CreatorID: "u1"}
	doc.SetDefaults()

	if doc.Kind != KindQuest {
		t.Errorf("default kind = %q, want quest", doc.Kind)
	}
	if doc.CreatedAt.IsZero() || doc.LastUpdated.IsZero() {
		t.Error("timestamps not defaulted")
	}
	if !doc.LastUpdated.Equal(doc.CreatedAt) {
		t.Error("last_updated should start equal to created_at")
	}
	if !doc.AllowUnpublish {
		t.Error("new drafts must allow unpublish")
	}
}

// TestAttribute_Valid tests attribute name recognition.
func TestAttribute_Valid(t *testing.T) {
	for _, a := range Attributes {
		if !a.Valid() {
			t.Errorf("Valid() = false for known attribute %s", a)
		}
	}
	if Attribute("color").Valid() {
		t.Error("Valid() = true for unknown attribute")
	}
}
