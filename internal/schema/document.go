// Package schema provides the data structures for Studlancer workspace
// documents (quests and solutions).
//
// Documents are flat, attribute-addressable records: each content attribute
// (title, topic, reward, ...) can be updated independently through a
// transaction, and the last_updated timestamp resolves which copy of a
// document is newer.
package schema

import (
	"fmt"
	"time"
)

// Kind distinguishes the two document types in a workspace.
type Kind string

const (
	// KindQuest is a paid quest posted by a client user.
	KindQuest Kind = "quest"
	// KindSolution is a solver's answer to a quest.
	KindSolution Kind = "solution"
)

// Document represents a quest or solution draft in a user's workspace.
//
// A document is mutable only while Published is false. Once published,
// attribute updates must be rejected (the server enforces this with a
// conditional write).
type Document struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	CreatorID string `json:"creator_id"`

	// QuestID links a solution to the quest it answers; empty for quests.
	QuestID string `json:"quest_id,omitempty"`

	Published bool `json:"published"`
	InTrash   bool `json:"in_trash"`

	// AllowUnpublish is true until a privileged viewer (the quest creator,
	// for solutions) has seen the published document. After that the
	// publish is irreversible.
	AllowUnpublish bool `json:"allow_unpublish"`

	// ===== Content attributes =====
	Title    string     `json:"title,omitempty"`
	Topic    string     `json:"topic,omitempty"`
	Subtopic string     `json:"subtopic,omitempty"`
	Reward   int        `json:"reward,omitempty"`
	Slots    int        `json:"slots,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Content  string     `json:"content,omitempty"`

	// ===== Timestamps (conflict resolution) =====
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Attribute identifies a single updatable document field.
type Attribute string

const (
	AttrTitle       Attribute = "title"
	AttrTopic       Attribute = "topic"
	AttrSubtopic    Attribute = "subtopic"
	AttrReward      Attribute = "reward"
	AttrSlots       Attribute = "slots"
	AttrDeadline    Attribute = "deadline"
	AttrContent     Attribute = "content"
	AttrLastUpdated Attribute = "lastUpdated"
)

// Attributes lists every updatable attribute, in canonical order.
// AttrLastUpdated is synthetic: the flush appends it automatically.
var Attributes = []Attribute{
	AttrTitle, AttrTopic, AttrSubtopic, AttrReward,
	AttrSlots, AttrDeadline, AttrContent, AttrLastUpdated,
}

// Valid reports whether a is a known attribute.
func (a Attribute) Valid() bool {
	for _, known := range Attributes {
		if a == known {
			return true
		}
	}
	return false
}

// Validate checks that the Document has usable field values.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Kind != KindQuest && d.Kind != KindSolution {
		return fmt.Errorf("kind must be quest or solution (got %q)", d.Kind)
	}
	if d.CreatorID == "" {
		return fmt.Errorf("creator_id is required")
	}
	if len(d.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(d.Title))
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if d.LastUpdated.IsZero() {
		return fmt.Errorf("last_updated is required")
	}
	return nil
}

// ValidateForPublish checks that the document has every attribute required
// to go live. For quests the deadline must be strictly in the future.
//
// The first failed check is returned as a human-readable message suitable
// for display; publishing must not proceed on any error.
func (d *Document) ValidateForPublish(now time.Time) error {
	if d.Published {
		return fmt.Errorf("document is already published")
	}
	if d.InTrash {
		return fmt.Errorf("document is in the trash")
	}
	if d.Title == "" {
		return fmt.Errorf("title is required to publish")
	}
	if d.Topic == "" {
		return fmt.Errorf("topic is required to publish")
	}
	if d.Content == "" {
		return fmt.Errorf("content is required to publish")
	}
	if d.Kind == KindQuest {
		if d.Reward <= 0 {
			return fmt.Errorf("reward must be greater than zero to publish")
		}
		if d.Slots <= 0 {
			return fmt.Errorf("slots must be greater than zero to publish")
		}
		if d.Deadline == nil {
			return fmt.Errorf("deadline is required to publish")
		}
		if !d.Deadline.After(now) {
			return fmt.Errorf("deadline must be in the future")
		}
	}
	return nil
}

// HasContent reports whether the document contains anything worth keeping.
// Empty drafts skip the trash and are deleted permanently.
func (d *Document) HasContent() bool {
	return d.Title != "" || d.Topic != "" || d.Subtopic != "" ||
		d.Content != "" || d.Reward != 0 || d.Slots != 0 || d.Deadline != nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	cp := *d
	if d.Deadline != nil {
		deadline := *d.Deadline
		cp.Deadline = &deadline
	}
	return &cp
}

// SetDefaults applies default values for a freshly created draft.
func (d *Document) SetDefaults() {
	if d.Kind == "" {
		d.Kind = KindQuest
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.LastUpdated.IsZero() {
		d.LastUpdated = d.CreatedAt
	}
	d.AllowUnpublish = true
}

// PublishedDocument is the denormalized snapshot created when a draft goes
// live. It is immutable to attribute edits.
type PublishedDocument struct {
	Document

	CreatorUsername string    `json:"creator_username"`
	SolverCount     int       `json:"solver_count"`
	Status          string    `json:"status"` // open, closed
	PublishedAt     time.Time `json:"published_at"`
}

// WorkspaceEntry is the thin projection used for workspace listings.
// It carries just enough to render a sidebar row.
type WorkspaceEntry struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Topic       string    `json:"topic,omitempty"`
	InTrash     bool      `json:"in_trash"`
	LastUpdated time.Time `json:"last_updated"`
}
