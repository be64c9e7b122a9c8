package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studlancer/studlancer/internal/schema"
)

// SeedFile is the YAML fixture format accepted by Seed.
type SeedFile struct {
	Users     []SeedUser     `yaml:"users"`
	Documents []SeedDocument `yaml:"documents"`
}

// SeedUser is a user profile row in a seed file.
type SeedUser struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
}

// SeedDocument is a document row in a seed file. Deadline accepts RFC3339.
type SeedDocument struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Creator  string `yaml:"creator"`
	QuestID  string `yaml:"quest_id"`
	Title    string `yaml:"title"`
	Topic    string `yaml:"topic"`
	Subtopic string `yaml:"subtopic"`
	Reward   int    `yaml:"reward"`
	Slots    int    `yaml:"slots"`
	Deadline string `yaml:"deadline"`
	Content  string `yaml:"content"`
}

// SeedResult reports what a Seed call loaded.
type SeedResult struct {
	UsersLoaded     int
	DocumentsLoaded int
}

// Seed loads a YAML fixture file of users and draft documents. Existing
// rows with the same ids are left alone; the insert simply fails for them
// and the failure is counted, not fatal.
func (db *DB) Seed(ctx context.Context, path string) (*SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	result := &SeedResult{}
	now := time.Now()

	for _, u := range seed.Users {
		if u.ID == "" {
			continue
		}
		if err := db.UpsertUser(ctx, u.ID, u.Username); err != nil {
			return nil, err
		}
		result.UsersLoaded++
	}

	for _, d := range seed.Documents {
		doc := &schema.Document{
			ID:          d.ID,
			Kind:        schema.Kind(d.Kind),
			CreatorID:   d.Creator,
			QuestID:     d.QuestID,
			Title:       d.Title,
			Topic:       d.Topic,
			Subtopic:    d.Subtopic,
			Reward:      d.Reward,
			Slots:       d.Slots,
			Content:     d.Content,
			CreatedAt:   now,
			LastUpdated: now,
		}
		doc.SetDefaults()
		if d.Deadline != "" {
			t, err := time.Parse(time.RFC3339, d.Deadline)
			if err != nil {
				return nil, fmt.Errorf("invalid deadline for %s: %w", d.ID, err)
			}
			doc.Deadline = &t
		}
		if err := db.CreateDocument(ctx, doc); err != nil {
			// Already seeded rows are fine to skip.
			fmt.Fprintf(os.Stderr, "Warning: skipping seed document %s: %v\n", d.ID, err)
			continue
		}
		result.DocumentsLoaded++
	}

	return result, nil
}
