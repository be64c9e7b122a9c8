// Package versions tracks per-document sync state for the workspace editor.
//
// For every document the ledger keeps a {server, local} timestamp pair.
// When the local timestamp lags the last known server timestamp the document
// is stale and must be refetched before editing; when the two are equal the
// locally cached copy is trusted without a network call.
//
// The ledger exists purely to avoid redundant fetches. Losing it is safe:
// an absent record is treated as stale, which just costs one extra fetch.
package versions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is the {server, local} timestamp pair for one document.
type Record struct {
	Server time.Time `json:"server"`
	Local  time.Time `json:"local"`
}

// Stale reports whether the document needs a server refetch.
func (r Record) Stale() bool {
	return r.Local.Before(r.Server)
}

// Ledger is a durable map from document id to Record, backed by a single
// JSON file. Read and parse failures are swallowed: a record that cannot be
// loaded is simply absent, which falls back to the server as source of truth.
type Ledger struct {
	path    string
	records map[string]Record
}

// Open loads the ledger file under dir, creating the directory if needed.
// A missing or corrupt file yields an empty ledger, not an error.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		path:    filepath.Join(dir, "versions.json"),
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		// Missing or unreadable file: start empty.
		return l, nil
	}
	if err := json.Unmarshal(data, &l.records); err != nil {
		// Corrupt file: treat every record as absent.
		l.records = make(map[string]Record)
	}
	return l, nil
}

// Get returns the record for id, or false if none is known.
func (l *Ledger) Get(id string) (Record, bool) {
	r, ok := l.records[id]
	return r, ok
}

// Set stores the record for id and persists the ledger.
func (l *Ledger) Set(id string, r Record) error {
	l.records[id] = r
	return l.save()
}

// Delete removes the record for id so the next load treats the document as
// stale. Deleting an unknown id is a no-op.
func (l *Ledger) Delete(id string) error {
	if _, ok := l.records[id]; !ok {
		return nil
	}
	delete(l.records, id)
	return l.save()
}

// Len returns the number of tracked documents.
func (l *Ledger) Len() int {
	return len(l.records)
}

func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger file %s: %w", l.path, err)
	}
	return nil
}
