package queue

import (
	"encoding/json"
	"fmt"
)

// Wire format for the flush payload. Ordinary JSON has no native map type,
// so the queue is wrapped in a tagged envelope whose value is a list of
// [id, entry] pairs. The pair list preserves document order, and the tag
// distinguishes the payload from a plain object:
//
//	{"dataType":"Map","value":[["q1",{"transactions":[...]}], ...]}
const mapDataType = "Map"

type envelope struct {
	DataType string            `json:"dataType"`
	Value    []json.RawMessage `json:"value"`
}

type docEntry struct {
	Transactions []Transaction `json:"transactions"`
}

// Encode serializes the queue to the wire format. Document order and
// per-document transaction order are preserved exactly.
func Encode(q *Queue) (string, error) {
	env := envelope{DataType: mapDataType}
	for _, id := range q.order {
		pair, err := json.Marshal([2]any{id, docEntry{Transactions: q.byDoc[id]}})
		if err != nil {
			return "", fmt.Errorf("failed to encode transactions for %s: %w", id, err)
		}
		env.Value = append(env.Value, pair)
	}
	if env.Value == nil {
		env.Value = []json.RawMessage{}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode queue: %w", err)
	}
	return string(data), nil
}

// Decode parses a wire payload back into a queue, reconstructing the same
// document order and transaction order. Payloads that are not the tagged
// map envelope are rejected.
func Decode(payload string) (*Queue, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("failed to decode queue payload: %w", err)
	}
	if env.DataType != mapDataType {
		return nil, fmt.Errorf("queue payload must have dataType %q (got %q)", mapDataType, env.DataType)
	}

	q := New()
	for i, raw := range env.Value {
		var pair [2]json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return nil, fmt.Errorf("failed to decode map pair %d: %w", i, err)
		}
		var id string
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return nil, fmt.Errorf("failed to decode document id in pair %d: %w", i, err)
		}
		var entry docEntry
		if err := json.Unmarshal(pair[1], &entry); err != nil {
			return nil, fmt.Errorf("failed to decode transactions for %s: %w", id, err)
		}
		if _, dup := q.byDoc[id]; dup {
			return nil, fmt.Errorf("duplicate document id %s in queue payload", id)
		}
		q.order = append(q.order, id)
		q.byDoc[id] = entry.Transactions
	}
	return q, nil
}
